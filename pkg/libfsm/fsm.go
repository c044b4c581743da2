/***
Copyright 2014 Cisco Systems Inc. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package libfsm

// Finite state machines
// Library to implement table driven FSMs.
// - Transitions are looked up by <current state, event name>
// - The transition callback runs before the state changes. If it fails
//   the FSM stays in its current state.
// - An FSM is not safe for concurrent use. Owners feed it events from a
//   single goroutine.

import (
	"errors"
	"fmt"

	"github.com/golang/glog"
)

// ErrInvalidEvent is returned for events with no transition in the current state
var ErrInvalidEvent = errors.New("invalid event")

// Main FSM structure
type Fsm struct {
	name        string    // Name used in logs
	transitions *FsmTable // FSM transition table
	FsmState    string    // FSM's current state
}

// FSM event
type Event struct {
	EventName string      // Name of the event
	EventData interface{} // Event specific data
}

// Callback function type
type CallbackFunc func(Event) error

// FSM Transition entry
type Transition struct {
	CurrState string
	EventName string
	NewState  string
	Callback  CallbackFunc
}

type FsmTable []Transition

// Create a new Fsm
func NewFsm(name string, fsmTable *FsmTable, initState string) *Fsm {
	return &Fsm{
		name:        name,
		transitions: fsmTable,
		FsmState:    initState,
	}
}

// State returns the current state
func (self *Fsm) State() string {
	return self.FsmState
}

// FsmEvent runs the transition for event in the current state
func (self *Fsm) FsmEvent(event Event) error {
	glog.V(2).Infof("%s: processing event %s in state %s", self.name, event.EventName, self.FsmState)

	for _, trans := range *self.transitions {
		if trans.CurrState != self.FsmState || trans.EventName != event.EventName {
			continue
		}

		if trans.Callback != nil {
			if err := trans.Callback(event); err != nil {
				glog.Errorf("%s: event %s failed in state %s. Err: %v", self.name, event.EventName, self.FsmState, err)
				return err
			}
		}

		if self.FsmState != trans.NewState {
			glog.V(2).Infof("%s: transitioning to state %s", self.name, trans.NewState)
			self.FsmState = trans.NewState
		}

		return nil
	}

	glog.Warningf("%s: invalid event %s in state %s", self.name, event.EventName, self.FsmState)
	return fmt.Errorf("%w %s in state %s", ErrInvalidEvent, event.EventName, self.FsmState)
}
