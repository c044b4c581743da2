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

// Package evloop serializes callbacks from many goroutines onto a single
// goroutine. Switch receive loops and timers post into the loop, so the
// state touched by the callbacks needs no locking.
package evloop

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// ErrLoopStopped is returned when posting to a loop that is not running
var ErrLoopStopped = errors.New("event loop stopped")

// Loop runs posted functions one at a time, in order
type Loop struct {
	clock  clock.WithTicker
	events chan func()
	done   chan struct{}
	once   sync.Once
}

// New creates a loop with a queue of depth events
func New(clk clock.WithTicker, depth int) *Loop {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if depth <= 0 {
		depth = 1
	}

	return &Loop{
		clock:  clk,
		events: make(chan func(), depth),
		done:   make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled. An event that is running
// when ctx is cancelled completes first.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.events:
			fn()
		}
	}
}

func (l *Loop) stop() {
	l.once.Do(func() { close(l.done) })
}

// Post queues fn. It blocks while the queue is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	select {
	case l.events <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Call runs fn on the loop and waits for it to complete
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	err := l.Post(func() {
		defer close(finished)
		fn()
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Every posts fn to the loop once per period until stop is called or the
// loop exits. Ticks are posted, not run, so fn runs on the loop goroutine.
func (l *Loop) Every(period time.Duration, fn func()) (stop func()) {
	ticker := l.clock.NewTicker(period)
	quit := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if err := l.Post(fn); err != nil {
					return
				}
			case <-quit:
				return
			case <-l.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			log.Debugf("Stopping %v timer", period)
			close(quit)
		})
	}
}
