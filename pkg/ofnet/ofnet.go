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

package ofnet

// This package implements the openflow side of the learning switch. It
// turns controller callbacks into switch connections and frames, and
// encodes forwarding commands as openflow messages.

const FLOW_MATCH_PRIORITY = 100 // Default priority for all match flows
const FLOW_MISS_PRIORITY = 0    // priority for table miss flow

// Poster runs callbacks one at a time on a single goroutine
type Poster interface {
	Post(fn func()) error
}

// AgentConfig holds the agent parameters
type AgentConfig struct {
	FlowPriority uint16 // Priority of the installed mac flows
}

// DefaultAgentConfig returns the default agent config
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{FlowPriority: FLOW_MATCH_PRIORITY}
}
