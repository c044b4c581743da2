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

package main

import (
	"testing"
	"time"

	"github.com/contiv/l2switch/pkg/l2switch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	log "github.com/sirupsen/logrus"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil)
	require.NoError(t, err)

	assert.Equal(t, ":6633", opts.listen)
	assert.Equal(t, ":9090", opts.httpListen)
	assert.Equal(t, l2switch.DefaultConfig(), opts.switchConfig())
	assert.Equal(t, uint16(100), opts.flowPriority)
	assert.Equal(t, 3*time.Second, opts.handshakeTimeout)
	assert.Equal(t, 1024, opts.eventQueue)
	assert.Empty(t, opts.ovsBridge)
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{
		"--listen", "127.0.0.1:6653",
		"--idle-timeout", "10",
		"--hard-timeout", "30",
		"--stats-interval", "1m",
		"--ovs-bridge", "l2br",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6653", opts.listen)
	assert.Equal(t, l2switch.Config{IdleTimeout: 10, HardTimeout: 30, StatsInterval: time.Minute}, opts.switchConfig())
	assert.Equal(t, "l2br", opts.ovsBridge)
}

func TestParseFlagsInvalid(t *testing.T) {
	_, err := parseFlags([]string{"--idle-timeout", "0"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"--idle-timeout", "20", "--hard-timeout", "10"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"--event-queue", "0"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestControllerTarget(t *testing.T) {
	target, err := controllerTarget(":6633")
	require.NoError(t, err)
	assert.Equal(t, "tcp:127.0.0.1:6633", target)

	target, err = controllerTarget("10.0.0.1:6653")
	require.NoError(t, err)
	assert.Equal(t, "tcp:10.0.0.1:6653", target)

	_, err = controllerTarget("6633")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	require.NoError(t, setupLogging("debug", false))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	assert.Error(t, setupLogging("loud", false))
}
