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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/contiv/l2switch/pkg/l2switch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs fn right away
type directCaller struct {
	err error
}

func (c directCaller) Call(ctx context.Context, fn func()) error {
	if c.err != nil {
		return c.err
	}
	fn()
	return nil
}

type staticSource []l2switch.EngineInfo

func (s staticSource) Snapshot() []l2switch.EngineInfo { return s }

var testSwitches = staticSource{
	{
		DPID:             "00:00:00:00:00:00:00:01",
		LearnedAddresses: 2,
		Counters:         l2switch.Counters{Floods: 3, Installs: 1, Drops: 0},
	},
	{
		DPID:             "00:00:00:00:00:00:00:02",
		LearnedAddresses: 0,
	},
}

func newTestServer(t *testing.T, caller Caller) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test counter"}))

	srv := httptest.NewServer(NewServer(caller, testSwitches, reg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestGetSwitchList(t *testing.T) {
	srv := newTestServer(t, directCaller{})

	code, body := get(t, srv.URL+"/switches/")
	require.Equal(t, http.StatusOK, code)

	var switchList []SwitchInfo
	require.NoError(t, json.Unmarshal(body, &switchList))
	require.Len(t, switchList, 2)
	assert.Equal(t, SwitchInfo{
		DPID:             "00:00:00:00:00:00:00:01",
		LearnedAddresses: 2,
		Floods:           3,
		Installs:         1,
	}, switchList[0])
}

func TestGetSwitch(t *testing.T) {
	srv := newTestServer(t, directCaller{})

	code, body := get(t, srv.URL+"/switches/00:00:00:00:00:00:00:02")
	require.Equal(t, http.StatusOK, code)

	var info SwitchInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, "00:00:00:00:00:00:00:02", info.DPID)

	code, _ = get(t, srv.URL+"/switches/00:00:00:00:00:00:00:09")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLoopStopped(t *testing.T) {
	srv := newTestServer(t, directCaller{err: errors.New("event loop stopped")})

	code, _ := get(t, srv.URL+"/switches/")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, directCaller{})

	code, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "test_total")
}
