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

// This package implements the read only http api of the controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/contiv/l2switch/pkg/l2switch"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	log "github.com/sirupsen/logrus"
)

// ErrSwitchNotFound is returned for unknown dpids
var ErrSwitchNotFound = errors.New("switch not found")

const shutdownTimeout = 5 * time.Second

type HttpApiFunc func(w http.ResponseWriter, r *http.Request, vars map[string]string) (interface{}, error)

// Caller runs fn on the event loop that owns the switch state
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// SwitchSource lists the forwarding engines
type SwitchSource interface {
	Snapshot() []l2switch.EngineInfo
}

// SwitchInfo is the api view of a connected switch
type SwitchInfo struct {
	DPID             string `json:"dpid"`
	LearnedAddresses int    `json:"learnedAddresses"`
	Floods           uint64 `json:"floods"`
	Installs         uint64 `json:"installs"`
	Drops            uint64 `json:"drops"`
}

type Server struct {
	loop     Caller
	switches SwitchSource
	router   *mux.Router
}

// Create the api server. Switch state is read through loop, metrics come
// from gatherer.
func NewServer(loop Caller, switches SwitchSource, gatherer prometheus.Gatherer) *Server {
	self := &Server{
		loop:     loop,
		switches: switches,
	}
	self.router = self.createRouter(gatherer)

	return self
}

// Handler returns the http handler of the api
func (self *Server) Handler() http.Handler {
	return self.router
}

// ListenAndServe serves the api on addr until ctx is cancelled
func (self *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           self.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("HTTP server listening on %s", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Create a router and initialize the routes
func (self *Server) createRouter(gatherer prometheus.Gatherer) *mux.Router {
	// Create a new router instance
	router := mux.NewRouter()

	// List of routes
	routeMap := map[string]map[string]HttpApiFunc{
		"GET": {
			"/switches/":       self.httpGetSwitchList,
			"/switches/{dpid}": self.httpGetSwitch,
		},
	}

	// Register each method/path
	for method, routes := range routeMap {
		for route, funct := range routes {
			log.Debugf("Registering %s %s", method, route)

			// Create a closure for the handlers
			f := makeHttpHandler(method, route, funct)

			// Register the handler
			router.Path(route).Methods(method).HandlerFunc(f)
		}
	}

	router.Path("/metrics").Methods("GET").Handler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return router
}

// Read the switch list on the event loop
func (self *Server) switchList(ctx context.Context) ([]SwitchInfo, error) {
	var infos []l2switch.EngineInfo
	err := self.loop.Call(ctx, func() {
		infos = self.switches.Snapshot()
	})
	if err != nil {
		return nil, err
	}

	switchList := make([]SwitchInfo, 0, len(infos))
	for _, info := range infos {
		switchList = append(switchList, SwitchInfo{
			DPID:             info.DPID,
			LearnedAddresses: info.LearnedAddresses,
			Floods:           info.Floods,
			Installs:         info.Installs,
			Drops:            info.Drops,
		})
	}

	return switchList, nil
}

func (self *Server) httpGetSwitchList(w http.ResponseWriter, r *http.Request, vars map[string]string) (interface{}, error) {
	return self.switchList(r.Context())
}

func (self *Server) httpGetSwitch(w http.ResponseWriter, r *http.Request, vars map[string]string) (interface{}, error) {
	switchList, err := self.switchList(r.Context())
	if err != nil {
		return nil, err
	}

	for _, info := range switchList {
		if info.DPID == vars["dpid"] {
			return info, nil
		}
	}

	return nil, ErrSwitchNotFound
}

// Simple Wrapper for http handlers
func makeHttpHandler(localMethod string, localRoute string, handlerFunc HttpApiFunc) http.HandlerFunc {
	// Create a closure and return an anonymous function
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("%s %s", r.Method, r.RequestURI)

		// Call the handler
		resp, err := handlerFunc(w, r, mux.Vars(r))
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, ErrSwitchNotFound) {
				code = http.StatusNotFound
			} else {
				log.Errorf("Handler for %s %s returned error: %s", localMethod, localRoute, err)
			}

			http.Error(w, err.Error(), code)
			return
		}

		// Send HTTP response as Json
		writeJSON(w, http.StatusOK, resp)
	}
}

// writeJSON: writes the value v to the http response stream as json with standard
// json encoding.
func writeJSON(w http.ResponseWriter, code int, v interface{}) error {
	// Set content type as json
	w.Header().Set("Content-Type", "application/json")

	// write the HTTP status code
	w.WriteHeader(code)

	// Write the Json output
	return json.NewEncoder(w).Encode(v)
}
