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
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contiv/l2switch/pkg/api"
	"github.com/contiv/l2switch/pkg/evloop"
	"github.com/contiv/l2switch/pkg/l2switch"
	"github.com/contiv/l2switch/pkg/ofctrl"
	"github.com/contiv/l2switch/pkg/ofnet"
	"github.com/contiv/l2switch/pkg/ovsdriver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	log "github.com/sirupsen/logrus"
)

// Command line options
type options struct {
	listen           string
	httpListen       string
	idleTimeout      uint16
	hardTimeout      uint16
	statsInterval    time.Duration
	flowPriority     uint16
	handshakeTimeout time.Duration
	echoInterval     time.Duration
	eventQueue       int
	ovsBridge        string
	ovsdbAddr        string
	ovsdbPort        int
	ovsController    string
	logLevel         string
	logJSON          bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	defaults := l2switch.DefaultConfig()
	ctrlDefaults := ofctrl.DefaultOptions()

	fs := pflag.NewFlagSet("l2switchd", pflag.ContinueOnError)
	fs.StringVar(&opts.listen, "listen", ":6633", "Address to accept openflow connections on")
	fs.StringVar(&opts.httpListen, "http-listen", ":9090", "Address of the http api, empty disables it")
	fs.Uint16Var(&opts.idleTimeout, "idle-timeout", defaults.IdleTimeout, "Idle timeout of installed flows in seconds")
	fs.Uint16Var(&opts.hardTimeout, "hard-timeout", defaults.HardTimeout, "Hard timeout of installed flows in seconds")
	fs.DurationVar(&opts.statsInterval, "stats-interval", defaults.StatsInterval, "Period of the port statistics timer")
	fs.Uint16Var(&opts.flowPriority, "flow-priority", ofnet.FLOW_MATCH_PRIORITY, "Priority of installed flows")
	fs.DurationVar(&opts.handshakeTimeout, "handshake-timeout", ctrlDefaults.HandshakeTimeout, "Time allowed for the openflow handshake")
	fs.DurationVar(&opts.echoInterval, "echo-interval", ctrlDefaults.EchoInterval, "Keepalive period, zero disables keepalives")
	fs.IntVar(&opts.eventQueue, "event-queue", 1024, "Depth of the event queue")
	fs.StringVar(&opts.ovsBridge, "ovs-bridge", "", "OVS bridge to create and point at this controller, empty leaves OVS alone")
	fs.StringVar(&opts.ovsdbAddr, "ovsdb-addr", "localhost", "OVSDB server address")
	fs.IntVar(&opts.ovsdbPort, "ovsdb-port", 6640, "OVSDB server port")
	fs.StringVar(&opts.ovsController, "ovs-controller", "", "Controller target given to OVS, derived from --listen when empty")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level")
	fs.BoolVar(&opts.logJSON, "log-json", false, "Log in json format")

	// glog flags of the ovs driver
	fs.AddGoFlagSet(flag.CommandLine)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := opts.switchConfig().Validate(); err != nil {
		return nil, err
	}
	if opts.eventQueue <= 0 {
		return nil, fmt.Errorf("invalid event queue depth %d", opts.eventQueue)
	}

	return opts, nil
}

func (opts *options) switchConfig() l2switch.Config {
	return l2switch.Config{
		IdleTimeout:   opts.idleTimeout,
		HardTimeout:   opts.hardTimeout,
		StatsInterval: opts.statsInterval,
	}
}

func setupLogging(level string, json bool) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	if json {
		log.SetFormatter(&log.JSONFormatter{})
	}

	return nil
}

// controllerTarget returns the OVS controller target for a listen address
func controllerTarget(listen string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("bad listen address %q: %w", listen, err)
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return "tcp:" + net.JoinHostPort(host, port), nil
}

// Create the bridge and make it connect to us
func attachOvs(opts *options) error {
	target := opts.ovsController
	if target == "" {
		var err error
		if target, err = controllerTarget(opts.listen); err != nil {
			return err
		}
	}

	ovs, err := ovsdriver.NewOvsDriver(opts.ovsdbAddr, opts.ovsdbPort, opts.ovsBridge)
	if err != nil {
		return err
	}
	defer ovs.Close()

	if err := ovs.EnsureBridge(); err != nil {
		return err
	}

	return ovs.SetController(target)
}

func run(ctx context.Context, opts *options) error {
	l2switch.RegisterMetrics(prometheus.DefaultRegisterer)

	// All switch state lives on the event loop
	loop := evloop.New(clock.RealClock{}, opts.eventQueue)

	dispatcher := l2switch.NewDispatcher(opts.switchConfig(), loop)
	agent := ofnet.NewLearnAgent(loop, ofnet.AgentConfig{FlowPriority: opts.flowPriority})
	dispatcher.Register(agent.SubscribeConnected, agent.SubscribeDisconnected)

	ctrler := ofctrl.NewController(agent, ofctrl.Options{
		HandshakeTimeout: opts.handshakeTimeout,
		EchoInterval:     opts.echoInterval,
	})

	if opts.ovsBridge != "" {
		if err := attachOvs(opts); err != nil {
			return fmt.Errorf("configuring ovs bridge %s: %w", opts.ovsBridge, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(ctx)
	})
	g.Go(func() error {
		return ctrler.Listen(ctx, opts.listen)
	})
	if opts.httpListen != "" {
		server := api.NewServer(loop, dispatcher, prometheus.DefaultGatherer)
		g.Go(func() error {
			return server.ListenAndServe(ctx, opts.httpListen)
		})
	}

	return g.Wait()
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	if err := setupLogging(opts.logLevel, opts.logJSON); err != nil {
		log.Fatalf("Invalid log level %q. Err: %v", opts.logLevel, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Starting learning switch controller on %s", opts.listen)
	if err := run(ctx, opts); err != nil {
		log.Fatalf("Controller exited. Err: %v", err)
	}

	log.Infof("Controller stopped")
}
