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

package evloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testclock "k8s.io/utils/clock/testing"
)

func startLoop(t *testing.T, l *Loop) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, l.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestPostRunsInOrder(t *testing.T) {
	l := New(nil, 16)
	startLoop(t, l)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}

	// Call is queued behind the posts
	var snapshot []int
	require.NoError(t, l.Call(context.Background(), func() {
		snapshot = append(snapshot, got...)
	}))

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, snapshot)
}

func TestPostFromManyGoroutines(t *testing.T) {
	l := New(nil, 4)
	startLoop(t, l)

	// counter is only touched on the loop goroutine
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.NoError(t, l.Post(func() { counter++ }))
			}
		}()
	}
	wg.Wait()

	var total int
	require.NoError(t, l.Call(context.Background(), func() { total = counter }))
	assert.Equal(t, 800, total)
}

func TestPostAfterStop(t *testing.T) {
	l := New(nil, 1)
	cancel := startLoop(t, l)
	cancel()

	require.Eventually(t, func() bool {
		return l.Post(func() {}) == ErrLoopStopped
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrLoopStopped)
}

func TestCallContextCancelled(t *testing.T) {
	// Loop never runs, so the call cannot complete
	l := New(nil, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, l.Call(ctx, func() {}), context.DeadlineExceeded)
}

func TestEvery(t *testing.T) {
	clk := testclock.NewFakeClock(time.Now())
	l := New(clk, 4)
	startLoop(t, l)

	ticks := make(chan struct{}, 10)
	stop := l.Every(10*time.Second, func() { ticks <- struct{}{} })

	// Not yet due
	clk.Step(5 * time.Second)
	select {
	case <-ticks:
		t.Fatal("tick fired early")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Step(5 * time.Second)
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("tick did not fire")
	}

	clk.Step(10 * time.Second)
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("tick did not recur")
	}

	stop()
	stop()

	// Let the timer goroutine observe the stop
	time.Sleep(20 * time.Millisecond)
	clk.Step(10 * time.Second)
	select {
	case <-ticks:
		t.Fatal("tick fired after stop")
	case <-time.After(20 * time.Millisecond):
	}
}
