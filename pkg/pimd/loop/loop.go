// Copyright 2021 Antrea Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package loop provides the cooperative scheduler that owns all PIM state.
// Every closure posted to a Loop runs on the same goroutine, one at a time,
// so the forwarding cache, upstream and interface channel tables need no
// locking as long as they are only touched from posted closures.
package loop

import (
	"sync"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

const defaultQueueSize = 128

type Loop struct {
	clock clock.WithTickerAndDelayedExecution
	queue chan func()
	// stopped is closed once Run returns.
	stopped  chan struct{}
	stopOnce sync.Once
}

func New(clk clock.WithTickerAndDelayedExecution) *Loop {
	return &Loop{
		clock:   clk,
		queue:   make(chan func(), defaultQueueSize),
		stopped: make(chan struct{}),
	}
}

// Clock returns the clock used for timers scheduled on this Loop.
func (l *Loop) Clock() clock.WithTickerAndDelayedExecution {
	return l.clock
}

// Post queues fn to run on the loop goroutine. It does not wait for fn to run.
// fn is dropped if the loop has stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.stopped:
	}
}

// Call runs fn on the loop goroutine and waits for it to return. It must not be
// called from the loop goroutine itself. If stopCh is closed before fn has been
// scheduled, Call returns false.
func (l *Loop) Call(fn func(), stopCh <-chan struct{}) bool {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case l.queue <- wrapped:
	case <-stopCh:
		return false
	case <-l.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-stopCh:
		return false
	case <-l.stopped:
		return false
	}
}

// AfterFunc starts a single-shot timer whose callback runs on the loop.
func (l *Loop) AfterFunc(d time.Duration, fn func()) clock.Timer {
	return l.clock.AfterFunc(d, func() {
		l.Post(fn)
	})
}

// Every runs fn on the loop once per period until stopCh is closed.
func (l *Loop) Every(period time.Duration, fn func(), stopCh <-chan struct{}) {
	ticker := l.clock.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				l.Post(fn)
			case <-stopCh:
				return
			}
		}
	}()
}

// Run executes posted closures until stopCh is closed. Closures posted after
// that are dropped.
func (l *Loop) Run(stopCh <-chan struct{}) {
	klog.InfoS("Starting PIM event loop")
	defer l.stopOnce.Do(func() { close(l.stopped) })
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-stopCh:
			klog.InfoS("Stopped PIM event loop")
			return
		}
	}
}
