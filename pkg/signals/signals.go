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

package signals

import (
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"
)

var (
	capturedSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	notifyCh        = make(chan os.Signal, 2)
	reloadCh        = make(chan os.Signal, 1)
)

// RegisterSignalHandlers returns a channel which is closed on the first
// SIGTERM or SIGINT. A second signal forces the process to exit with code 1.
func RegisterSignalHandlers() <-chan struct{} {
	stopCh := make(chan struct{})
	go func() {
		<-notifyCh
		close(stopCh)
		<-notifyCh
		klog.InfoS("Received second signal, forcing exit")
		klog.Flush()
		os.Exit(1)
	}()
	signal.Notify(notifyCh, capturedSignals...)
	return stopCh
}

// RegisterReloadHandler returns a channel which receives a value on every
// SIGHUP. Signals are dropped while a previous one is pending.
func RegisterReloadHandler(stopCh <-chan struct{}) <-chan struct{} {
	ch := make(chan struct{}, 1)
	go func() {
		defer signal.Stop(reloadCh)
		for {
			select {
			case <-reloadCh:
				select {
				case ch <- struct{}{}:
				default:
				}
			case <-stopCh:
				return
			}
		}
	}()
	signal.Notify(reloadCh, syscall.SIGHUP)
	return ch
}

// GenerateStopSignal sends SIGTERM to the handler registered by
// RegisterSignalHandlers.
func GenerateStopSignal() {
	notifyCh <- syscall.SIGTERM
}
