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

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// configWatcher detects changes of the content of the configuration file.
type configWatcher struct {
	file    string
	watcher *fsnotify.Watcher
	data    []byte
}

func newConfigWatcher(file string) (*configWatcher, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error when creating file watcher for configuration file: %w", err)
	}
	// The directory is watched since the file may be replaced rather than
	// modified, e.g. when it is mounted from a ConfigMap.
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("error when adding configuration file directory to watcher: %w", err)
	}
	return &configWatcher{file: file, watcher: watcher, data: data}, nil
}

// run calls notify after every change of the file content until stopCh is
// closed.
func (w *configWatcher) run(stopCh <-chan struct{}, notify func()) {
	defer w.watcher.Close()
	klog.InfoS("Watching configuration file", "file", w.file)
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				klog.InfoS("Configuration file watcher stopped")
				return
			}
			klog.V(4).InfoS("Configuration directory event", "event", event.String())
			if w.changed() {
				notify()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			klog.ErrorS(err, "Configuration file watcher error")
		}
	}
}

// changed reads the file and returns true if its content differs from the
// last one read.
func (w *configWatcher) changed() bool {
	data, err := os.ReadFile(w.file)
	if err != nil {
		klog.V(2).ErrorS(err, "Cannot read configuration file", "file", w.file)
		return false
	}
	if bytes.Equal(data, w.data) {
		return false
	}
	w.data = data
	klog.InfoS("Configuration file changed", "file", w.file)
	return true
}
