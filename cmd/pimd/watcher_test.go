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
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherChanged(t *testing.T) {
	file := writeConfigFile(t, "interfaces:\n- name: eth0\n")
	w, err := newConfigWatcher(file)
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.False(t, w.changed())
	require.NoError(t, os.WriteFile(file, []byte("interfaces:\n- name: eth1\n"), 0644))
	assert.True(t, w.changed())
	assert.False(t, w.changed())
	require.NoError(t, os.Remove(file))
	assert.False(t, w.changed())
}

func TestConfigWatcherRun(t *testing.T) {
	file := writeConfigFile(t, "interfaces:\n- name: eth0\n")
	w, err := newConfigWatcher(file)
	require.NoError(t, err)

	var notifications atomic.Int32
	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(stopCh, func() { notifications.Add(1) })
	}()

	// Replace the file the way a ConfigMap update does.
	tmp := filepath.Join(filepath.Dir(file), "pimd.conf.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("interfaces:\n- name: eth1\n"), 0644))
	require.NoError(t, os.Rename(tmp, file))
	assert.Eventually(t, func() bool {
		return notifications.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	close(stopCh)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Equal(t, int32(1), notifications.Load())
}

func TestNewConfigWatcherMissingFile(t *testing.T) {
	_, err := newConfigWatcher(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}
