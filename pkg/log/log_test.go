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

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

const oneMB = 1024 * 1024

var klogDefaultMaxSize = klog.MaxSize

func restoreFlagDefaultValues() {
	klogFlags.Set(logToStdErrFlag, "true")
	klogFlags.Set(logFileFlag, "")
	klogFlags.Set(logDirFlag, "")
	klogFlags.Set(maxSizeFlag, fmt.Sprintf("%d", klogDefaultMaxSize/oneMB))
	klog.MaxSize = klogDefaultMaxSize
	maxNumArg = 0
	logFileMaxNum = 0
	logDir = ""
}

func TestFlags(t *testing.T) {
	for _, tc := range []struct {
		name    string
		args    []string
		maxSize uint64
		maxNum  uint16
		logDir  string
	}{
		{
			name:    "logtostderr",
			args:    []string{"--log_file_max_size=1", "--log_file_max_num=1"},
			maxSize: klogDefaultMaxSize,
		},
		{
			name:    "single file",
			args:    []string{"--logtostderr=false", "--log_file=test.log", "--log_file_max_size=1", "--log_file_max_num=1"},
			maxSize: klogDefaultMaxSize,
		},
		{
			name:    "max size too big",
			args:    []string{"--logtostderr=false", "--log_dir=/var/log/pimd", "--log_file_max_size=204800"},
			maxSize: klogDefaultMaxSize,
			logDir:  "/var/log/pimd",
		},
		{
			name:    "max num only",
			args:    []string{"--logtostderr=false", "--log_dir=/var/log/pimd", "--log_file_max_num=1"},
			maxSize: klogDefaultMaxSize,
			maxNum:  1,
			logDir:  "/var/log/pimd",
		},
		{
			name:    "tmp dir",
			args:    []string{"--logtostderr=false", "--log_file_max_size=1", "--log_file_max_num=2"},
			maxSize: oneMB,
			maxNum:  2,
			logDir:  os.TempDir(),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer restoreFlagDefaultValues()
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			AddFlags(fs)
			require.NoError(t, fs.Parse(tc.args))
			initLogFileLimits()
			assert.Equal(t, tc.maxSize, klog.MaxSize)
			assert.Equal(t, tc.maxNum, logFileMaxNum)
			assert.Equal(t, tc.logDir, logDir)
		})
	}
}

func TestCheckLogFiles(t *testing.T) {
	defer restoreFlagDefaultValues()
	logDir = t.TempDir()
	logFileMaxNum = 2

	now := time.Now()
	var expected []string
	for _, severity := range []string{"INFO", "WARNING"} {
		for i := 0; i < 4; i++ {
			name := fmt.Sprintf("%s.node1.root.log.%s.20260101-00000%d.1", executableName, severity, i)
			path := filepath.Join(logDir, name)
			require.NoError(t, os.WriteFile(path, []byte("log"), 0o644))
			modTime := now.Add(time.Duration(i) * time.Hour)
			require.NoError(t, os.Chtimes(path, modTime, modTime))
			if i >= 2 {
				expected = append(expected, name)
			}
		}
	}
	// Files of other programs and directories are left alone.
	other := "other.node1.root.log.INFO.20260101-000000.1"
	require.NoError(t, os.WriteFile(filepath.Join(logDir, other), []byte("log"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(logDir, executableName+".log.INFO.dir"), 0o755))
	expected = append(expected, other, executableName+".log.INFO.dir")

	checkLogFiles()

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, expected, names)
}

func TestSetLogLevel(t *testing.T) {
	oldLevel := GetCurrentLogLevel()
	defer SetLogLevel(oldLevel)

	require.NoError(t, SetLogLevel("4"))
	assert.Equal(t, "4", GetCurrentLogLevel())
	assert.True(t, klog.V(4).Enabled())
	require.NoError(t, SetLogLevel("4"))
	assert.Error(t, SetLogLevel("verbose"))
	assert.Equal(t, "4", GetCurrentLogLevel())
}
