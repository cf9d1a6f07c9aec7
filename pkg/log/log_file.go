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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

const (
	logToStdErrFlag = "logtostderr"
	logDirFlag      = "log_dir"
	logFileFlag     = "log_file"
	maxSizeFlag     = "log_file_max_size"
	maxNumFlag      = "log_file_max_num"

	logFileCheckInterval = 10 * time.Minute
	// Allowed maximum value for the maximum file size limit.
	maxMaxSizeMB = 100 * 1024
)

var (
	maxNumArg     uint16
	logFileMaxNum uint16
	logDir        string

	executableName = filepath.Base(os.Args[0])

	logSeverities = []string{"INFO", "WARNING", "ERROR"}
)

func klogFlag(name string) string {
	return klogFlags.Lookup(name).Value.String()
}

// initLogFileLimits applies the log file size and number limits when klog
// writes one file per severity to a directory.
func initLogFileLimits() {
	if logToStdErr, _ := strconv.ParseBool(klogFlag(logToStdErrFlag)); logToStdErr {
		return
	}
	// klog enforces the size limit of a single log file itself.
	if klogFlag(logFileFlag) != "" {
		return
	}

	maxSize, err := strconv.ParseUint(klogFlag(maxSizeFlag), 10, 64)
	if err != nil {
		klog.ErrorS(err, "Invalid log file max size")
	} else if maxSize > maxMaxSizeMB {
		klog.ErrorS(nil, "Log file max size is too big, ignored", "maxSizeMB", maxSize, "limitMB", maxMaxSizeMB)
	} else if maxSize := maxSize * 1024 * 1024; klog.MaxSize != maxSize {
		// --log_file_max_size is only used by klog together with --log_file.
		klog.MaxSize = maxSize
		klog.InfoS("Set log file max size", "bytes", maxSize)
	}

	logDir = klogFlag(logDirFlag)
	if maxNumArg > 0 {
		logFileMaxNum = maxNumArg
		if logDir == "" {
			logDir = os.TempDir()
			klogFlags.Set(logDirFlag, logDir)
		}
	}
}

// StartLogFileNumberMonitor periodically deletes the oldest log files of each
// severity above the configured limit, until stopCh is closed.
func StartLogFileNumberMonitor(stopCh <-chan struct{}) {
	if logFileMaxNum == 0 {
		return
	}
	go func() {
		klog.InfoS("Starting log file monitoring", "maxNum", logFileMaxNum)
		wait.Until(checkLogFiles, logFileCheckInterval, stopCh)
	}()
}

func checkLogFiles() {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		klog.ErrorS(err, "Failed to read log directory", "dir", logDir)
		return
	}
	maxNum := int(logFileMaxNum)
	if len(entries) <= maxNum {
		return
	}

	filesBySeverity := map[string][]os.FileInfo{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), executableName) {
			continue
		}
		for _, severity := range logSeverities {
			if !strings.Contains(entry.Name(), ".log."+severity+".") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				// Deleted meanwhile.
				continue
			}
			filesBySeverity[severity] = append(filesBySeverity[severity], info)
		}
	}

	for _, files := range filesBySeverity {
		if len(files) <= maxNum {
			continue
		}
		// Newest first.
		sort.Slice(files, func(i, j int) bool {
			return files[i].ModTime().After(files[j].ModTime())
		})
		for _, file := range files[maxNum:] {
			path := filepath.Join(logDir, file.Name())
			if err := os.Remove(path); err != nil {
				klog.ErrorS(err, "Failed to delete log file", "file", path)
			} else {
				klog.InfoS("Deleted log file", "file", path)
			}
		}
	}
}
