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

// Package log wires the klog flags into the pimd command line, flushes the
// logs periodically and keeps the number of log files under a limit.
package log

import (
	"flag"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

const logFlushFreqFlag = "log-flush-frequency"

var (
	klogFlags = flag.NewFlagSet("logging", flag.ContinueOnError)

	logFlushFreq = 5 * time.Second
)

func init() {
	klog.InitFlags(klogFlags)
}

// AddFlags adds the klog flags and the log file flags to fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.AddGoFlagSet(klogFlags)
	fs.Uint16Var(&maxNumArg, maxNumFlag, maxNumArg, "Maximum number of log files per severity level to be kept. Value 0 means unlimited.")
	fs.DurationVar(&logFlushFreq, logFlushFreqFlag, logFlushFreq, "Maximum number of seconds between log flushes")
}

// InitLogs must be called once the flags added by AddFlags are parsed.
func InitLogs() {
	klog.StartFlushDaemon(logFlushFreq)
	klog.EnableContextualLogging(false)
	initLogFileLimits()
}

func FlushLogs() {
	klog.Flush()
}
