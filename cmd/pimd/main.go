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

// Package main under directory cmd parses and validates user input,
// instantiates and initializes objects imported from pkg, and runs
// the process.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/dukku1/quagga/pkg/log"
)

func main() {
	defer log.FlushLogs()

	command := newPimdCommand()
	if err := command.Execute(); err != nil {
		log.FlushLogs()
		os.Exit(1)
	}
}

func newPimdCommand() *cobra.Command {
	opts := newOptions()

	cmd := &cobra.Command{
		Use:  "pimd",
		Long: "pimd maintains the kernel multicast forwarding cache of a PIM sparse-mode router.",
		Run: func(cmd *cobra.Command, args []string) {
			log.InitLogs()
			if err := opts.complete(args); err != nil {
				klog.Fatalf("Failed to complete: %v", err)
			}
			if err := opts.validate(args); err != nil {
				klog.Fatalf("Failed to validate: %v", err)
			}
			if err := run(opts); err != nil {
				klog.Fatalf("Error running pimd: %v", err)
			}
		},
	}

	flags := cmd.Flags()
	opts.addFlags(flags)
	log.AddFlags(flags)
	return cmd
}
