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

package mroute

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyEnabled           = errors.New("multicast forwarding is already enabled")
	ErrForwardingDisabled       = errors.New("multicast forwarding is disabled")
	ErrUnsupportedConfiguration = errors.New("unnumbered interfaces are not supported without ifindex VIFs")
)

// Upcall handler results. They are only used for logging.
var (
	ErrNoInterface          = errors.New("could not find input interface")
	ErrPimNotEnabled        = errors.New("PIM is not enabled on interface")
	ErrChannelNotFound      = errors.New("could not find interface channel")
	ErrNotInAssertNoInfo    = errors.New("interface channel is not in Assert NoInfo state")
	ErrNotDownstream        = errors.New("interface is not downstream for channel")
	ErrAssertActionFailed   = errors.New("assert action A1 failed")
	ErrAlreadyHasChannel    = errors.New("interface channel already exists")
	ErrUpstreamCreateFailed = errors.New("unable to create upstream")
)

// SocketError is returned when creating, configuring or closing the mroute
// socket fails.
type SocketError struct {
	Op  string
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("mroute socket %s failed: %v", e.Op, e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

// KernelProgrammingError is returned when the kernel rejects a VIF or
// forwarding cache update. Err is the errno reported by the kernel.
type KernelProgrammingError struct {
	Op  string
	Err error
}

func (e *KernelProgrammingError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *KernelProgrammingError) Unwrap() error {
	return e.Err
}
