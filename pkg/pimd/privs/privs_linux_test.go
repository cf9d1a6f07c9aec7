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

package privs

import (
	"errors"
	"syscall"
	"testing"

	"github.com/moby/sys/capability"
	"github.com/stretchr/testify/assert"
)

type fakeCaps struct {
	capability.Capabilities
	effective map[capability.Cap]bool
	permitted map[capability.Cap]bool
	applied   [][]capability.Cap
	loadErr   error
}

func (c *fakeCaps) Load() error {
	return c.loadErr
}

func (c *fakeCaps) Get(which capability.CapType, what capability.Cap) bool {
	if which == capability.EFFECTIVE {
		return c.effective[what]
	}
	return c.permitted[what]
}

func (c *fakeCaps) Set(which capability.CapType, caps ...capability.Cap) {
	for _, cp := range caps {
		c.effective[cp] = true
	}
}

func (c *fakeCaps) Unset(which capability.CapType, caps ...capability.Cap) {
	for _, cp := range caps {
		delete(c.effective, cp)
	}
}

func (c *fakeCaps) Apply(kind capability.CapType) error {
	var effective []capability.Cap
	for _, cp := range NetworkCaps {
		if c.effective[cp] {
			effective = append(effective, cp)
		}
	}
	c.applied = append(c.applied, effective)
	return nil
}

func TestDo(t *testing.T) {
	for _, tc := range []struct {
		name            string
		effective       []capability.Cap
		permitted       []capability.Cap
		loadErr         error
		expectedApplied [][]capability.Cap
	}{
		{
			name:            "raise and lower",
			permitted:       NetworkCaps,
			expectedApplied: [][]capability.Cap{NetworkCaps, nil},
		},
		{
			name:            "already effective",
			effective:       []capability.Cap{capability.CAP_NET_ADMIN},
			permitted:       NetworkCaps,
			expectedApplied: [][]capability.Cap{NetworkCaps, {capability.CAP_NET_ADMIN}},
		},
		{
			name: "not permitted",
		},
		{
			name:    "load failure",
			loadErr: errors.New("operation not permitted"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeCaps{
				effective: map[capability.Cap]bool{},
				permitted: map[capability.Cap]bool{},
				loadErr:   tc.loadErr,
			}
			for _, cp := range tc.effective {
				fake.effective[cp] = true
			}
			for _, cp := range tc.permitted {
				fake.permitted[cp] = true
			}
			p := New(NetworkCaps...)
			p.newCaps = func() (capability.Capabilities, error) { return fake, nil }

			var ranWith []capability.Cap
			err := p.Do(func() error {
				for _, cp := range NetworkCaps {
					if fake.effective[cp] {
						ranWith = append(ranWith, cp)
					}
				}
				return errors.New("fn error")
			})
			assert.EqualError(t, err, "fn error")
			assert.Equal(t, tc.expectedApplied, fake.applied)
			if len(tc.expectedApplied) > 0 {
				assert.Equal(t, NetworkCaps, ranWith)
			}
		})
	}
}

func TestDrop(t *testing.T) {
	for _, tc := range []struct {
		name            string
		allThreadsErr   error
		loadErr         error
		expectedErr     string
		expectedApplied [][]capability.Cap
	}{
		{
			name: "all threads",
		},
		{
			name:            "calling thread only",
			allThreadsErr:   syscall.ENOTSUP,
			expectedApplied: [][]capability.Cap{nil},
		},
		{
			name:          "capset failure",
			allThreadsErr: syscall.EPERM,
			expectedErr:   "failed to lower capabilities: operation not permitted",
		},
		{
			name:          "load failure",
			allThreadsErr: syscall.ENOTSUP,
			loadErr:       errors.New("no such process"),
			expectedErr:   "failed to load capabilities: no such process",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeCaps{
				effective: map[capability.Cap]bool{capability.CAP_NET_ADMIN: true, capability.CAP_NET_RAW: true},
				permitted: map[capability.Cap]bool{capability.CAP_NET_ADMIN: true, capability.CAP_NET_RAW: true},
				loadErr:   tc.loadErr,
			}
			p := New(NetworkCaps...)
			p.newCaps = func() (capability.Capabilities, error) { return fake, nil }
			var dropped []capability.Cap
			p.dropAllThreads = func(caps []capability.Cap) error {
				dropped = caps
				return tc.allThreadsErr
			}

			err := p.Drop()
			if tc.expectedErr != "" {
				assert.EqualError(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, NetworkCaps, dropped)
			assert.Equal(t, tc.expectedApplied, fake.applied)
		})
	}
}
