//go:build linux && (amd64 || arm64)
// +build linux
// +build amd64 arm64

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

package syscall

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestStructSizes(t *testing.T) {
	assert.Equal(t, uintptr(SizeofMfcctl), unsafe.Sizeof(Mfcctl{}))
	assert.Equal(t, uintptr(SizeofVifctl), unsafe.Sizeof(Vifctl{}))
	assert.Equal(t, uintptr(SizeofSiocSgReq), unsafe.Sizeof(SiocSgReq{}))
	assert.Equal(t, uintptr(44), unsafe.Offsetof(Mfcctl{}.Pkt_cnt))
}

func TestVifctlLcl(t *testing.T) {
	vc := &Vifctl{}
	vc.SetLclIfindex(7)
	assert.Equal(t, uint32(7), binary.NativeEndian.Uint32(vc.Lcl[:]))
	vc.SetLclAddr([4]byte{10, 0, 0, 1})
	assert.Equal(t, [4]byte{10, 0, 0, 1}, vc.Lcl)
}
