// Copyright 2024 The kernel-toolkit Authors.
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

package loader

import "encoding/binary"

// writeRel16/32/64 write a relocation value into dst, truncated to
// their width, after an overflow check. When relative is true, val is
// treated as the bit pattern of a signed 64-bit number (as produced by
// sym_addr + addend - rel_addr, which can legitimately go negative)
// and the overflow check compares its absolute value against the
// destination width; when false, val is an unsigned quantity checked
// directly. This preserves original_source's asymmetric check rather
// than "fixing" it: a relative value of exactly -(1<<15) still reports
// no overflow for a 16-bit field even though its bit pattern differs
// from the equivalent unsigned encoding, exactly as the C relocation
// writers behave (spec.md's open question #1 on the relocation
// writers' signed/unsigned overflow quirk — kept intentionally).

func absInt64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func writeRel16(dst []byte, val uint64, relative bool) bool {
	var abs uint64
	var final uint16
	if relative {
		sval := int64(val)
		abs = absInt64(sval)
		final = uint16(int16(sval))
	} else {
		abs = val
		final = uint16(val)
	}
	if abs > uint64(^uint16(0)) {
		return false
	}
	binary.LittleEndian.PutUint16(dst, final)
	return true
}

func writeRel32(dst []byte, val uint64, relative bool) bool {
	var abs uint64
	var final uint32
	if relative {
		sval := int64(val)
		abs = absInt64(sval)
		final = uint32(int32(sval))
	} else {
		abs = val
		final = uint32(val)
	}
	if abs > uint64(^uint32(0)) {
		return false
	}
	binary.LittleEndian.PutUint32(dst, final)
	return true
}

func writeRel64(dst []byte, val uint64, relative bool) bool {
	var abs uint64
	var final uint64
	if relative {
		sval := int64(val)
		abs = absInt64(sval)
		final = uint64(sval)
	} else {
		abs = val
		final = val
	}
	if abs > ^uint64(0) {
		return false
	}
	binary.LittleEndian.PutUint64(dst, final)
	return true
}
