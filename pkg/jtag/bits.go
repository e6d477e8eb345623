// Package jtag reconstructs scan-chain topology from captured JTAG traffic
// and routes each device's IR and DR slices to its protocol decoder.
package jtag

// BitString is a run of scan bits in shift order (first bit shifted is bit 0)
// together with the absolute sample position of every bit.
type BitString struct {
	Bits []bool
	Pos  []uint64
}

// Len returns the number of bits.
func (b BitString) Len() int { return len(b.Bits) }

// Append adds one bit captured at the given sample position.
func (b *BitString) Append(bit bool, pos uint64) {
	b.Bits = append(b.Bits, bit)
	b.Pos = append(b.Pos, pos)
}

// Reset empties the string for reuse without freeing its backing storage.
func (b *BitString) Reset() {
	b.Bits = b.Bits[:0]
	b.Pos = b.Pos[:0]
}

// Slice returns the window of length bits starting at offset. The window is
// clamped to the available bits.
func (b BitString) Slice(offset, length int) BitString {
	if offset > len(b.Bits) {
		offset = len(b.Bits)
	}
	end := offset + length
	if end > len(b.Bits) {
		end = len(b.Bits)
	}
	return BitString{Bits: b.Bits[offset:end], Pos: b.Pos[offset:end]}
}

// Word assembles up to 64 bits starting at offset into an integer, bit 0
// first.
func (b BitString) Word(offset, length int) uint64 {
	var v uint64
	for i := 0; i < length && offset+i < len(b.Bits); i++ {
		if b.Bits[offset+i] {
			v |= 1 << i
		}
	}
	return v
}

// Uint32 assembles the 32 bits starting at offset.
func (b BitString) Uint32(offset int) uint32 {
	return uint32(b.Word(offset, 32))
}

// Begin returns the sample position of the first bit.
func (b BitString) Begin() uint64 {
	if len(b.Pos) == 0 {
		return 0
	}
	return b.Pos[0]
}

// End returns the sample position of the last bit.
func (b BitString) End() uint64 {
	if len(b.Pos) == 0 {
		return 0
	}
	return b.Pos[len(b.Pos)-1]
}

// AllOnes reports whether every bit in the window [offset, offset+length) is
// high. An empty or truncated window is not all ones.
func (b BitString) AllOnes(offset, length int) bool {
	if offset+length > len(b.Bits) || length == 0 {
		return false
	}
	for i := 0; i < length; i++ {
		if !b.Bits[offset+i] {
			return false
		}
	}
	return true
}
