package permission

// Mask64 is a 64-bit permission bitmask. Bit positions are assigned by a
// [Registry]; the highest bit may be reserved as a root (super-admin) bit
// that satisfies every permission check.
type Mask64 uint64

// Has reports whether bit is set. When rootReserved is true and the root
// bit (bit 63) is set, Has returns true for any in-range bit.
func (m Mask64) Has(bit int, rootReserved bool) bool {
	if bit < 0 || bit >= 64 {
		return false
	}

	if rootReserved && m&(1<<63) != 0 {
		return true
	}

	return m&(1<<bit) != 0
}

// Set turns on the given bit. Out-of-range bits are ignored.
func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << bit
}

// Clear turns off the given bit. Out-of-range bits are ignored.
func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= 1 << bit
}

// Raw returns the underlying uint64 value.
func (m Mask64) Raw() uint64 {
	return uint64(m)
}
