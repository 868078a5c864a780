package permission

import (
	"errors"
	"sync"
)

// Registry maps permission names to bit positions within a [Mask64].
// Registration happens during engine construction; after [Registry.Freeze]
// the mapping is immutable and reads take an uncontended RLock.
type Registry struct {
	maxBits      int
	rootReserved bool
	rootBit      int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a permission [Registry]. maxBits caps the number of
// assignable bits (1..64); rootReserved reserves the highest bit for a
// super-admin permission that passes every check.
func NewRegistry(maxBits int, rootReserved bool) (*Registry, error) {
	if maxBits < 1 || maxBits > 64 {
		return nil, errors.New("maxBits must be in 1..64")
	}

	r := &Registry{
		maxBits:      maxBits,
		rootReserved: rootReserved,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}

	if rootReserved {
		r.rootBit = 63
	}

	return r, nil
}

// Register assigns the next available bit to the named permission and
// returns the assigned index. Fails after [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}

	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}

	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered: " + name)
	}

	nextBit := len(r.nameToBit)

	limit := r.maxBits
	if r.rootReserved && limit > r.rootBit {
		limit = r.rootBit
	}
	if nextBit >= limit {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for the named permission, or false if not
// registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for the given bit index, or false if
// unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Names expands a mask into the names of its set permissions, in bit order.
// The root bit is not included.
func (r *Registry) Names(mask Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.nameToBit))
	for bit := 0; bit < len(r.nameToBit); bit++ {
		if mask&(1<<bit) != 0 {
			names = append(names, r.bitToName[bit])
		}
	}
	return names
}

// Freeze prevents further registrations. Called once construction is done.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// RootReserved reports whether the root bit is reserved.
func (r *Registry) RootReserved() bool {
	return r.rootReserved
}

// RootBit returns the reserved root permission bit, or false if root-bit
// reservation is disabled.
func (r *Registry) RootBit() (int, bool) {
	if !r.rootReserved {
		return -1, false
	}
	return r.rootBit, true
}
