package permission

import "sync"

// RoleManager maps role names to precomputed permission masks. Roles are
// registered during construction and frozen alongside the [Registry]; after
// that, GetMask is the only call made on the request path.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask64
	frozen bool
}

// NewRoleManager creates a [RoleManager] backed by the given registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask64),
	}
}

// RegisterRole builds a mask from the named permissions and stores it under
// roleName. Every permission must already be registered. "*" grants the
// reserved root bit when the registry reserves one.
func (rm *RoleManager) RegisterRole(roleName string, permissionNames []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return &Error{Op: "RegisterRole", Msg: "role manager frozen"}
	}

	if roleName == "" {
		return &Error{Op: "RegisterRole", Msg: "role name empty"}
	}

	if _, exists := rm.roles[roleName]; exists {
		return &Error{Op: "RegisterRole", Msg: "role already registered: " + roleName}
	}

	var mask Mask64

	for _, perm := range permissionNames {
		if perm == "*" {
			rootBit, ok := rm.registry.RootBit()
			if !ok {
				return &Error{Op: "RegisterRole", Msg: "root bit not reserved"}
			}
			mask.Set(rootBit)
			continue
		}

		bit, ok := rm.registry.Bit(perm)
		if !ok {
			return &Error{Op: "RegisterRole", Msg: "permission not registered: " + perm}
		}
		mask.Set(bit)
	}

	rm.roles[roleName] = mask
	return nil
}

// GetMask returns the mask for roleName, or false if the role is unknown.
func (rm *RoleManager) GetMask(roleName string) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	mask, ok := rm.roles[roleName]
	return mask, ok
}

// Freeze prevents further role registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}

// Error is a permission-package configuration error.
type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string {
	return "permission: " + e.Op + ": " + e.Msg
}
