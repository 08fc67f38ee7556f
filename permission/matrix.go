package permission

import (
	"errors"
	"fmt"
	"sync"
)

// Role is a closed-set role name. Sessions carry exactly one role; a
// role that was never registered in the matrix has zero permissions.
type Role string

// Resource is a protected resource name (a service or screen family in
// the hosting application).
type Resource string

// Reference deployment roles.
const (
	RoleAdmin      Role = "admin"
	RoleWarehouse  Role = "warehouse"
	RoleAccounting Role = "accounting"
)

// Reference deployment resources.
const (
	ResourceEmployees    Resource = "employees"
	ResourceAttendance   Resource = "attendance"
	ResourceInventory    Resource = "inventory"
	ResourceTransactions Resource = "transactions"
	ResourceCustomers    Resource = "customers"
	ResourceQuotes       Resource = "quotes"
	ResourceSecurity     Resource = "security"
)

var (
	// ErrMatrixFrozen is returned by Grant after Freeze.
	ErrMatrixFrozen = errors.New("permission matrix frozen")
	// ErrDuplicateGrant is returned when the same (role, resource) pair is granted twice.
	ErrDuplicateGrant = errors.New("duplicate permission grant")
	// ErrEmptyGrant is returned for a grant with an empty role or resource.
	ErrEmptyGrant = errors.New("empty role or resource in grant")
)

// Matrix is the static role → resource → ActionSet mapping. It is
// mutable only between New and Freeze; after Freeze every method is
// read-only and safe for unbounded concurrent use.
type Matrix struct {
	mu     sync.RWMutex
	grants map[Role]map[Resource]ActionSet
	frozen bool
}

// New creates an empty matrix. An empty matrix denies everything.
func New() *Matrix {
	return &Matrix{
		grants: make(map[Role]map[Resource]ActionSet),
	}
}

// Grant records the allowed action set for a (role, resource) pair.
// Each pair may be granted exactly once; granting an empty set is legal
// and equivalent to listing the resource with no actions, which stays an
// explicit deny (the warehouse/transactions case in the reference
// deployment).
func (m *Matrix) Grant(role Role, resource Resource, actions ActionSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return ErrMatrixFrozen
	}
	if role == "" || resource == "" {
		return ErrEmptyGrant
	}

	byResource, ok := m.grants[role]
	if !ok {
		byResource = make(map[Resource]ActionSet)
		m.grants[role] = byResource
	}
	if _, exists := byResource[resource]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateGrant, role, resource)
	}

	byResource[resource] = actions
	return nil
}

// Freeze makes the matrix immutable. Idempotent.
func (m *Matrix) Freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (m *Matrix) Frozen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frozen
}

// Allows reports whether role may perform action on resource. Any
// unknown role, unknown resource, or unlisted action returns false.
func (m *Matrix) Allows(role Role, resource Resource, action Action) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byResource, ok := m.grants[role]
	if !ok {
		return false
	}
	return byResource[resource].Has(action)
}

// Permitted returns exactly the matrix entry for (role, resource), or
// nil when the pair is absent or lists no actions.
func (m *Matrix) Permitted(role Role, resource Resource) []Action {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byResource, ok := m.grants[role]
	if !ok {
		return nil
	}
	return byResource[resource].Actions()
}

// KnownRole reports whether the role has at least one grant entry.
// The engine uses it only for diagnostics; authorization itself never
// branches on it because absent roles already deny everything.
func (m *Matrix) KnownRole(role Role) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.grants[role]
	return ok
}

// ReferenceMatrix returns the frozen matrix of the reference ops
// deployment: admin has full CRUD everywhere, warehouse handles
// inventory and attendance, accounting handles the money-facing
// resources. Transactions are listed for warehouse with an empty set so
// the deny shows up in the config rather than by omission.
func ReferenceMatrix() *Matrix {
	m := New()

	all := AllActions()
	read := NewActionSet(ActionRead)
	readWrite := NewActionSet(ActionCreate, ActionRead, ActionUpdate)

	for _, resource := range []Resource{
		ResourceEmployees, ResourceAttendance, ResourceInventory,
		ResourceTransactions, ResourceCustomers, ResourceQuotes,
		ResourceSecurity,
	} {
		mustGrant(m, RoleAdmin, resource, all)
	}

	mustGrant(m, RoleWarehouse, ResourceInventory, readWrite)
	mustGrant(m, RoleWarehouse, ResourceAttendance, readWrite)
	mustGrant(m, RoleWarehouse, ResourceTransactions, NewActionSet())
	mustGrant(m, RoleWarehouse, ResourceEmployees, read)

	mustGrant(m, RoleAccounting, ResourceTransactions, readWrite)
	mustGrant(m, RoleAccounting, ResourceCustomers, readWrite)
	mustGrant(m, RoleAccounting, ResourceQuotes, all)
	mustGrant(m, RoleAccounting, ResourceEmployees, read)

	m.Freeze()
	return m
}

func mustGrant(m *Matrix, role Role, resource Resource, actions ActionSet) {
	if err := m.Grant(role, resource, actions); err != nil {
		panic(err)
	}
}
