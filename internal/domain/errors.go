package domain

import (
	"fmt"
	"strings"

	"awful/internal/tenant"
)

// Configuration errors. These surface while the registry is built and mean
// the deployment is wrong, not the request.

// DuplicateTypeError is returned when two registrations claim one type.
type DuplicateTypeError struct {
	Type   string
	First  string
	Second string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("block type %q registered for both %s and %s", e.Type, e.First, e.Second)
}

// UnknownTypeError is returned when a type string has no model.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown block type %q", e.Type)
}

// UnregisteredModelError is returned when a model was never given a type.
type UnregisteredModelError struct {
	Model string
}

func (e *UnregisteredModelError) Error() string {
	return fmt.Sprintf("model %q has no registered block type", e.Model)
}

// AlreadyRegisteredError is returned when a model name is registered twice.
type AlreadyRegisteredError struct {
	Name string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("%q is already registered", e.Name)
}

// CircularDependencyError is returned when model definitions depend on each
// other in a loop.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Path, " -> ")
}

// Integrity errors. Caller input broke an invariant.

// UUIDCollisionError is returned when a block is created with a uuid that is
// already taken in its set.
type UUIDCollisionError struct {
	UUID string
}

func (e *UUIDCollisionError) Error() string {
	return fmt.Sprintf("block uuid %s already exists", e.UUID)
}

// BlockNotFoundError is returned when updating a block that is not in the set.
type BlockNotFoundError struct {
	UUID string
}

func (e *BlockNotFoundError) Error() string {
	return fmt.Sprintf("block %s not found", e.UUID)
}

// EmptyQueryError is returned instead of running a query with no values.
type EmptyQueryError struct {
	Kind OwnerKind
}

func (e *EmptyQueryError) Error() string {
	return fmt.Sprintf("empty %s block query", e.Kind)
}

// DisallowedColumnError is returned when a predicate names a column outside
// the owner column allow-list.
type DisallowedColumnError struct {
	Column string
}

func (e *DisallowedColumnError) Error() string {
	return fmt.Sprintf("column %q is not an owner column", e.Column)
}

// CrossTenantError is returned when one save batch spans several tenants.
type CrossTenantError struct {
	Want tenant.ID
	Got  tenant.ID
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("block sets span tenants %d and %d", e.Want, e.Got)
}

// DatabaseError wraps any failure reported by the underlying store.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }
