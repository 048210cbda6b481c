// Package policy decides which task operations a role may perform.
//
// Decide is a pure function over (role, ownership, operation). It has no side
// effects and no dependencies beyond the domain enums, so the full capability
// table can be verified in isolation.
package policy

import (
	"github.com/phrazzld/tasksync/internal/domain"
)

// Operation is an action an actor attempts on tasks.
type Operation string

const (
	OpCreate   Operation = "create"
	OpListAll  Operation = "list_all"
	OpListOwn  Operation = "list_own"
	OpRead     Operation = "read"
	OpUpdate   Operation = "update"
	OpReassign Operation = "reassign"
	OpDelete   Operation = "delete"
)

// Decision is the outcome of a policy check.
type Decision int

const (
	// Forbid is the zero value so that an unhandled case never grants access.
	Forbid Decision = iota
	Allow
)

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	return d == Allow
}

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "forbid"
}

// Decide returns whether role may perform op. isOwner is true when the task in
// question is assigned to the actor; it is ignored for operations that do not
// target a single task.
func Decide(role domain.Role, isOwner bool, op Operation) Decision {
	switch role {
	case domain.RoleAdmin:
		return decideAdmin(op)
	case domain.RoleMember:
		return decideMember(isOwner, op)
	default:
		return Forbid
	}
}

func decideAdmin(op Operation) Decision {
	switch op {
	case OpCreate, OpListAll, OpListOwn, OpRead, OpUpdate, OpReassign, OpDelete:
		return Allow
	default:
		return Forbid
	}
}

func decideMember(isOwner bool, op Operation) Decision {
	switch op {
	case OpListOwn:
		return Allow
	case OpRead, OpUpdate, OpReassign:
		// Reassignment is gated by ownership only, not by a field-level lock.
		if isOwner {
			return Allow
		}
		return Forbid
	case OpCreate, OpListAll, OpDelete:
		return Forbid
	default:
		return Forbid
	}
}

// OperationsForPatch lists every operation a patch requires.
func OperationsForPatch(patch domain.TaskPatch) []Operation {
	ops := []Operation{OpUpdate}
	if patch.Reassigns() {
		ops = append(ops, OpReassign)
	}
	return ops
}

// DecideAll returns Allow only if every operation is allowed.
func DecideAll(role domain.Role, isOwner bool, ops ...Operation) Decision {
	if len(ops) == 0 {
		return Forbid
	}
	for _, op := range ops {
		if !Decide(role, isOwner, op).Allowed() {
			return Forbid
		}
	}
	return Allow
}
