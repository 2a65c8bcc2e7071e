// Package access holds the minimum-role policy for account operations.
package access

import (
	"fmt"
	"strings"

	"github.com/rongwang/banking-server/internal/models"
)

// Operation names a privileged account operation
type Operation string

const (
	OpView              Operation = "view"
	OpDeposit           Operation = "deposit"
	OpWithdraw          Operation = "withdraw"
	OpTransfer          Operation = "transfer"
	OpDelete            Operation = "delete"
	OpRename            Operation = "rename"
	OpManageUsers       Operation = "manageUsers"
	OpConvertToShared   Operation = "convertToShared"
	OpTransferOwnership Operation = "transferOwnership"
)

// Policy maps each operation to the minimum role that may perform it
type Policy map[Operation]models.Role

// DefaultPolicy returns the stock policy. Contributors may view and deposit
// but never move money out.
func DefaultPolicy() Policy {
	return Policy{
		OpView:              models.RoleContributor,
		OpDeposit:           models.RoleContributor,
		OpWithdraw:          models.RoleManager,
		OpTransfer:          models.RoleManager,
		OpDelete:            models.RoleManager,
		OpRename:            models.RoleManager,
		OpManageUsers:       models.RoleManager,
		OpConvertToShared:   models.RoleOwner,
		OpTransferOwnership: models.RoleOwner,
	}
}

// NewPolicy returns the default policy with overrides applied. Keys are
// operation names (case-insensitive), values are role names.
// Ownership transfer is pinned to owner and cannot be lowered.
func NewPolicy(overrides map[string]string) (Policy, error) {
	p := DefaultPolicy()
	for key, value := range overrides {
		op, ok := p.lookup(key)
		if !ok {
			return nil, fmt.Errorf("unknown operation %q in policy", key)
		}
		role, err := models.ParseRole(strings.ToLower(strings.TrimSpace(value)))
		if err != nil {
			return nil, fmt.Errorf("policy for %s: %w", op, err)
		}
		if op == OpTransferOwnership && role != models.RoleOwner {
			return nil, fmt.Errorf("policy for %s must be owner", op)
		}
		p[op] = role
	}
	return p, nil
}

func (p Policy) lookup(key string) (Operation, bool) {
	key = strings.TrimSpace(key)
	for op := range p {
		if strings.EqualFold(string(op), key) {
			return op, true
		}
	}
	return "", false
}

// Allows reports whether a caller holding role may perform op. Unknown
// operations are never allowed.
func (p Policy) Allows(op Operation, role models.Role) bool {
	min, ok := p[op]
	if !ok {
		return false
	}
	return role.AtLeast(min)
}

// Check returns models.ErrAuthorizationDenied when role does not meet op's minimum
func (p Policy) Check(op Operation, role models.Role) error {
	if !p.Allows(op, role) {
		return fmt.Errorf("%w: %s requires %s, caller is %q", models.ErrAuthorizationDenied, op, p[op], role)
	}
	return nil
}

// CanAssign reports whether a caller holding actor may set a member currently
// holding current (RoleNone for a new member) to next. Owner is never
// assignable this way, the owner's row is never touched, and non-owners only
// manage members below them and grant up to their own rank.
func CanAssign(actor, current, next models.Role) bool {
	if next == models.RoleOwner || current == models.RoleOwner {
		return false
	}
	if actor == models.RoleOwner {
		return true
	}
	return current.Rank() < actor.Rank() && next.Rank() <= actor.Rank()
}

// CanRemove reports whether a caller holding actor may remove a member holding target
func CanRemove(actor, target models.Role) bool {
	if target == models.RoleOwner {
		return false
	}
	return actor == models.RoleOwner || target.Rank() < actor.Rank()
}
