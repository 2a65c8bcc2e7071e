package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/banking-server/internal/access"
	"github.com/rongwang/banking-server/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// ListUsers returns one page of the account's members
func (s *DefaultService) ListUsers(
	ctx context.Context,
	callerID string,
	req models.PageRequest,
) (_ *models.AccessTableData, err error) {
	ctx, span := s.startSpan(ctx, "ListUsers",
		attribute.Int64("account.id", req.AccountID), attribute.Int("page", req.Page))
	defer func() { endSpan(span, err) }()

	if _, _, err := s.authorize(ctx, callerID, req.AccountID, access.OpView); err != nil {
		return nil, err
	}

	users, pages, err := s.repo.ListUsers(ctx, req.AccountID, req.Page, req.Search, s.cfg.AccessPageSize)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	return &models.AccessTableData{NumberOfPages: pages, Users: users}, nil
}

// AddUser grants a role on the account to the character holding the state id
func (s *DefaultService) AddUser(ctx context.Context, callerID string, req models.AddUserRequest) (err error) {
	ctx, span := s.startSpan(ctx, "AddUser", attribute.Int64("account.id", req.AccountID))
	defer func() { endSpan(span, err) }()

	charID, actorRole, err := s.authorize(ctx, callerID, req.AccountID, access.OpManageUsers)
	if err != nil {
		return err
	}

	next, err := parseAssignableRole(req.Role)
	if err != nil {
		return err
	}

	targetID, current, err := s.member(ctx, req.AccountID, charID, req.StateID)
	if err != nil {
		return err
	}

	if !access.CanAssign(actorRole, current, next) {
		return fmt.Errorf("%w: %s cannot make a %q member %s", models.ErrAuthorizationDenied, actorRole, current, next)
	}

	if err := s.repo.SetAccess(ctx, req.AccountID, targetID, next); err != nil {
		return fmt.Errorf("error adding user: %w", err)
	}

	return nil
}

// ManageUser changes the role of an existing member
func (s *DefaultService) ManageUser(ctx context.Context, callerID string, req models.ManageUserRequest) (err error) {
	ctx, span := s.startSpan(ctx, "ManageUser", attribute.Int64("account.id", req.AccountID))
	defer func() { endSpan(span, err) }()

	charID, actorRole, err := s.authorize(ctx, callerID, req.AccountID, access.OpManageUsers)
	if err != nil {
		return err
	}

	next, err := parseAssignableRole(req.Values.Role)
	if err != nil {
		return err
	}

	targetID, current, err := s.member(ctx, req.AccountID, charID, req.TargetStateID)
	if err != nil {
		return err
	}

	if current == models.RoleNone {
		return fmt.Errorf("%w: %s is not a member", models.ErrInvalidTarget, req.TargetStateID)
	}

	if !access.CanAssign(actorRole, current, next) {
		return fmt.Errorf("%w: %s cannot make a %q member %s", models.ErrAuthorizationDenied, actorRole, current, next)
	}

	updated, err := s.repo.UpdateAccess(ctx, req.AccountID, targetID, next)
	if err != nil {
		return fmt.Errorf("error updating user: %w", err)
	}

	if !updated {
		return fmt.Errorf("%w: membership of %s changed", models.ErrConflict, req.TargetStateID)
	}

	return nil
}

// RemoveUser revokes a member's access. The owner cannot be removed.
func (s *DefaultService) RemoveUser(ctx context.Context, callerID string, req models.RemoveUserRequest) (err error) {
	ctx, span := s.startSpan(ctx, "RemoveUser", attribute.Int64("account.id", req.AccountID))
	defer func() { endSpan(span, err) }()

	charID, actorRole, err := s.authorize(ctx, callerID, req.AccountID, access.OpManageUsers)
	if err != nil {
		return err
	}

	targetID, current, err := s.member(ctx, req.AccountID, charID, req.TargetStateID)
	if err != nil {
		return err
	}

	if current == models.RoleNone {
		return fmt.Errorf("%w: %s is not a member", models.ErrInvalidTarget, req.TargetStateID)
	}

	if !access.CanRemove(actorRole, current) {
		return fmt.Errorf("%w: %s cannot remove a %s", models.ErrAuthorizationDenied, actorRole, current)
	}

	removed, err := s.repo.RemoveAccess(ctx, req.AccountID, targetID)
	if err != nil {
		return fmt.Errorf("error removing user: %w", err)
	}

	if !removed {
		return fmt.Errorf("%w: membership of %s changed", models.ErrConflict, req.TargetStateID)
	}

	return nil
}

// TransferOwnership hands the account to the character holding the target
// state id. The state id is resolved before anything is written; the
// previous owner stays on as manager.
func (s *DefaultService) TransferOwnership(
	ctx context.Context,
	callerID string,
	req models.TransferOwnershipRequest,
) (err error) {
	ctx, span := s.startSpan(ctx, "TransferOwnership", attribute.Int64("account.id", req.AccountID))
	defer func() { endSpan(span, err) }()

	charID, _, err := s.authorize(ctx, callerID, req.AccountID, access.OpTransferOwnership)
	if err != nil {
		return err
	}

	targetID, err := s.directory.ResolveStateID(ctx, req.TargetStateID)
	if err != nil {
		return err
	}

	if targetID == charID {
		return fmt.Errorf("%w: account is already yours", models.ErrInvalidTarget)
	}

	if err := s.repo.TransferOwnership(ctx, req.AccountID, charID, targetID); err != nil {
		return fmt.Errorf("error transferring ownership: %w", err)
	}

	return nil
}

// member resolves a state id and returns the character's current role on the
// account. Callers may not target themselves.
func (s *DefaultService) member(ctx context.Context, accountID, callerCharID int64, stateID string) (int64, models.Role, error) {
	targetID, err := s.directory.ResolveStateID(ctx, stateID)
	if err != nil {
		return 0, models.RoleNone, err
	}

	if targetID == callerCharID {
		return 0, models.RoleNone, fmt.Errorf("%w: cannot change your own access", models.ErrInvalidTarget)
	}

	current, err := s.repo.RoleOf(ctx, accountID, targetID)
	if err != nil {
		return 0, models.RoleNone, fmt.Errorf("error getting account role: %w", err)
	}

	return targetID, current, nil
}

// parseAssignableRole accepts the roles member management may grant
func parseAssignableRole(s string) (models.Role, error) {
	role, err := models.ParseRole(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return models.RoleNone, err
	}
	if role == models.RoleOwner {
		return models.RoleNone, fmt.Errorf("%w: owner is only granted by ownership transfer", models.ErrInvalidRole)
	}
	return role, nil
}
