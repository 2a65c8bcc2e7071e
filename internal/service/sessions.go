package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/banking-server/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// RegisterSession records the character a caller plays and mirrors it into
// the character table so state ids resolve.
func (s *DefaultService) RegisterSession(ctx context.Context, req models.RegisterSessionRequest) (err error) {
	ctx, span := s.startSpan(ctx, "RegisterSession", attribute.Int64("char.id", req.Character.CharID))
	defer func() { endSpan(span, err) }()

	character := req.Character
	character.StateID = strings.TrimSpace(character.StateID)
	if character.CharID <= 0 || character.StateID == "" {
		return fmt.Errorf("%w: character id and state id are required", models.ErrInvalidRequest)
	}

	if err := s.repo.UpsertCharacter(ctx, &character); err != nil {
		return fmt.Errorf("error saving character: %w", err)
	}

	s.sessions.Register(req.CallerID, character)
	return nil
}

// DropSession forgets the caller. Dropping an unknown caller is a no-op.
func (s *DefaultService) DropSession(_ context.Context, callerID string) error {
	s.sessions.Drop(callerID)
	return nil
}

// OpenBank marks the overlay as open. The first open of a session carries the
// UI strings for the player's language.
func (s *DefaultService) OpenBank(_ context.Context, callerID string, req models.OpenBankRequest) (*models.OpenBankResponse, error) {
	firstOpen, err := s.sessions.Open(callerID, req.Cash)
	if err != nil {
		return nil, err
	}

	resp := &models.OpenBankResponse{Cash: req.Cash}
	if firstOpen && s.locales != nil {
		resp.InitData = &models.InitData{
			Locales: s.locales.Locales(s.locales.Match(req.Language)),
		}
	}

	return resp, nil
}

func (s *DefaultService) CloseBank(_ context.Context, callerID string) error {
	return s.sessions.Close(callerID)
}

// UpdateCash tells whether an open overlay must refresh its cash display
func (s *DefaultService) UpdateCash(_ context.Context, callerID string, cash int64) (*models.CashUpdateResponse, error) {
	refresh, err := s.sessions.UpdateCash(callerID, cash)
	if err != nil {
		return nil, err
	}

	return &models.CashUpdateResponse{Refresh: refresh, Cash: cash}, nil
}
