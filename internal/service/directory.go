package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rongwang/banking-server/internal/models"
	"github.com/rongwang/banking-server/internal/repository"
	"github.com/rongwang/banking-server/internal/session"
)

// CharacterDirectory maps callers and state ids to character ids
type CharacterDirectory interface {
	// CharacterID returns the character of a connected caller
	CharacterID(callerID string) (int64, error)
	// ResolveStateID returns models.ErrTargetNotFound when no character has stateID
	ResolveStateID(ctx context.Context, stateID string) (int64, error)
}

type directory struct {
	sessions *session.Registry
	repo     repository.Repository
}

// NewDirectory resolves callers through the session registry and state ids
// through the character table
func NewDirectory(sessions *session.Registry, repo repository.Repository) CharacterDirectory {
	return &directory{sessions: sessions, repo: repo}
}

func (d *directory) CharacterID(callerID string) (int64, error) {
	return d.sessions.CharacterID(callerID)
}

func (d *directory) ResolveStateID(ctx context.Context, stateID string) (int64, error) {
	stateID = strings.TrimSpace(stateID)
	if stateID == "" {
		return 0, fmt.Errorf("%w: empty state id", models.ErrTargetNotFound)
	}

	character, err := d.repo.GetCharacterByStateID(ctx, stateID)
	if err != nil {
		return 0, fmt.Errorf("error getting character: %w", err)
	}

	if character == nil {
		return 0, fmt.Errorf("%w: %s", models.ErrTargetNotFound, stateID)
	}

	return character.CharID, nil
}
