package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rongwang/banking-server/internal/models"
)

func (r *SQLRepository) UpsertCharacter(ctx context.Context, character *models.Character) error {
	query := r.db.Rebind(`
		INSERT INTO characters (char_id, state_id, first_name, last_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (char_id) DO UPDATE
		SET state_id = excluded.state_id, first_name = excluded.first_name, last_name = excluded.last_name
	`)

	_, err := r.db.ExecContext(ctx, query,
		character.CharID, character.StateID, character.FirstName, character.LastName)

	return err
}

func (r *SQLRepository) GetCharacterByStateID(ctx context.Context, stateID string) (*models.Character, error) {
	query := r.db.Rebind(`SELECT char_id, state_id, first_name, last_name FROM characters WHERE state_id = ?`)

	var character models.Character
	err := r.db.GetContext(ctx, &character, query, stateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Character not found
		}
		return nil, err
	}

	return &character, nil
}
