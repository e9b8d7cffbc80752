package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertInteraction attempts to store the interaction. The insert is issued
// first; a unique violation on idempotency_key means a record with the same
// key already exists (possibly written by a concurrent request), in which
// case the existing record is returned with inserted=false. Application-level
// existence checks alone cannot close that race.
func (s *Store) InsertInteraction(in Interaction) (Interaction, bool, error) {
	_, err := s.db.Exec(`
		INSERT INTO interactions (id, campaign_id, influencer_id, actor_type, action, meta, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.CampaignID, in.InfluencerID, in.ActorType, in.Action,
		marshalJSONColumn(in.Meta, "{}"), in.IdempotencyKey, formatTime(in.CreatedAt),
	)
	if err == nil {
		return in, true, nil
	}
	if !isUniqueViolation(err) {
		return Interaction{}, false, err
	}

	existing, err := s.GetInteractionByKey(in.IdempotencyKey)
	if err != nil {
		return Interaction{}, false, fmt.Errorf("fetching existing interaction after conflict: %w", err)
	}
	return existing, false, nil
}

const interactionColumns = `id, campaign_id, influencer_id, actor_type, action, meta, idempotency_key, created_at`

func scanInteraction(row interface{ Scan(...any) error }) (Interaction, error) {
	var in Interaction
	var meta, createdAt string
	err := row.Scan(&in.ID, &in.CampaignID, &in.InfluencerID, &in.ActorType,
		&in.Action, &meta, &in.IdempotencyKey, &createdAt)
	if err != nil {
		return Interaction{}, err
	}
	if err := json.Unmarshal([]byte(meta), &in.Meta); err != nil {
		return Interaction{}, fmt.Errorf("parsing meta: %w", err)
	}
	if in.CreatedAt, err = parseTime(createdAt); err != nil {
		return Interaction{}, err
	}
	return in, nil
}

func (s *Store) GetInteractionByKey(key string) (Interaction, error) {
	row := s.db.QueryRow(`SELECT `+interactionColumns+` FROM interactions WHERE idempotency_key = ?`, key)
	in, err := scanInteraction(row)
	if err == sql.ErrNoRows {
		return Interaction{}, ErrNotFound
	}
	return in, err
}

func (s *Store) ListInteractions(limit int) ([]Interaction, error) {
	rows, err := s.db.Query(`SELECT `+interactionColumns+` FROM interactions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, in)
	}
	return results, rows.Err()
}
