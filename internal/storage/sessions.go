package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertRunningSession creates a session for runKey in the running state, or
// resets an existing non-completed session in place (plan, steps, final, and
// error cleared). Completed sessions are immutable: the upsert leaves them
// untouched and the stored record comes back as-is. The insert-or-reset is a
// single statement so two concurrent submissions of the same key cannot
// create two sessions.
func (s *Store) UpsertRunningSession(id, runKey string, goal json.RawMessage) (Session, error) {
	now := formatTime(time.Now())
	_, err := s.db.Exec(`
		INSERT INTO agent_sessions (id, run_key, goal, status, plan, steps, final, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, '[]', '[]', NULL, NULL, ?, ?)
		ON CONFLICT(run_key) DO UPDATE SET
			goal = excluded.goal, status = excluded.status,
			plan = '[]', steps = '[]', final = NULL, error = NULL,
			updated_at = excluded.updated_at
		WHERE agent_sessions.status != ?`,
		id, runKey, string(goal), SessionRunning, now, now, SessionCompleted,
	)
	if err != nil {
		return Session{}, err
	}
	return s.GetSessionByRunKey(runKey)
}

const sessionColumns = `id, run_key, goal, status, plan, steps, final, error, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var sess Session
	var goal, plan, steps, createdAt, updatedAt string
	var final, errText sql.NullString
	err := row.Scan(&sess.ID, &sess.RunKey, &goal, &sess.Status, &plan, &steps,
		&final, &errText, &createdAt, &updatedAt)
	if err != nil {
		return Session{}, err
	}
	sess.Goal = json.RawMessage(goal)
	if err := json.Unmarshal([]byte(plan), &sess.Plan); err != nil {
		return Session{}, fmt.Errorf("parsing plan: %w", err)
	}
	if err := json.Unmarshal([]byte(steps), &sess.Steps); err != nil {
		return Session{}, fmt.Errorf("parsing steps: %w", err)
	}
	if final.Valid && final.String != "" {
		sess.Final = json.RawMessage(final.String)
	}
	if errText.Valid {
		sess.Error = errText.String
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return Session{}, err
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM agent_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	return sess, err
}

func (s *Store) GetSessionByRunKey(runKey string) (Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM agent_sessions WHERE run_key = ?`, runKey)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// SetSessionPlan records the planner output before execution starts.
func (s *Store) SetSessionPlan(id string, plan []string) error {
	return s.updateSession(id, `plan = ?`, marshalJSONColumn(plan, "[]"))
}

// SetSessionSteps overwrites the persisted step list. The runner owns the
// session while it is running and calls this after every executed step so a
// failed run keeps full forensic detail.
func (s *Store) SetSessionSteps(id string, steps []Step) error {
	return s.updateSession(id, `steps = ?`, marshalJSONColumn(steps, "[]"))
}

// CompleteSession marks the session completed with its final result.
func (s *Store) CompleteSession(id string, steps []Step, final json.RawMessage) error {
	return s.updateSession(id, `status = ?, steps = ?, final = ?`,
		SessionCompleted, marshalJSONColumn(steps, "[]"), string(final))
}

// FailSession marks the session failed, keeping whatever steps ran.
func (s *Store) FailSession(id string, steps []Step, errMsg string) error {
	return s.updateSession(id, `status = ?, steps = ?, error = ?`,
		SessionFailed, marshalJSONColumn(steps, "[]"), errMsg)
}

func (s *Store) updateSession(id, set string, args ...any) error {
	args = append(args, formatTime(time.Now()), id)
	res, err := s.db.Exec(`UPDATE agent_sessions SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM agent_sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sess)
	}
	return results, rows.Err()
}
