package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/castmatch/castmatch/internal/capability"
	"github.com/castmatch/castmatch/internal/storage"
)

// Runner executes goals as capability-call runs with exactly-once semantics
// per run key: a completed run is returned from the ledger without
// re-executing anything, and a failed or interrupted run is reset and retried
// in place.
type Runner struct {
	store    *storage.Store
	planner  *Planner
	registry *capability.Registry
	logger   *slog.Logger
}

func NewRunner(store *storage.Store, planner *Planner, registry *capability.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, planner: planner, registry: registry, logger: logger}
}

// Run resolves the goal's run key, replays a completed run if one exists, and
// otherwise plans and executes the goal step by step. Step results are
// persisted after every execution so a crash mid-run loses nothing already
// done. The first failing step aborts the run.
func (r *Runner) Run(ctx context.Context, rawGoal json.RawMessage) (storage.Session, error) {
	goal, err := ParseGoal(rawGoal)
	if err != nil {
		return storage.Session{}, err
	}
	runKey := goal.RunKey()

	if existing, err := r.store.GetSessionByRunKey(runKey); err == nil {
		if existing.Status == storage.SessionCompleted {
			r.logger.Info("goal run replayed from ledger", "runKey", runKey, "session", existing.ID)
			return existing, nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Session{}, err
	}

	sess, err := r.store.UpsertRunningSession(uuid.New().String(), runKey, goal.CanonicalJSON())
	if err != nil {
		return storage.Session{}, fmt.Errorf("opening run session: %w", err)
	}
	if sess.Status == storage.SessionCompleted {
		// Lost the race to a concurrent submission that finished first.
		return sess, nil
	}
	r.logger.Info("goal run started", "runKey", runKey, "session", sess.ID, "goal", goal.Type)

	plan, err := r.planner.Plan(ctx, goal)
	if err != nil {
		return r.fail(sess.ID, nil, fmt.Errorf("planning failed: %w", err))
	}
	if err := r.store.SetSessionPlan(sess.ID, plan.Plan); err != nil {
		return storage.Session{}, err
	}

	var steps []storage.Step
	var final json.RawMessage
	for i, step := range plan.Steps {
		output, runErr := r.registry.Invoke(ctx, step.Capability, step.Input)
		record := storage.Step{
			Capability: step.Capability,
			Input:      step.Input,
		}
		if runErr != nil {
			record.Error = runErr.Error()
			steps = append(steps, record)
			return r.fail(sess.ID, steps, fmt.Errorf("step %d (%s): %w", i, step.Capability, runErr))
		}
		encoded, err := json.Marshal(output)
		if err != nil {
			record.Error = err.Error()
			steps = append(steps, record)
			return r.fail(sess.ID, steps, fmt.Errorf("step %d (%s): encoding output: %w", i, step.Capability, err))
		}
		record.Output = encoded
		steps = append(steps, record)
		final = encoded
		if err := r.store.SetSessionSteps(sess.ID, steps); err != nil {
			return storage.Session{}, err
		}
	}

	if err := r.store.CompleteSession(sess.ID, steps, final); err != nil {
		return storage.Session{}, err
	}
	r.logger.Info("goal run completed", "runKey", runKey, "session", sess.ID, "steps", len(steps))
	return r.store.GetSessionByRunKey(runKey)
}

// fail records the terminal failure on the session and returns both the
// persisted session and the error that caused it.
func (r *Runner) fail(sessionID string, steps []storage.Step, cause error) (storage.Session, error) {
	if err := r.store.FailSession(sessionID, steps, cause.Error()); err != nil {
		r.logger.Error("recording run failure", "session", sessionID, "error", err)
	}
	sess, err := r.store.GetSession(sessionID)
	if err != nil {
		return storage.Session{}, cause
	}
	r.logger.Warn("goal run failed", "session", sessionID, "error", cause)
	return sess, cause
}
