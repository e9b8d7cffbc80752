// Package interactions owns idempotent interaction logging: every path that
// records an interaction (HTTP route, agent capability) goes through this one
// service so the idempotency key derivation and the edge delta policy cannot
// drift between call sites.
package interactions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/castmatch/castmatch/internal/graph"
	"github.com/castmatch/castmatch/internal/storage"
)

// Valid actor types and actions.
var (
	ActorTypes = []string{"brand", "influencer"}
	Actions    = []string{"view", "shortlist", "message", "hire", "reject"}
)

// Input is one interaction to log. IdempotencyKey is optional; when empty a
// deterministic key is derived so client retries collapse to one record.
type Input struct {
	CampaignID     string
	InfluencerID   string
	ActorType      string
	Action         string
	Meta           map[string]any
	IdempotencyKey string
}

// DeterministicKey hashes the identifying fields of an interaction. Repeated
// identical requests always map to the same key.
func DeterministicKey(campaignID, influencerID, actorType, action string) string {
	base := fmt.Sprintf("%s:%s:%s:%s", campaignID, influencerID, actorType, action)
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}

// Service logs interactions and applies their relevancy-graph effect.
type Service struct {
	store *storage.Store
	graph *graph.Service
}

func NewService(store *storage.Store, g *graph.Service) *Service {
	return &Service{store: store, graph: g}
}

// Log stores the interaction at most once per idempotency key and bumps the
// campaign → influencer edge only on first insert, so retries never
// double-count. Returns the stored record and whether an existing record was
// reused.
func (s *Service) Log(in Input) (storage.Interaction, bool, error) {
	key := in.IdempotencyKey
	if key == "" {
		key = DeterministicKey(in.CampaignID, in.InfluencerID, in.ActorType, in.Action)
	}

	record := storage.Interaction{
		ID:             uuid.New().String(),
		CampaignID:     in.CampaignID,
		InfluencerID:   in.InfluencerID,
		ActorType:      in.ActorType,
		Action:         in.Action,
		Meta:           in.Meta,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}

	stored, inserted, err := s.store.InsertInteraction(record)
	if err != nil {
		return storage.Interaction{}, false, fmt.Errorf("storing interaction: %w", err)
	}
	if !inserted {
		return stored, true, nil
	}

	if err := s.graph.BumpInteraction(in.CampaignID, in.InfluencerID, in.Action); err != nil {
		return storage.Interaction{}, false, fmt.Errorf("updating relevancy edge: %w", err)
	}
	return stored, false, nil
}

// ValidActorType reports whether t is a known actor type.
func ValidActorType(t string) bool { return slices.Contains(ActorTypes, t) }

// ValidAction reports whether a is a known action.
func ValidAction(a string) bool { return slices.Contains(Actions, a) }
