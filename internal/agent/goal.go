// Package agent turns goals into capability-call plans and executes them
// under an idempotent run ledger.
package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/castmatch/castmatch/internal/interactions"
)

// ErrInvalidGoal wraps every goal validation failure.
var ErrInvalidGoal = errors.New("invalid goal")

// Goal kinds. The union is closed: new behavior means a new kind, never a
// free-form payload.
const (
	GoalRankInfluencers  = "rank_influencers_for_campaign"
	GoalRefreshInstagram = "refresh_influencer_instagram"
	GoalLogInteraction   = "log_interaction"
)

// Goal is the tagged union of supported goal kinds. Only the fields of the
// active variant are set; ParseGoal zeroes the rest so the canonical JSON
// form (and therefore the run key) is deterministic.
type Goal struct {
	Type         string `json:"type"`
	CampaignID   string `json:"campaignId,omitempty"`
	InfluencerID string `json:"influencerId,omitempty"`
	ActorType    string `json:"actorType,omitempty"`
	Action       string `json:"action,omitempty"`
}

// ParseGoal validates a raw goal eagerly at the orchestration boundary.
func ParseGoal(raw json.RawMessage) (Goal, error) {
	var g Goal
	if err := json.Unmarshal(raw, &g); err != nil {
		return Goal{}, fmt.Errorf("%w: %v", ErrInvalidGoal, err)
	}

	switch g.Type {
	case GoalRankInfluencers:
		if g.CampaignID == "" {
			return Goal{}, fmt.Errorf("%w: campaignId is required", ErrInvalidGoal)
		}
		return Goal{Type: g.Type, CampaignID: g.CampaignID}, nil

	case GoalRefreshInstagram:
		if g.InfluencerID == "" {
			return Goal{}, fmt.Errorf("%w: influencerId is required", ErrInvalidGoal)
		}
		return Goal{Type: g.Type, InfluencerID: g.InfluencerID}, nil

	case GoalLogInteraction:
		if g.CampaignID == "" || g.InfluencerID == "" {
			return Goal{}, fmt.Errorf("%w: campaignId and influencerId are required", ErrInvalidGoal)
		}
		if !interactions.ValidActorType(g.ActorType) {
			return Goal{}, fmt.Errorf("%w: actorType must be one of brand|influencer", ErrInvalidGoal)
		}
		if !interactions.ValidAction(g.Action) {
			return Goal{}, fmt.Errorf("%w: action must be one of view|shortlist|message|hire|reject", ErrInvalidGoal)
		}
		return g, nil

	default:
		return Goal{}, fmt.Errorf("%w: unknown goal type %q", ErrInvalidGoal, g.Type)
	}
}

// CanonicalJSON is the stable serialized form of a goal: fixed field order,
// inactive variant fields omitted.
func (g Goal) CanonicalJSON() json.RawMessage {
	b, _ := json.Marshal(g)
	return b
}

// RunKey is the content hash of the goal's canonical form. Byte-identical
// goals always map to the same run.
func (g Goal) RunKey() string {
	sum := sha256.Sum256(g.CanonicalJSON())
	return hex.EncodeToString(sum[:])
}
