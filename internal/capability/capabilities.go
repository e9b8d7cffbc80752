package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/castmatch/castmatch/internal/indexes"
	"github.com/castmatch/castmatch/internal/instagram"
	"github.com/castmatch/castmatch/internal/interactions"
	"github.com/castmatch/castmatch/internal/ranking"
	"github.com/castmatch/castmatch/internal/storage"
)

// Capability names.
const (
	NameInstagramRefresh = "ingest.instagram.refresh"
	NameRankInfluencers  = "recommend.campaign_to_influencers"
	NameRankCampaigns    = "recommend.influencer_to_campaigns"
	NameLogInteraction   = "interactions.log"
)

// Deps are the collaborators capability executors invoke.
type Deps struct {
	Store        *storage.Store
	Ranker       *ranking.Ranker
	Interactions *interactions.Service
	Source       instagram.Source
}

// RefreshResult is the output of ingest.instagram.refresh.
type RefreshResult struct {
	OK           bool            `json:"ok"`
	InfluencerID string          `json:"influencerId"`
	SnapshotID   string          `json:"snapshotId"`
	Indexes      indexes.Indexes `json:"indexes"`
}

// LogResult is the output of interactions.log.
type LogResult struct {
	OK            bool   `json:"ok"`
	InteractionID string `json:"interactionId"`
	Idempotent    bool   `json:"idempotent"`
}

// NewRegistry wires the fixed capability table against the given deps.
func NewRegistry(deps Deps) (*Registry, error) {
	return New(
		Capability{
			Name:        NameInstagramRefresh,
			Description: "Fetch the latest Instagram snapshot and update the influencer's stability indexes.",
			Input: []Field{
				{Name: "influencerId", Type: FieldString, Required: true, Description: "Influencer record id"},
			},
			Run: func(ctx context.Context, input map[string]any) (any, error) {
				return refreshInstagram(ctx, deps, stringField(input, "influencerId"))
			},
		},
		Capability{
			Name:        NameRankInfluencers,
			Description: "Rank influencers for a campaign with explainable, graph-boosted scoring.",
			Input: []Field{
				{Name: "campaignId", Type: FieldString, Required: true, Description: "Campaign record id"},
			},
			Run: func(ctx context.Context, input map[string]any) (any, error) {
				return deps.Ranker.RankInfluencersForCampaign(ctx, stringField(input, "campaignId"))
			},
		},
		Capability{
			Name:        NameRankCampaigns,
			Description: "Rank campaigns for an influencer with explainable scoring.",
			Input: []Field{
				{Name: "influencerId", Type: FieldString, Required: true, Description: "Influencer record id"},
			},
			Run: func(ctx context.Context, input map[string]any) (any, error) {
				return deps.Ranker.RankCampaignsForInfluencer(ctx, stringField(input, "influencerId"))
			},
		},
		Capability{
			Name:        NameLogInteraction,
			Description: "Log a brand/influencer interaction and update the relevancy graph edge.",
			Input: []Field{
				{Name: "campaignId", Type: FieldString, Required: true, Description: "Campaign record id"},
				{Name: "influencerId", Type: FieldString, Required: true, Description: "Influencer record id"},
				{Name: "actorType", Type: FieldString, Required: true, Enum: interactions.ActorTypes},
				{Name: "action", Type: FieldString, Required: true, Enum: interactions.Actions},
				{Name: "meta", Type: FieldObject, Description: "Free-form metadata"},
				{Name: "idempotencyKey", Type: FieldString, Description: "Override the derived idempotency key"},
			},
			Run: func(ctx context.Context, input map[string]any) (any, error) {
				record, idempotent, err := deps.Interactions.Log(interactions.Input{
					CampaignID:     stringField(input, "campaignId"),
					InfluencerID:   stringField(input, "influencerId"),
					ActorType:      stringField(input, "actorType"),
					Action:         stringField(input, "action"),
					Meta:           objectField(input, "meta"),
					IdempotencyKey: stringField(input, "idempotencyKey"),
				})
				if err != nil {
					return nil, err
				}
				return LogResult{OK: true, InteractionID: record.ID, Idempotent: idempotent}, nil
			},
		},
	)
}

func refreshInstagram(ctx context.Context, deps Deps, influencerID string) (RefreshResult, error) {
	inf, err := deps.Store.GetInfluencer(influencerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return RefreshResult{}, fmt.Errorf("influencer %s: %w", influencerID, storage.ErrNotFound)
		}
		return RefreshResult{}, err
	}
	if inf.Instagram.IGUserID == "" {
		return RefreshResult{}, fmt.Errorf("influencer %s has no linked instagram account", influencerID)
	}

	payload, err := deps.Source.FetchSnapshot(ctx, inf.Instagram.IGUserID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("fetching snapshot: %w", err)
	}

	snap := storage.Snapshot{
		ID:           uuid.New().String(),
		InfluencerID: inf.ID,
		Source:       payload.Source,
		CapturedAt:   payload.CapturedAt,
		Profile:      payload.Profile,
		Posts:        payload.Posts,
	}
	if err := deps.Store.SaveSnapshot(snap); err != nil {
		return RefreshResult{}, fmt.Errorf("saving snapshot: %w", err)
	}

	idx := indexes.Compute(snap)

	st := inf.Stability
	st.Overall = float64(idx.Stability)
	st.Volatility = float64(idx.Volatility)
	st.TrendDependence = float64(idx.TrendDependence)
	st.AudienceMemory = float64(idx.AudienceMemory)
	st.MonetizationReadiness = float64(idx.MonetizationReadiness)

	var lastPostAt *time.Time
	if len(payload.Posts) > 0 {
		t := payload.Posts[0].Timestamp
		lastPostAt = &t
	}
	if err := deps.Store.UpdateInfluencerIndexes(inf.ID, st, lastPostAt, len(payload.Posts)); err != nil {
		return RefreshResult{}, fmt.Errorf("updating influencer indexes: %w", err)
	}

	return RefreshResult{
		OK:           true,
		InfluencerID: inf.ID,
		SnapshotID:   snap.ID,
		Indexes:      idx,
	}, nil
}

func stringField(input map[string]any, name string) string {
	s, _ := input[name].(string)
	return s
}

func objectField(input map[string]any, name string) map[string]any {
	m, _ := input[name].(map[string]any)
	return m
}
