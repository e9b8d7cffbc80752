// Package ranking combines static compatibility scoring with the relevancy
// graph boost to produce sorted, explained candidate lists.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/castmatch/castmatch/internal/graph"
	"github.com/castmatch/castmatch/internal/matching"
	"github.com/castmatch/castmatch/internal/storage"
)

// Boost bounds: each 0.1 edge weight is worth +2 score points, clamped so a
// pathological edge weight can never dominate the static score.
const (
	boostPerWeight = 20.0
	boostMin       = -10.0
	boostMax       = 10.0
)

// scoreConcurrency bounds candidate scoring fan-out.
const scoreConcurrency = 4

// campaignScanLimit bounds the campaign pool considered when ranking for an
// influencer.
const campaignScanLimit = 500

// InfluencerResult is one ranked influencer for a campaign.
type InfluencerResult struct {
	InfluencerID string              `json:"influencerId"`
	Score        float64             `json:"score"`
	BaseScore    float64             `json:"baseScore"`
	GraphBoost   float64             `json:"graphBoost"`
	EdgeWeight   float64             `json:"edgeWeight"`
	Components   matching.Components `json:"components"`
	Explanation  []string            `json:"explanation"`
}

// InfluencerRanking is the full response for a campaign → influencers query.
type InfluencerRanking struct {
	CampaignID string             `json:"campaignId"`
	Total      int                `json:"total"`
	Results    []InfluencerResult `json:"results"`
}

// CampaignResult is one ranked campaign for an influencer. No graph boost:
// the relevancy graph is campaign-centric by design.
type CampaignResult struct {
	CampaignID  string              `json:"campaignId"`
	Score       float64             `json:"score"`
	Components  matching.Components `json:"components"`
	Explanation []string            `json:"explanation"`
}

// CampaignRanking is the full response for an influencer → campaigns query.
type CampaignRanking struct {
	InfluencerID string           `json:"influencerId"`
	Total        int              `json:"total"`
	Results      []CampaignResult `json:"results"`
}

// Ranker produces graph-boosted rankings from the catalog and edge store.
type Ranker struct {
	store *storage.Store
	graph *graph.Service
}

func New(store *storage.Store, g *graph.Service) *Ranker {
	return &Ranker{store: store, graph: g}
}

// RankInfluencersForCampaign ranks every eligible influencer for the
// campaign, highest final score first. Returns storage.ErrNotFound if the
// campaign does not exist.
func (r *Ranker) RankInfluencersForCampaign(ctx context.Context, campaignID string) (InfluencerRanking, error) {
	campaign, err := r.store.GetCampaign(campaignID)
	if err != nil {
		return InfluencerRanking{}, err
	}

	platforms := campaign.Constraints.Platforms
	if len(platforms) == 0 {
		platforms = []string{"instagram"}
	}
	pool, err := r.store.ListInfluencersByPlatforms(platforms)
	if err != nil {
		return InfluencerRanking{}, err
	}

	// Pre-filter: when the campaign declares categories, candidates must
	// share at least one. This gates eligibility; it is not part of the score.
	candidates := pool[:0:0]
	for _, inf := range pool {
		if len(campaign.Categories) == 0 || sharesCategory(campaign.Categories, inf.Categories) {
			candidates = append(candidates, inf)
		}
	}

	weights, err := r.graph.InteractionWeights(campaignID)
	if err != nil {
		return InfluencerRanking{}, err
	}

	// Score candidates concurrently, writing by index so discovery order is
	// preserved for the stable sort below.
	results := make([]InfluencerResult, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(scoreConcurrency)
	for idx, inf := range candidates {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			base := matching.Score(campaign, inf)
			weight := weights[inf.ID]
			boost := GraphBoost(weight)
			explanation := append(
				matching.Explain(campaign, inf, base.Components),
				fmt.Sprintf("Graph boost: %.1f (edgeWeight=%.2f)", boost, weight),
			)
			results[idx] = InfluencerResult{
				InfluencerID: inf.ID,
				Score:        matching.Round1(base.Score + boost),
				BaseScore:    base.Score,
				GraphBoost:   boost,
				EdgeWeight:   weight,
				Components:   base.Components,
				Explanation:  explanation,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return InfluencerRanking{}, err
	}

	// Stable: ties keep discovery order, so repeated calls over the same
	// snapshot return identical orderings.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	return InfluencerRanking{
		CampaignID: campaignID,
		Total:      len(results),
		Results:    results,
	}, nil
}

// RankCampaignsForInfluencer ranks campaigns for an influencer using the
// static score only. Returns storage.ErrNotFound if the influencer does not
// exist.
func (r *Ranker) RankCampaignsForInfluencer(ctx context.Context, influencerID string) (CampaignRanking, error) {
	influencer, err := r.store.GetInfluencer(influencerID)
	if err != nil {
		return CampaignRanking{}, err
	}

	campaigns, err := r.store.ListCampaigns(campaignScanLimit)
	if err != nil {
		return CampaignRanking{}, err
	}

	var results []CampaignResult
	for _, c := range campaigns {
		if len(influencer.Categories) > 0 && !sharesCategory(c.Categories, influencer.Categories) {
			continue
		}
		scored := matching.Score(c, influencer)
		results = append(results, CampaignResult{
			CampaignID:  c.ID,
			Score:       scored.Score,
			Components:  scored.Components,
			Explanation: matching.Explain(c, influencer, scored.Components),
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	return CampaignRanking{
		InfluencerID: influencerID,
		Total:        len(results),
		Results:      results,
	}, nil
}

// GraphBoost converts a stored edge weight into a bounded score adjustment.
func GraphBoost(edgeWeight float64) float64 {
	return math.Max(boostMin, math.Min(boostMax, edgeWeight*boostPerWeight))
}

func sharesCategory(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		if _, ok := set[x]; ok {
			return true
		}
	}
	return false
}
