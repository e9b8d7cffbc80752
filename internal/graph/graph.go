// Package graph owns the relevancy graph: weighted, reason-tagged directed
// edges between entities, accumulated from interaction history and used to
// boost ranking.
package graph

import (
	"github.com/castmatch/castmatch/internal/storage"
)

// Entity types and edge reasons used across the graph.
const (
	TypeCampaign   = "campaign"
	TypeInfluencer = "influencer"

	ReasonInteraction = "interaction"
)

// interactionDeltas is the canonical action → weight delta policy. Every
// call site that logs an interaction goes through InteractionDelta; there is
// deliberately no second table anywhere.
var interactionDeltas = map[string]float64{
	"hire":      0.25,
	"shortlist": 0.10,
	"message":   0.06,
	"view":      0.02,
	"reject":    -0.05,
}

// InteractionDelta returns the edge weight delta for an interaction action,
// 0 for unknown actions.
func InteractionDelta(action string) float64 {
	return interactionDeltas[action]
}

// Service reads and mutates relevancy edges.
type Service struct {
	store *storage.Store
}

func NewService(store *storage.Store) *Service {
	return &Service{store: store}
}

// Bump atomically adds delta to one edge's weight, creating the edge if
// absent. Safe under concurrent bumps to the same edge: the increment happens
// inside the store, never as an application-level read-modify-write.
func (s *Service) Bump(srcType, srcID, dstType, dstID, reason string, delta float64) error {
	return s.store.BumpEdge(srcType, srcID, dstType, dstID, reason, delta)
}

// BumpInteraction records one interaction's effect on the campaign →
// influencer edge.
func (s *Service) BumpInteraction(campaignID, influencerID, action string) error {
	return s.Bump(TypeCampaign, campaignID, TypeInfluencer, influencerID,
		ReasonInteraction, InteractionDelta(action))
}

// Query returns edges matching the filter, newest first. The store clamps
// limit to its fixed maximum.
func (s *Service) Query(f storage.EdgeFilter, limit int) ([]storage.Edge, error) {
	return s.store.QueryEdges(f, limit)
}

// InteractionWeights returns the campaign's interaction edge weight per
// influencer id, for bulk lookup during ranking.
func (s *Service) InteractionWeights(campaignID string) (map[string]float64, error) {
	return s.store.EdgeWeights(TypeCampaign, campaignID, TypeInfluencer, ReasonInteraction)
}
