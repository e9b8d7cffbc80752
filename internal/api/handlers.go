// Package api exposes the HTTP surface: catalog CRUD, ranking, the
// relevancy graph, interaction logging, brief parsing, and goal runs.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/castmatch/castmatch/internal/agent"
	"github.com/castmatch/castmatch/internal/capability"
	"github.com/castmatch/castmatch/internal/drafts"
	"github.com/castmatch/castmatch/internal/graph"
	"github.com/castmatch/castmatch/internal/interactions"
	"github.com/castmatch/castmatch/internal/llm"
	"github.com/castmatch/castmatch/internal/ranking"
	"github.com/castmatch/castmatch/internal/storage"
)

// ModelLister abstracts the LLM model listing for the API layer.
type ModelLister interface {
	ListModels(ctx context.Context) ([]llm.Model, error)
}

// Deps holds the collaborators handlers delegate to.
type Deps struct {
	Store        *storage.Store
	Graph        *graph.Service
	Ranker       *ranking.Ranker
	Interactions *interactions.Service
	Registry     *capability.Registry
	Runner       *agent.Runner
	Drafts       *drafts.Service
	Models       ModelLister
	Token        string
	HTTPClient   *http.Client
}

// NewHandler builds the full router. /health is open; everything else is
// behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/goal-runs", handleCreateGoalRun(deps))
		r.Get("/goal-runs", handleListGoalRuns(deps))
		r.Get("/goal-runs/{id}", handleGetGoalRun(deps))

		r.Get("/relevancy-edges", handleQueryEdges(deps))

		r.Post("/interactions", handleLogInteraction(deps))
		r.Get("/interactions", handleListInteractions(deps))

		r.Get("/rank/campaign/{id}/influencers", handleRankInfluencers(deps))
		r.Get("/rank/influencer/{id}/campaigns", handleRankCampaigns(deps))

		r.Get("/capabilities", handleListCapabilities(deps))

		r.Post("/campaigns", handleCreateCampaign(deps))
		r.Post("/campaigns/from-draft", handleCampaignFromDraft(deps))
		r.Get("/campaigns", handleListCampaigns(deps))
		r.Get("/campaigns/{id}", handleGetCampaign(deps))

		r.Post("/influencers", handleCreateInfluencer(deps))
		r.Get("/influencers", handleListInfluencers(deps))
		r.Get("/influencers/{id}", handleGetInfluencer(deps))

		r.Post("/ingest/instagram/{influencerId}/refresh", handleInstagramRefresh(deps))

		r.Post("/briefs/parse", handleParseBrief(deps))
		r.Get("/llm/models", handleListModels(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleCreateGoalRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Goal json.RawMessage `json:"goal"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Goal) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "goal is required")
			return
		}

		sess, err := deps.Runner.Run(r.Context(), req.Goal)
		if errors.Is(err, agent.ErrInvalidGoal) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			// The failed session is persisted; return it alongside the error.
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"ok":      false,
				"error":   err.Error(),
				"session": sess,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session": sess})
	}
}

func handleListGoalRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 50)
		sessions, err := deps.Store.ListSessions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list goal runs: %v", err)
			return
		}
		if sessions == nil {
			sessions = []storage.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func handleGetGoalRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := deps.Store.GetSession(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "goal run not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get goal run: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleQueryEdges(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := storage.EdgeFilter{
			SrcType: q.Get("srcType"),
			SrcID:   q.Get("srcId"),
			DstType: q.Get("dstType"),
			DstID:   q.Get("dstId"),
			Reason:  q.Get("reason"),
		}
		limit := parseIntParam(r, "limit", 0, storage.MaxEdgeQueryLimit)

		edges, err := deps.Graph.Query(filter, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to query edges: %v", err)
			return
		}
		if edges == nil {
			edges = []storage.Edge{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
	}
}

func handleLogInteraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			CampaignID     string         `json:"campaignId"`
			InfluencerID   string         `json:"influencerId"`
			ActorType      string         `json:"actorType"`
			Action         string         `json:"action"`
			Meta           map[string]any `json:"meta"`
			IdempotencyKey string         `json:"idempotencyKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.CampaignID == "" || req.InfluencerID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "campaignId and influencerId are required")
			return
		}
		if !interactions.ValidActorType(req.ActorType) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "actorType must be one of %s", strings.Join(interactions.ActorTypes, "|"))
			return
		}
		if !interactions.ValidAction(req.Action) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "action must be one of %s", strings.Join(interactions.Actions, "|"))
			return
		}

		record, idempotent, err := deps.Interactions.Log(interactions.Input{
			CampaignID:     req.CampaignID,
			InfluencerID:   req.InfluencerID,
			ActorType:      req.ActorType,
			Action:         req.Action,
			Meta:           req.Meta,
			IdempotencyKey: req.IdempotencyKey,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to log interaction: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":            true,
			"interactionId": record.ID,
			"idempotent":    idempotent,
		})
	}
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		records, err := deps.Store.ListInteractions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}
		if records == nil {
			records = []storage.Interaction{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleRankInfluencers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Ranker.RankInfluencersForCampaign(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "campaign not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ranking failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleRankCampaigns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Ranker.RankCampaignsForInfluencer(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "influencer not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ranking failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleListCapabilities(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Registry.List())
	}
}

// CampaignRequest is the create-campaign payload, also produced from drafts.
type CampaignRequest struct {
	Title          string               `json:"title"`
	Categories     []string             `json:"categories"`
	RequiredSkills []string             `json:"requiredSkills"`
	Deliverables   storage.Deliverables `json:"deliverables"`
	Budget         storage.Budget       `json:"budget"`
	Constraints    storage.Constraints  `json:"constraints"`
}

func (req CampaignRequest) validate() []string {
	var violations []string
	if strings.TrimSpace(req.Title) == "" {
		violations = append(violations, "title: required")
	}
	if len(req.Categories) == 0 {
		violations = append(violations, "categories: at least one required")
	}
	if req.Budget.Min < 0 || req.Budget.Max < 0 || req.Budget.Max < req.Budget.Min {
		violations = append(violations, "budget: min/max must be non-negative with max >= min")
	}
	for _, p := range req.Constraints.Platforms {
		if p != "instagram" && p != "youtube" {
			violations = append(violations, "constraints.platforms: must be instagram or youtube")
			break
		}
	}
	return violations
}

func createCampaign(deps Deps, w http.ResponseWriter, req CampaignRequest) {
	if violations := req.validate(); len(violations) > 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", strings.Join(violations, "; "))
		return
	}
	c := storage.Campaign{
		ID:             uuid.New().String(),
		Title:          req.Title,
		Categories:     req.Categories,
		RequiredSkills: req.RequiredSkills,
		Deliverables:   req.Deliverables,
		Budget:         req.Budget,
		Constraints:    req.Constraints,
		CreatedAt:      time.Now().UTC(),
	}
	if err := deps.Store.CreateCampaign(c); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to create campaign: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func handleCreateCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req CampaignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		createCampaign(deps, w, req)
	}
}

func handleCampaignFromDraft(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Draft drafts.Draft `json:"draft"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		createCampaign(deps, w, CampaignRequest{
			Title:          req.Draft.Title,
			Categories:     req.Draft.Categories,
			RequiredSkills: req.Draft.RequiredSkills,
			Deliverables:   req.Draft.Deliverables,
			Budget:         req.Draft.Budget,
			Constraints:    req.Draft.Constraints,
		})
	}
}

func handleListCampaigns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		campaigns, err := deps.Store.ListCampaigns(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list campaigns: %v", err)
			return
		}
		if campaigns == nil {
			campaigns = []storage.Campaign{}
		}
		writeJSON(w, http.StatusOK, campaigns)
	}
}

func handleGetCampaign(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Store.GetCampaign(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "campaign not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get campaign: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func handleCreateInfluencer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Handle     string                `json:"handle"`
			Platform   string                `json:"platform"`
			Categories []string              `json:"categories"`
			Competence map[string]float64    `json:"competence"`
			Stability  storage.Stability     `json:"stability"`
			Activity   storage.Activity      `json:"activity"`
			Pricing    storage.Pricing       `json:"pricing"`
			Instagram  storage.InstagramLink `json:"instagram"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Handle) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "handle is required")
			return
		}
		if req.Platform == "" {
			req.Platform = "instagram"
		}
		if req.Platform != "instagram" && req.Platform != "youtube" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "platform must be instagram or youtube")
			return
		}

		inf := storage.Influencer{
			ID:         uuid.New().String(),
			Handle:     req.Handle,
			Platform:   req.Platform,
			Categories: req.Categories,
			Competence: req.Competence,
			Stability:  req.Stability,
			Activity:   req.Activity,
			Pricing:    req.Pricing,
			Instagram:  req.Instagram,
			CreatedAt:  time.Now().UTC(),
		}
		if err := deps.Store.CreateInfluencer(inf); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create influencer: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, inf)
	}
}

func handleListInfluencers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 200)
		influencers, err := deps.Store.ListInfluencers(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list influencers: %v", err)
			return
		}
		if influencers == nil {
			influencers = []storage.Influencer{}
		}
		writeJSON(w, http.StatusOK, influencers)
	}
}

func handleGetInfluencer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inf, err := deps.Store.GetInfluencer(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "influencer not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get influencer: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, inf)
	}
}

func handleInstagramRefresh(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "influencerId")
		result, err := deps.Registry.Invoke(r.Context(), capability.NameInstagramRefresh, map[string]any{
			"influencerId": id,
		})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "influencer not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "refresh failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleParseBrief(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
		var req struct {
			Brief     string `json:"brief"`
			PDFBase64 string `json:"pdfBase64"`
			URL       string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		brief := req.Brief
		switch {
		case brief != "":
		case req.PDFBase64 != "":
			data, err := base64.StdEncoding.DecodeString(req.PDFBase64)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 pdf content")
				return
			}
			brief, err = drafts.TextFromPDF(data)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "could not read pdf: %v", err)
				return
			}
		case req.URL != "":
			var err error
			brief, err = drafts.TextFromURL(r.Context(), deps.HTTPClient, req.URL)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "could not fetch brief: %v", err)
				return
			}
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "one of brief, pdfBase64, or url is required")
			return
		}

		if len(strings.TrimSpace(brief)) < drafts.MinBriefLength {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "brief must be at least %d characters", drafts.MinBriefLength)
			return
		}

		draft, err := deps.Drafts.Parse(r.Context(), brief)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "brief parsing failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "draft": draft})
	}
}

func handleListModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := deps.Models.ListModels(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to list models: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": models})
	}
}
