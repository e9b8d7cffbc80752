package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// --- Campaigns ---

func (s *Store) CreateCampaign(c Campaign) error {
	_, err := s.db.Exec(`
		INSERT INTO campaigns (id, title, categories, required_skills,
			deliverable_reel, deliverable_post, deliverable_story,
			budget_currency, budget_min, budget_max,
			platforms, min_stability, max_trend_dependence, max_authenticity_risk,
			created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title,
		marshalJSONColumn(c.Categories, "[]"), marshalJSONColumn(c.RequiredSkills, "[]"),
		c.Deliverables.Reel, c.Deliverables.Post, c.Deliverables.Story,
		c.Budget.Currency, c.Budget.Min, c.Budget.Max,
		marshalJSONColumn(c.Constraints.Platforms, `["instagram"]`),
		c.Constraints.MinStabilityOverall, c.Constraints.MaxTrendDependence, c.Constraints.MaxAuthenticityRisk,
		formatTime(c.CreatedAt),
	)
	return err
}

func scanCampaign(row interface{ Scan(...any) error }) (Campaign, error) {
	var c Campaign
	var categories, skills, platforms, createdAt string
	err := row.Scan(&c.ID, &c.Title, &categories, &skills,
		&c.Deliverables.Reel, &c.Deliverables.Post, &c.Deliverables.Story,
		&c.Budget.Currency, &c.Budget.Min, &c.Budget.Max,
		&platforms, &c.Constraints.MinStabilityOverall,
		&c.Constraints.MaxTrendDependence, &c.Constraints.MaxAuthenticityRisk,
		&createdAt)
	if err != nil {
		return Campaign{}, err
	}
	if err := json.Unmarshal([]byte(categories), &c.Categories); err != nil {
		return Campaign{}, fmt.Errorf("parsing categories: %w", err)
	}
	if err := json.Unmarshal([]byte(skills), &c.RequiredSkills); err != nil {
		return Campaign{}, fmt.Errorf("parsing required_skills: %w", err)
	}
	if err := json.Unmarshal([]byte(platforms), &c.Constraints.Platforms); err != nil {
		return Campaign{}, fmt.Errorf("parsing platforms: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Campaign{}, err
	}
	return c, nil
}

const campaignColumns = `id, title, categories, required_skills,
	deliverable_reel, deliverable_post, deliverable_story,
	budget_currency, budget_min, budget_max,
	platforms, min_stability, max_trend_dependence, max_authenticity_risk,
	created_at`

func (s *Store) GetCampaign(id string) (Campaign, error) {
	row := s.db.QueryRow(`SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return Campaign{}, ErrNotFound
	}
	return c, err
}

func (s *Store) ListCampaigns(limit int) ([]Campaign, error) {
	rows, err := s.db.Query(`SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *Store) CountCampaigns() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM campaigns`).Scan(&n)
	return n, err
}

// --- Influencers ---

func (s *Store) CreateInfluencer(i Influencer) error {
	var lastPost any
	if i.Activity.LastPostAt != nil {
		lastPost = formatTime(*i.Activity.LastPostAt)
	}
	_, err := s.db.Exec(`
		INSERT INTO influencers (id, handle, platform, categories, competence,
			stability_overall, volatility, trend_dependence, audience_memory,
			monetization_readiness, authenticity_risk,
			last_post_at, posts_last_30d,
			pricing_currency, price_reel, price_post, price_story,
			ig_user_id, ig_source_mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Handle, i.Platform,
		marshalJSONColumn(i.Categories, "[]"), marshalJSONColumn(i.Competence, "{}"),
		i.Stability.Overall, i.Stability.Volatility, i.Stability.TrendDependence,
		i.Stability.AudienceMemory, i.Stability.MonetizationReadiness, i.Stability.AuthenticityRisk,
		lastPost, i.Activity.PostsLast30d,
		i.Pricing.Currency, i.Pricing.Reel, i.Pricing.Post, i.Pricing.Story,
		i.Instagram.IGUserID, i.Instagram.SourceMode,
		formatTime(i.CreatedAt),
	)
	return err
}

const influencerColumns = `id, handle, platform, categories, competence,
	stability_overall, volatility, trend_dependence, audience_memory,
	monetization_readiness, authenticity_risk,
	last_post_at, posts_last_30d,
	pricing_currency, price_reel, price_post, price_story,
	ig_user_id, ig_source_mode, created_at`

func scanInfluencer(row interface{ Scan(...any) error }) (Influencer, error) {
	var i Influencer
	var categories, competence, createdAt string
	var lastPost sql.NullString
	err := row.Scan(&i.ID, &i.Handle, &i.Platform, &categories, &competence,
		&i.Stability.Overall, &i.Stability.Volatility, &i.Stability.TrendDependence,
		&i.Stability.AudienceMemory, &i.Stability.MonetizationReadiness, &i.Stability.AuthenticityRisk,
		&lastPost, &i.Activity.PostsLast30d,
		&i.Pricing.Currency, &i.Pricing.Reel, &i.Pricing.Post, &i.Pricing.Story,
		&i.Instagram.IGUserID, &i.Instagram.SourceMode, &createdAt)
	if err != nil {
		return Influencer{}, err
	}
	if err := json.Unmarshal([]byte(categories), &i.Categories); err != nil {
		return Influencer{}, fmt.Errorf("parsing categories: %w", err)
	}
	if err := json.Unmarshal([]byte(competence), &i.Competence); err != nil {
		return Influencer{}, fmt.Errorf("parsing competence: %w", err)
	}
	if lastPost.Valid && lastPost.String != "" {
		t, err := parseTime(lastPost.String)
		if err != nil {
			return Influencer{}, err
		}
		i.Activity.LastPostAt = &t
	}
	if i.CreatedAt, err = parseTime(createdAt); err != nil {
		return Influencer{}, err
	}
	return i, nil
}

func (s *Store) GetInfluencer(id string) (Influencer, error) {
	row := s.db.QueryRow(`SELECT `+influencerColumns+` FROM influencers WHERE id = ?`, id)
	i, err := scanInfluencer(row)
	if err == sql.ErrNoRows {
		return Influencer{}, ErrNotFound
	}
	return i, err
}

func (s *Store) ListInfluencers(limit int) ([]Influencer, error) {
	rows, err := s.db.Query(`SELECT `+influencerColumns+` FROM influencers ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInfluencers(rows)
}

// ListInfluencersByPlatforms returns influencers whose platform is in the
// given set, in insertion order. Category filtering happens in the ranking
// layer where the campaign is already loaded.
func (s *Store) ListInfluencersByPlatforms(platforms []string) ([]Influencer, error) {
	if len(platforms) == 0 {
		return nil, nil
	}
	placeholders := "?" + strings.Repeat(",?", len(platforms)-1)
	args := make([]any, len(platforms))
	for i, p := range platforms {
		args[i] = p
	}
	rows, err := s.db.Query(`SELECT `+influencerColumns+` FROM influencers
		WHERE platform IN (`+placeholders+`) ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInfluencers(rows)
}

func collectInfluencers(rows *sql.Rows) ([]Influencer, error) {
	var results []Influencer
	for rows.Next() {
		i, err := scanInfluencer(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, i)
	}
	return results, rows.Err()
}

func (s *Store) CountInfluencers() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM influencers`).Scan(&n)
	return n, err
}

// UpdateInfluencerIndexes overwrites the snapshot-derived stability and
// activity fields. Authenticity risk is not snapshot-derived and is left alone.
func (s *Store) UpdateInfluencerIndexes(id string, st Stability, lastPostAt *time.Time, postsLast30d int) error {
	var lastPost any
	if lastPostAt != nil {
		lastPost = formatTime(*lastPostAt)
	}
	res, err := s.db.Exec(`
		UPDATE influencers SET stability_overall = ?, volatility = ?,
			trend_dependence = ?, audience_memory = ?, monetization_readiness = ?,
			last_post_at = ?, posts_last_30d = ?
		WHERE id = ?`,
		st.Overall, st.Volatility, st.TrendDependence, st.AudienceMemory,
		st.MonetizationReadiness, lastPost, postsLast30d, id,
	)
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

// --- Snapshots ---

func (s *Store) SaveSnapshot(snap Snapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO ig_snapshots (id, influencer_id, source, captured_at, profile, posts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.InfluencerID, snap.Source, formatTime(snap.CapturedAt),
		marshalJSONColumn(snap.Profile, "{}"), marshalJSONColumn(snap.Posts, "[]"),
	)
	return err
}

func (s *Store) LatestSnapshot(influencerID string) (Snapshot, error) {
	var snap Snapshot
	var capturedAt, profile, posts string
	err := s.db.QueryRow(`
		SELECT id, influencer_id, source, captured_at, profile, posts
		FROM ig_snapshots WHERE influencer_id = ?
		ORDER BY captured_at DESC LIMIT 1`, influencerID,
	).Scan(&snap.ID, &snap.InfluencerID, &snap.Source, &capturedAt, &profile, &posts)
	if err == sql.ErrNoRows {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	if snap.CapturedAt, err = parseTime(capturedAt); err != nil {
		return Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(profile), &snap.Profile); err != nil {
		return Snapshot{}, fmt.Errorf("parsing profile: %w", err)
	}
	if err := json.Unmarshal([]byte(posts), &snap.Posts); err != nil {
		return Snapshot{}, fmt.Errorf("parsing posts: %w", err)
	}
	return snap, nil
}
