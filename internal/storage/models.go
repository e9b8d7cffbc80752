package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with a unique constraint
// (idempotency key, run key, edge tuple). Callers treat it as "the record
// already exists" rather than a hard failure.
var ErrConflict = errors.New("already exists")

// Deliverables counts the content pieces a campaign asks for.
type Deliverables struct {
	Reel  int `json:"reel"`
	Post  int `json:"post"`
	Story int `json:"story"`
}

// Budget is a per-deliverable price range.
type Budget struct {
	Currency string  `json:"currency"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// Constraints narrow the candidate pool before scoring.
type Constraints struct {
	Platforms           []string `json:"platforms"`
	MinStabilityOverall float64  `json:"minStabilityOverall"`
	MaxTrendDependence  float64  `json:"maxTrendDependence"`
	MaxAuthenticityRisk float64  `json:"maxAuthenticityRisk"`
}

type Campaign struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Categories     []string     `json:"categories"`
	RequiredSkills []string     `json:"requiredSkills"`
	Deliverables   Deliverables `json:"deliverables"`
	Budget         Budget       `json:"budget"`
	Constraints    Constraints  `json:"constraints"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Stability holds the 0–100 engagement indexes derived from snapshots,
// plus authenticity risk on a 0–1 scale.
type Stability struct {
	Overall               float64 `json:"overall"`
	Volatility            float64 `json:"volatility"`
	TrendDependence       float64 `json:"trendDependence"`
	AudienceMemory        float64 `json:"audienceMemory"`
	MonetizationReadiness float64 `json:"monetizationReadiness"`
	AuthenticityRisk      float64 `json:"authenticityRisk"`
}

type Activity struct {
	LastPostAt   *time.Time `json:"lastPostAt"`
	PostsLast30d int        `json:"postsLast30d"`
}

type Pricing struct {
	Currency string  `json:"currency"`
	Reel     float64 `json:"reel"`
	Post     float64 `json:"post"`
	Story    float64 `json:"story"`
}

// InstagramLink ties an influencer record to its snapshot source.
type InstagramLink struct {
	IGUserID   string `json:"igUserId"`
	SourceMode string `json:"sourceMode"` // "mock", "connected", "discovery"
}

type Influencer struct {
	ID         string             `json:"id"`
	Handle     string             `json:"handle"`
	Platform   string             `json:"platform"` // "instagram" or "youtube"
	Categories []string           `json:"categories"`
	Competence map[string]float64 `json:"competence"` // skill -> 0..100
	Stability  Stability          `json:"stability"`
	Activity   Activity           `json:"activity"`
	Pricing    Pricing            `json:"pricing"`
	Instagram  InstagramLink      `json:"instagram"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// CompetenceFor returns the influencer's score for a skill, 0 when the
// skill is absent. All scoring goes through this accessor.
func (i Influencer) CompetenceFor(skill string) float64 {
	if i.Competence == nil {
		return 0
	}
	return i.Competence[skill]
}

// Edge is a weighted, reason-tagged directed link between two entities.
// At most one edge exists per (src, dst, reason) tuple.
type Edge struct {
	SrcType   string    `json:"srcType"`
	SrcID     string    `json:"srcId"`
	DstType   string    `json:"dstType"`
	DstID     string    `json:"dstId"`
	Reason    string    `json:"reason"`
	Weight    float64   `json:"weight"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EdgeFilter selects edges by optional fields. Zero values match everything.
type EdgeFilter struct {
	SrcType string
	SrcID   string
	DstType string
	DstID   string
	Reason  string
}

type Interaction struct {
	ID             string         `json:"id"`
	CampaignID     string         `json:"campaignId"`
	InfluencerID   string         `json:"influencerId"`
	ActorType      string         `json:"actorType"` // "brand" or "influencer"
	Action         string         `json:"action"`    // view|shortlist|message|hire|reject
	Meta           map[string]any `json:"meta"`
	IdempotencyKey string         `json:"idempotencyKey"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// SnapshotProfile is the account-level slice of an Instagram snapshot.
type SnapshotProfile struct {
	Username       string `json:"username"`
	FollowersCount int    `json:"followersCount"`
	FollowsCount   int    `json:"followsCount"`
	MediaCount     int    `json:"mediaCount"`
}

// SnapshotPost is one post's engagement counters.
type SnapshotPost struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Saves     int       `json:"saves"`
	Views     int       `json:"views"`
}

type Snapshot struct {
	ID           string          `json:"id"`
	InfluencerID string          `json:"influencerId"`
	Source       string          `json:"source"`
	CapturedAt   time.Time       `json:"capturedAt"`
	Profile      SnapshotProfile `json:"profile"`
	Posts        []SnapshotPost  `json:"posts"`
}

// Session statuses. Completed and failed are terminal.
const (
	SessionPending   = "pending"
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// Step is one executed capability call inside a session. Either Output or
// Error is set, never both.
type Step struct {
	Capability string          `json:"capability"`
	Input      map[string]any  `json:"input"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Session is the persisted ledger of one goal run, keyed by RunKey.
type Session struct {
	ID        string          `json:"id"`
	RunKey    string          `json:"runKey"`
	Goal      json.RawMessage `json:"goal"`
	Status    string          `json:"status"`
	Plan      []string        `json:"plan"`
	Steps     []Step          `json:"steps"`
	Final     json.RawMessage `json:"final,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
