// Package instagram abstracts the snapshot source for influencer profile and
// post statistics. The mock source reads fixture files; a connected OAuth
// source can be dropped in behind the same interface.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/castmatch/castmatch/internal/storage"
)

// SnapshotPayload is what a source returns for one account.
type SnapshotPayload struct {
	Source     string                  `json:"source"` // "mock", "connected", "discovery"
	CapturedAt time.Time               `json:"capturedAt"`
	Profile    storage.SnapshotProfile `json:"profile"`
	Posts      []storage.SnapshotPost  `json:"posts"`
}

// Source fetches the latest snapshot for an Instagram user id.
type Source interface {
	FetchSnapshot(ctx context.Context, igUserID string) (SnapshotPayload, error)
}

// MockSource reads snapshots from fixture files named ig_<igUserID>.json in
// a fixtures directory.
type MockSource struct {
	FixturesDir string
}

func NewMockSource(fixturesDir string) *MockSource {
	if fixturesDir == "" {
		fixturesDir = "fixtures"
	}
	return &MockSource{FixturesDir: fixturesDir}
}

func (m *MockSource) FetchSnapshot(_ context.Context, igUserID string) (SnapshotPayload, error) {
	file := filepath.Join(m.FixturesDir, fmt.Sprintf("ig_%s.json", igUserID))
	raw, err := os.ReadFile(file)
	if err != nil {
		return SnapshotPayload{}, fmt.Errorf("reading snapshot fixture: %w", err)
	}

	var payload struct {
		Profile storage.SnapshotProfile `json:"profile"`
		Posts   []storage.SnapshotPost  `json:"posts"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return SnapshotPayload{}, fmt.Errorf("parsing snapshot fixture %s: %w", file, err)
	}

	return SnapshotPayload{
		Source:     "mock",
		CapturedAt: time.Now().UTC(),
		Profile:    payload.Profile,
		Posts:      payload.Posts,
	}, nil
}
