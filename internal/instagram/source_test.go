package instagram

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMockSourceReadsFixture(t *testing.T) {
	dir := t.TempDir()
	fixture := `{
		"profile": {"username": "dailybitesblr", "followersCount": 42000, "followsCount": 300, "mediaCount": 210},
		"posts": [
			{"id": "p1", "timestamp": "2026-08-20T09:00:00Z", "likes": 1200, "comments": 80, "saves": 150, "views": 30000}
		]
	}`
	if err := os.WriteFile(filepath.Join(dir, "ig_dailybites.json"), []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewMockSource(dir)
	payload, err := src.FetchSnapshot(context.Background(), "dailybites")
	if err != nil {
		t.Fatal(err)
	}

	if payload.Source != "mock" {
		t.Errorf("source = %s", payload.Source)
	}
	if payload.CapturedAt.IsZero() {
		t.Error("capturedAt not stamped")
	}
	if payload.Profile.Username != "dailybitesblr" || payload.Profile.FollowersCount != 42000 {
		t.Errorf("profile = %+v", payload.Profile)
	}
	if len(payload.Posts) != 1 || payload.Posts[0].Likes != 1200 {
		t.Errorf("posts = %+v", payload.Posts)
	}
}

func TestMockSourceMissingFixture(t *testing.T) {
	src := NewMockSource(t.TempDir())
	if _, err := src.FetchSnapshot(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

func TestMockSourceBadFixture(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ig_bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewMockSource(dir)
	if _, err := src.FetchSnapshot(context.Background(), "bad"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewMockSourceDefaultDir(t *testing.T) {
	src := NewMockSource("")
	if src.FixturesDir != "fixtures" {
		t.Fatalf("default dir = %s", src.FixturesDir)
	}
}
