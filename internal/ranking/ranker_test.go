package ranking

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/castmatch/castmatch/internal/graph"
	"github.com/castmatch/castmatch/internal/storage"
)

func newTestRanker(t *testing.T) (*Ranker, *storage.Store, *graph.Service) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	g := graph.NewService(store)
	return New(store, g), store, g
}

func seedCampaign(t *testing.T, store *storage.Store, c storage.Campaign) storage.Campaign {
	t.Helper()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := store.CreateCampaign(c); err != nil {
		t.Fatalf("creating campaign %s: %v", c.ID, err)
	}
	return c
}

func seedInfluencer(t *testing.T, store *storage.Store, i storage.Influencer) storage.Influencer {
	t.Helper()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	if err := store.CreateInfluencer(i); err != nil {
		t.Fatalf("creating influencer %s: %v", i.ID, err)
	}
	return i
}

func fitnessCampaign() storage.Campaign {
	return storage.Campaign{
		ID:             "camp-fit",
		Title:          "Fitness Reels Push",
		Categories:     []string{"fitness", "nutrition"},
		RequiredSkills: []string{"reels"},
		Deliverables:   storage.Deliverables{Reel: 1},
		Budget:         storage.Budget{Currency: "INR", Min: 10000, Max: 25000},
		Constraints:    storage.Constraints{Platforms: []string{"instagram"}},
	}
}

func fitnessInfluencer(id string) storage.Influencer {
	return storage.Influencer{
		ID:         id,
		Handle:     "fit_" + id,
		Platform:   "instagram",
		Categories: []string{"fitness", "nutrition"},
		Competence: map[string]float64{"reels": 85},
		Stability: storage.Stability{
			Overall:               70,
			AudienceMemory:        60,
			MonetizationReadiness: 50,
		},
		Pricing: storage.Pricing{Currency: "INR", Reel: 18000, Post: 9000},
	}
}

func TestRankInfluencersAppliesGraphBoost(t *testing.T) {
	ranker, store, g := newTestRanker(t)
	seedCampaign(t, store, fitnessCampaign())
	seedInfluencer(t, store, fitnessInfluencer("inf-1"))

	if err := g.BumpInteraction("camp-fit", "inf-1", "shortlist"); err != nil {
		t.Fatal(err)
	}

	ranking, err := ranker.RankInfluencersForCampaign(context.Background(), "camp-fit")
	if err != nil {
		t.Fatal(err)
	}
	if ranking.Total != 1 {
		t.Fatalf("total = %d, want 1", ranking.Total)
	}

	got := ranking.Results[0]
	if got.BaseScore != 69.8 {
		t.Errorf("baseScore = %v, want 69.8", got.BaseScore)
	}
	if got.GraphBoost != 2.0 {
		t.Errorf("graphBoost = %v, want 2.0 for a 0.10 edge", got.GraphBoost)
	}
	if got.Score != 71.8 {
		t.Errorf("score = %v, want 71.8", got.Score)
	}
	if len(got.Explanation) == 0 {
		t.Fatal("explanation missing")
	}
	last := got.Explanation[len(got.Explanation)-1]
	if last != "Graph boost: 2.0 (edgeWeight=0.10)" {
		t.Errorf("boost line = %q", last)
	}
}

func TestRankInfluencersOrdersByFinalScore(t *testing.T) {
	ranker, store, g := newTestRanker(t)
	seedCampaign(t, store, fitnessCampaign())

	base := time.Now().UTC()
	weak := fitnessInfluencer("inf-weak")
	weak.Competence = map[string]float64{"reels": 40}
	weak.CreatedAt = base
	seedInfluencer(t, store, weak)

	strong := fitnessInfluencer("inf-strong")
	strong.CreatedAt = base.Add(time.Second)
	seedInfluencer(t, store, strong)

	// A hired history on the weak candidate must not overcome a 12-point
	// static gap; order is still by final score.
	if err := g.BumpInteraction("camp-fit", "inf-weak", "view"); err != nil {
		t.Fatal(err)
	}

	ranking, err := ranker.RankInfluencersForCampaign(context.Background(), "camp-fit")
	if err != nil {
		t.Fatal(err)
	}
	if ranking.Total != 2 {
		t.Fatalf("total = %d, want 2", ranking.Total)
	}
	if ranking.Results[0].InfluencerID != "inf-strong" {
		t.Fatalf("top result = %s, want inf-strong", ranking.Results[0].InfluencerID)
	}
	if ranking.Results[0].Score <= ranking.Results[1].Score {
		t.Fatalf("scores not descending: %v", ranking.Results)
	}
}

func TestRankInfluencersIsDeterministic(t *testing.T) {
	ranker, store, g := newTestRanker(t)
	seedCampaign(t, store, fitnessCampaign())

	base := time.Now().UTC()
	for n, id := range []string{"inf-a", "inf-b", "inf-c"} {
		inf := fitnessInfluencer(id)
		inf.CreatedAt = base.Add(time.Duration(n) * time.Second)
		seedInfluencer(t, store, inf)
	}
	if err := g.BumpInteraction("camp-fit", "inf-b", "message"); err != nil {
		t.Fatal(err)
	}

	first, err := ranker.RankInfluencersForCampaign(context.Background(), "camp-fit")
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		again, err := ranker.RankInfluencersForCampaign(context.Background(), "camp-fit")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking changed between identical calls:\nfirst: %+v\nagain: %+v", first, again)
		}
	}
}

func TestRankInfluencersFiltersPlatformAndCategory(t *testing.T) {
	ranker, store, _ := newTestRanker(t)
	seedCampaign(t, store, fitnessCampaign())

	seedInfluencer(t, store, fitnessInfluencer("inf-match"))

	offPlatform := fitnessInfluencer("inf-youtube")
	offPlatform.Platform = "youtube"
	seedInfluencer(t, store, offPlatform)

	offCategory := fitnessInfluencer("inf-fashion")
	offCategory.Categories = []string{"fashion"}
	seedInfluencer(t, store, offCategory)

	ranking, err := ranker.RankInfluencersForCampaign(context.Background(), "camp-fit")
	if err != nil {
		t.Fatal(err)
	}
	if ranking.Total != 1 || ranking.Results[0].InfluencerID != "inf-match" {
		t.Fatalf("results = %+v, want only inf-match", ranking.Results)
	}
}

func TestRankInfluencersUnknownCampaign(t *testing.T) {
	ranker, _, _ := newTestRanker(t)
	_, err := ranker.RankInfluencersForCampaign(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRankCampaignsForInfluencer(t *testing.T) {
	ranker, store, _ := newTestRanker(t)
	seedInfluencer(t, store, fitnessInfluencer("inf-1"))

	seedCampaign(t, store, fitnessCampaign())

	fashion := fitnessCampaign()
	fashion.ID = "camp-fashion"
	fashion.Categories = []string{"fashion"}
	seedCampaign(t, store, fashion)

	ranking, err := ranker.RankCampaignsForInfluencer(context.Background(), "inf-1")
	if err != nil {
		t.Fatal(err)
	}
	if ranking.Total != 1 || ranking.Results[0].CampaignID != "camp-fit" {
		t.Fatalf("results = %+v, want only the overlapping campaign", ranking.Results)
	}
	// No graph term on this direction: static score only.
	if ranking.Results[0].Score != 69.8 {
		t.Errorf("score = %v, want 69.8", ranking.Results[0].Score)
	}
}

func TestRankCampaignsUnknownInfluencer(t *testing.T) {
	ranker, _, _ := newTestRanker(t)
	_, err := ranker.RankCampaignsForInfluencer(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGraphBoostClamp(t *testing.T) {
	tests := []struct {
		weight float64
		want   float64
	}{
		{0, 0},
		{0.10, 2},
		{0.25, 5},
		{5, 10},    // clamped high
		{-3, -10},  // clamped low
		{0.5, 10},  // exactly at the cap
		{-0.5, -10},
	}
	for _, tt := range tests {
		if got := GraphBoost(tt.weight); got != tt.want {
			t.Errorf("GraphBoost(%v) = %v, want %v", tt.weight, got, tt.want)
		}
	}
}
