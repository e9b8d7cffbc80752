package interactions

import (
	"testing"

	"github.com/castmatch/castmatch/internal/graph"
	"github.com/castmatch/castmatch/internal/storage"
)

func newTestService(t *testing.T) (*Service, *graph.Service) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	g := graph.NewService(store)
	return NewService(store, g), g
}

func TestDeterministicKey(t *testing.T) {
	a := DeterministicKey("camp-1", "inf-1", "brand", "shortlist")
	b := DeterministicKey("camp-1", "inf-1", "brand", "shortlist")
	if a != b {
		t.Fatalf("same inputs produced different keys: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(a))
	}

	variants := []string{
		DeterministicKey("camp-2", "inf-1", "brand", "shortlist"),
		DeterministicKey("camp-1", "inf-2", "brand", "shortlist"),
		DeterministicKey("camp-1", "inf-1", "influencer", "shortlist"),
		DeterministicKey("camp-1", "inf-1", "brand", "view"),
	}
	for _, v := range variants {
		if v == a {
			t.Fatalf("distinct inputs collided on %s", v)
		}
	}
}

func TestLogIsIdempotent(t *testing.T) {
	svc, g := newTestService(t)

	in := Input{
		CampaignID:   "camp-1",
		InfluencerID: "inf-1",
		ActorType:    "brand",
		Action:       "shortlist",
		Meta:         map[string]any{"source": "search"},
	}
	first, reused, err := svc.Log(in)
	if err != nil {
		t.Fatal(err)
	}
	if reused {
		t.Fatal("first log reported as reused")
	}

	second, reused, err := svc.Log(in)
	if err != nil {
		t.Fatal(err)
	}
	if !reused {
		t.Fatal("retry not recognized as idempotent")
	}
	if second.ID != first.ID {
		t.Fatalf("retry returned a different record: %s vs %s", second.ID, first.ID)
	}

	weights, err := g.InteractionWeights("camp-1")
	if err != nil {
		t.Fatal(err)
	}
	if w := weights["inf-1"]; w != 0.10 {
		t.Fatalf("edge weight = %v, want the shortlist delta exactly once", w)
	}
}

func TestLogDistinctActionsAccumulate(t *testing.T) {
	svc, g := newTestService(t)

	for _, action := range []string{"view", "shortlist", "hire"} {
		if _, _, err := svc.Log(Input{
			CampaignID: "camp-1", InfluencerID: "inf-1",
			ActorType: "brand", Action: action,
		}); err != nil {
			t.Fatal(err)
		}
	}

	weights, err := g.InteractionWeights("camp-1")
	if err != nil {
		t.Fatal(err)
	}
	// 0.02 + 0.10 + 0.25
	if w := weights["inf-1"]; w < 0.3699 || w > 0.3701 {
		t.Fatalf("edge weight = %v, want 0.37", w)
	}
}

func TestLogHonorsCallerKey(t *testing.T) {
	svc, _ := newTestService(t)

	in := Input{
		CampaignID: "camp-1", InfluencerID: "inf-1",
		ActorType: "brand", Action: "message",
		IdempotencyKey: "caller-key",
	}
	first, _, err := svc.Log(in)
	if err != nil {
		t.Fatal(err)
	}
	if first.IdempotencyKey != "caller-key" {
		t.Fatalf("stored key = %s", first.IdempotencyKey)
	}

	// A different caller key makes an otherwise identical interaction a new
	// record.
	in.IdempotencyKey = "caller-key-2"
	second, reused, err := svc.Log(in)
	if err != nil {
		t.Fatal(err)
	}
	if reused || second.ID == first.ID {
		t.Fatalf("distinct caller keys collapsed: %+v vs %+v", first, second)
	}
}

func TestValidators(t *testing.T) {
	if !ValidActorType("brand") || !ValidActorType("influencer") || ValidActorType("robot") {
		t.Error("actor type validation wrong")
	}
	if !ValidAction("hire") || ValidAction("poke") {
		t.Error("action validation wrong")
	}
}
