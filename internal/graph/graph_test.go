package graph

import (
	"testing"

	"github.com/castmatch/castmatch/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store)
}

func TestInteractionDelta(t *testing.T) {
	tests := []struct {
		action string
		want   float64
	}{
		{"hire", 0.25},
		{"shortlist", 0.10},
		{"message", 0.06},
		{"view", 0.02},
		{"reject", -0.05},
		{"unknown", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := InteractionDelta(tt.action); got != tt.want {
			t.Errorf("InteractionDelta(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestBumpInteractionAccumulates(t *testing.T) {
	svc := newTestService(t)

	if err := svc.BumpInteraction("camp-1", "inf-1", "shortlist"); err != nil {
		t.Fatal(err)
	}
	if err := svc.BumpInteraction("camp-1", "inf-1", "hire"); err != nil {
		t.Fatal(err)
	}
	if err := svc.BumpInteraction("camp-1", "inf-1", "reject"); err != nil {
		t.Fatal(err)
	}

	weights, err := svc.InteractionWeights("camp-1")
	if err != nil {
		t.Fatal(err)
	}
	// 0.10 + 0.25 - 0.05
	if got := weights["inf-1"]; !closeTo(got, 0.30) {
		t.Fatalf("weight = %v, want 0.30", got)
	}
}

func TestInteractionWeightsAreScopedToCampaign(t *testing.T) {
	svc := newTestService(t)

	if err := svc.BumpInteraction("camp-1", "inf-1", "hire"); err != nil {
		t.Fatal(err)
	}
	if err := svc.BumpInteraction("camp-2", "inf-1", "view"); err != nil {
		t.Fatal(err)
	}

	weights, err := svc.InteractionWeights("camp-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(weights) != 1 || !closeTo(weights["inf-1"], 0.25) {
		t.Fatalf("weights = %v, want only camp-1's edge", weights)
	}
}

func TestQueryFiltersEdges(t *testing.T) {
	svc := newTestService(t)

	if err := svc.BumpInteraction("camp-1", "inf-1", "hire"); err != nil {
		t.Fatal(err)
	}
	if err := svc.BumpInteraction("camp-1", "inf-2", "view"); err != nil {
		t.Fatal(err)
	}
	if err := svc.BumpInteraction("camp-2", "inf-1", "shortlist"); err != nil {
		t.Fatal(err)
	}

	edges, err := svc.Query(storage.EdgeFilter{SrcType: TypeCampaign, SrcID: "camp-1"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}
	for _, e := range edges {
		if e.SrcID != "camp-1" || e.Reason != ReasonInteraction {
			t.Errorf("unexpected edge in filtered result: %+v", e)
		}
	}

	byDst, err := svc.Query(storage.EdgeFilter{DstID: "inf-1"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byDst) != 2 {
		t.Fatalf("dst filter returned %d edges, want 2", len(byDst))
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
