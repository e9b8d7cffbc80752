package drafts

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/castmatch/castmatch/internal/llm"
)

type chatFunc func(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error)

func (f chatFunc) ChatJSON(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error) {
	return f(ctx, messages, temperature)
}

const validDraftJSON = `{
	"title": "Summer Skincare Launch",
	"categories": ["beauty", "skincare"],
	"requiredSkills": [],
	"deliverables": {"reel": 2, "post": 1, "story": 0},
	"budget": {"currency": "INR", "min": 5000, "max": 20000},
	"constraints": {"platforms": ["instagram"], "minStabilityOverall": 60, "maxTrendDependence": 100, "maxAuthenticityRisk": 100},
	"notes": ["Prefers clean aesthetic", "No competitor mentions"]
}`

func TestParseValidDraft(t *testing.T) {
	chat := chatFunc(func(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error) {
		return json.RawMessage(validDraftJSON), nil
	})

	draft, err := NewService(chat).Parse(context.Background(), "We are launching a summer skincare line and need reels from beauty creators.")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if draft.Title != "Summer Skincare Launch" {
		t.Errorf("title = %q", draft.Title)
	}

	// Skills follow the requested deliverables.
	wantSkills := []string{"reels", "post"}
	if len(draft.RequiredSkills) != len(wantSkills) {
		t.Fatalf("skills = %v, want %v", draft.RequiredSkills, wantSkills)
	}
	for i, s := range wantSkills {
		if draft.RequiredSkills[i] != s {
			t.Errorf("skills[%d] = %q, want %q", i, draft.RequiredSkills[i], s)
		}
	}

	// Notes keep the model's entries and add the deterministic summary.
	if len(draft.Notes) < 4 {
		t.Fatalf("notes = %v", draft.Notes)
	}
	if draft.Notes[0] != "Prefers clean aesthetic" {
		t.Errorf("model notes must come first, got %v", draft.Notes)
	}
	joined := strings.Join(draft.Notes, "\n")
	for _, want := range []string{"Deliverables: 2 reel(s), 1 post(s), 0 story(ies).", "Budget: INR 5000-20000.", "minStabilityOverall >= 60", "Target categories: beauty, skincare."} {
		if !strings.Contains(joined, want) {
			t.Errorf("notes missing %q:\n%s", want, joined)
		}
	}
}

func TestParseRepairsInvalidDraftOnce(t *testing.T) {
	var calls int
	chat := chatFunc(func(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error) {
		calls++
		if calls == 1 {
			return json.RawMessage(`{"title":"","categories":[]}`), nil
		}
		if !strings.Contains(messages[1].Content, "title: must be a non-empty string") {
			t.Errorf("repair prompt missing violations: %s", messages[1].Content)
		}
		return json.RawMessage(validDraftJSON), nil
	})

	draft, err := NewService(chat).Parse(context.Background(), "A long enough brief for the beauty campaign.")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if calls != 2 {
		t.Fatalf("chat calls = %d, want 2", calls)
	}
	if draft.Title == "" {
		t.Error("repaired draft not used")
	}
}

func TestParseFailsAfterSecondInvalidDraft(t *testing.T) {
	chat := chatFunc(func(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error) {
		return json.RawMessage(`{"title":"","categories":[]}`), nil
	})
	_, err := NewService(chat).Parse(context.Background(), "A long enough brief for the beauty campaign.")
	if err == nil || !strings.Contains(err.Error(), "after repair") {
		t.Fatalf("expected terminal validation error, got %v", err)
	}
}

func TestParseRejectsShortBriefs(t *testing.T) {
	chat := chatFunc(func(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error) {
		t.Fatal("model must not be called for short briefs")
		return nil, nil
	})
	if _, err := NewService(chat).Parse(context.Background(), "too short"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPostProcessDefaults(t *testing.T) {
	d := postProcess(Draft{Title: "Minimal", Categories: []string{"fitness"}})
	if d.Budget.Currency != "INR" {
		t.Errorf("currency = %q", d.Budget.Currency)
	}
	if len(d.Constraints.Platforms) != 1 || d.Constraints.Platforms[0] != "instagram" {
		t.Errorf("platforms = %v", d.Constraints.Platforms)
	}
	if d.Constraints.MaxTrendDependence != 100 || d.Constraints.MaxAuthenticityRisk != 100 {
		t.Errorf("constraint ceilings = %g/%g", d.Constraints.MaxTrendDependence, d.Constraints.MaxAuthenticityRisk)
	}
	if len(d.Notes) == 0 {
		t.Error("notes must never be empty")
	}
	if len(d.RequiredSkills) != 0 {
		t.Errorf("zero deliverables must add no skills, got %v", d.RequiredSkills)
	}
}

func TestStripHTML(t *testing.T) {
	doc := `<html><head><style>body{color:red}</style><script>alert(1)</script></head>
		<body><h1>Campaign Brief</h1><p>We need   two reels.</p></body></html>`
	got := StripHTML(doc)
	want := "Campaign Brief We need two reels."
	if got != want {
		t.Errorf("StripHTML = %q, want %q", got, want)
	}
}
