// Package drafts turns free-form brand briefs into structured campaign
// drafts. The LLM fills a fixed JSON template; validation and a single
// repair round keep the output inside the template, and deterministic
// post-processing makes the draft usable even when the model is terse.
package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/castmatch/castmatch/internal/llm"
	"github.com/castmatch/castmatch/internal/storage"
)

// MinBriefLength is the shortest brief worth sending to the model.
const MinBriefLength = 10

// Draft is a campaign in template form, before persistence.
type Draft struct {
	Title          string               `json:"title"`
	Categories     []string             `json:"categories"`
	RequiredSkills []string             `json:"requiredSkills"`
	Deliverables   storage.Deliverables `json:"deliverables"`
	Budget         storage.Budget       `json:"budget"`
	Constraints    storage.Constraints  `json:"constraints"`
	Notes          []string             `json:"notes"`
}

const draftTemplate = `{
  "title": "",
  "categories": [],
  "requiredSkills": [],
  "deliverables": { "reel": 0, "post": 0, "story": 0 },
  "budget": { "currency": "INR", "min": 0, "max": 0 },
  "constraints": {
    "platforms": ["instagram"],
    "minStabilityOverall": 0,
    "maxTrendDependence": 100,
    "maxAuthenticityRisk": 100
  },
  "notes": []
}`

// ChatClient is the LLM collaborator used for draft extraction.
type ChatClient interface {
	ChatJSON(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error)
}

// Service converts briefs into drafts.
type Service struct {
	chat ChatClient
}

func NewService(chat ChatClient) *Service {
	return &Service{chat: chat}
}

// Parse extracts a draft from a brief. A draft that fails validation gets
// one repair round with the violations quoted back to the model; a second
// failure is terminal.
func (s *Service) Parse(ctx context.Context, brief string) (Draft, error) {
	brief = strings.TrimSpace(brief)
	if len(brief) < MinBriefLength {
		return Draft{}, fmt.Errorf("brief must be at least %d characters", MinBriefLength)
	}

	system := `You convert a brand brief into a JSON object that matches EXACTLY this template.

Rules:
- Return ONLY JSON (no markdown, no comments, no extra keys).
- Keep the same keys and nested structure as the template.
- Fill missing info with sensible defaults.
- deliverables.reel/post/story MUST be integers.
- categories MUST be a non-empty array of strings.
- title MUST be a non-empty string.
- constraints.platforms can only include "instagram" and/or "youtube".
- IMPORTANT: notes MUST contain 2 to 5 short strings summarizing preferences/constraints from the brief.
Output must be valid JSON.

Template:
` + draftTemplate

	raw, err := s.chat.ChatJSON(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: brief},
	}, 0)
	if err != nil {
		return Draft{}, fmt.Errorf("extracting draft: %w", err)
	}

	draft, violations := decodeDraft(raw)
	if len(violations) == 0 {
		return postProcess(draft), nil
	}

	repairSystem := `Fix the JSON to match the template EXACTLY.
Return ONLY valid JSON.
No extra keys.
Remember: notes must be 2 to 5 short strings.`

	repairUser := fmt.Sprintf(`Template:
%s

The JSON you produced:
%s

Validation errors:
%s

Return corrected JSON only.`, draftTemplate, raw, strings.Join(violations, "; "))

	repaired, err := s.chat.ChatJSON(ctx, []llm.Message{
		{Role: "system", Content: repairSystem},
		{Role: "user", Content: repairUser},
	}, 0)
	if err != nil {
		return Draft{}, fmt.Errorf("repairing draft: %w", err)
	}

	draft, violations = decodeDraft(repaired)
	if len(violations) > 0 {
		return Draft{}, fmt.Errorf("draft failed validation after repair: %s", strings.Join(violations, "; "))
	}
	return postProcess(draft), nil
}

func decodeDraft(raw json.RawMessage) (Draft, []string) {
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, []string{fmt.Sprintf("invalid JSON: %v", err)}
	}
	return d, validateDraft(d)
}

func validateDraft(d Draft) []string {
	var violations []string
	if strings.TrimSpace(d.Title) == "" {
		violations = append(violations, "title: must be a non-empty string")
	}
	if len(d.Categories) == 0 {
		violations = append(violations, "categories: must be a non-empty array")
	}
	for _, c := range d.Categories {
		if strings.TrimSpace(c) == "" {
			violations = append(violations, "categories: entries must be non-empty")
			break
		}
	}
	if d.Deliverables.Reel < 0 || d.Deliverables.Post < 0 || d.Deliverables.Story < 0 {
		violations = append(violations, "deliverables: counts must be non-negative")
	}
	if d.Budget.Min < 0 || d.Budget.Max < 0 {
		violations = append(violations, "budget: min and max must be non-negative")
	}
	for _, p := range d.Constraints.Platforms {
		if p != "instagram" && p != "youtube" {
			violations = append(violations, fmt.Sprintf("constraints.platforms: unknown platform %q", p))
		}
	}
	if v := d.Constraints.MinStabilityOverall; v < 0 || v > 100 {
		violations = append(violations, "constraints.minStabilityOverall: must be 0..100")
	}
	if v := d.Constraints.MaxTrendDependence; v < 0 || v > 100 {
		violations = append(violations, "constraints.maxTrendDependence: must be 0..100")
	}
	if v := d.Constraints.MaxAuthenticityRisk; v < 0 || v > 100 {
		violations = append(violations, "constraints.maxAuthenticityRisk: must be 0..100")
	}
	return violations
}

// postProcess applies the deterministic cleanups: skills aligned to
// deliverables, defaults filled, and notes guaranteed non-empty with a
// summary of deliverables, budget, constraints, and categories.
func postProcess(d Draft) Draft {
	if d.Budget.Currency == "" {
		d.Budget.Currency = "INR"
	}
	if len(d.Constraints.Platforms) == 0 {
		d.Constraints.Platforms = []string{"instagram"}
	}
	if d.Constraints.MaxTrendDependence == 0 {
		d.Constraints.MaxTrendDependence = 100
	}
	if d.Constraints.MaxAuthenticityRisk == 0 {
		d.Constraints.MaxAuthenticityRisk = 100
	}

	skills := d.RequiredSkills
	if d.Deliverables.Reel > 0 {
		skills = append(skills, "reels")
	}
	if d.Deliverables.Post > 0 {
		skills = append(skills, "post")
	}
	if d.Deliverables.Story > 0 {
		skills = append(skills, "story")
	}
	d.RequiredSkills = dedupe(skills)

	notes := append([]string(nil), d.Notes...)
	notes = append(notes,
		fmt.Sprintf("Deliverables: %d reel(s), %d post(s), %d story(ies).",
			d.Deliverables.Reel, d.Deliverables.Post, d.Deliverables.Story),
		fmt.Sprintf("Budget: %s %g-%g.", d.Budget.Currency, d.Budget.Min, d.Budget.Max),
	)
	if d.Constraints.MinStabilityOverall > 0 {
		notes = append(notes, fmt.Sprintf("Prefer stable engagement (minStabilityOverall >= %g).", d.Constraints.MinStabilityOverall))
	}
	if d.Constraints.MaxTrendDependence < 100 {
		notes = append(notes, fmt.Sprintf("Avoid trend-only creators (maxTrendDependence <= %g).", d.Constraints.MaxTrendDependence))
	}
	if d.Constraints.MaxAuthenticityRisk < 100 {
		notes = append(notes, fmt.Sprintf("Low authenticity risk preferred (maxAuthenticityRisk <= %g).", d.Constraints.MaxAuthenticityRisk))
	}
	if len(d.Categories) > 0 {
		notes = append(notes, fmt.Sprintf("Target categories: %s.", strings.Join(d.Categories, ", ")))
	}
	d.Notes = dedupe(notes)

	return d
}

// dedupe trims, drops empties, and keeps the first occurrence of each entry.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
