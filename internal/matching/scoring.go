// Package matching computes the static compatibility score between a
// campaign and an influencer, with a human-readable explanation.
package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/castmatch/castmatch/internal/storage"
)

// Component weights. The five continuous components sum to 1.0; the budget
// term is an additive penalty, not a weighted component, so out-of-budget
// candidates still rank (just penalized, possibly below zero).
const (
	weightCategoryFit    = 0.30
	weightCompetenceFit  = 0.25
	weightStability      = 0.20
	weightAudienceMemory = 0.15
	weightMonetization   = 0.10

	budgetPenalty = 12.0

	// Neutral competence fit when the campaign declares no required skills.
	neutralCompetenceFit = 0.6
)

// Components are the normalized score inputs. All lie in [0,1]; BudgetFit is
// binary. Explanations are derived from Components alone so they can be
// regenerated without re-scoring.
type Components struct {
	CatFit         float64 `json:"catFit"`
	CompFit        float64 `json:"compFit"`
	Stability      float64 `json:"stability"`
	AudienceMemory float64 `json:"audienceMemory"`
	Monetization   float64 `json:"monetization"`
	BudgetFit      float64 `json:"budgetFit"`
}

// Result is a scored campaign/influencer pair.
type Result struct {
	Score      float64    `json:"score"`
	Components Components `json:"components"`
}

// Score computes the static compatibility score for one pair, rounded to one
// decimal.
func Score(c storage.Campaign, i storage.Influencer) Result {
	catFit := clamp01(jaccard(c.Categories, i.Categories))

	compFit := neutralCompetenceFit
	if len(c.RequiredSkills) > 0 {
		sum := 0.0
		for _, skill := range c.RequiredSkills {
			sum += clamp01(i.CompetenceFor(skill) / 100)
		}
		compFit = sum / float64(len(c.RequiredSkills))
	}

	stability := clamp01(i.Stability.Overall / 100)
	audienceMemory := clamp01(i.Stability.AudienceMemory / 100)
	monetization := clamp01(i.Stability.MonetizationReadiness / 100)

	// Budget fit uses the reel price when the campaign asks for a reel,
	// otherwise the post price.
	price := i.Pricing.Post
	if c.Deliverables.Reel > 0 {
		price = i.Pricing.Reel
	}
	budgetFit := 0.0
	if price > 0 && price >= c.Budget.Min && price <= c.Budget.Max {
		budgetFit = 1.0
	}

	score01 := weightCategoryFit*catFit +
		weightCompetenceFit*compFit +
		weightStability*stability +
		weightAudienceMemory*audienceMemory +
		weightMonetization*monetization

	score := 100*score01 - (1-budgetFit)*budgetPenalty

	return Result{
		Score: Round1(score),
		Components: Components{
			CatFit:         catFit,
			CompFit:        compFit,
			Stability:      stability,
			AudienceMemory: audienceMemory,
			Monetization:   monetization,
			BudgetFit:      budgetFit,
		},
	}
}

// Explain renders the ordered explanation lines for a scored pair. The
// campaign and influencer are only consulted for the shared-category line and
// for whether skills were required; everything else comes from comps.
func Explain(c storage.Campaign, i storage.Influencer, comps Components) []string {
	var out []string

	shared := intersect(c.Categories, i.Categories)
	if len(shared) > 0 {
		out = append(out, "Category overlap: "+strings.Join(shared, ", "))
	}
	if len(c.RequiredSkills) > 0 {
		out = append(out, fmt.Sprintf("Competence fit: %.0f%%", comps.CompFit*100))
	}
	out = append(out,
		fmt.Sprintf("Stability: %.0f%%", comps.Stability*100),
		fmt.Sprintf("Audience memory: %.0f%%", comps.AudienceMemory*100),
		fmt.Sprintf("Monetization readiness: %.0f%%", comps.Monetization*100),
	)
	if comps.BudgetFit > 0 {
		out = append(out, "Budget fit: Yes")
	} else {
		out = append(out, "Budget fit: No")
	}
	return out
}

// jaccard is set similarity over the two category lists. Both empty is
// defined as 0, not NaN.
func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	union := make(map[string]struct{}, len(setA)+len(setB))
	inter := 0
	for x := range setA {
		union[x] = struct{}{}
		if _, ok := setB[x]; ok {
			inter++
		}
	}
	for x := range setB {
		union[x] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}

// intersect preserves the order of a.
func intersect(a, b []string) []string {
	setB := toSet(b)
	var out []string
	seen := make(map[string]struct{})
	for _, x := range a {
		if _, dup := seen[x]; dup {
			continue
		}
		seen[x] = struct{}{}
		if _, ok := setB[x]; ok {
			out = append(out, x)
		}
	}
	return out
}

func toSet(xs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		set[x] = struct{}{}
	}
	return set
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Round1 rounds to one decimal place. Shared with the ranking layer so base
// and boosted scores round identically.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}
