// Package indexes derives the 0–100 stability index family from a raw
// engagement snapshot.
package indexes

import (
	"math"

	"github.com/castmatch/castmatch/internal/storage"
)

// Normalization anchors for the proxy signals. An engagement-rate standard
// deviation of 0.02 maps to full volatility; a saves/views ratio of 1% maps
// to full monetization readiness.
const (
	volatilityScale   = 0.02
	saveRatioStrength = 0.01
)

// Indexes are the snapshot-derived engagement metrics, each 0..100.
type Indexes struct {
	Stability             int `json:"stability"`
	Volatility            int `json:"volatility"`
	TrendDependence       int `json:"trendDependence"`
	AudienceMemory        int `json:"audienceMemory"`
	MonetizationReadiness int `json:"monetizationReadiness"`
}

// Compute derives the index family from one snapshot. Per-post engagement
// rate is (likes+comments+saves)/followers; its spread drives volatility and
// everything derived from it.
func Compute(s storage.Snapshot) Indexes {
	followers := float64(s.Profile.FollowersCount)
	if followers < 1 {
		followers = 1
	}

	rates := make([]float64, len(s.Posts))
	for i, p := range s.Posts {
		rates[i] = float64(p.Likes+p.Comments+p.Saves) / followers
	}

	vol01 := clamp01(std(rates) / volatilityScale)
	volatility := round100(vol01)
	stability := round100(1 - vol01)

	// Proxies until richer signals land: trend dependence tracks volatility,
	// audience memory its inverse.
	trendDependence := volatility
	audienceMemory := stability

	ratios := make([]float64, 0, len(s.Posts))
	for _, p := range s.Posts {
		if p.Views > 0 {
			ratios = append(ratios, float64(p.Saves)/float64(p.Views))
		} else {
			ratios = append(ratios, 0)
		}
	}
	monetization := round100(clamp01(mean(ratios) / saveRatioStrength))

	return Indexes{
		Stability:             stability,
		Volatility:            volatility,
		TrendDependence:       trendDependence,
		AudienceMemory:        audienceMemory,
		MonetizationReadiness: monetization,
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func std(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func round100(x float64) int {
	return int(math.Round(x * 100))
}
