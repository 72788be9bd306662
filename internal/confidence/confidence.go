// Package confidence scores how much trust the accumulated evidence earns at
// a given certification tier. The score is a pure function of the product
// context: a tier base rate, additive evidence boosts, then multiplicative
// coverage factors, clamped to [0,1] and rounded to two decimals. The
// constants and the application order are load-bearing; changing either
// changes published certification scores.
package confidence

import (
	"fmt"
	"math"
	"strings"

	"pfascert/internal/verification"
)

// Adjustment is one named step of the calculation, kept for auditability.
type Adjustment struct {
	Name   string  `json:"name"`
	Impact float64 `json:"impact"`
	Reason string  `json:"reason"`
}

// Breakdown explains a score step by step.
type Breakdown struct {
	Tier     int          `json:"tier"`
	Base     float64      `json:"base"`
	Boosts   []Adjustment `json:"boosts"`
	Coverage []Adjustment `json:"coverage"`
	Score    float64      `json:"score"`
	Level    Level        `json:"level"`
}

// Level buckets a score for display.
type Level struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Color string  `json:"color"`
	Min   float64 `json:"min"`
}

var baseByTier = map[int]float64{0: 0, 1: 0.5, 2: 0.7, 3: 0.85, 4: 0.95}

const recentEvidenceMonths = 6

// Calculate returns the confidence score for a context at a tier.
func Calculate(vctx *verification.Context, tier int) float64 {
	return CalculateWithBreakdown(vctx, tier).Score
}

// CalculateWithBreakdown computes the score and records every adjustment
// that contributed to it.
func CalculateWithBreakdown(vctx *verification.Context, tier int) *Breakdown {
	b := &Breakdown{
		Tier:     tier,
		Base:     baseByTier[tier],
		Boosts:   []Adjustment{},
		Coverage: []Adjustment{},
	}

	boost := 0.0
	for _, step := range boostSteps {
		if adj, ok := step(vctx); ok {
			boost += adj.Impact
			b.Boosts = append(b.Boosts, adj)
		}
	}

	coverage := 1.0
	for _, step := range coverageSteps {
		if adj, ok := step(vctx, tier); ok {
			coverage *= adj.Impact
			b.Coverage = append(b.Coverage, adj)
		}
	}

	score := (b.Base + boost) * coverage
	score = math.Round(score*100) / 100
	score = math.Max(0, math.Min(1, score))
	b.Score = score
	b.Level = LevelFor(score)
	return b
}

// boostSteps are additive and order-independent; each reports whether it
// applies. Impact is the addend.
var boostSteps = []func(*verification.Context) (Adjustment, bool){
	func(c *verification.Context) (Adjustment, bool) {
		if ev, _ := c.LatestLabReport(); ev == nil {
			return Adjustment{}, false
		}
		return Adjustment{
			Name:   "lab_report_present",
			Impact: 0.10,
			Reason: "an unexpired lab report backs the claim",
		}, true
	},
	func(c *verification.Context) (Adjustment, bool) {
		types := c.EvidenceTypes()
		if len(types) < 2 {
			return Adjustment{}, false
		}
		return Adjustment{
			Name:   "multiple_evidence_types",
			Impact: 0.05,
			Reason: fmt.Sprintf("%d distinct evidence types corroborate each other", len(types)),
		}, true
	},
	func(c *verification.Context) (Adjustment, bool) {
		if len(c.Evidence) == 0 {
			return Adjustment{}, false
		}
		cutoff := c.Now.AddDate(0, -recentEvidenceMonths, 0)
		for _, ev := range c.Evidence {
			if ev.ReceivedAt.Before(cutoff) {
				return Adjustment{}, false
			}
		}
		return Adjustment{
			Name:   "all_evidence_recent",
			Impact: 0.05,
			Reason: fmt.Sprintf("all evidence received within the last %d months", recentEvidenceMonths),
		}, true
	},
	func(c *verification.Context) (Adjustment, bool) {
		_, meta := c.LatestLabReport()
		if meta == nil || !strings.Contains(meta.Accreditation, "ISO 17025") {
			return Adjustment{}, false
		}
		return Adjustment{
			Name:   "iso_17025_accredited",
			Impact: 0.03,
			Reason: "the testing lab holds ISO 17025 accreditation",
		}, true
	},
}

// coverageSteps are multiplicative and order-dependent. Impact is the factor.
var coverageSteps = []func(*verification.Context, int) (Adjustment, bool){
	func(c *verification.Context, _ int) (Adjustment, bool) {
		_, meta := c.LatestLabReport()
		if meta == nil || meta.SampleUnits != 1 {
			return Adjustment{}, false
		}
		return Adjustment{
			Name:   "single_sample_unit",
			Impact: 0.9,
			Reason: "only one unit was sampled",
		}, true
	},
	func(c *verification.Context, _ int) (Adjustment, bool) {
		_, meta := c.LatestLabReport()
		if meta == nil || meta.SampleLots != 1 {
			return Adjustment{}, false
		}
		return Adjustment{
			Name:   "single_sample_lot",
			Impact: 0.95,
			Reason: "only one production lot was sampled",
		}, true
	},
	func(c *verification.Context, _ int) (Adjustment, bool) {
		_, meta := c.LatestLabReport()
		if meta == nil || meta.SampleUnits <= 2 || meta.SampleLots <= 1 {
			return Adjustment{}, false
		}
		return Adjustment{
			Name:   "robust_sampling",
			Impact: 1.05,
			Reason: fmt.Sprintf("%d units across %d lots sampled", meta.SampleUnits, meta.SampleLots),
		}, true
	},
	func(c *verification.Context, _ int) (Adjustment, bool) {
		_, meta := c.LatestLabReport()
		if meta == nil {
			return Adjustment{}, false
		}
		tested, untested := c.LabCoverage()
		total := len(tested) + len(untested)
		if total == 0 || len(untested) == 0 {
			return Adjustment{}, false
		}
		pct := float64(len(tested)) / float64(total)
		return Adjustment{
			Name:   "partial_lab_coverage",
			Impact: 0.85 + pct*0.15,
			Reason: fmt.Sprintf("lab report covers %d of %d food-contact components", len(tested), total),
		}, true
	},
	func(c *verification.Context, tier int) (Adjustment, bool) {
		if tier == 0 {
			return Adjustment{}, false
		}
		if ev, _ := c.LatestLabReport(); ev != nil {
			return Adjustment{}, false
		}
		return Adjustment{
			Name:   "no_lab_testing",
			Impact: 0.85,
			Reason: "no lab report backs the claim",
		}, true
	},
	func(c *verification.Context, _ int) (Adjustment, bool) {
		fc := c.FoodContactComponents()
		if len(fc) == 0 {
			return Adjustment{}, false
		}
		documented := 0
		for _, comp := range fc {
			if comp.MaterialID != "" {
				documented++
			}
		}
		if documented == len(fc) {
			return Adjustment{}, false
		}
		pct := float64(documented) / float64(len(fc))
		return Adjustment{
			Name:   "incomplete_material_documentation",
			Impact: 0.8 + pct*0.2,
			Reason: fmt.Sprintf("%d of %d food-contact components have a documented material", documented, len(fc)),
		}, true
	},
}

var levels = []Level{
	{Name: "very_high", Label: "Very High Confidence", Color: "#1a7f37", Min: 0.90},
	{Name: "high", Label: "High Confidence", Color: "#2da44e", Min: 0.75},
	{Name: "moderate", Label: "Moderate Confidence", Color: "#bf8700", Min: 0.60},
	{Name: "low", Label: "Low Confidence", Color: "#d1242f", Min: 0.40},
	{Name: "very_low", Label: "Very Low Confidence", Color: "#82071e", Min: 0},
}

// LevelFor buckets a score into its display level.
func LevelFor(score float64) Level {
	for _, l := range levels {
		if score >= l.Min {
			return l
		}
	}
	return levels[len(levels)-1]
}
