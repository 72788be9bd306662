// Package verification assembles a read-only snapshot of everything known
// about a product and evaluates the ordered certification tiers against it.
// Evaluation is pure over the snapshot, so concurrent runs for the same
// product are idempotent and need no locking.
package verification

import (
	"sort"
	"time"

	"pfascert/internal/catalog"
	"pfascert/internal/evidence/models"
	id "pfascert/pkg/domain"
)

// Context is the aggregate the tier checks, confidence scoring, and unknowns
// generation all consume. Built once per evaluation; never mutated by checks.
type Context struct {
	Product    catalog.Product
	Components []catalog.Component
	Evidence   []models.Evidence
	RiskTerms  []catalog.RiskTerm
	History    []catalog.VerificationRecord
	NextReview *catalog.NextReview

	// Tier pass flags, set by the engine as tiers are cleared. Gate checks
	// of the next tier read them.
	Tier1Passed bool
	Tier2Passed bool
	Tier3Passed bool

	// Now anchors every date comparison so one evaluation is internally
	// consistent.
	Now time.Time
}

// FoodContactComponents returns the components subject to strict
// documentation.
func (c *Context) FoodContactComponents() []catalog.Component {
	var out []catalog.Component
	for _, comp := range c.Components {
		if comp.FoodContact {
			out = append(out, comp)
		}
	}
	return out
}

// UnresolvedRiskTerms returns risk terms still open against the product.
func (c *Context) UnresolvedRiskTerms() []catalog.RiskTerm {
	var out []catalog.RiskTerm
	for _, term := range c.RiskTerms {
		if !term.Resolved {
			out = append(out, term)
		}
	}
	return out
}

// LatestBrandStatement returns the newest unexpired brand statement, or nil.
func (c *Context) LatestBrandStatement() (*models.Evidence, *models.BrandStatement) {
	var best *models.Evidence
	var bestMeta models.BrandStatement
	for i := range c.Evidence {
		ev := &c.Evidence[i]
		if ev.Type != models.TypeBrandStatement || ev.Expired(c.Now) {
			continue
		}
		meta, ok := ev.Metadata.(models.BrandStatement)
		if !ok {
			continue
		}
		if best == nil || meta.StatementDate.After(bestMeta.StatementDate) {
			best = ev
			bestMeta = meta
		}
	}
	if best == nil {
		return nil, nil
	}
	return best, &bestMeta
}

// LatestLabReport returns the newest unexpired lab report, or nil.
func (c *Context) LatestLabReport() (*models.Evidence, *models.LabReport) {
	var best *models.Evidence
	var bestMeta models.LabReport
	for i := range c.Evidence {
		ev := &c.Evidence[i]
		if ev.Type != models.TypeLabReport || ev.Expired(c.Now) {
			continue
		}
		meta, ok := ev.Metadata.(models.LabReport)
		if !ok {
			continue
		}
		if best == nil || meta.ReportDate.After(bestMeta.ReportDate) {
			best = ev
			bestMeta = meta
		}
	}
	if best == nil {
		return nil, nil
	}
	return best, &bestMeta
}

// HasPolicyDocument reports whether any unexpired policy document exists.
func (c *Context) HasPolicyDocument() bool {
	for _, ev := range c.Evidence {
		if ev.Type == models.TypePolicyDocument && !ev.Expired(c.Now) {
			return true
		}
	}
	return false
}

// EvidenceTypes returns the distinct types present, sorted for determinism.
func (c *Context) EvidenceTypes() []models.Type {
	seen := make(map[models.Type]bool)
	for _, ev := range c.Evidence {
		seen[ev.Type] = true
	}
	out := make([]models.Type, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DistinctSources returns the distinct evidence sources.
func (c *Context) DistinctSources() []string {
	seen := make(map[string]bool)
	for _, ev := range c.Evidence {
		if ev.Source != "" {
			seen[ev.Source] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LabCoverage reports which food-contact components the lab report tested
// and which it missed.
func (c *Context) LabCoverage() (tested, untested []catalog.Component) {
	_, lab := c.LatestLabReport()
	covered := make(map[id.ComponentID]bool)
	if lab != nil {
		for _, compID := range lab.ComponentIDs {
			covered[compID] = true
		}
	}
	for _, comp := range c.FoodContactComponents() {
		if covered[comp.ID] {
			tested = append(tested, comp)
		} else {
			untested = append(untested, comp)
		}
	}
	return tested, untested
}

func (c *Context) markTierPassed(tier int) {
	switch tier {
	case 1:
		c.Tier1Passed = true
	case 2:
		c.Tier2Passed = true
	case 3:
		c.Tier3Passed = true
	}
}

// HighestVerifiedTier returns the highest tier in the verification history,
// zero when there is none.
func (c *Context) HighestVerifiedTier() int {
	highest := 0
	for _, rec := range c.History {
		if rec.Tier > highest {
			highest = rec.Tier
		}
	}
	return highest
}
