package verification

import (
	"fmt"
	"strings"
	"unicode"
)

// Check is one named, pure predicate over a Context. Blocking failures cap
// the achievable tier; advisory failures only produce warnings.
type Check struct {
	ID          string
	Description string
	Blocking    bool
	Eval        func(*Context) (passed bool, reason string)
}

// TierDef owns the ordered checks for one certification tier.
type TierDef struct {
	Tier      int
	Name      string
	ClaimType string
	Checks    []Check
}

// scopeKeywords are the phrasing signals that a brand statement covers the
// whole product rather than an unspecified subset.
var scopeKeywords = []string{"all", "component", "product", "entire"}

// statesScope matches scope keywords against whole words so fragments inside
// longer words ("intentionally") do not count. Plural forms match.
func statesScope(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		for _, kw := range scopeKeywords {
			if w == kw || w == kw+"s" {
				return true
			}
		}
	}
	return false
}

const (
	maxStatementAgeMonths = 12
	maxLabReportAgeMonths = 24
)

// tierDefs is the fixed evaluation order. Claim type for tier 3 is 'B'
// regardless of lab method; see DESIGN.md.
var tierDefs = []TierDef{
	{
		Tier: 1, Name: "Brand Statement", ClaimType: "A",
		Checks: []Check{
			{
				ID:          "brand_statement_exists",
				Description: "An unexpired brand statement is on file",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if ev, _ := c.LatestBrandStatement(); ev == nil {
						return false, "no unexpired brand statement on file"
					}
					return true, ""
				},
			},
			{
				ID:          "brand_statement_recent",
				Description: fmt.Sprintf("The brand statement is dated within the last %d months", maxStatementAgeMonths),
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					_, meta := c.LatestBrandStatement()
					if meta == nil {
						return false, "no unexpired brand statement on file"
					}
					if meta.StatementDate.Before(c.Now.AddDate(0, -maxStatementAgeMonths, 0)) {
						return false, fmt.Sprintf("brand statement dated %s is older than %d months",
							meta.StatementDate.Format("2006-01-02"), maxStatementAgeMonths)
					}
					return true, ""
				},
			},
			{
				ID:          "brand_statement_scope",
				Description: "The statement names its scope (all, component, product, entire)",
				Blocking:    false,
				Eval: func(c *Context) (bool, string) {
					_, meta := c.LatestBrandStatement()
					if meta == nil {
						return false, "no unexpired brand statement on file"
					}
					if statesScope(meta.StatementText) {
						return true, ""
					}
					return false, "brand statement does not state what it covers"
				},
			},
		},
	},
	{
		Tier: 2, Name: "Policy Reviewed", ClaimType: "A",
		Checks: []Check{
			{
				ID:          "tier1_passed",
				Description: "Brand Statement tier requirements are met",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if !c.Tier1Passed {
						return false, "tier 1 (Brand Statement) not passed"
					}
					return true, ""
				},
			},
			{
				ID:          "component_materials_complete",
				Description: "Every food-contact component has a material, and coating where required",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					for _, comp := range c.FoodContactComponents() {
						if comp.MaterialID == "" {
							return false, fmt.Sprintf("component %q has no documented material", comp.Name)
						}
						if comp.RiskFlagged && comp.CoatingNeeded && comp.CoatingID == "" {
							return false, fmt.Sprintf("risk-flagged component %q needs a documented coating", comp.Name)
						}
					}
					return true, ""
				},
			},
			{
				// Overlaps component_materials_complete on the material
				// requirement. Kept as independent defense in depth.
				ID:          "food_contact_documented",
				Description: "Every food-contact component has a documented material",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					for _, comp := range c.FoodContactComponents() {
						if comp.MaterialID == "" {
							return false, fmt.Sprintf("component %q has no documented material", comp.Name)
						}
					}
					return true, ""
				},
			},
			{
				ID:          "risk_terms_resolved",
				Description: "All flagged risk terms are resolved",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if open := c.UnresolvedRiskTerms(); len(open) > 0 {
						return false, fmt.Sprintf("%d risk term(s) unresolved, first: %q", len(open), open[0].Term)
					}
					return true, ""
				},
			},
			{
				ID:          "policy_document_exists",
				Description: "A PFAS policy document is on file",
				Blocking:    false,
				Eval: func(c *Context) (bool, string) {
					if !c.HasPolicyDocument() {
						return false, "no policy document on file"
					}
					return true, ""
				},
			},
		},
	},
	{
		Tier: 3, Name: "Lab Tested", ClaimType: "B",
		Checks: []Check{
			{
				ID:          "tier2_passed",
				Description: "Policy Reviewed tier requirements are met",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if !c.Tier2Passed {
						return false, "tier 2 (Policy Reviewed) not passed"
					}
					return true, ""
				},
			},
			{
				ID:          "lab_report_exists",
				Description: "An unexpired lab report is on file",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if ev, _ := c.LatestLabReport(); ev == nil {
						return false, "no unexpired lab report on file"
					}
					return true, ""
				},
			},
			{
				ID:          "lab_report_recent",
				Description: fmt.Sprintf("The lab report is dated within the last %d months", maxLabReportAgeMonths),
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					_, meta := c.LatestLabReport()
					if meta == nil {
						return false, "no unexpired lab report on file"
					}
					if meta.ReportDate.Before(c.Now.AddDate(0, -maxLabReportAgeMonths, 0)) {
						return false, fmt.Sprintf("lab report dated %s is older than %d months",
							meta.ReportDate.Format("2006-01-02"), maxLabReportAgeMonths)
					}
					return true, ""
				},
			},
			{
				ID:          "lab_coverage_complete",
				Description: "The lab report tested every food-contact component",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if _, meta := c.LatestLabReport(); meta == nil {
						return false, "no unexpired lab report on file"
					}
					if _, untested := c.LabCoverage(); len(untested) > 0 {
						return false, fmt.Sprintf("%d food-contact component(s) untested, first: %q",
							len(untested), untested[0].Name)
					}
					return true, ""
				},
			},
			{
				ID:          "lab_method_quantified",
				Description: "The lab report documents its method, LOD, and LOQ",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					_, meta := c.LatestLabReport()
					if meta == nil {
						return false, "no unexpired lab report on file"
					}
					if meta.Method == "" {
						return false, "lab report does not document its analytical method"
					}
					if meta.LODPPB <= 0 || meta.LOQPPB <= 0 {
						return false, "lab report does not document detection and quantification limits"
					}
					return true, ""
				},
			},
			{
				ID:          "lab_accredited",
				Description: "The testing lab documents an accreditation",
				Blocking:    false,
				Eval: func(c *Context) (bool, string) {
					_, meta := c.LatestLabReport()
					if meta == nil || meta.Accreditation == "" {
						return false, "no lab accreditation documented"
					}
					return true, ""
				},
			},
		},
	},
	{
		Tier: 4, Name: "Monitored", ClaimType: "B",
		Checks: []Check{
			{
				ID:          "tier3_passed",
				Description: "Lab Tested tier requirements are met",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if !c.Tier3Passed {
						return false, "tier 3 (Lab Tested) not passed"
					}
					return true, ""
				},
			},
			{
				ID:          "verified_history_tier3",
				Description: "At least one prior verification at tier 3 or above",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if c.HighestVerifiedTier() < 3 {
						return false, "no verification history at tier 3 or above"
					}
					return true, ""
				},
			},
			{
				ID:          "next_review_scheduled",
				Description: "A next review date is scheduled",
				Blocking:    true,
				Eval: func(c *Context) (bool, string) {
					if c.NextReview == nil {
						return false, "no next review date scheduled"
					}
					return true, ""
				},
			},
			{
				ID:          "not_risk_flagged",
				Description: "The product is not currently risk-flagged",
				Blocking:    false,
				Eval: func(c *Context) (bool, string) {
					if c.Product.RiskFlagged {
						return false, "product is currently risk-flagged"
					}
					return true, ""
				},
			},
		},
	},
}

// Tiers returns the tier definitions in evaluation order.
func Tiers() []TierDef { return tierDefs }
