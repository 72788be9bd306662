// Package unknowns produces the honest-disclosure list that accompanies a
// certification claim: what the evidence does not establish. Generation is
// pure over the evaluation context.
package unknowns

import (
	"fmt"
	"strings"

	"pfascert/internal/catalog"
	"pfascert/internal/verification"
)

// Unknown is the detailed form of one disclosure.
type Unknown struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

const (
	CategoryCoverage    = "coverage"
	CategoryMethodology = "methodology"
	CategoryScope       = "scope"
	CategoryFreshness   = "freshness"
	CategoryBasis       = "basis"

	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

const fullyVerifiedMessage = "All major food-contact components verified"

// screeningMethods only measure aggregate fluorine; they cannot identify
// individual PFAS compounds.
var screeningMethods = []string{"total-fluorine", "total fluorine", "combustion", "tof", "pige"}

const (
	smallSampleUnits    = 2
	narrowAnalyteCount  = 20
	staleEvidenceMonths = 12
)

// Generate returns the disclosure messages for a context at a tier.
func Generate(vctx *verification.Context, tier int) []string {
	detailed := GenerateDetailed(vctx, tier)
	msgs := make([]string, 0, len(detailed))
	for _, u := range detailed {
		msgs = append(msgs, u.Message)
	}
	return msgs
}

// GenerateDetailed returns the disclosures with ids, categories, and
// severities for programmatic consumers.
func GenerateDetailed(vctx *verification.Context, tier int) []Unknown {
	var out []Unknown
	add := func(id, category, severity, message string) {
		out = append(out, Unknown{ID: id, Category: category, Severity: severity, Message: message})
	}

	_, lab := vctx.LatestLabReport()

	if lab != nil {
		if _, untested := vctx.LabCoverage(); len(untested) > 0 {
			names := componentNames(untested)
			add("untested_components", CategoryCoverage, SeverityHigh,
				fmt.Sprintf("Lab testing did not cover %d food-contact component(s): %s", len(untested), names))
		}
	}

	if undocumented := undocumentedMaterials(vctx); len(undocumented) > 0 {
		add("undocumented_materials", CategoryCoverage, SeverityHigh,
			fmt.Sprintf("%d food-contact component(s) have no documented material: %s",
				len(undocumented), strings.Join(undocumented, ", ")))
	}

	if lab == nil && tier > 0 {
		add("no_lab_testing", CategoryBasis, SeverityHigh,
			"No laboratory testing backs this claim; it rests on supplier documentation alone")
	}

	if lab != nil && (lab.SampleUnits <= smallSampleUnits || lab.SampleLots == 1) {
		add("small_sample", CategoryMethodology, SeverityMedium,
			fmt.Sprintf("Lab testing sampled only %d unit(s) from %d lot(s); results may not represent all production",
				lab.SampleUnits, lab.SampleLots))
	}

	if lab != nil && isScreeningMethod(lab.Method) {
		add("screening_method", CategoryMethodology, SeverityMedium,
			fmt.Sprintf("The %q method screens for total fluorine; individual PFAS compounds were not identified", lab.Method))
	}

	if lab != nil && lab.AnalyteCount > 0 && lab.AnalyteCount < narrowAnalyteCount {
		add("narrow_analyte_panel", CategoryMethodology, SeverityMedium,
			fmt.Sprintf("The analyte panel covered only %d compounds; thousands of PFAS exist", lab.AnalyteCount))
	}

	if lab != nil && lab.SurfaceOnly {
		add("surface_only_testing", CategoryMethodology, SeverityMedium,
			"Testing sampled surfaces only; PFAS in substrate materials would not be detected")
	}

	if tier != 4 && hasNonFoodContact(vctx) {
		add("non_food_contact_excluded", CategoryScope, SeverityLow,
			"Non-food-contact components were excluded from verification scope")
	}

	if tier == 1 && !vctx.HasPolicyDocument() {
		add("brand_statement_only", CategoryBasis, SeverityMedium,
			"Verification rests on a brand statement alone; no supplier PFAS policy is on file")
	}

	if tier > 1 && len(vctx.DistinctSources()) == 1 {
		add("single_source", CategoryBasis, SeverityLow,
			"All evidence comes from a single source; independent corroboration is absent")
	}

	if tier >= 2 && hasStaleEvidence(vctx) {
		add("stale_evidence", CategoryFreshness, SeverityLow,
			fmt.Sprintf("Some evidence is more than %d months old and may not reflect current production", staleEvidenceMonths))
	}

	return out
}

// DisplayMessage formats the disclosure list for end users.
func DisplayMessage(msgs []string) string {
	if len(msgs) == 0 {
		return fullyVerifiedMessage
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d limitation(s) to be aware of:", len(msgs))
	for _, m := range msgs {
		sb.WriteString("\n- ")
		sb.WriteString(m)
	}
	return sb.String()
}

func isScreeningMethod(method string) bool {
	m := strings.ToLower(method)
	for _, s := range screeningMethods {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

func undocumentedMaterials(vctx *verification.Context) []string {
	var names []string
	for _, comp := range vctx.FoodContactComponents() {
		if comp.MaterialID == "" {
			names = append(names, comp.Name)
		}
	}
	return names
}

func hasNonFoodContact(vctx *verification.Context) bool {
	for _, comp := range vctx.Components {
		if !comp.FoodContact {
			return true
		}
	}
	return false
}

func hasStaleEvidence(vctx *verification.Context) bool {
	cutoff := vctx.Now.AddDate(0, -staleEvidenceMonths, 0)
	for _, ev := range vctx.Evidence {
		if ev.ReceivedAt.Before(cutoff) {
			return true
		}
	}
	return false
}

func componentNames(comps []catalog.Component) string {
	names := make([]string, len(comps))
	for i, comp := range comps {
		names[i] = comp.Name
	}
	return strings.Join(names, ", ")
}
