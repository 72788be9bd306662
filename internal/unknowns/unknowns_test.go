package unknowns_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfascert/internal/catalog"
	"pfascert/internal/evidence/models"
	"pfascert/internal/unknowns"
	"pfascert/internal/verification"
	id "pfascert/pkg/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	bowlID = id.ComponentID(uuid.New())
	lidID  = id.ComponentID(uuid.New())
)

func evidenceOf(evidenceType models.Type, source string, receivedAt time.Time, meta models.Metadata) models.Evidence {
	return models.Evidence{
		ID:         id.NewEvidenceID(),
		Type:       evidenceType,
		Source:     source,
		ReceivedAt: receivedAt,
		ExpiresAt:  receivedAt.AddDate(0, evidenceType.ExpiryMonths(), 0),
		Metadata:   meta,
	}
}

// fullyVerifiedContext has every food-contact component documented and
// covered by a recent accredited lab report, with no excluded components.
func fullyVerifiedContext() *verification.Context {
	stmtDate := testNow.AddDate(0, -1, 0)
	policyDate := testNow.AddDate(0, -2, 0)
	labDate := testNow.AddDate(0, -3, 0)
	return &verification.Context{
		Product: catalog.Product{ID: id.ProductID(uuid.New()), Name: "Lunch Bowl"},
		Components: []catalog.Component{
			{ID: bowlID, Name: "bowl body", FoodContact: true, MaterialID: "mat-stainless-316"},
			{ID: lidID, Name: "lid gasket", FoodContact: true, MaterialID: "mat-silicone-60a"},
		},
		Evidence: []models.Evidence{
			evidenceOf(models.TypeBrandStatement, "meridian-compliance", stmtDate, models.BrandStatement{
				StatementDate: stmtDate,
				StatementText: "Covers all components.",
			}),
			evidenceOf(models.TypePolicyDocument, "meridian-compliance", policyDate, models.PolicyDocument{
				Title:         "Supplier PFAS Restriction Policy",
				EffectiveDate: policyDate,
			}),
			evidenceOf(models.TypeLabReport, "acme-analytical", labDate, models.LabReport{
				Lab:           "Acme Analytical",
				Accreditation: "ISO 17025",
				Method:        "LC-MS/MS",
				ReportDate:    labDate,
				LODPPB:        1,
				LOQPPB:        3,
				SampleUnits:   3,
				SampleLots:    2,
				AnalyteCount:  40,
				ComponentIDs:  []id.ComponentID{bowlID, lidID},
			}),
		},
		Now: testNow,
	}
}

func labMeta(vctx *verification.Context) *models.LabReport {
	for _, ev := range vctx.Evidence {
		if ev.Type == models.TypeLabReport {
			meta := ev.Metadata.(models.LabReport)
			return &meta
		}
	}
	return nil
}

func setLab(vctx *verification.Context, meta models.LabReport) {
	for i, ev := range vctx.Evidence {
		if ev.Type == models.TypeLabReport {
			vctx.Evidence[i].Metadata = meta
		}
	}
}

func ids(list []unknowns.Unknown) []string {
	out := make([]string, len(list))
	for i, u := range list {
		out[i] = u.ID
	}
	return out
}

func TestFullyVerifiedProductHasNoUnknowns(t *testing.T) {
	msgs := unknowns.Generate(fullyVerifiedContext(), 3)

	assert.Empty(t, msgs)
	assert.Equal(t, "All major food-contact components verified", unknowns.DisplayMessage(msgs))
}

func TestUntestedComponentsDisclosed(t *testing.T) {
	vctx := fullyVerifiedContext()
	meta := *labMeta(vctx)
	meta.ComponentIDs = []id.ComponentID{bowlID}
	setLab(vctx, meta)

	list := unknowns.GenerateDetailed(vctx, 3)

	require.NotEmpty(t, list)
	assert.Contains(t, ids(list), "untested_components")
	for _, u := range list {
		if u.ID == "untested_components" {
			assert.Equal(t, unknowns.SeverityHigh, u.Severity)
			assert.Contains(t, u.Message, "lid gasket")
		}
	}
}

func TestNoLabTestingDisclosedAboveTierZero(t *testing.T) {
	vctx := fullyVerifiedContext()
	vctx.Evidence = vctx.Evidence[:2]

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 2)), "no_lab_testing")
	assert.NotContains(t, ids(unknowns.GenerateDetailed(vctx, 0)), "no_lab_testing")
}

func TestSmallSampleDisclosed(t *testing.T) {
	vctx := fullyVerifiedContext()
	meta := *labMeta(vctx)
	meta.SampleUnits = 2
	setLab(vctx, meta)

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 3)), "small_sample")

	meta.SampleUnits = 3
	meta.SampleLots = 1
	setLab(vctx, meta)

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 3)), "small_sample")
}

func TestScreeningMethodDisclosed(t *testing.T) {
	for _, method := range []string{"Total-Fluorine Combustion IC", "TOF screening", "PIGE"} {
		vctx := fullyVerifiedContext()
		meta := *labMeta(vctx)
		meta.Method = method
		setLab(vctx, meta)

		list := unknowns.GenerateDetailed(vctx, 3)
		assert.Contains(t, ids(list), "screening_method", "method %q", method)
	}
}

func TestNarrowAnalytePanelDisclosed(t *testing.T) {
	vctx := fullyVerifiedContext()
	meta := *labMeta(vctx)
	meta.AnalyteCount = 12
	setLab(vctx, meta)

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 3)), "narrow_analyte_panel")
}

func TestSurfaceOnlyTestingDisclosed(t *testing.T) {
	vctx := fullyVerifiedContext()
	meta := *labMeta(vctx)
	meta.SurfaceOnly = true
	setLab(vctx, meta)

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 3)), "surface_only_testing")
}

func TestNonFoodContactExclusionDisclosedBelowTierFour(t *testing.T) {
	vctx := fullyVerifiedContext()
	vctx.Components = append(vctx.Components, catalog.Component{
		ID: id.ComponentID(uuid.New()), Name: "outer sleeve", FoodContact: false,
	})

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 3)), "non_food_contact_excluded")
	assert.NotContains(t, ids(unknowns.GenerateDetailed(vctx, 4)), "non_food_contact_excluded")
}

func TestBrandStatementOnlyDisclosedAtTierOne(t *testing.T) {
	vctx := fullyVerifiedContext()
	vctx.Evidence = vctx.Evidence[:1]

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 1)), "brand_statement_only")

	withPolicy := fullyVerifiedContext()
	withPolicy.Evidence = withPolicy.Evidence[:2]
	assert.NotContains(t, ids(unknowns.GenerateDetailed(withPolicy, 1)), "brand_statement_only")
}

func TestSingleSourceDisclosedAboveTierOne(t *testing.T) {
	vctx := fullyVerifiedContext()
	for i := range vctx.Evidence {
		vctx.Evidence[i].Source = "meridian-compliance"
	}

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 3)), "single_source")
	assert.NotContains(t, ids(unknowns.GenerateDetailed(vctx, 1)), "single_source")
}

func TestStaleEvidenceDisclosedAtTierTwoAndAbove(t *testing.T) {
	vctx := fullyVerifiedContext()
	old := testNow.AddDate(0, -14, 0)
	vctx.Evidence = append(vctx.Evidence, evidenceOf(models.TypeCorrespondence, "meridian-compliance", old, models.Correspondence{
		SentAt:  old,
		From:    "qa@meridian.example",
		Subject: "PFAS inquiry",
	}))

	assert.Contains(t, ids(unknowns.GenerateDetailed(vctx, 2)), "stale_evidence")
	assert.NotContains(t, ids(unknowns.GenerateDetailed(vctx, 1)), "stale_evidence")
}

func TestDisplayMessageListsItems(t *testing.T) {
	msg := unknowns.DisplayMessage([]string{"first limitation", "second limitation"})

	assert.Contains(t, msg, "2 limitation(s)")
	assert.Contains(t, msg, "first limitation")
	assert.Contains(t, msg, "second limitation")
}
