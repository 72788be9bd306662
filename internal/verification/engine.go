package verification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"pfascert/internal/verification/metrics"
	id "pfascert/pkg/domain"
)

// CheckResult is the outcome of a single check.
type CheckResult struct {
	CheckID     string `json:"check_id"`
	Description string `json:"description"`
	Blocking    bool   `json:"blocking"`
	Passed      bool   `json:"passed"`
	Reason      string `json:"reason,omitempty"`
}

// TierResult is the outcome of one tier's checks. A tier passes iff none of
// its blocking checks failed.
type TierResult struct {
	Tier      int           `json:"tier"`
	Name      string        `json:"name"`
	ClaimType string        `json:"claim_type"`
	Passed    bool          `json:"passed"`
	Checks    []CheckResult `json:"checks"`
}

// Evaluation is the full result of running a product through the tier ladder.
type Evaluation struct {
	ProductID            id.ProductID `json:"product_id"`
	EvaluatedAt          time.Time    `json:"evaluated_at"`
	MaxAchievableTier    int          `json:"max_achievable_tier"`
	RecommendedClaimType *string      `json:"recommended_claim_type"`
	TierResults          []TierResult `json:"tier_results"`
	Blockers             []string     `json:"blockers"`
	Warnings             []string     `json:"warnings"`
	Summary              string       `json:"summary"`
}

// DecisionValidation reports whether a proposed tier is defensible given the
// current evaluation.
type DecisionValidation struct {
	ProposedTier      int      `json:"proposed_tier"`
	MaxAchievableTier int      `json:"max_achievable_tier"`
	Valid             bool     `json:"valid"`
	Blockers          []string `json:"blockers,omitempty"`
	Note              string   `json:"note,omitempty"`
}

// TierRequirements partitions every check up to a target tier into met and
// unmet, for guidance toward that tier.
type TierRequirements struct {
	ProductID  id.ProductID  `json:"product_id"`
	TargetTier int           `json:"target_tier"`
	Met        []CheckResult `json:"met"`
	Unmet      []CheckResult `json:"unmet"`
}

// Engine evaluates products against the tier ladder. All evaluation is a
// read-then-compute pass over a context snapshot, so concurrent calls for the
// same product are idempotent.
type Engine struct {
	builder *ContextBuilder
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

type EngineOption func(*Engine)

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithEngineMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(builder *ContextBuilder, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		builder: builder,
		logger:  logger,
		tracer:  otel.Tracer("pfascert/verification"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildContext returns the evaluation snapshot without running the tier
// ladder, for callers that only need confidence or unknowns output.
func (e *Engine) BuildContext(ctx context.Context, productID id.ProductID) (*Context, error) {
	vctx, err := e.builder.Build(ctx, productID)
	if err != nil {
		return nil, err
	}
	vctx.Now = e.now()
	return vctx, nil
}

// Evaluate builds the product context and walks the tiers in ascending order.
// All checks of the current tier run even after a blocking failure, so the
// caller sees every blocker for that tier; evaluation stops before the next
// tier once one fails.
func (e *Engine) Evaluate(ctx context.Context, productID id.ProductID) (*Evaluation, error) {
	ctx, span := e.tracer.Start(ctx, "verification.Evaluate")
	defer span.End()

	start := e.now()
	vctx, err := e.builder.Build(ctx, productID)
	if err != nil {
		return nil, err
	}
	vctx.Now = start

	eval := e.evaluateContext(vctx)
	eval.ProductID = productID
	eval.EvaluatedAt = start

	e.metrics.ObserveEvaluation(eval.MaxAchievableTier, e.now().Sub(start))
	e.logger.InfoContext(ctx, "product evaluated",
		"product_id", productID,
		"max_achievable_tier", eval.MaxAchievableTier,
		"blockers", len(eval.Blockers),
		"warnings", len(eval.Warnings))
	return eval, nil
}

func (e *Engine) evaluateContext(vctx *Context) *Evaluation {
	eval := &Evaluation{
		Blockers: []string{},
		Warnings: []string{},
	}

	for _, def := range Tiers() {
		result := runTier(def, vctx)
		eval.TierResults = append(eval.TierResults, result)

		for _, cr := range result.Checks {
			if cr.Passed {
				continue
			}
			if !cr.Blocking {
				eval.Warnings = append(eval.Warnings, cr.Reason)
			}
		}

		if !result.Passed {
			for _, cr := range result.Checks {
				if cr.Blocking && !cr.Passed {
					eval.Blockers = append(eval.Blockers, cr.Reason)
				}
			}
			break
		}

		eval.MaxAchievableTier = def.Tier
		claim := def.ClaimType
		eval.RecommendedClaimType = &claim
		vctx.markTierPassed(def.Tier)
	}

	eval.Summary = summarize(eval)
	return eval
}

func runTier(def TierDef, vctx *Context) TierResult {
	result := TierResult{
		Tier:      def.Tier,
		Name:      def.Name,
		ClaimType: def.ClaimType,
		Passed:    true,
	}
	for _, check := range def.Checks {
		passed, reason := check.Eval(vctx)
		result.Checks = append(result.Checks, CheckResult{
			CheckID:     check.ID,
			Description: check.Description,
			Blocking:    check.Blocking,
			Passed:      passed,
			Reason:      reason,
		})
		if !passed && check.Blocking {
			result.Passed = false
		}
	}
	return result
}

func summarize(eval *Evaluation) string {
	if eval.MaxAchievableTier == 0 {
		return fmt.Sprintf("No certification tier achievable; %d blocker(s) at tier 1.", len(eval.Blockers))
	}
	name := ""
	for _, tr := range eval.TierResults {
		if tr.Tier == eval.MaxAchievableTier {
			name = tr.Name
		}
	}
	if len(eval.Blockers) == 0 {
		return fmt.Sprintf("All tiers passed; product qualifies for tier %d (%s), claim type %s.",
			eval.MaxAchievableTier, name, *eval.RecommendedClaimType)
	}
	return fmt.Sprintf("Product qualifies for tier %d (%s), claim type %s; %d blocker(s) prevent tier %d.",
		eval.MaxAchievableTier, name, *eval.RecommendedClaimType, len(eval.Blockers), eval.MaxAchievableTier+1)
}

// ValidateDecision checks a proposed certification tier against the current
// evaluation. Proposing above what the evidence supports fails with the
// blockers; proposing below is allowed with an informational note.
func (e *Engine) ValidateDecision(ctx context.Context, productID id.ProductID, proposedTier int) (*DecisionValidation, error) {
	eval, err := e.Evaluate(ctx, productID)
	if err != nil {
		return nil, err
	}
	v := &DecisionValidation{
		ProposedTier:      proposedTier,
		MaxAchievableTier: eval.MaxAchievableTier,
	}
	switch {
	case proposedTier > eval.MaxAchievableTier:
		v.Valid = false
		v.Blockers = eval.Blockers
	case proposedTier < eval.MaxAchievableTier:
		v.Valid = true
		v.Note = fmt.Sprintf("evidence supports tier %d; certifying at tier %d is conservative", eval.MaxAchievableTier, proposedTier)
	default:
		v.Valid = true
	}
	e.metrics.ObserveDecision(v.Valid)
	return v, nil
}

// RequirementsForTier evaluates every check up to target and partitions the
// results into met and unmet. Tier-gate checks (tier1_passed etc) reflect the
// actual evaluation state.
func (e *Engine) RequirementsForTier(ctx context.Context, productID id.ProductID, target int) (*TierRequirements, error) {
	if target < 1 || target > len(Tiers()) {
		return nil, fmt.Errorf("target tier %d out of range [1,%d]", target, len(Tiers()))
	}
	vctx, err := e.builder.Build(ctx, productID)
	if err != nil {
		return nil, err
	}
	vctx.Now = e.now()

	// Walk the full ladder first so gate flags are accurate, then partition.
	eval := e.evaluateContext(vctx)

	req := &TierRequirements{
		ProductID:  productID,
		TargetTier: target,
		Met:        []CheckResult{},
		Unmet:      []CheckResult{},
	}
	for _, tr := range eval.TierResults {
		if tr.Tier > target {
			break
		}
		for _, cr := range tr.Checks {
			if cr.Passed {
				req.Met = append(req.Met, cr)
			} else {
				req.Unmet = append(req.Unmet, cr)
			}
		}
	}
	// Tiers that were never evaluated because a lower one failed still count
	// as unmet requirements toward the target.
	evaluated := len(eval.TierResults)
	for _, def := range Tiers() {
		if def.Tier <= evaluated || def.Tier > target {
			continue
		}
		for _, check := range def.Checks {
			req.Unmet = append(req.Unmet, CheckResult{
				CheckID:     check.ID,
				Description: check.Description,
				Blocking:    check.Blocking,
				Passed:      false,
				Reason:      fmt.Sprintf("not evaluated: tier %d not reached", def.Tier),
			})
		}
	}
	return req, nil
}
