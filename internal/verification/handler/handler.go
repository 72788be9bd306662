package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pfascert/internal/confidence"
	"pfascert/internal/unknowns"
	"pfascert/internal/verification"
	id "pfascert/pkg/domain"
	dErrors "pfascert/pkg/domain-errors"
	"pfascert/pkg/platform/httputil"
	"pfascert/pkg/requestcontext"
)

// Handler wires verification endpoints to the tier engine. Confidence and
// unknowns share the engine's context builder so all three read the same
// snapshot shape.
type Handler struct {
	engine *verification.Engine
	logger *slog.Logger
}

func New(engine *verification.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/products/{productID}/evaluation", h.HandleEvaluate)
	r.Get("/products/{productID}/confidence", h.HandleConfidence)
	r.Get("/products/{productID}/unknowns", h.HandleUnknowns)
	r.Get("/products/{productID}/requirements", h.HandleRequirements)
	r.Post("/products/{productID}/decision", h.HandleDecision)
}

// HandleEvaluate handles GET /products/{productID}/evaluation requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	eval, err := h.engine.Evaluate(ctx, productID)
	if err != nil {
		h.logger.ErrorContext(ctx, "evaluation failed",
			"request_id", requestcontext.RequestID(ctx),
			"product_id", productID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eval)
}

// HandleConfidence handles GET /products/{productID}/confidence requests.
// The tier query parameter defaults to the product's max achievable tier.
func (h *Handler) HandleConfidence(w http.ResponseWriter, r *http.Request) {
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	vctx, tier, err := h.contextAndTier(r, productID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, confidence.CalculateWithBreakdown(vctx, tier))
}

type unknownsResponse struct {
	Tier           int                `json:"tier"`
	Unknowns       []string           `json:"unknowns"`
	Detailed       []unknowns.Unknown `json:"detailed,omitempty"`
	DisplayMessage string             `json:"display_message"`
}

// HandleUnknowns handles GET /products/{productID}/unknowns requests.
func (h *Handler) HandleUnknowns(w http.ResponseWriter, r *http.Request) {
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	vctx, tier, err := h.contextAndTier(r, productID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	msgs := unknowns.Generate(vctx, tier)
	resp := unknownsResponse{
		Tier:           tier,
		Unknowns:       msgs,
		DisplayMessage: unknowns.DisplayMessage(msgs),
	}
	if r.URL.Query().Get("detailed") == "true" {
		resp.Detailed = unknowns.GenerateDetailed(vctx, tier)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRequirements handles GET /products/{productID}/requirements requests.
func (h *Handler) HandleRequirements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	target, err := tierParam(r, "tier", len(verification.Tiers()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.engine.RequirementsForTier(ctx, productID, target)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

type decisionRequest struct {
	ProposedTier int `json:"proposed_tier"`
}

// HandleDecision handles POST /products/{productID}/decision requests.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := id.ParseProductID(chi.URLParam(r, "productID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[decisionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.ProposedTier < 1 || req.ProposedTier > len(verification.Tiers()) {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidInput,
			"proposed_tier must be between 1 and %d", len(verification.Tiers())))
		return
	}

	v, err := h.engine.ValidateDecision(ctx, productID, req.ProposedTier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "decision validated",
		"request_id", requestcontext.RequestID(ctx),
		"product_id", productID,
		"proposed_tier", req.ProposedTier,
		"valid", v.Valid,
	)
	httputil.WriteJSON(w, http.StatusOK, v)
}

// contextAndTier builds the product snapshot and resolves the tier query
// parameter, falling back to the evaluated max achievable tier.
func (h *Handler) contextAndTier(r *http.Request, productID id.ProductID) (*verification.Context, int, error) {
	ctx := r.Context()
	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil || tier < 0 || tier > len(verification.Tiers()) {
			return nil, 0, dErrors.Newf(dErrors.CodeInvalidInput,
				"tier must be an integer between 0 and %d", len(verification.Tiers()))
		}
		vctx, err := h.engine.BuildContext(ctx, productID)
		if err != nil {
			return nil, 0, err
		}
		return vctx, tier, nil
	}
	eval, err := h.engine.Evaluate(ctx, productID)
	if err != nil {
		return nil, 0, err
	}
	vctx, err := h.engine.BuildContext(ctx, productID)
	if err != nil {
		return nil, 0, err
	}
	return vctx, eval.MaxAchievableTier, nil
}

func tierParam(r *http.Request, name string, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return max, nil
	}
	tier, err := strconv.Atoi(raw)
	if err != nil || tier < 1 || tier > max {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be an integer between 1 and %d", name, max)
	}
	return tier, nil
}
