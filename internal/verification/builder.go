package verification

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"pfascert/internal/catalog"
	evstore "pfascert/internal/evidence/store"
	id "pfascert/pkg/domain"
	dErrors "pfascert/pkg/domain-errors"
	"pfascert/pkg/platform/sentinel"
)

// ContextBuilder gathers the product snapshot the engine evaluates. All
// repositories are read-only here.
type ContextBuilder struct {
	products   catalog.ProductStore
	components catalog.ComponentStore
	riskTerms  catalog.RiskTermStore
	history    catalog.VerificationHistoryStore
	reviews    catalog.NextReviewStore
	evidence   evstore.Store
}

func NewContextBuilder(
	products catalog.ProductStore,
	components catalog.ComponentStore,
	riskTerms catalog.RiskTermStore,
	history catalog.VerificationHistoryStore,
	reviews catalog.NextReviewStore,
	evidence evstore.Store,
) *ContextBuilder {
	return &ContextBuilder{
		products:   products,
		components: components,
		riskTerms:  riskTerms,
		history:    history,
		reviews:    reviews,
		evidence:   evidence,
	}
}

// Build fetches everything known about a product. The product lookup runs
// first so an unknown id fails fast as not_found; the remaining reads are
// independent and run in parallel.
func (b *ContextBuilder) Build(ctx context.Context, productID id.ProductID) (*Context, error) {
	product, err := b.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "product not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "fetching product", err)
	}

	vctx := &Context{Product: product}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		comps, err := b.components.FindByProductID(gctx, productID)
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "fetching components", err)
		}
		vctx.Components = comps
		return nil
	})
	g.Go(func() error {
		evs, err := b.evidence.FindByProductID(gctx, productID)
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "fetching evidence", err)
		}
		vctx.Evidence = evs
		return nil
	})
	g.Go(func() error {
		terms, err := b.riskTerms.FindByProductID(gctx, productID)
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "fetching risk terms", err)
		}
		vctx.RiskTerms = terms
		return nil
	})
	g.Go(func() error {
		recs, err := b.history.FindByProductID(gctx, productID)
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "fetching verification history", err)
		}
		vctx.History = recs
		return nil
	})
	g.Go(func() error {
		review, err := b.reviews.FindByProductID(gctx, productID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return dErrors.Wrap(dErrors.CodeInternal, "fetching next review", err)
		}
		vctx.NextReview = &review
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vctx, nil
}
