package tiktok

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"shopsync/internal/models"
	"shopsync/internal/repository"
	perrors "shopsync/pkg/errors"
)

// Matching thresholds. Confidence alone is not enough to auto-link: the
// strategy must also certify safety, which only exact-identifier strategies do.
const (
	AutoLinkThreshold = 100.0
	SuggestThreshold  = 70.0
)

const maxNameCandidates = 1000

// ExternalProduct is the matcher's view of a marketplace product, already
// extracted from the raw payload.
type ExternalProduct struct {
	ID      string
	SKU     string
	Barcode string
	Name    string
	Price   float64
}

// MatchResult is a confidence-scored proposal linking an external product to
// an internal product, variant or package.
type MatchResult struct {
	ProductID  *uint
	VariantID  *uint
	PackageID  *uint
	Confidence float64
	Reason     string
	AutoLink   bool
}

// ShouldAutoLink requires both the strategy's certification and maximum
// confidence.
func ShouldAutoLink(r *MatchResult) bool {
	return r != nil && r.AutoLink && r.Confidence >= AutoLinkThreshold
}

// ShouldSuggest gates whether the match is worth showing a reviewer.
func ShouldSuggest(r *MatchResult) bool {
	return r != nil && r.Confidence >= SuggestThreshold
}

// Matcher is a pure decision engine: it reads the catalog and mapping tables
// but never writes.
type Matcher struct {
	repos     *repository.Repositories
	threshold float64
	logger    *zap.Logger
}

func NewMatcher(repos *repository.Repositories, threshold float64, logger *zap.Logger) *Matcher {
	if threshold <= 0 {
		threshold = 0.80
	}
	return &Matcher{repos: repos, threshold: threshold, logger: logger}
}

type strategy func(ctx context.Context, platform string, accountID uint, ext ExternalProduct) (*MatchResult, error)

// Match runs the strategies in fixed priority order; the first confident
// match wins. Returns nil when nothing matched.
func (m *Matcher) Match(ctx context.Context, platform string, accountID uint, ext ExternalProduct) (*MatchResult, error) {
	strategies := []strategy{
		m.matchExistingMapping,
		m.matchExactSKU,
		m.matchBarcode,
		m.matchName,
	}
	for _, s := range strategies {
		result, err := s(ctx, platform, accountID, ext)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

func (m *Matcher) matchExistingMapping(ctx context.Context, platform string, accountID uint, ext ExternalProduct) (*MatchResult, error) {
	var mapping *models.SkuMapping
	var nf *perrors.NotFoundError
	if ext.SKU != "" {
		found, err := m.repos.SkuMapping.ActiveBySKU(ctx, platform, accountID, ext.SKU)
		if err != nil && !errors.As(err, &nf) {
			return nil, err
		}
		mapping = found
	}
	if mapping == nil {
		found, err := m.repos.SkuMapping.ActiveByExternalProductID(ctx, platform, accountID, ext.ID)
		if err != nil {
			if errors.As(err, &nf) {
				return nil, nil
			}
			return nil, err
		}
		mapping = found
	}
	return &MatchResult{
		ProductID:  mapping.ProductID,
		VariantID:  mapping.VariantID,
		PackageID:  mapping.PackageID,
		Confidence: 100,
		Reason:     "existing_mapping",
		AutoLink:   true,
	}, nil
}

func (m *Matcher) matchExactSKU(ctx context.Context, platform string, accountID uint, ext ExternalProduct) (*MatchResult, error) {
	if ext.SKU == "" {
		return nil, nil
	}
	var nf *perrors.NotFoundError
	product, err := m.repos.Product.GetBySKU(ctx, ext.SKU)
	if err == nil {
		return &MatchResult{
			ProductID:  &product.ID,
			Confidence: 100,
			Reason:     "exact_sku",
			AutoLink:   true,
		}, nil
	}
	if !errors.As(err, &nf) {
		return nil, err
	}
	variant, err := m.repos.Product.VariantBySKU(ctx, ext.SKU)
	if err == nil {
		return &MatchResult{
			ProductID:  &variant.ProductID,
			VariantID:  &variant.ID,
			Confidence: 100,
			Reason:     "exact_variant_sku",
			AutoLink:   true,
		}, nil
	}
	if !errors.As(err, &nf) {
		return nil, err
	}
	return nil, nil
}

func (m *Matcher) matchBarcode(ctx context.Context, platform string, accountID uint, ext ExternalProduct) (*MatchResult, error) {
	if ext.Barcode == "" {
		return nil, nil
	}
	var nf *perrors.NotFoundError
	product, err := m.repos.Product.GetByBarcode(ctx, ext.Barcode)
	if err == nil {
		return &MatchResult{
			ProductID:  &product.ID,
			Confidence: 100,
			Reason:     "barcode",
			AutoLink:   true,
		}, nil
	}
	if !errors.As(err, &nf) {
		return nil, err
	}
	variant, err := m.repos.Product.VariantByBarcode(ctx, ext.Barcode)
	if err == nil {
		return &MatchResult{
			ProductID:  &variant.ProductID,
			VariantID:  &variant.ID,
			Confidence: 100,
			Reason:     "variant_barcode",
			AutoLink:   true,
		}, nil
	}
	if !errors.As(err, &nf) {
		return nil, err
	}
	return nil, nil
}

// matchName is the fuzzy fallback. It never certifies auto-link: name
// similarity alone is not safe enough to create a mapping unattended.
func (m *Matcher) matchName(ctx context.Context, platform string, accountID uint, ext ExternalProduct) (*MatchResult, error) {
	normalized := normalizeProductName(ext.Name)
	if normalized == "" {
		return nil, nil
	}

	candidates, err := m.repos.Product.ListActive(ctx, maxNameCandidates)
	if err != nil {
		return nil, err
	}

	var best *models.Product
	var bestScore float64
	for _, candidate := range candidates {
		score := nameSimilarity(normalized, normalizeProductName(candidate.Name))
		if score >= m.threshold && score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	if best == nil {
		return nil, nil
	}

	confidence := bestScore * 100
	if ext.Price > 0 {
		price, _ := best.Price.Float64()
		if math.Abs(price-ext.Price) < 1.0 {
			confidence = math.Min(confidence+10, 90)
		}
	}
	return &MatchResult{
		ProductID:  &best.ID,
		Confidence: confidence,
		Reason:     "name_similarity",
		AutoLink:   false,
	}, nil
}
