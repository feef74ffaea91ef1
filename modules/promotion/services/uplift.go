package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
	"github.com/tradelift/tradelift-sdk/modules/promotion/domain/promotion"
)

const (
	defaultUplift      = 1.2
	maxUplift          = 3.0
	maxConfidence      = 0.95
	historySampleLimit = 20
)

// PromotionHistoryRepository serves completed promotion outcomes, most
// recent first, bounded by limit.
type PromotionHistoryRepository interface {
	FindCompletedByType(ctx context.Context, tenantID uuid.UUID, promotionType string, limit int) ([]*promotion.Record, error)
}

type UpliftFactors struct {
	ByCustomer map[string]float64
	ByProduct  map[string]float64
	Average    float64
	Confidence float64
	SampleSize int
}

// UpliftModel derives revenue multipliers from historical outcomes of the
// same promotion type, amplified by discount depth and modulated per
// customer (responsiveness) and per product (margin).
type UpliftModel struct {
	history PromotionHistoryRepository
}

func NewUpliftModel(history PromotionHistoryRepository) *UpliftModel {
	return &UpliftModel{history: history}
}

func (m *UpliftModel) Factors(
	ctx context.Context,
	tenantID uuid.UUID,
	promotionType string,
	discountPercent float64,
	customers []*customer.Customer,
	products []*product.Product,
) (*UpliftFactors, error) {
	average := defaultUplift
	sampleSize := 0

	if m.history != nil && promotionType != "" {
		records, err := m.history.FindCompletedByType(ctx, tenantID, promotionType, historySampleLimit)
		if err != nil {
			return nil, err
		}
		if sum, n := validRatios(records); n > 0 {
			average = sum / float64(n)
			sampleSize = n
		}
	}

	confidence := 0.5 + float64(sampleSize)/100
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	// Deeper discounts amplify the lift, capped so extreme discounts do
	// not extrapolate beyond observed behavior.
	average *= 1 + (discountPercent/100)*2
	if average > maxUplift {
		average = maxUplift
	}

	f := &UpliftFactors{
		ByCustomer: make(map[string]float64, len(customers)),
		ByProduct:  make(map[string]float64, len(products)),
		Average:    average,
		Confidence: confidence,
		SampleSize: sampleSize,
	}
	for _, c := range customers {
		responsiveness := c.ResponsivenessScore()
		if responsiveness <= 0 {
			responsiveness = 1.0
		}
		f.ByCustomer[c.ID()] = average * responsiveness
	}
	for _, p := range products {
		f.ByProduct[p.ID()] = average * (1 + p.MarginPercent()/100)
	}
	return f, nil
}

// validRatios sums actual/planned ratios, dropping non-positive or
// implausible ones (outside (0,5)).
func validRatios(records []*promotion.Record) (sum float64, n int) {
	for _, r := range records {
		ratio, ok := r.UpliftRatio()
		if !ok || ratio <= 0 || ratio >= 5 {
			continue
		}
		sum += ratio
		n++
	}
	return sum, n
}
