package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
	"github.com/tradelift/tradelift-sdk/modules/promotion/domain/promotion"
	"github.com/tradelift/tradelift-sdk/modules/promotion/infrastructure/persistence"
)

func completedPromotion(t *testing.T, repo *persistence.MemoryPromotionHistoryRepository, tenantID uuid.UUID, promotionType string, planned, actual float64) {
	t.Helper()
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	rec := promotion.New(tenantID, promotionType, 10, planned, start, start.AddDate(0, 0, 14))
	rec.Complete(actual)
	require.NoError(t, repo.Save(context.Background(), rec))
}

func TestUpliftModel_DefaultWithoutHistory(t *testing.T) {
	tenantID := uuid.New()
	model := NewUpliftModel(persistence.NewMemoryPromotionHistoryRepository())

	customers := []*customer.Customer{testCustomer(tenantID, "c1", 0)}
	products := []*product.Product{testProduct(tenantID, "p1", 100, 10)}

	f, err := model.Factors(context.Background(), tenantID, "tpr", 10, customers, products)
	require.NoError(t, err)

	// 1.2 default amplified by discountFactor 1.2.
	require.InDelta(t, 1.44, f.Average, 1e-9)
	require.InDelta(t, 0.5, f.Confidence, 1e-9)
	require.Equal(t, 0, f.SampleSize)
	require.InDelta(t, 1.44, f.ByCustomer["c1"], 1e-9)
	require.InDelta(t, 1.44, f.ByProduct["p1"], 1e-9)
}

func TestUpliftModel_HistoricalAverageReplacesDefault(t *testing.T) {
	tenantID := uuid.New()
	repo := persistence.NewMemoryPromotionHistoryRepository()
	completedPromotion(t, repo, tenantID, "tpr", 1000, 1500) // ratio 1.5
	completedPromotion(t, repo, tenantID, "tpr", 1000, 2500) // ratio 2.5
	completedPromotion(t, repo, tenantID, "tpr", 1000, 9000) // ratio 9, implausible
	completedPromotion(t, repo, tenantID, "tpr", 0, 500)     // no planned volume
	completedPromotion(t, repo, tenantID, "bogo", 1000, 100) // wrong type

	model := NewUpliftModel(repo)
	f, err := model.Factors(context.Background(), tenantID, "tpr", 10, nil, nil)
	require.NoError(t, err)

	// (1.5 + 2.5)/2 = 2.0 amplified by 1.2.
	require.InDelta(t, 2.4, f.Average, 1e-9)
	require.Equal(t, 2, f.SampleSize)
	require.InDelta(t, 0.52, f.Confidence, 1e-9)
}

func TestUpliftModel_CapAndConfidenceCeiling(t *testing.T) {
	tenantID := uuid.New()
	repo := persistence.NewMemoryPromotionHistoryRepository()
	for i := 0; i < 60; i++ {
		completedPromotion(t, repo, tenantID, "tpr", 1000, 3000) // ratio 3
	}

	model := NewUpliftModel(repo)
	f, err := model.Factors(context.Background(), tenantID, "tpr", 50, nil, nil)
	require.NoError(t, err)

	// 3.0 * discountFactor 2.0 would be 6.0; capped at 3.0. The history
	// sample itself is bounded, so confidence reflects the bounded size.
	require.InDelta(t, 3.0, f.Average, 1e-9)
	require.Equal(t, historySampleLimit, f.SampleSize)
	require.InDelta(t, 0.7, f.Confidence, 1e-9)
}

func TestUpliftModel_PerEntityModulation(t *testing.T) {
	tenantID := uuid.New()
	model := NewUpliftModel(persistence.NewMemoryPromotionHistoryRepository())

	responsive := testCustomer(tenantID, "c1", 0)
	responsive.SetResponsivenessScore(1.5)
	unknown := testCustomer(tenantID, "c2", 0)

	margined := testProduct(tenantID, "p1", 0, 0)
	margined.SetMarginPercent(40)
	plain := testProduct(tenantID, "p2", 0, 0)

	f, err := model.Factors(context.Background(), tenantID, "tpr", 0.0001, []*customer.Customer{responsive, unknown}, []*product.Product{margined, plain})
	require.NoError(t, err)

	require.InDelta(t, f.Average*1.5, f.ByCustomer["c1"], 1e-9)
	require.InDelta(t, f.Average*1.0, f.ByCustomer["c2"], 1e-9)
	require.InDelta(t, f.Average*1.4, f.ByProduct["p1"], 1e-9)
	require.InDelta(t, f.Average*1.0, f.ByProduct["p2"], 1e-9)
}
