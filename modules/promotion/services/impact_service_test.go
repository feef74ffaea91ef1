package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	hierarchypersistence "github.com/tradelift/tradelift-sdk/modules/hierarchy/infrastructure/persistence"
	hierarchysvc "github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
	"github.com/tradelift/tradelift-sdk/modules/promotion/infrastructure/persistence"
	"github.com/tradelift/tradelift-sdk/pkg/serrors"
)

type impactFixture struct {
	hierarchy *hierarchysvc.HierarchyService
	history   *persistence.MemoryPromotionHistoryRepository
	service   *ImpactService
	tenantID  uuid.UUID
}

func newImpactFixture() *impactFixture {
	store := hierarchypersistence.NewMemoryHierarchyStore()
	hierarchy := hierarchysvc.NewHierarchyService(store)
	history := persistence.NewMemoryPromotionHistoryRepository()
	return &impactFixture{
		hierarchy: hierarchy,
		history:   history,
		service:   NewImpactService(hierarchysvc.NewExpander(hierarchy), history),
		tenantID:  uuid.New(),
	}
}

func (f *impactFixture) addCustomer(t *testing.T, id, parentID string, lastPeriodSales float64) {
	t.Helper()
	c := testCustomer(f.tenantID, id, lastPeriodSales)
	_, err := f.hierarchy.CreateNode(context.Background(), f.tenantID, c, parentID)
	require.NoError(t, err)
}

func (f *impactFixture) addProduct(t *testing.T, id, parentID string, volume, price float64) {
	t.Helper()
	p := testProduct(f.tenantID, id, volume, price)
	_, err := f.hierarchy.CreateNode(context.Background(), f.tenantID, p, parentID)
	require.NoError(t, err)
}

func fourWeekInput(customerIDs, productIDs []string, discount float64) ImpactInput {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return ImpactInput{
		CustomerIDs:     customerIDs,
		ProductIDs:      productIDs,
		DiscountPercent: discount,
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, 28),
		PromotionType:   "tpr",
	}
}

func TestCalculatePromotionImpact_SingleCustomerProduct(t *testing.T) {
	f := newImpactFixture()
	f.addCustomer(t, "c1", "", 0)
	f.addProduct(t, "p1", "", 5200, 100)

	result, err := f.service.CalculatePromotionImpact(context.Background(), f.tenantID, fourWeekInput([]string{"c1"}, []string{"p1"}, 10))
	require.NoError(t, err)

	require.Equal(t, 4, result.PeriodWeeks)
	require.InDelta(t, 40_000, result.BaselineRevenue, 1e-6)
	require.InDelta(t, 4_000, result.TotalSpend, 1e-6)
	require.InDelta(t, 57_600, result.PromotionalRevenue, 1e-6)
	require.InDelta(t, 17_600, result.IncrementalRevenue, 1e-6)
	require.InDelta(t, 340, result.ROIPercent, 1e-6)
	require.InDelta(t, 0.5, result.Confidence, 1e-9)

	require.Len(t, result.Customers, 1)
	require.InDelta(t, 1.44, result.Customers[0].UpliftFactor, 1e-9)
	require.InDelta(t, 340, result.Customers[0].ROIPercent, 1e-6)
	require.Len(t, result.Products, 1)
	require.NotEmpty(t, result.Assumptions)
}

func TestCalculatePromotionImpact_ExpandsSubtrees(t *testing.T) {
	f := newImpactFixture()
	f.addCustomer(t, "group", "", 0)
	f.addCustomer(t, "east", "group", 0)
	f.addCustomer(t, "west", "group", 0)
	f.addProduct(t, "brand", "", 0, 0)
	f.addProduct(t, "sku1", "brand", 520, 20)
	f.addProduct(t, "sku2", "brand", 1040, 20)

	result, err := f.service.CalculatePromotionImpact(context.Background(), f.tenantID, fourWeekInput([]string{"group"}, []string{"brand"}, 10))
	require.NoError(t, err)

	require.Len(t, result.Customers, 3)
	require.Len(t, result.Products, 3)
	require.Equal(t, "east", result.Customers[0].CustomerID)
}

func TestCalculatePromotionImpact_HistoricalUplift(t *testing.T) {
	f := newImpactFixture()
	f.addCustomer(t, "c1", "", 0)
	f.addProduct(t, "p1", "", 5200, 100)
	completedPromotion(t, f.history, f.tenantID, "tpr", 1000, 1500)
	completedPromotion(t, f.history, f.tenantID, "tpr", 1000, 2500)

	result, err := f.service.CalculatePromotionImpact(context.Background(), f.tenantID, fourWeekInput([]string{"c1"}, []string{"p1"}, 10))
	require.NoError(t, err)

	// Historical average 2.0 amplified by discountFactor 1.2.
	require.Len(t, result.Customers, 1)
	require.InDelta(t, 2.4, result.Customers[0].UpliftFactor, 1e-9)
	require.InDelta(t, 0.52, result.Confidence, 1e-9)
}

func TestCalculatePromotionImpact_KindFiltering(t *testing.T) {
	f := newImpactFixture()
	f.addCustomer(t, "c1", "", 0)
	f.addProduct(t, "p1", "", 5200, 100)

	// Expanding a product id as a customer set resolves no customers.
	_, err := f.service.CalculatePromotionImpact(context.Background(), f.tenantID, fourWeekInput([]string{"p1"}, []string{"p1"}, 10))
	var svcErr *serrors.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "PROMO_NO_CUSTOMERS", svcErr.Code)
}

func TestCalculatePromotionImpact_SkipsStaleIDs(t *testing.T) {
	f := newImpactFixture()
	f.addCustomer(t, "c1", "", 0)
	f.addProduct(t, "p1", "", 5200, 100)

	result, err := f.service.CalculatePromotionImpact(context.Background(), f.tenantID, fourWeekInput([]string{"ghost", "c1"}, []string{"p1"}, 10))
	require.NoError(t, err)
	require.Len(t, result.Customers, 1)
}

func TestCalculatePromotionImpact_InputValidation(t *testing.T) {
	f := newImpactFixture()
	ctx := context.Background()
	valid := fourWeekInput([]string{"c1"}, []string{"p1"}, 10)

	cases := []struct {
		name    string
		mutate  func(*ImpactInput)
		wantNil bool
	}{
		{"no customers", func(in *ImpactInput) { in.CustomerIDs = nil }, false},
		{"no products", func(in *ImpactInput) { in.ProductIDs = nil }, false},
		{"zero discount", func(in *ImpactInput) { in.DiscountPercent = 0 }, false},
		{"discount above 100", func(in *ImpactInput) { in.DiscountPercent = 101 }, false},
		{"inverted dates", func(in *ImpactInput) { in.EndDate = in.StartDate.AddDate(0, 0, -1) }, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			input := valid
			c.mutate(&input)
			_, err := f.service.CalculatePromotionImpact(ctx, f.tenantID, input)
			var svcErr *serrors.Error
			require.ErrorAs(t, err, &svcErr)
			require.Equal(t, "PROMO_INVALID_INPUT", svcErr.Code)
		})
	}

	_, err := f.service.CalculatePromotionImpact(ctx, uuid.Nil, valid)
	var svcErr *serrors.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "PROMO_NO_TENANT", svcErr.Code)
}
