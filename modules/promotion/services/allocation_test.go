package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
)

func TestAllocationEngine_Conservation(t *testing.T) {
	tenantID := uuid.New()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)

	customers := []*customer.Customer{
		testCustomer(tenantID, "c1", 60_000),
		testCustomer(tenantID, "c2", 250_000),
	}
	products := []*product.Product{
		testProduct(tenantID, "p1", 3120, 40),
		testProduct(tenantID, "p2", 0, 15),
	}
	baseline := BaselineEstimator{}.Estimate(customers, products, start, end)

	alloc := AllocationEngine{}.Allocate(baseline, 12.5)

	require.InEpsilon(t, baseline.Total*0.125, alloc.Total, 1e-6)

	var byPair float64
	for key, spend := range alloc.Pairs {
		byPair += spend
		require.InEpsilon(t, baseline.Pairs[key]*0.125, spend, 1e-9)
	}
	require.InEpsilon(t, alloc.Total, byPair, 1e-6)
}

func TestAllocationEngine_ProportionalShares(t *testing.T) {
	baseline := &BaselineMatrix{
		Pairs: map[PairKey]float64{
			{CustomerID: "c1", ProductID: "p1"}: 300,
			{CustomerID: "c2", ProductID: "p1"}: 100,
		},
		ByCustomer: map[string]float64{"c1": 300, "c2": 100},
		ByProduct:  map[string]float64{"p1": 400},
		Total:      400,
	}

	alloc := AllocationEngine{}.Allocate(baseline, 10)

	require.InDelta(t, 40, alloc.Total, 1e-9)
	require.InDelta(t, 30, alloc.ByCustomer["c1"], 1e-9)
	require.InDelta(t, 10, alloc.ByCustomer["c2"], 1e-9)
	require.InDelta(t, 40, alloc.ByProduct["p1"], 1e-9)

	// Spend shares mirror baseline shares.
	require.InEpsilon(t,
		baseline.ByCustomer["c1"]/baseline.Total,
		alloc.ByCustomer["c1"]/alloc.Total,
		1e-9,
	)
}
