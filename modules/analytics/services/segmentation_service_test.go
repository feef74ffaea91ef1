package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tradelift/tradelift-sdk/modules/analytics/services"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/infrastructure/persistence"
	hierarchysvc "github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
	"github.com/tradelift/tradelift-sdk/pkg/serrors"
)

type segFixture struct {
	hierarchy *hierarchysvc.HierarchyService
	service   *services.SegmentationService
	tenantID  uuid.UUID
}

func newSegFixture() *segFixture {
	hierarchy := hierarchysvc.NewHierarchyService(persistence.NewMemoryHierarchyStore())
	return &segFixture{
		hierarchy: hierarchy,
		service:   services.NewSegmentationService(hierarchy),
		tenantID:  uuid.New(),
	}
}

func (f *segFixture) addCustomer(t *testing.T, id, parentID string, revenue float64, rfmLabel string) {
	t.Helper()
	c := customer.New(f.tenantID, id, "Customer "+id)
	c.SetLastPeriodSales(revenue)
	c.SetRFMLabel(rfmLabel)
	_, err := f.hierarchy.CreateNode(context.Background(), f.tenantID, c, parentID)
	require.NoError(t, err)
}

func segmentByName(t *testing.T, result *services.SegmentationResult, name string) services.Segment {
	t.Helper()
	for _, seg := range result.Segments {
		if seg.Name == name {
			return seg
		}
	}
	t.Fatalf("segment %q not found", name)
	return services.Segment{}
}

func requireCompleteness(t *testing.T, result *services.SegmentationResult) {
	t.Helper()
	var count int
	var percentage float64
	for _, seg := range result.Segments {
		count += seg.Count
		percentage += seg.Percentage
	}
	require.Equal(t, result.TotalCustomers, count)
	require.InDelta(t, 100, percentage, 1e-6)
}

func TestSegmentCustomers_ABC(t *testing.T) {
	f := newSegFixture()
	revenues := map[string]float64{"c1": 100, "c2": 50, "c3": 30, "c4": 10, "c5": 10}
	for id, revenue := range revenues {
		f.addCustomer(t, id, "", revenue, "")
	}

	result, err := f.service.SegmentCustomers(context.Background(), f.tenantID, services.MethodValue, "")
	require.NoError(t, err)
	require.Equal(t, 5, result.TotalCustomers)

	a := segmentByName(t, result, "A")
	require.Equal(t, []string{"c1"}, a.CustomerIDs)
	require.InDelta(t, 100, a.TotalRevenue, 1e-9)
	require.InDelta(t, 20, a.Percentage, 1e-9)

	b := segmentByName(t, result, "B")
	require.Equal(t, []string{"c2", "c3"}, b.CustomerIDs)
	require.InDelta(t, 80, b.TotalRevenue, 1e-9)
	require.InDelta(t, 40, b.AverageRevenue, 1e-9)

	c := segmentByName(t, result, "C")
	require.Equal(t, 2, c.Count)
	require.InDelta(t, 20, c.TotalRevenue, 1e-9)

	requireCompleteness(t, result)
}

func TestSegmentCustomers_RFM(t *testing.T) {
	f := newSegFixture()
	f.addCustomer(t, "c1", "", 900, "Champions")
	f.addCustomer(t, "c2", "", 300, "Champions")
	f.addCustomer(t, "c3", "", 50, "At Risk")
	f.addCustomer(t, "c4", "", 10, "")

	result, err := f.service.SegmentCustomers(context.Background(), f.tenantID, services.MethodRFM, "")
	require.NoError(t, err)
	require.Equal(t, 4, result.TotalCustomers)
	require.Len(t, result.Segments, 3)

	champions := segmentByName(t, result, "Champions")
	require.Equal(t, 2, champions.Count)
	require.InDelta(t, 50, champions.Percentage, 1e-9)
	require.InDelta(t, 1200, champions.TotalRevenue, 1e-9)
	require.InDelta(t, 600, champions.AverageRevenue, 1e-9)

	unsegmented := segmentByName(t, result, "Unsegmented")
	require.Equal(t, []string{"c4"}, unsegmented.CustomerIDs)

	requireCompleteness(t, result)
}

func TestSegmentCustomers_HierarchyLevels(t *testing.T) {
	f := newSegFixture()
	f.addCustomer(t, "group", "", 0, "")
	f.addCustomer(t, "east", "group", 100, "")
	f.addCustomer(t, "west", "group", 200, "")
	f.addCustomer(t, "store1", "east", 40, "")

	result, err := f.service.SegmentCustomers(context.Background(), f.tenantID, services.MethodHierarchy, "")
	require.NoError(t, err)
	require.Equal(t, 4, result.TotalCustomers)

	level1 := segmentByName(t, result, "Level 1")
	require.Equal(t, 2, level1.Count)
	require.InDelta(t, 50, level1.Percentage, 1e-9)
	require.InDelta(t, 300, level1.TotalRevenue, 1e-9)

	requireCompleteness(t, result)
}

func TestSegmentCustomers_SubtreeRestriction(t *testing.T) {
	f := newSegFixture()
	f.addCustomer(t, "group", "", 0, "Champions")
	f.addCustomer(t, "east", "group", 100, "Champions")
	f.addCustomer(t, "other", "", 500, "Champions")

	result, err := f.service.SegmentCustomers(context.Background(), f.tenantID, services.MethodRFM, "group")
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalCustomers)

	champions := segmentByName(t, result, "Champions")
	require.ElementsMatch(t, []string{"group", "east"}, champions.CustomerIDs)
}

func TestSegmentCustomers_IgnoresProducts(t *testing.T) {
	f := newSegFixture()
	f.addCustomer(t, "c1", "", 100, "")
	p := product.New(f.tenantID, "p1", "Product")
	_, err := f.hierarchy.CreateNode(context.Background(), f.tenantID, p, "")
	require.NoError(t, err)

	result, err := f.service.SegmentCustomers(context.Background(), f.tenantID, services.MethodValue, "")
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCustomers)
}

func TestSegmentCustomers_EmptyInput(t *testing.T) {
	f := newSegFixture()

	for _, method := range []services.SegmentationMethod{services.MethodRFM, services.MethodHierarchy, services.MethodValue} {
		result, err := f.service.SegmentCustomers(context.Background(), f.tenantID, method, "")
		require.NoError(t, err)
		require.Equal(t, 0, result.TotalCustomers)
		require.Empty(t, result.Segments)
	}
}

func TestSegmentCustomers_UnknownMethod(t *testing.T) {
	f := newSegFixture()

	_, err := f.service.SegmentCustomers(context.Background(), f.tenantID, "psychographic", "")
	var svcErr *serrors.Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, "SEG_INVALID_METHOD", svcErr.Code)
}
