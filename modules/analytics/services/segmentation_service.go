package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
	hierarchysvc "github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
	"github.com/tradelift/tradelift-sdk/pkg/serrors"
)

type SegmentationMethod string

const (
	MethodRFM       SegmentationMethod = "rfm"
	MethodHierarchy SegmentationMethod = "hierarchy"
	MethodValue     SegmentationMethod = "value"
)

// Label applied to customers the external RFM scoring has not reached yet.
const unsegmentedLabel = "Unsegmented"

type Segment struct {
	Name           string
	Count          int
	Percentage     float64
	TotalRevenue   float64
	AverageRevenue float64
	CustomerIDs    []string
}

// SegmentationResult reports segments over the full input set. Percentages
// are computed against TotalCustomers, so they sum to 100 across segments.
type SegmentationResult struct {
	Method         SegmentationMethod
	TotalCustomers int
	Segments       []Segment
}

// SegmentationService classifies customers by RFM label, tree level, or
// cumulative revenue contribution (ABC). Revenue is the customer's
// last-period sales. A read-only consumer: it never mutates the tree.
type SegmentationService struct {
	hierarchy *hierarchysvc.HierarchyService
	expander  *hierarchysvc.Expander
}

func NewSegmentationService(hierarchy *hierarchysvc.HierarchyService) *SegmentationService {
	return &SegmentationService{
		hierarchy: hierarchy,
		expander:  hierarchysvc.NewExpander(hierarchy),
	}
}

func (s *SegmentationService) SegmentCustomers(ctx context.Context, tenantID uuid.UUID, method SegmentationMethod, rootCustomerID string) (*SegmentationResult, error) {
	if tenantID == uuid.Nil {
		return nil, serrors.New(400, "SEG_NO_TENANT", "tenant_id is required")
	}

	customers, err := s.collect(ctx, tenantID, rootCustomerID)
	if err != nil {
		return nil, err
	}

	switch method {
	case MethodRFM:
		return segmentBy(method, customers, func(c *customer.Customer) string {
			if c.RFMLabel() == "" {
				return unsegmentedLabel
			}
			return c.RFMLabel()
		}), nil
	case MethodHierarchy:
		return segmentBy(method, customers, func(c *customer.Customer) string {
			return fmt.Sprintf("Level %d", c.Level())
		}), nil
	case MethodValue:
		return segmentByValue(customers), nil
	default:
		return nil, serrors.New(400, "SEG_INVALID_METHOD", fmt.Sprintf("unknown segmentation method %q", method))
	}
}

func (s *SegmentationService) collect(ctx context.Context, tenantID uuid.UUID, rootCustomerID string) ([]*customer.Customer, error) {
	var entities []entity.Entity
	var err error
	if rootCustomerID != "" {
		entities, err = s.expander.Expand(ctx, tenantID, []string{rootCustomerID})
	} else {
		entities, err = s.hierarchy.ListByKind(ctx, tenantID, entity.KindCustomer)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*customer.Customer, 0, len(entities))
	for _, e := range entities {
		if c, ok := e.(*customer.Customer); ok && e.Kind() == entity.KindCustomer {
			out = append(out, c)
		}
	}
	return out, nil
}

func segmentBy(method SegmentationMethod, customers []*customer.Customer, keyOf func(*customer.Customer) string) *SegmentationResult {
	result := &SegmentationResult{Method: method, TotalCustomers: len(customers), Segments: []Segment{}}
	if len(customers) == 0 {
		return result
	}

	groups := make(map[string][]*customer.Customer)
	for _, c := range customers {
		key := keyOf(c)
		groups[key] = append(groups[key], c)
	}

	for name, members := range groups {
		result.Segments = append(result.Segments, buildSegment(name, members, len(customers)))
	}
	sort.Slice(result.Segments, func(i, j int) bool { return result.Segments[i].Name < result.Segments[j].Name })
	return result
}

// segmentByValue walks customers sorted by revenue descending and assigns
// ABC bands by cumulative contribution: a customer lands in A while the
// running total, probed one element ahead, stays within 80% of the grand
// total, in B within 95%, and in C past that.
func segmentByValue(customers []*customer.Customer) *SegmentationResult {
	result := &SegmentationResult{Method: MethodValue, TotalCustomers: len(customers), Segments: []Segment{}}
	if len(customers) == 0 {
		return result
	}

	sorted := make([]*customer.Customer, len(customers))
	copy(sorted, customers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LastPeriodSales() > sorted[j].LastPeriodSales() })

	var total float64
	for _, c := range sorted {
		total += c.LastPeriodSales()
	}

	bands := map[string][]*customer.Customer{}
	var cumulative float64
	for i, c := range sorted {
		cumulative += c.LastPeriodSales()
		probe := cumulative
		if i+1 < len(sorted) {
			probe += sorted[i+1].LastPeriodSales()
		}
		switch {
		case probe <= 0.80*total:
			bands["A"] = append(bands["A"], c)
		case probe <= 0.95*total:
			bands["B"] = append(bands["B"], c)
		default:
			bands["C"] = append(bands["C"], c)
		}
	}

	for _, name := range []string{"A", "B", "C"} {
		members, ok := bands[name]
		if !ok {
			continue
		}
		result.Segments = append(result.Segments, buildSegment(name, members, len(customers)))
	}
	return result
}

func buildSegment(name string, members []*customer.Customer, totalCustomers int) Segment {
	seg := Segment{
		Name:        name,
		Count:       len(members),
		Percentage:  float64(len(members)) / float64(totalCustomers) * 100,
		CustomerIDs: make([]string, 0, len(members)),
	}
	for _, c := range members {
		seg.TotalRevenue += c.LastPeriodSales()
		seg.CustomerIDs = append(seg.CustomerIDs, c.ID())
	}
	seg.AverageRevenue = seg.TotalRevenue / float64(len(members))
	return seg
}
