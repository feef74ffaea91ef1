package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
	hierarchysvc "github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
	"github.com/tradelift/tradelift-sdk/pkg/eventbus"
	"github.com/tradelift/tradelift-sdk/pkg/serrors"
)

type ImpactInput struct {
	CustomerIDs     []string
	ProductIDs      []string
	DiscountPercent float64
	StartDate       time.Time
	EndDate         time.Time
	PromotionType   string
}

type CustomerImpact struct {
	CustomerID         string
	Name               string
	BaselineRevenue    float64
	PromotionalRevenue float64
	IncrementalRevenue float64
	Spend              float64
	ROIPercent         float64
	UpliftFactor       float64
}

type ProductImpact struct {
	ProductID          string
	Name               string
	BaselineRevenue    float64
	PromotionalRevenue float64
	IncrementalRevenue float64
	Spend              float64
	ROIPercent         float64
	UpliftFactor       float64
}

// ImpactResult is the full promotion projection. Grand totals are the
// customer-side sums; product breakdowns carry their own uplift factors
// and are reported alongside, not reconciled against the totals.
type ImpactResult struct {
	BaselineRevenue    float64
	PromotionalRevenue float64
	IncrementalRevenue float64
	TotalSpend         float64
	ROIPercent         float64
	Confidence         float64
	PeriodWeeks        int
	Customers          []CustomerImpact
	Products           []ProductImpact
	Assumptions        []string
}

// ImpactService runs the whole projection pipeline: expand the customer
// and product id sets through the hierarchy, estimate baseline revenue,
// allocate spend proportionally, apply uplift, and fold into totals.
type ImpactService struct {
	expander   *hierarchysvc.Expander
	baseline   BaselineEstimator
	allocation AllocationEngine
	uplift     *UpliftModel
	bus        eventbus.EventBus
	log        *logrus.Logger
}

type Option func(*ImpactService)

func WithEventBus(bus eventbus.EventBus) Option {
	return func(s *ImpactService) { s.bus = bus }
}

func WithLogger(log *logrus.Logger) Option {
	return func(s *ImpactService) { s.log = log }
}

func NewImpactService(expander *hierarchysvc.Expander, history PromotionHistoryRepository, opts ...Option) *ImpactService {
	s := &ImpactService{
		expander: expander,
		uplift:   NewUpliftModel(history),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ImpactService) CalculatePromotionImpact(ctx context.Context, tenantID uuid.UUID, input ImpactInput) (*ImpactResult, error) {
	if err := validateInput(tenantID, input); err != nil {
		return nil, err
	}

	customers, err := s.expandCustomers(ctx, tenantID, input.CustomerIDs)
	if err != nil {
		return nil, s.fail(err)
	}
	products, err := s.expandProducts(ctx, tenantID, input.ProductIDs)
	if err != nil {
		return nil, s.fail(err)
	}
	if len(customers) == 0 {
		return nil, serrors.New(404, "PROMO_NO_CUSTOMERS", "no customers resolved from the supplied ids")
	}
	if len(products) == 0 {
		return nil, serrors.New(404, "PROMO_NO_PRODUCTS", "no products resolved from the supplied ids")
	}

	baseline := s.baseline.Estimate(customers, products, input.StartDate, input.EndDate)
	allocation := s.allocation.Allocate(baseline, input.DiscountPercent)
	uplift, err := s.uplift.Factors(ctx, tenantID, input.PromotionType, input.DiscountPercent, customers, products)
	if err != nil {
		return nil, s.fail(err)
	}

	result := fold(baseline, allocation, uplift, customers, products)
	result.Assumptions = assumptions(input, uplift, len(customers), len(products), baseline.PeriodWeeks)

	impactCalculations.WithLabelValues("ok").Inc()
	if s.bus != nil {
		s.bus.Publish(ImpactCalculated{
			TenantID:           tenantID,
			PromotionType:      input.PromotionType,
			Customers:          len(customers),
			Products:           len(products),
			IncrementalRevenue: result.IncrementalRevenue,
		})
	}
	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"customers": len(customers),
			"products":  len(products),
			"roi":       result.ROIPercent,
		}).Debug("promotion impact calculated")
	}
	return result, nil
}

func (s *ImpactService) fail(err error) error {
	impactCalculations.WithLabelValues("error").Inc()
	return err
}

func validateInput(tenantID uuid.UUID, input ImpactInput) error {
	if tenantID == uuid.Nil {
		return serrors.New(400, "PROMO_NO_TENANT", "tenant_id is required")
	}
	if len(input.CustomerIDs) == 0 {
		return serrors.New(400, "PROMO_INVALID_INPUT", "customer_ids is required")
	}
	if len(input.ProductIDs) == 0 {
		return serrors.New(400, "PROMO_INVALID_INPUT", "product_ids is required")
	}
	if input.DiscountPercent <= 0 || input.DiscountPercent > 100 {
		return serrors.New(400, "PROMO_INVALID_INPUT", "discount_percent must be in (0, 100]")
	}
	if !input.EndDate.After(input.StartDate) {
		return serrors.New(400, "PROMO_INVALID_INPUT", "end_date must be after start_date")
	}
	return nil
}

func (s *ImpactService) expandCustomers(ctx context.Context, tenantID uuid.UUID, ids []string) ([]*customer.Customer, error) {
	entities, err := s.expander.Expand(ctx, tenantID, ids)
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

func (s *ImpactService) expandProducts(ctx context.Context, tenantID uuid.UUID, ids []string) ([]*product.Product, error) {
	entities, err := s.expander.Expand(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*product.Product, 0, len(entities))
	for _, e := range entities {
		if p, ok := e.(*product.Product); ok && e.Kind() == entity.KindProduct {
			out = append(out, p)
		}
	}
	return out, nil
}

func fold(baseline *BaselineMatrix, allocation *AllocationMatrix, uplift *UpliftFactors, customers []*customer.Customer, products []*product.Product) *ImpactResult {
	result := &ImpactResult{
		BaselineRevenue: baseline.Total,
		TotalSpend:      allocation.Total,
		Confidence:      uplift.Confidence,
		PeriodWeeks:     baseline.PeriodWeeks,
		Customers:       make([]CustomerImpact, 0, len(customers)),
		Products:        make([]ProductImpact, 0, len(products)),
	}

	for _, c := range customers {
		base := baseline.ByCustomer[c.ID()]
		factor := uplift.ByCustomer[c.ID()]
		promotional := base * factor
		incremental := promotional - base
		spend := allocation.ByCustomer[c.ID()]
		result.Customers = append(result.Customers, CustomerImpact{
			CustomerID:         c.ID(),
			Name:               c.Name(),
			BaselineRevenue:    base,
			PromotionalRevenue: promotional,
			IncrementalRevenue: incremental,
			Spend:              spend,
			ROIPercent:         roi(incremental, spend),
			UpliftFactor:       factor,
		})
		result.PromotionalRevenue += promotional
		result.IncrementalRevenue += incremental
	}

	for _, p := range products {
		base := baseline.ByProduct[p.ID()]
		factor := uplift.ByProduct[p.ID()]
		promotional := base * factor
		incremental := promotional - base
		spend := allocation.ByProduct[p.ID()]
		result.Products = append(result.Products, ProductImpact{
			ProductID:          p.ID(),
			Name:               p.Name(),
			BaselineRevenue:    base,
			PromotionalRevenue: promotional,
			IncrementalRevenue: incremental,
			Spend:              spend,
			ROIPercent:         roi(incremental, spend),
			UpliftFactor:       factor,
		})
	}

	sort.Slice(result.Customers, func(i, j int) bool { return result.Customers[i].CustomerID < result.Customers[j].CustomerID })
	sort.Slice(result.Products, func(i, j int) bool { return result.Products[i].ProductID < result.Products[j].ProductID })

	result.ROIPercent = roi(result.IncrementalRevenue, result.TotalSpend)
	return result
}

func roi(incremental, spend float64) float64 {
	if spend <= 0 {
		return 0
	}
	return (incremental - spend) / spend * 100
}

func assumptions(input ImpactInput, uplift *UpliftFactors, customers, products, weeks int) []string {
	out := make([]string, 0, 3)
	if uplift.SampleSize > 0 {
		out = append(out, fmt.Sprintf("Uplift factor %.2f derived from %d completed %q promotions", uplift.Average, uplift.SampleSize, input.PromotionType))
	} else {
		out = append(out, fmt.Sprintf("Uplift factor %.2f from the default model; no completed %q promotions found", uplift.Average, input.PromotionType))
	}
	out = append(out, fmt.Sprintf("Confidence %.0f%% based on historical sample size", uplift.Confidence*100))
	out = append(out, fmt.Sprintf("Evaluated %d customers and %d products over %d week(s)", customers, products, weeks))
	return out
}
