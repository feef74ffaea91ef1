package services

import (
	"math"
	"time"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
)

// Fallback weekly volume applied when neither product history nor customer
// sales history yields a usable estimate.
const minWeeklyUnits = 10.0

type PairKey struct {
	CustomerID string
	ProductID  string
}

// BaselineMatrix holds the per-pair period revenue estimate plus rollups.
// Rollups reconcile: sum over ByCustomer == sum over ByProduct == Total.
type BaselineMatrix struct {
	Pairs       map[PairKey]float64
	ByCustomer  map[string]float64
	ByProduct   map[string]float64
	Total       float64
	PeriodWeeks int
}

// BaselineEstimator projects last-period performance onto a promotion
// window. Product volume history wins when present; otherwise the
// customer's total sales are spread across 52 weeks and 100 notional
// products, floored at minWeeklyUnits units per week.
type BaselineEstimator struct{}

func (BaselineEstimator) Estimate(customers []*customer.Customer, products []*product.Product, startDate, endDate time.Time) *BaselineMatrix {
	weeks := periodWeeks(startDate, endDate)
	m := &BaselineMatrix{
		Pairs:       make(map[PairKey]float64, len(customers)*len(products)),
		ByCustomer:  make(map[string]float64, len(customers)),
		ByProduct:   make(map[string]float64, len(products)),
		PeriodWeeks: weeks,
	}

	for _, c := range customers {
		for _, p := range products {
			revenue := weeklyRevenue(c, p) * float64(weeks)
			m.Pairs[PairKey{CustomerID: c.ID(), ProductID: p.ID()}] = revenue
			m.ByCustomer[c.ID()] += revenue
			m.ByProduct[p.ID()] += revenue
			m.Total += revenue
		}
	}
	return m
}

func weeklyRevenue(c *customer.Customer, p *product.Product) float64 {
	if p.LastPeriodVolume() > 0 && p.ListPrice() > 0 {
		return p.LastPeriodVolume() * p.ListPrice() / 52
	}
	units := c.LastPeriodSales() / 52 / 100
	if units < minWeeklyUnits {
		units = minWeeklyUnits
	}
	return units * p.ListPrice()
}

func periodWeeks(startDate, endDate time.Time) int {
	days := endDate.Sub(startDate).Hours() / 24
	weeks := int(math.Ceil(days / 7))
	if weeks < 1 {
		return 1
	}
	return weeks
}
