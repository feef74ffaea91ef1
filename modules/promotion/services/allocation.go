package services

// AllocationMatrix distributes promotion spend across customer-product
// pairs in proportion to their baseline revenue share. Its Total equals
// baseline.Total * discountPercent/100 up to floating tolerance.
type AllocationMatrix struct {
	Pairs           map[PairKey]float64
	ByCustomer      map[string]float64
	ByProduct       map[string]float64
	Total           float64
	DiscountPercent float64
}

type AllocationEngine struct{}

func (AllocationEngine) Allocate(baseline *BaselineMatrix, discountPercent float64) *AllocationMatrix {
	rate := discountPercent / 100
	m := &AllocationMatrix{
		Pairs:           make(map[PairKey]float64, len(baseline.Pairs)),
		ByCustomer:      make(map[string]float64, len(baseline.ByCustomer)),
		ByProduct:       make(map[string]float64, len(baseline.ByProduct)),
		DiscountPercent: discountPercent,
	}

	for key, revenue := range baseline.Pairs {
		spend := revenue * rate
		m.Pairs[key] = spend
		m.ByCustomer[key.CustomerID] += spend
		m.ByProduct[key.ProductID] += spend
		m.Total += spend
	}
	return m
}
