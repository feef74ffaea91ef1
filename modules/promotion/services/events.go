package services

import "github.com/google/uuid"

// ImpactCalculated is published after every successful projection.
type ImpactCalculated struct {
	TenantID           uuid.UUID
	PromotionType      string
	Customers          int
	Products           int
	IncrementalRevenue float64
}
