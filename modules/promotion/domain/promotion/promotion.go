package promotion

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Record is a promotion outcome as the uplift model consumes it. Planned
// baseline volume is fixed at approval time; actual promotional volume is
// written back when the promotion completes.
type Record struct {
	id            uuid.UUID
	tenantID      uuid.UUID
	promotionType string
	status        Status

	discountPercent         float64
	plannedBaselineVolume   float64
	actualPromotionalVolume float64

	startDate time.Time
	endDate   time.Time
}

func New(tenantID uuid.UUID, promotionType string, discountPercent, plannedBaselineVolume float64, startDate, endDate time.Time) *Record {
	return &Record{
		id:                    uuid.New(),
		tenantID:              tenantID,
		promotionType:         strings.TrimSpace(promotionType),
		status:                StatusPlanned,
		discountPercent:       discountPercent,
		plannedBaselineVolume: plannedBaselineVolume,
		startDate:             startDate,
		endDate:               endDate,
	}
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	promotionType string,
	status Status,
	discountPercent float64,
	plannedBaselineVolume float64,
	actualPromotionalVolume float64,
	startDate time.Time,
	endDate time.Time,
) *Record {
	return &Record{
		id:                      id,
		tenantID:                tenantID,
		promotionType:           promotionType,
		status:                  status,
		discountPercent:         discountPercent,
		plannedBaselineVolume:   plannedBaselineVolume,
		actualPromotionalVolume: actualPromotionalVolume,
		startDate:               startDate,
		endDate:                 endDate,
	}
}

func (r *Record) ID() uuid.UUID                    { return r.id }
func (r *Record) TenantID() uuid.UUID              { return r.tenantID }
func (r *Record) PromotionType() string            { return r.promotionType }
func (r *Record) Status() Status                   { return r.status }
func (r *Record) DiscountPercent() float64         { return r.discountPercent }
func (r *Record) PlannedBaselineVolume() float64   { return r.plannedBaselineVolume }
func (r *Record) ActualPromotionalVolume() float64 { return r.actualPromotionalVolume }
func (r *Record) StartDate() time.Time             { return r.startDate }
func (r *Record) EndDate() time.Time               { return r.endDate }

// Complete marks the record finished with the observed volume.
func (r *Record) Complete(actualPromotionalVolume float64) {
	r.status = StatusCompleted
	r.actualPromotionalVolume = actualPromotionalVolume
}

func (r *Record) Cancel() { r.status = StatusCancelled }

// UpliftRatio is actual over planned volume. The second return is false
// when the planned volume is non-positive and no ratio can be formed.
func (r *Record) UpliftRatio() (float64, bool) {
	if r.plannedBaselineVolume <= 0 {
		return 0, false
	}
	return r.actualPromotionalVolume / r.plannedBaselineVolume, true
}
