package customer

import (
	"strings"

	"github.com/google/uuid"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
)

// Customer is a hierarchy entity enriched with the performance fields the
// revenue engine and segmentation read. Historical ingestion (out of scope
// here) populates lastPeriodSales, responsivenessScore and rfmLabel.
type Customer struct {
	tenantID    uuid.UUID
	id          string
	name        string
	description string

	parentID    string
	path        string
	level       int
	hasChildren bool

	lastPeriodSales     float64
	responsivenessScore float64
	rfmLabel            string
}

func New(tenantID uuid.UUID, id, name string) *Customer {
	return &Customer{
		tenantID: tenantID,
		id:       strings.TrimSpace(id),
		name:     strings.TrimSpace(name),
	}
}

func Hydrate(
	tenantID uuid.UUID,
	id string,
	name string,
	description string,
	parentID string,
	path string,
	level int,
	hasChildren bool,
	lastPeriodSales float64,
	responsivenessScore float64,
	rfmLabel string,
) *Customer {
	return &Customer{
		tenantID:            tenantID,
		id:                  strings.TrimSpace(id),
		name:                strings.TrimSpace(name),
		description:         description,
		parentID:            parentID,
		path:                path,
		level:               level,
		hasChildren:         hasChildren,
		lastPeriodSales:     lastPeriodSales,
		responsivenessScore: responsivenessScore,
		rfmLabel:            rfmLabel,
	}
}

func (c *Customer) ID() string                   { return c.id }
func (c *Customer) TenantID() uuid.UUID          { return c.tenantID }
func (c *Customer) Kind() entity.Kind            { return entity.KindCustomer }
func (c *Customer) Name() string                 { return c.name }
func (c *Customer) Description() string          { return c.description }
func (c *Customer) ParentID() string             { return c.parentID }
func (c *Customer) Path() string                 { return c.path }
func (c *Customer) Level() int                   { return c.level }
func (c *Customer) HasChildren() bool            { return c.hasChildren }
func (c *Customer) LastPeriodSales() float64     { return c.lastPeriodSales }
func (c *Customer) ResponsivenessScore() float64 { return c.responsivenessScore }
func (c *Customer) RFMLabel() string             { return c.rfmLabel }

func (c *Customer) SetParentID(id string)            { c.parentID = id }
func (c *Customer) SetPath(path string)              { c.path = path }
func (c *Customer) SetLevel(level int)               { c.level = level }
func (c *Customer) SetHasChildren(has bool)          { c.hasChildren = has }
func (c *Customer) SetDescription(d string)          { c.description = d }
func (c *Customer) SetLastPeriodSales(v float64)     { c.lastPeriodSales = v }
func (c *Customer) SetResponsivenessScore(v float64) { c.responsivenessScore = v }
func (c *Customer) SetRFMLabel(label string)         { c.rfmLabel = label }
