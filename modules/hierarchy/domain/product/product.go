package product

import (
	"strings"

	"github.com/google/uuid"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
)

// Product is a hierarchy entity enriched with pricing and last-period sales
// volume, the inputs of the baseline revenue estimator.
type Product struct {
	tenantID    uuid.UUID
	id          string
	name        string
	description string

	parentID    string
	path        string
	level       int
	hasChildren bool

	lastPeriodVolume float64
	listPrice        float64
	marginPercent    float64
}

func New(tenantID uuid.UUID, id, name string) *Product {
	return &Product{
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
	lastPeriodVolume float64,
	listPrice float64,
	marginPercent float64,
) *Product {
	return &Product{
		tenantID:         tenantID,
		id:               strings.TrimSpace(id),
		name:             strings.TrimSpace(name),
		description:      description,
		parentID:         parentID,
		path:             path,
		level:            level,
		hasChildren:      hasChildren,
		lastPeriodVolume: lastPeriodVolume,
		listPrice:        listPrice,
		marginPercent:    marginPercent,
	}
}

func (p *Product) ID() string                { return p.id }
func (p *Product) TenantID() uuid.UUID       { return p.tenantID }
func (p *Product) Kind() entity.Kind         { return entity.KindProduct }
func (p *Product) Name() string              { return p.name }
func (p *Product) Description() string       { return p.description }
func (p *Product) ParentID() string          { return p.parentID }
func (p *Product) Path() string              { return p.path }
func (p *Product) Level() int                { return p.level }
func (p *Product) HasChildren() bool         { return p.hasChildren }
func (p *Product) LastPeriodVolume() float64 { return p.lastPeriodVolume }
func (p *Product) ListPrice() float64        { return p.listPrice }
func (p *Product) MarginPercent() float64    { return p.marginPercent }

func (p *Product) SetParentID(id string)         { p.parentID = id }
func (p *Product) SetPath(path string)           { p.path = path }
func (p *Product) SetLevel(level int)            { p.level = level }
func (p *Product) SetHasChildren(has bool)       { p.hasChildren = has }
func (p *Product) SetDescription(d string)       { p.description = d }
func (p *Product) SetLastPeriodVolume(v float64) { p.lastPeriodVolume = v }
func (p *Product) SetListPrice(v float64)        { p.listPrice = v }
func (p *Product) SetMarginPercent(v float64)    { p.marginPercent = v }
