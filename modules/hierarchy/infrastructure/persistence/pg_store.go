package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/customer"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/entity"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/domain/product"
	"github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
)

// PgHierarchyStore persists customers and products in one table keyed by
// (tenant_id, id), with a btree index on path for prefix scans.
type PgHierarchyStore struct {
	pool *pgxpool.Pool
}

func NewPgHierarchyStore(pool *pgxpool.Pool) *PgHierarchyStore {
	return &PgHierarchyStore{pool: pool}
}

const hierarchySchemaSQL = `
CREATE TABLE IF NOT EXISTS hierarchy_entities (
	tenant_id            uuid        NOT NULL,
	id                   text        NOT NULL,
	kind                 text        NOT NULL,
	name                 text        NOT NULL,
	description          text        NOT NULL DEFAULT '',
	parent_id            text,
	path                 text        NOT NULL,
	level                int         NOT NULL,
	has_children         boolean     NOT NULL DEFAULT false,
	last_period_sales    double precision NOT NULL DEFAULT 0,
	responsiveness_score double precision NOT NULL DEFAULT 0,
	rfm_label            text        NOT NULL DEFAULT '',
	last_period_volume   double precision NOT NULL DEFAULT 0,
	list_price           double precision NOT NULL DEFAULT 0,
	margin_percent       double precision NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS hierarchy_entities_path_idx
	ON hierarchy_entities (tenant_id, path text_pattern_ops);
`

// EnsureSchema creates the backing table and path index when absent.
func (s *PgHierarchyStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, hierarchySchemaSQL)
	return errors.Wrap(err, "hierarchy schema")
}

const entityColumns = `
	id, kind, name, description, parent_id, path, level, has_children,
	last_period_sales, responsiveness_score, rfm_label,
	last_period_volume, list_price, margin_percent`

func (s *PgHierarchyStore) FindByID(ctx context.Context, tenantID uuid.UUID, id string) (entity.Entity, error) {
	row := s.pool.QueryRow(ctx, `
SELECT`+entityColumns+`
FROM hierarchy_entities
WHERE tenant_id = $1 AND id = $2
`, tenantID, id)
	e, err := scanEntity(tenantID, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrEntityNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find %q", id)
	}
	return e, nil
}

func (s *PgHierarchyStore) Find(ctx context.Context, tenantID uuid.UUID, f services.Filter) ([]entity.Entity, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.ParentID != nil {
		if *f.ParentID == "" {
			where = append(where, "parent_id IS NULL")
		} else {
			args = append(args, *f.ParentID)
			where = append(where, fmt.Sprintf("parent_id = $%d", len(args)))
		}
	}
	if f.PathPrefix != "" {
		args = append(args, escapeLike(f.PathPrefix)+"%")
		where = append(where, fmt.Sprintf("path LIKE $%d", len(args)))
	}
	if f.MaxLevel != nil {
		args = append(args, *f.MaxLevel)
		where = append(where, fmt.Sprintf("level <= $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx, `
SELECT`+entityColumns+`
FROM hierarchy_entities
WHERE `+strings.Join(where, " AND ")+`
ORDER BY path ASC
`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "find entities")
	}
	defer rows.Close()

	out := make([]entity.Entity, 0, 32)
	for rows.Next() {
		e, err := scanEntity(tenantID, rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan entity")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PgHierarchyStore) Insert(ctx context.Context, tenantID uuid.UUID, e entity.Entity) error {
	var lastPeriodSales, responsiveness float64
	var rfmLabel string
	var lastPeriodVolume, listPrice, marginPercent float64
	switch v := e.(type) {
	case *customer.Customer:
		lastPeriodSales = v.LastPeriodSales()
		responsiveness = v.ResponsivenessScore()
		rfmLabel = v.RFMLabel()
	case *product.Product:
		lastPeriodVolume = v.LastPeriodVolume()
		listPrice = v.ListPrice()
		marginPercent = v.MarginPercent()
	}

	_, err := s.pool.Exec(ctx, `
INSERT INTO hierarchy_entities (
	tenant_id,`+entityColumns+`
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`,
		tenantID, e.ID(), string(e.Kind()), e.Name(), e.Description(),
		nullableParent(e.ParentID()), e.Path(), e.Level(), e.HasChildren(),
		lastPeriodSales, responsiveness, rfmLabel,
		lastPeriodVolume, listPrice, marginPercent,
	)
	return errors.Wrapf(err, "insert %q", e.ID())
}

func (s *PgHierarchyStore) UpdateOne(ctx context.Context, tenantID uuid.UUID, id string, p services.Patch) error {
	set, args := patchSet(p, []any{tenantID, id})
	if len(set) == 0 {
		return nil
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE hierarchy_entities
SET `+strings.Join(set, ", ")+`
WHERE tenant_id = $1 AND id = $2
`, args...)
	if err != nil {
		return errors.Wrapf(err, "update %q", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(services.ErrEntityNotFound, "update %q", id)
	}
	return nil
}

func (s *PgHierarchyStore) BulkUpdate(ctx context.Context, tenantID uuid.UUID, patches []services.PatchByID) error {
	batch := &pgx.Batch{}
	for _, patch := range patches {
		set, args := patchSet(patch.Patch, []any{tenantID, patch.ID})
		if len(set) == 0 {
			continue
		}
		batch.Queue(`
UPDATE hierarchy_entities
SET `+strings.Join(set, ", ")+`
WHERE tenant_id = $1 AND id = $2
`, args...)
	}
	if batch.Len() == 0 {
		return nil
	}
	return errors.Wrap(s.pool.SendBatch(ctx, batch).Close(), "bulk update")
}

func (s *PgHierarchyStore) DeleteMany(ctx context.Context, tenantID uuid.UUID, f services.Filter) (int64, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.ParentID != nil {
		if *f.ParentID == "" {
			where = append(where, "parent_id IS NULL")
		} else {
			args = append(args, *f.ParentID)
			where = append(where, fmt.Sprintf("parent_id = $%d", len(args)))
		}
	}
	if f.PathPrefix != "" {
		args = append(args, escapeLike(f.PathPrefix)+"%")
		where = append(where, fmt.Sprintf("path LIKE $%d", len(args)))
	}
	if f.MaxLevel != nil {
		args = append(args, *f.MaxLevel)
		where = append(where, fmt.Sprintf("level <= $%d", len(args)))
	}

	tag, err := s.pool.Exec(ctx, `
DELETE FROM hierarchy_entities WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, errors.Wrap(err, "delete entities")
	}
	return tag.RowsAffected(), nil
}

func (s *PgHierarchyStore) CountPrefix(ctx context.Context, tenantID uuid.UUID, pathPrefix string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
SELECT count(*) FROM hierarchy_entities
WHERE tenant_id = $1 AND path LIKE $2
`, tenantID, escapeLike(pathPrefix)+"%").Scan(&n)
	return n, errors.Wrap(err, "count prefix")
}

func patchSet(p services.Patch, args []any) ([]string, []any) {
	set := make([]string, 0, 4)
	if p.ParentID != nil {
		args = append(args, nullableParent(*p.ParentID))
		set = append(set, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if p.Path != nil {
		args = append(args, *p.Path)
		set = append(set, fmt.Sprintf("path = $%d", len(args)))
	}
	if p.Level != nil {
		args = append(args, *p.Level)
		set = append(set, fmt.Sprintf("level = $%d", len(args)))
	}
	if p.HasChildren != nil {
		args = append(args, *p.HasChildren)
		set = append(set, fmt.Sprintf("has_children = $%d", len(args)))
	}
	return set, args
}

func nullableParent(parentID string) any {
	if parentID == "" {
		return nil
	}
	return parentID
}

// escapeLike escapes LIKE metacharacters so path prefixes match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func scanEntity(tenantID uuid.UUID, row pgx.Row) (entity.Entity, error) {
	var (
		id, kind, name, description string
		parent                      pgtype.Text
		path                        string
		level                       int
		hasChildren                 bool
		lastPeriodSales             float64
		responsiveness              float64
		rfmLabel                    string
		lastPeriodVolume            float64
		listPrice                   float64
		marginPercent               float64
	)
	if err := row.Scan(
		&id, &kind, &name, &description, &parent, &path, &level, &hasChildren,
		&lastPeriodSales, &responsiveness, &rfmLabel,
		&lastPeriodVolume, &listPrice, &marginPercent,
	); err != nil {
		return nil, err
	}

	parentID := ""
	if parent.Valid {
		parentID = parent.String
	}

	switch entity.Kind(kind) {
	case entity.KindCustomer:
		return customer.Hydrate(
			tenantID, id, name, description, parentID, path, level, hasChildren,
			lastPeriodSales, responsiveness, rfmLabel,
		), nil
	case entity.KindProduct:
		return product.Hydrate(
			tenantID, id, name, description, parentID, path, level, hasChildren,
			lastPeriodVolume, listPrice, marginPercent,
		), nil
	default:
		return nil, errors.Errorf("unknown entity kind %q", kind)
	}
}
