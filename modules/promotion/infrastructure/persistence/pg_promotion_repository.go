package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/tradelift/tradelift-sdk/modules/promotion/domain/promotion"
)

// PgPromotionHistoryRepository persists promotion outcomes, one row per
// record, indexed for the uplift model's most-recent-by-type query.
type PgPromotionHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewPgPromotionHistoryRepository(pool *pgxpool.Pool) *PgPromotionHistoryRepository {
	return &PgPromotionHistoryRepository{pool: pool}
}

const promotionSchemaSQL = `
CREATE TABLE IF NOT EXISTS promotion_records (
	id                        uuid        PRIMARY KEY,
	tenant_id                 uuid        NOT NULL,
	promotion_type            text        NOT NULL,
	status                    text        NOT NULL,
	discount_percent          double precision NOT NULL DEFAULT 0,
	planned_baseline_volume   double precision NOT NULL DEFAULT 0,
	actual_promotional_volume double precision NOT NULL DEFAULT 0,
	start_date                timestamptz NOT NULL,
	end_date                  timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS promotion_records_type_idx
	ON promotion_records (tenant_id, promotion_type, status, end_date DESC);
`

func (r *PgPromotionHistoryRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, promotionSchemaSQL)
	return errors.Wrap(err, "promotion schema")
}

func (r *PgPromotionHistoryRepository) Save(ctx context.Context, rec *promotion.Record) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO promotion_records (
	id, tenant_id, promotion_type, status, discount_percent,
	planned_baseline_volume, actual_promotional_volume, start_date, end_date
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	actual_promotional_volume = EXCLUDED.actual_promotional_volume
`,
		rec.ID(), rec.TenantID(), rec.PromotionType(), string(rec.Status()), rec.DiscountPercent(),
		rec.PlannedBaselineVolume(), rec.ActualPromotionalVolume(), rec.StartDate(), rec.EndDate(),
	)
	return errors.Wrapf(err, "save promotion %s", rec.ID())
}

func (r *PgPromotionHistoryRepository) FindCompletedByType(ctx context.Context, tenantID uuid.UUID, promotionType string, limit int) ([]*promotion.Record, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, tenant_id, promotion_type, status, discount_percent,
	planned_baseline_volume, actual_promotional_volume, start_date, end_date
FROM promotion_records
WHERE tenant_id = $1 AND promotion_type = $2 AND status = $3
ORDER BY end_date DESC
LIMIT $4
`, tenantID, promotionType, string(promotion.StatusCompleted), limit)
	if err != nil {
		return nil, errors.Wrap(err, "find completed promotions")
	}
	defer rows.Close()

	out := make([]*promotion.Record, 0, limit)
	for rows.Next() {
		var (
			id, tenant                uuid.UUID
			promoType, status         string
			discount, planned, actual float64
			startDate, endDate        time.Time
		)
		if err := rows.Scan(&id, &tenant, &promoType, &status, &discount, &planned, &actual, &startDate, &endDate); err != nil {
			return nil, errors.Wrap(err, "scan promotion record")
		}
		out = append(out, promotion.Hydrate(
			id, tenant, promoType, promotion.Status(status),
			discount, planned, actual, startDate, endDate,
		))
	}
	return out, rows.Err()
}
