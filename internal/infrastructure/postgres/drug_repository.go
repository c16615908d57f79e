package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
)

var _ repository.DrugRepository = (*DrugRepo)(nil)

const drugColumns = `id, name, type, unit, criticality_rank, stock_quantity, usage_rate_daily,
	predicted_usage_rate, burn_rate_days, predicted_burn_rate_days, reorder_threshold_days,
	price_per_unit, updated_at`

// DrugRepo inventario de medicamentos (tabla drugs).
type DrugRepo struct {
	q Querier
}

// NewDrugRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDrugRepository(q Querier) *DrugRepo {
	return &DrugRepo{q: q}
}

// List devuelve el inventario ordenado por criticidad.
func (r *DrugRepo) List(ctx context.Context) ([]*entity.Drug, error) {
	rows, err := r.q.Query(ctx, `SELECT `+drugColumns+` FROM drugs ORDER BY criticality_rank, name`)
	if err != nil {
		return nil, fmt.Errorf("list drugs: %w", err)
	}
	defer rows.Close()
	var out []*entity.Drug
	for rows.Next() {
		d, err := scanDrug(rows)
		if err != nil {
			return nil, fmt.Errorf("scan drug: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByName busca sin distinguir mayúsculas. (nil, nil) si no existe.
func (r *DrugRepo) GetByName(ctx context.Context, name string) (*entity.Drug, error) {
	d, err := scanDrug(r.q.QueryRow(ctx,
		`SELECT `+drugColumns+` FROM drugs WHERE lower(name) = lower($1)`, name))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get drug: %w", err)
	}
	return d, nil
}

// UpdateBurnRates envía un UPDATE por medicamento en un solo batch.
// predicted_usage_rate solo se pisa si viene valor.
func (r *DrugRepo) UpdateBurnRates(ctx context.Context, updates []entity.BurnRateUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
			UPDATE drugs
			SET burn_rate_days           = $2,
			    predicted_usage_rate     = COALESCE($3, predicted_usage_rate),
			    predicted_burn_rate_days = $4,
			    updated_at               = now()
			WHERE lower(name) = lower($1)`,
			u.DrugName, u.BurnRateDays, u.PredictedUsageRate, u.PredictedBurnRateDays)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	n := 0
	for range updates {
		tag, err := br.Exec()
		if err != nil {
			return n, fmt.Errorf("update burn rates: %w", err)
		}
		n += int(tag.RowsAffected())
	}
	return n, nil
}

func scanDrug(row scanner) (*entity.Drug, error) {
	var d entity.Drug
	err := row.Scan(
		&d.ID, &d.Name, &d.Type, &d.Unit, &d.CriticalityRank, &d.StockQuantity, &d.UsageRateDaily,
		&d.PredictedUsageRate, &d.BurnRateDays, &d.PredictedBurnRateDays, &d.ReorderThresholdDays,
		&d.PricePerUnit, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
