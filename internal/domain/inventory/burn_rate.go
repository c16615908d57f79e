package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

// BurnRate días de cobertura del stock actual (servicio de dominio).
// Known=false significa desconocido: uso diario <= 0. Nunca se trata como 0 ni como infinito.
type BurnRate struct {
	Days  decimal.Decimal
	Known bool
}

// Unknown burn rate desconocido.
var Unknown = BurnRate{}

// Compute BurnRate = stock / uso diario, solo cuando uso > 0.
func Compute(stock, usage decimal.Decimal) BurnRate {
	if !usage.IsPositive() {
		return Unknown
	}
	return BurnRate{Days: stock.Div(usage), Known: true}
}

// FromStored envuelve un valor persistido (nil = desconocido).
func FromStored(v *decimal.Decimal) BurnRate {
	if v == nil {
		return Unknown
	}
	return BurnRate{Days: *v, Known: true}
}

// Below indica si b < n días. Un burn rate desconocido nunca cumple la comparación.
func (b BurnRate) Below(n int64) bool {
	return b.Known && b.Days.LessThan(decimal.NewFromInt(n))
}

// Rounded redondea a un decimal (formato de persistencia).
func (b BurnRate) Rounded() BurnRate {
	if !b.Known {
		return b
	}
	return BurnRate{Days: b.Days.Round(1), Known: true}
}

// Ptr devuelve el valor para persistir; nil si es desconocido.
func (b BurnRate) Ptr() *decimal.Decimal {
	if !b.Known {
		return nil
	}
	d := b.Days
	return &d
}

func (b BurnRate) String() string {
	if !b.Known {
		return "unknown"
	}
	return b.Days.StringFixed(1)
}

// Effective burn rate que usa el motor de reglas para un medicamento:
// el proyectado si hay uso proyectado > 0, si no el observado. Con uso <= 0 es desconocido.
func Effective(d *entity.Drug) BurnRate {
	if d.PredictedUsageRate != nil && d.PredictedUsageRate.IsPositive() {
		if d.PredictedBurnRateDays != nil {
			return FromStored(d.PredictedBurnRateDays)
		}
		return Compute(d.StockQuantity, *d.PredictedUsageRate)
	}
	if !d.UsageRateDaily.IsPositive() {
		return Unknown
	}
	if d.BurnRateDays != nil {
		return FromStored(d.BurnRateDays)
	}
	return Compute(d.StockQuantity, d.UsageRateDaily)
}

// Normalize recalcula los burn rates persistibles del medicamento a partir de stock y uso.
// Ignora cualquier valor previo: es la fuente determinista que usan los colectores.
func Normalize(d *entity.Drug) entity.BurnRateUpdate {
	upd := entity.BurnRateUpdate{
		DrugName:     d.Name,
		BurnRateDays: Compute(d.StockQuantity, d.UsageRateDaily).Rounded().Ptr(),
	}
	if d.PredictedUsageRate != nil {
		p := *d.PredictedUsageRate
		upd.PredictedUsageRate = &p
		upd.PredictedBurnRateDays = Compute(d.StockQuantity, p).Rounded().Ptr()
	}
	return upd
}
