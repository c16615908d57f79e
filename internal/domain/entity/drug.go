package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Drug medicamento del inventario de farmacia. Name es único.
// BurnRateDays y PredictedBurnRateDays se guardan redondeados a un decimal; nil = desconocido.
type Drug struct {
	ID                    string
	Name                  string
	Type                  string
	Unit                  string
	CriticalityRank       int // 1 = más crítico
	StockQuantity         decimal.Decimal
	UsageRateDaily        decimal.Decimal
	PredictedUsageRate    *decimal.Decimal
	BurnRateDays          *decimal.Decimal
	PredictedBurnRateDays *decimal.Decimal
	ReorderThresholdDays  int
	PricePerUnit          decimal.Decimal
	UpdatedAt             time.Time
}

// BurnRateUpdate valores recalculados que un colector persiste para un medicamento.
type BurnRateUpdate struct {
	DrugName              string
	BurnRateDays          *decimal.Decimal
	PredictedUsageRate    *decimal.Decimal
	PredictedBurnRateDays *decimal.Decimal
}
