package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Substitute alternativa terapéutica para un medicamento. (DrugName, SubstituteName) es único.
type Substitute struct {
	DrugName         string
	SubstituteName   string
	EquivalenceNotes string
	PreferenceRank   int
}

// Supplier proveedor (o hospital cercano) al que se le puede pedir stock.
type Supplier struct {
	ID               string
	Name             string
	ContactEmail     string
	LeadTimeDays     int
	IsNearbyHospital bool
	Active           bool
}

// SurgeryDrug medicamento y cantidad que consume una cirugía.
type SurgeryDrug struct {
	DrugName string          `json:"drug_name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Surgery cirugía programada.
type Surgery struct {
	ID          string
	Procedure   string
	ScheduledAt time.Time
	Status      string
	DrugsNeeded []SurgeryDrug
}
