package downstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pharma-sentinel/internal/application/alerting"
	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/application/reasoning"
	"github.com/jhoicas/pharma-sentinel/internal/domain"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// Tipos de proveedor.
const (
	SupplierDistributor    = "DISTRIBUTOR"
	SupplierManufacturer   = "MANUFACTURER"
	SupplierNearbyHospital = "NEARBY_HOSPITAL"
)

// defaultSupplyDays días de consumo cuando la solicitud no trae cantidad.
const defaultSupplyDays = 30

// PlacedOrder orden recomendada para un medicamento.
type PlacedOrder struct {
	DrugName              string          `json:"drug_name"`
	Quantity              decimal.Decimal `json:"quantity"`
	Unit                  string          `json:"unit"`
	Urgency               entity.Urgency  `json:"urgency"`
	RecommendedSupplier   string          `json:"recommended_supplier"`
	SupplierType          string          `json:"supplier_type"`
	EstimatedCost         decimal.Decimal `json:"estimated_cost"`
	EstimatedDeliveryDays int             `json:"estimated_delivery_days"`
	BackupSupplier        string          `json:"backup_supplier,omitempty"`
	Reasoning             string          `json:"reasoning"`
}

// TransferRequest pedido de traslado a un hospital cercano.
type TransferRequest struct {
	TargetHospital string          `json:"target_hospital"`
	DrugName       string          `json:"drug_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	Justification  string          `json:"justification"`
}

// OrdersPayload finding de la fase 4.
type OrdersPayload struct {
	Orders                   []PlacedOrder     `json:"orders"`
	HospitalTransferRequests []TransferRequest `json:"hospital_transfer_requests"`
	TotalEstimatedCost       decimal.Decimal   `json:"total_estimated_cost"`
	AlertsInserted           int               `json:"alerts_inserted"`
	AlertsSkipped            int               `json:"alerts_skipped"`
	Summary                  string            `json:"summary"`
	Fallback                 bool              `json:"fallback"`
}

func (p *OrdersPayload) summary() string { return p.Summary }

const ordersShape = `{
  "orders": [{"drug_name": "string", "quantity": 0, "unit": "string", "urgency": "EMERGENCY | EXPEDITED | ROUTINE", "recommended_supplier": "string", "supplier_type": "DISTRIBUTOR | MANUFACTURER | NEARBY_HOSPITAL", "estimated_cost": 0, "estimated_delivery_days": 0, "backup_supplier": "string", "reasoning": "string"}],
  "hospital_transfer_requests": [{"target_hospital": "string", "drug_name": "string", "quantity": 0, "justification": "string"}],
  "summary": "string"
}`

const ordersSystem = `Eres un especialista en compras farmacéuticas hospitalarias.
Recibes las solicitudes de orden (medicamento, cantidad, urgencia), los proveedores activos y los
precios actuales. Elige el mejor proveedor por urgencia, costo y confiabilidad; sugiere un
respaldo para las órdenes críticas; estima días de entrega y costo. Si conviene un traslado
entre hospitales, inclúyelo en hospital_transfer_requests.`

// OrderManager fase 4: elige proveedor por solicitud y publica alertas AUTO_ORDER_PLACED.
type OrderManager struct {
	drugs     repository.DrugRepository
	suppliers repository.SupplierRepository
	findings  repository.FindingRepository
	writer    *alerting.Writer
	reasoner  *reasoning.Client
	log       *logger.Logger
}

func NewOrderManager(
	drugs repository.DrugRepository,
	suppliers repository.SupplierRepository,
	findings repository.FindingRepository,
	writer *alerting.Writer,
	reasoner *reasoning.Client,
	log *logger.Logger,
) *OrderManager {
	return &OrderManager{
		drugs:     drugs,
		suppliers: suppliers,
		findings:  findings,
		writer:    writer,
		reasoner:  reasoner,
		log:       log.Named(entity.ProducerOrders),
	}
}

// Place procesa las solicitudes. Las alertas pasan por la deduplicación del Writer.
func (m *OrderManager) Place(ctx context.Context, runToken string, requests []entity.OrderRequest) (*entity.Finding, error) {
	if len(requests) == 0 {
		return record(ctx, m.findings, entity.ProducerOrders, runToken,
			&OrdersPayload{Orders: []PlacedOrder{}, Summary: "No se requieren órdenes."})
	}

	suppliers, err := m.suppliers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar proveedores: %w", err)
	}
	inv, err := m.drugs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar inventario: %w", err)
	}
	byName := indexDrugs(inv)

	payload, err := m.analyze(ctx, requests, suppliers, inv, byName)
	if err != nil {
		if !reasoning.IsFallback(err) {
			return nil, err
		}
		m.log.Warn().Err(err).Str("run_token", runToken).Msg("razonamiento no disponible, proveedor por defecto")
		payload = m.fallback(requests, suppliers, byName)
	}

	alerts := make([]*entity.Alert, 0, len(payload.Orders))
	for i := range payload.Orders {
		o := payload.Orders[i]
		a, err := orderAlert(runToken, o, byName)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
		payload.TotalEstimatedCost = payload.TotalEstimatedCost.Add(o.EstimatedCost)
	}
	written, err := m.writer.Write(ctx, runToken, alerts)
	if err != nil {
		return nil, err
	}
	payload.AlertsInserted, payload.AlertsSkipped = written.Inserted, written.Skipped

	m.log.Info().Str("run_token", runToken).Int("orders", len(payload.Orders)).
		Str("total_cost", payload.TotalEstimatedCost.StringFixed(2)).Msg("órdenes procesadas")
	return record(ctx, m.findings, entity.ProducerOrders, runToken, payload)
}

func (m *OrderManager) analyze(
	ctx context.Context,
	requests []entity.OrderRequest,
	suppliers []*entity.Supplier,
	inv []*entity.Drug,
	byName map[string]*entity.Drug,
) (*OrdersPayload, error) {
	pricing := make([]map[string]any, 0, len(inv))
	for _, d := range inv {
		pricing = append(pricing, map[string]any{"name": d.Name, "price_per_unit": d.PricePerUnit, "unit": d.Unit})
	}

	var out OrdersPayload
	_, err := m.reasoner.Ask(ctx, ports.ReasoningRequest{
		Task:          entity.ProducerOrders,
		System:        ordersSystem,
		Input:         map[string]any{"orders_to_process": requests, "available_suppliers": suppliers, "current_drug_pricing": pricing},
		ExpectedShape: ordersShape,
		Temperature:   0.2,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Orders == nil {
		return nil, fmt.Errorf("%w: orders ausente", domain.ErrMalformedReasoning)
	}

	// Solo órdenes para medicamentos solicitados; la urgencia la fija la solicitud.
	reqByDrug := make(map[string]entity.OrderRequest, len(requests))
	for _, r := range requests {
		reqByDrug[strings.ToLower(r.DrugName)] = r
	}
	valid := out.Orders[:0]
	seen := make(map[string]bool)
	for _, o := range out.Orders {
		key := strings.ToLower(strings.TrimSpace(o.DrugName))
		req, ok := reqByDrug[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		d := byName[key]
		o.DrugName = req.DrugName
		o.Urgency = req.Urgency
		if !o.Quantity.IsPositive() {
			o.Quantity = requestQuantity(req, d)
		}
		if d != nil {
			o.Unit = d.Unit
			if !o.EstimatedCost.IsPositive() {
				o.EstimatedCost = o.Quantity.Mul(d.PricePerUnit)
			}
		}
		if o.EstimatedCost.IsNegative() {
			o.EstimatedCost = decimal.Zero
		}
		if o.SupplierType == "" {
			o.SupplierType = SupplierDistributor
		}
		valid = append(valid, o)
	}
	out.Orders = valid
	if out.HospitalTransferRequests == nil {
		out.HospitalTransferRequests = []TransferRequest{}
	}
	out.TotalEstimatedCost = decimal.Zero
	if out.Summary == "" {
		out.Summary = fmt.Sprintf("%d órdenes recomendadas.", len(out.Orders))
	}
	return &out, nil
}

// fallback EMERGENCY va al hospital cercano si hay; el resto al proveedor de menor lead time.
func (m *OrderManager) fallback(requests []entity.OrderRequest, suppliers []*entity.Supplier, byName map[string]*entity.Drug) *OrdersPayload {
	ranked := append([]*entity.Supplier(nil), suppliers...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].LeadTimeDays < ranked[j].LeadTimeDays })

	p := &OrdersPayload{Orders: []PlacedOrder{}, HospitalTransferRequests: []TransferRequest{}, Fallback: true}
	for _, r := range requests {
		d := byName[strings.ToLower(r.DrugName)]
		o := PlacedOrder{
			DrugName: r.DrugName,
			Quantity: requestQuantity(r, d),
			Urgency:  r.Urgency,
		}
		if d != nil {
			o.Unit = d.Unit
			o.EstimatedCost = o.Quantity.Mul(d.PricePerUnit)
		}

		primary, backup := pickSupplier(ranked, r.Urgency)
		if primary == nil {
			o.Reasoning = "Sin proveedores activos registrados."
		} else {
			o.RecommendedSupplier = primary.Name
			o.SupplierType = supplierType(primary)
			o.EstimatedDeliveryDays = primary.LeadTimeDays
			o.Reasoning = fmt.Sprintf("Selección automática por urgencia %s y tiempo de entrega.", r.Urgency)
			if primary.IsNearbyHospital {
				p.HospitalTransferRequests = append(p.HospitalTransferRequests, TransferRequest{
					TargetHospital: primary.Name,
					DrugName:       r.DrugName,
					Quantity:       o.Quantity,
					Justification:  "Orden de emergencia: traslado desde hospital cercano.",
				})
			}
		}
		if backup != nil {
			o.BackupSupplier = backup.Name
		}
		p.Orders = append(p.Orders, o)
	}
	p.Summary = fmt.Sprintf("Fallback: %d órdenes con proveedor por defecto.", len(p.Orders))
	return p
}

// pickSupplier ranked viene ordenado por lead time.
func pickSupplier(ranked []*entity.Supplier, urgency entity.Urgency) (primary, backup *entity.Supplier) {
	if len(ranked) == 0 {
		return nil, nil
	}
	if urgency == entity.UrgencyEmergency {
		for _, s := range ranked {
			if s.IsNearbyHospital {
				primary = s
				break
			}
		}
	} else {
		for _, s := range ranked {
			if !s.IsNearbyHospital {
				primary = s
				break
			}
		}
	}
	if primary == nil {
		primary = ranked[0]
	}
	for _, s := range ranked {
		if s != primary {
			backup = s
			break
		}
	}
	return primary, backup
}

func supplierType(s *entity.Supplier) string {
	if s.IsNearbyHospital {
		return SupplierNearbyHospital
	}
	return SupplierDistributor
}

// requestQuantity cantidad pedida; si falta, uso diario × 30 (parte entera).
func requestQuantity(r entity.OrderRequest, d *entity.Drug) decimal.Decimal {
	if r.Quantity != nil && r.Quantity.IsPositive() {
		return *r.Quantity
	}
	if d == nil {
		return decimal.Zero
	}
	usage := d.UsageRateDaily
	if d.PredictedUsageRate != nil && d.PredictedUsageRate.IsPositive() {
		usage = *d.PredictedUsageRate
	}
	return usage.Mul(decimal.NewFromInt(defaultSupplyDays)).Truncate(0)
}

func orderAlert(runToken string, o PlacedOrder, byName map[string]*entity.Drug) (*entity.Alert, error) {
	severity := entity.SeverityWarning
	if o.Urgency == entity.UrgencyEmergency {
		severity = entity.SeverityUrgent
	}
	drugID := ""
	if d := byName[strings.ToLower(o.DrugName)]; d != nil {
		drugID = d.ID
	}
	q := o.Quantity
	payload, err := json.Marshal(alerting.ActionPayload{
		Order:   &entity.OrderRequest{DrugName: o.DrugName, Quantity: &q, Urgency: o.Urgency},
		Details: o,
	})
	if err != nil {
		return nil, fmt.Errorf("serializar orden %s: %w", o.DrugName, err)
	}
	supplier := o.RecommendedSupplier
	if supplier == "" {
		supplier = "sin proveedor"
	}
	return &entity.Alert{
		RunToken:       runToken,
		Type:           entity.ActionAutoOrderPlaced,
		Severity:       severity,
		DrugName:       o.DrugName,
		DrugID:         drugID,
		Title:          fmt.Sprintf("Orden recomendada: %s de %s", strings.TrimSpace(o.Quantity.String()+" "+o.Unit), o.DrugName),
		Description:    fmt.Sprintf("Proveedor recomendado: %s. Motivo: %s", supplier, o.Reasoning),
		ActionPayload:  payload,
		ActionRequired: alerting.ActionRequired(entity.ActionAutoOrderPlaced),
		Source:         alerting.Source(nil),
	}, nil
}
