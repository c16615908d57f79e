// Package pdf genera la hoja imprimible de alertas de una corrida.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Pharma Sentinel      │  Run token + Fecha          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: conteo por severidad                              │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Severidad | Tipo | Medicamento | Título              │
//	│         (descripción debajo de cada fila)                   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR con el run token + leyenda                      │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"sort"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
)

var _ ports.AlertReportRenderer = (*AlertReportGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}

	severityColors = map[entity.Severity]*props.Color{
		entity.SeverityCritical: {Red: 176, Green: 0, Blue: 32},
		entity.SeverityUrgent:   {Red: 214, Green: 96, Blue: 0},
		entity.SeverityWarning:  {Red: 170, Green: 140, Blue: 0},
		entity.SeverityInfo:     colorGray,
	}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// AlertReportGenerator implementa ports.AlertReportRenderer usando Maroto v2.
type AlertReportGenerator struct{}

func NewAlertReportGenerator() *AlertReportGenerator { return &AlertReportGenerator{} }

// RenderAlertReport genera el PDF y devuelve sus bytes. Las alertas se ordenan por severidad descendente.
func (g *AlertReportGenerator) RenderAlertReport(runToken string, alerts []*entity.Alert, generatedAt time.Time) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Alertas de farmacia", true).
		WithAuthor("Pharma Sentinel", true).
		Build()

	m := maroto.New(cfg)

	sorted := make([]*entity.Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})

	m.AddRows(headerRow(runToken, generatedAt))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(sorted))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	if len(sorted) == 0 {
		m.AddRows(row.New(10).Add(col.New(12).Add(
			text.New("Sin alertas para esta corrida.", props.Text{Size: 9, Align: align.Center, Top: 3, Color: colorGray}),
		)))
	} else {
		m.AddRows(tableHeaderRow())
		for _, r := range alertRows(sorted) {
			m.AddRows(r)
		}
	}

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow(runToken))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(runToken string, generatedAt time.Time) core.Row {
	return row.New(18).Add(
		col.New(6).Add(
			text.New("PHARMA SENTINEL", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Alertas de inventario y abastecimiento", props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(6).Add(
			text.New("CORRIDA", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(runToken, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Top: 7,
			}),
			text.New("Generado: "+generatedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// summaryRow: una columna por severidad con su conteo.
func summaryRow(alerts []*entity.Alert) core.Row {
	counts := map[entity.Severity]int{}
	for _, a := range alerts {
		counts[a.Severity]++
	}
	cell := func(s entity.Severity) core.Col {
		return col.New(3).Add(
			text.New(string(s), props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Center, Color: severityColors[s], Top: 1}),
			text.New(fmt.Sprint(counts[s]), props.Text{Style: fontstyle.Bold, Size: 12, Align: align.Center, Top: 6}),
		)
	}
	return row.New(14).Add(
		cell(entity.SeverityCritical),
		cell(entity.SeverityUrgent),
		cell(entity.SeverityWarning),
		cell(entity.SeverityInfo),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Severidad", 2, align.Left),
		h("Tipo", 3, align.Left),
		h("Medicamento", 2, align.Left),
		h("Título", 5, align.Left),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

// alertRows: una fila por alerta más la descripción debajo.
func alertRows(alerts []*entity.Alert) []core.Row {
	result := make([]core.Row, 0, len(alerts)*2)
	for _, a := range alerts {
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(string(a.Severity), props.Text{
				Style: fontstyle.Bold, Size: 8, Top: 1, Left: 1, Color: severityColors[a.Severity],
			})),
			col.New(3).Add(text.New(string(a.Type), props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(2).Add(text.New(a.DrugName, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(5).Add(text.New(a.Title, props.Text{Style: fontstyle.Bold, Size: 8, Top: 1, Left: 1})),
		))
		if a.Description != "" {
			result = append(result, row.New(8).Add(
				col.New(2),
				col.New(10).Add(text.New(a.Description, props.Text{Size: 7, Top: 0.5, Left: 1, Color: colorGray})),
			))
		}
	}
	return result
}

func footerRow(runToken string) core.Row {
	return row.New(30).Add(
		col.New(3).Add(code.NewQr(runToken, props.Rect{Percent: 90, Center: true})),
		col.New(9).Add(
			text.New("Escanee el código para consultar la corrida en el panel.", props.Text{
				Size: 8, Top: 4, Left: 3, Color: colorGray,
			}),
			text.New("Las recomendaciones requieren validación del químico farmacéutico responsable.", props.Text{
				Size: 7, Top: 14, Left: 3, Color: colorGray,
			}),
		),
	)
}
