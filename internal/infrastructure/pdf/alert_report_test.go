package pdf_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/pdf"
)

func TestRenderAlertReport(t *testing.T) {
	alerts := []*entity.Alert{
		{Type: entity.ActionAutoOrderPlaced, Severity: entity.SeverityWarning, DrugName: "Propofol",
			Title: "Orden recomendada: 300 vials de Propofol", Description: "Proveedor: Distribuidora Norte"},
		{Type: entity.ActionRestockNow, Severity: entity.SeverityUrgent, DrugName: "Propofol",
			Title: "Reponer Propofol", Description: "Quedan 5.0 días de stock"},
	}
	out, err := pdf.NewAlertReportGenerator().RenderAlertReport("run-123", alerts, time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, entity.SeverityWarning, alerts[0].Severity, "no reordena el slice del llamador")
}

func TestRenderAlertReport_SinAlertas(t *testing.T) {
	out, err := pdf.NewAlertReportGenerator().RenderAlertReport("run-vacio", nil, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
