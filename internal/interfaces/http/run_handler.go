package http

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/pharma-sentinel/internal/application/dto"
	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/domain/repository"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

// Runner lo que el handler necesita del orquestador.
type Runner interface {
	ExecuteFullRunWithToken(ctx context.Context, runToken string) *entity.RunReport
	ExecuteQuickRunWithToken(ctx context.Context, runToken string) *entity.RunReport
	LastReport() *entity.RunReport
}

// RunHandler disparadores manuales y consulta de resultados.
type RunHandler struct {
	base     context.Context
	runner   Runner
	newToken func() string
	alerts   repository.AlertRepository
	findings repository.FindingRepository
	pdf      ports.AlertReportRenderer
	log      *logger.Logger

	runs sync.WaitGroup
}

func NewRunHandler(deps RouterDeps) *RunHandler {
	base := deps.BaseContext
	if base == nil {
		base = context.Background()
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &RunHandler{
		base:     base,
		runner:   deps.Runner,
		newToken: deps.NewRunToken,
		alerts:   deps.Alerts,
		findings: deps.Findings,
		pdf:      deps.PDF,
		log:      log.Named("http"),
	}
}

func (h *RunHandler) background(fn func()) {
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		fn()
	}()
}

// Wait espera a las corridas disparadas manualmente. Se llama antes de cerrar el pool.
func (h *RunHandler) Wait() { h.runs.Wait() }

// TriggerFull lanza una corrida completa en segundo plano y devuelve el token de inmediato.
// POST /api/runs
func (h *RunHandler) TriggerFull(c *fiber.Ctx) error {
	token := h.newToken()
	h.background(func() { h.runner.ExecuteFullRunWithToken(h.base, token) })
	h.log.Info().Str("run_token", token).Str("operator", GetOperator(c)).Msg("corrida completa disparada manualmente")
	return c.Status(fiber.StatusAccepted).JSON(dto.RunAcceptedResponse{RunToken: token, Mode: string(entity.RunModeFull), Status: "accepted"})
}

// TriggerQuick lanza una corrida rápida en segundo plano.
// POST /api/runs/quick
func (h *RunHandler) TriggerQuick(c *fiber.Ctx) error {
	token := h.newToken()
	h.background(func() { h.runner.ExecuteQuickRunWithToken(h.base, token) })
	h.log.Info().Str("run_token", token).Str("operator", GetOperator(c)).Msg("corrida rápida disparada manualmente")
	return c.Status(fiber.StatusAccepted).JSON(dto.RunAcceptedResponse{RunToken: token, Mode: string(entity.RunModeQuick), Status: "accepted"})
}

// Last devuelve el reporte de la última corrida terminada en este proceso.
// GET /api/runs/last
func (h *RunHandler) Last(c *fiber.Ctx) error {
	report := h.runner.LastReport()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "todavía no terminó ninguna corrida"})
	}
	return c.JSON(report)
}

// Alerts lista las alertas de una corrida.
// GET /api/runs/:token/alerts
func (h *RunHandler) Alerts(c *fiber.Ctx) error {
	token := c.Params("token")
	alerts, err := h.alerts.ListByRun(c.Context(), token)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := dto.AlertListResponse{RunToken: token, Items: make([]dto.AlertResponse, 0, len(alerts))}
	for _, a := range alerts {
		out.Items = append(out.Items, dto.ToAlertResponse(a))
	}
	return c.JSON(out)
}

// Findings lista la bitácora de la corrida.
// GET /api/runs/:token/findings
func (h *RunHandler) Findings(c *fiber.Ctx) error {
	findings, err := h.findings.ListByRun(c.Context(), c.Params("token"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := make([]dto.FindingResponse, 0, len(findings))
	for _, f := range findings {
		out = append(out, dto.ToFindingResponse(f))
	}
	return c.JSON(out)
}

// AlertsPDF hoja imprimible de alertas de la corrida.
// GET /api/runs/:token/alerts/pdf
func (h *RunHandler) AlertsPDF(c *fiber.Ctx) error {
	token := c.Params("token")
	alerts, err := h.alerts.ListByRun(c.Context(), token)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if len(alerts) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "la corrida no tiene alertas"})
	}
	doc, err := h.pdf.RenderAlertReport(token, alerts, time.Now())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="alertas-`+token+`.pdf"`)
	return c.Send(doc)
}
