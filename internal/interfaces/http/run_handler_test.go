package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pharma-sentinel/internal/application/dto"
	"github.com/jhoicas/pharma-sentinel/internal/domain/entity"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/memtest"
	"github.com/jhoicas/pharma-sentinel/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/pharma-sentinel/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/pharma-sentinel/pkg/jwt"
	"github.com/jhoicas/pharma-sentinel/pkg/logger"
)

type fakeRunner struct {
	mu    sync.Mutex
	full  []string
	quick []string
	last  *entity.RunReport
	done  chan string
	block chan struct{} // nil = no bloquea
}

func newFakeRunner() *fakeRunner { return &fakeRunner{done: make(chan string, 16)} }

func (f *fakeRunner) ExecuteFullRunWithToken(_ context.Context, token string) *entity.RunReport {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.full = append(f.full, token)
	f.mu.Unlock()
	f.done <- token
	return &entity.RunReport{RunToken: token}
}

func (f *fakeRunner) ExecuteQuickRunWithToken(_ context.Context, token string) *entity.RunReport {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.quick = append(f.quick, token)
	f.mu.Unlock()
	f.done <- token
	return &entity.RunReport{RunToken: token}
}

func (f *fakeRunner) LastReport() *entity.RunReport { return f.last }

type testEnv struct {
	app      *fiber.App
	runs     *apphttp.RunHandler
	runner   *fakeRunner
	alerts   *memtest.AlertRepo
	findings *memtest.FindingRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, newFakeRunner())
}

func newTestEnvWith(t *testing.T, runner *fakeRunner) *testEnv {
	t.Helper()
	env := &testEnv{
		runner:   runner,
		alerts:   memtest.NewAlertRepo(),
		findings: memtest.NewFindingRepo(),
	}
	env.app = apphttp.NewApp("test", "", "")
	env.runs = apphttp.Router(env.app, apphttp.RouterDeps{
		Runner:      env.runner,
		NewRunToken: func() string { return "run-fijo" },
		Alerts:      env.alerts,
		Findings:    env.findings,
		PDF:         pdf.NewAlertReportGenerator(),
		JWTSecret:   testJWTSecret,
		Service:     "pharma-sentinel",
		Log:         logger.Nop(),
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, role string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func waitToken(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case tok := <-ch:
		return tok
	case <-time.After(2 * time.Second):
		t.Fatal("la corrida no se ejecutó en segundo plano")
		return ""
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Disparadores manuales
// ──────────────────────────────────────────────────────────────────────────────

func TestTriggerFull_DevuelveTokenYCorreEnSegundoPlano(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/runs", pkgjwt.RolePharmacist)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var body dto.RunAcceptedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-fijo", body.RunToken)
	assert.Equal(t, "full", body.Mode)

	assert.Equal(t, "run-fijo", waitToken(t, env.runner.done))
}

func TestTriggerQuick(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/runs/quick", pkgjwt.RoleAdmin)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitToken(t, env.runner.done)
	env.runner.mu.Lock()
	defer env.runner.mu.Unlock()
	assert.Equal(t, []string{"run-fijo"}, env.runner.quick)
	assert.Empty(t, env.runner.full)
}

func TestTrigger_ViewerNoPuedeDisparar(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/runs", pkgjwt.RoleViewer)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTrigger_SinToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/runs", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTrigger_LimiteDeCorridasManuales(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 10; i++ {
		resp := env.do(t, http.MethodPost, "/api/runs/quick", pkgjwt.RoleAdmin)
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}
	resp := env.do(t, http.MethodPost, "/api/runs", pkgjwt.RoleAdmin)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "el límite es compartido por ambos disparadores")
}

func TestWait_EsperaLasCorridasManuales(t *testing.T) {
	runner := newFakeRunner()
	runner.block = make(chan struct{})
	env := newTestEnvWith(t, runner)

	resp := env.do(t, http.MethodPost, "/api/runs", pkgjwt.RoleAdmin)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	waited := make(chan struct{})
	go func() {
		env.runs.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		t.Fatal("Wait volvió con una corrida en curso")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.block)
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait no volvió al terminar la corrida")
	}
	assert.Equal(t, "run-fijo", waitToken(t, runner.done))
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas
// ──────────────────────────────────────────────────────────────────────────────

func TestHealth_Publico(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID), "cada respuesta lleva X-Request-ID")
}

func TestLast_SinCorridas404YLuegoReporte(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/runs/last", pkgjwt.RoleViewer)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env.runner.last = &entity.RunReport{RunToken: "r1", Status: entity.RunStatusSuccess}
	resp = env.do(t, http.MethodGet, "/api/runs/last", pkgjwt.RoleViewer)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "viewer puede leer aunque comparta prefijo con los disparadores")
	var got entity.RunReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, entity.RunStatusSuccess, got.Status)
}

func TestAlerts_PorCorrida(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _ = env.alerts.Insert(ctx, &entity.Alert{RunToken: "r1", Type: entity.ActionRestockNow, Severity: entity.SeverityUrgent, DrugName: "Propofol", Title: "Reponer Propofol"})
	_, _ = env.alerts.Insert(ctx, &entity.Alert{RunToken: "r2", Type: entity.ActionRestockNow, Severity: entity.SeverityUrgent, DrugName: "Heparin", Title: "Reponer Heparin"})

	resp := env.do(t, http.MethodGet, "/api/runs/r1/alerts", pkgjwt.RoleViewer)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body dto.AlertListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Propofol", body.Items[0].DrugName)
	assert.Equal(t, "RESTOCK_NOW", body.Items[0].Type)
}

func TestFindings_MarcaFallas(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.findings.Append(ctx, &entity.Finding{ProducerID: "inventory", RunToken: "r1", Payload: []byte(`{"drugs": []}`), Summary: "ok"}))
	require.NoError(t, env.findings.Append(ctx, entity.NewErrorFinding("news", "r1", assert.AnError, "")))

	resp := env.do(t, http.MethodGet, "/api/runs/r1/findings", pkgjwt.RoleViewer)
	defer resp.Body.Close()
	var got []dto.FindingResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.False(t, got[0].Failed)
	assert.True(t, got[1].Failed)
}

func TestAlertsPDF(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.alerts.Insert(context.Background(), &entity.Alert{RunToken: "r1", Type: entity.ActionShortageWarning,
		Severity: entity.SeverityWarning, DrugName: "Cisatracurium", Title: "Desabastecimiento reportado"})

	resp := env.do(t, http.MethodGet, "/api/runs/r1/alerts/pdf", pkgjwt.RoleViewer)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	resp = env.do(t, http.MethodGet, "/api/runs/vacia/alerts/pdf", pkgjwt.RoleViewer)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTriggerStats_SinGate(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/trigger/stats", pkgjwt.RoleViewer)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["enabled"])
}
