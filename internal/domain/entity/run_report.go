package entity

import "time"

// RunMode variante de corrida.
type RunMode string

const (
	RunModeFull  RunMode = "full"
	RunModeQuick RunMode = "quick"
)

// RunStatus estado final de una corrida.
type RunStatus string

const (
	RunStatusRunning             RunStatus = "running"
	RunStatusSuccess             RunStatus = "success"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
)

// Terminal indica si el estado es final.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusCompletedWithErrors || s == RunStatusFailed
}

// RunState estados de la máquina de la corrida.
type RunState string

const (
	StateStarted       RunState = "started"
	StatePhase1        RunState = "phase1"
	StatePhase2        RunState = "phase2"
	StatePhase3        RunState = "phase3"
	StatePhase3Skipped RunState = "phase3_skipped"
	StatePhase4        RunState = "phase4"
	StatePhase4Skipped RunState = "phase4_skipped"
	StateTerminal      RunState = "terminal"
)

// PhaseStatus resultado de una fase.
type PhaseStatus string

const (
	PhaseOK      PhaseStatus = "ok"
	PhaseFailed  PhaseStatus = "failed"
	PhaseSkipped PhaseStatus = "skipped"
)

// PhaseResult duración y resultado de una fase.
type PhaseResult struct {
	Name     string        `json:"name"`
	Status   PhaseStatus   `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Errors   []string      `json:"errors,omitempty"`
}

// RunReport reporte de una corrida. Siempre tiene Status y la lista de errores legibles.
type RunReport struct {
	RunToken      string        `json:"run_token"`
	Mode          RunMode       `json:"mode"`
	Status        RunStatus     `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Phases        []PhaseResult `json:"phases"`
	Transitions   []RunState    `json:"transitions"`
	Errors        []string      `json:"errors"`
	DrugWrites    int           `json:"drug_writes"`
	Decisions     int           `json:"decisions"`
	AlertsWritten int           `json:"alerts_written"`
	Summary       string        `json:"summary"`
}

// Phase busca el resultado de la fase por nombre.
func (r *RunReport) Phase(name string) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// Duration duración total de la corrida.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
