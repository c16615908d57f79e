package entity

import (
	"strings"
	"time"
)

// ShortageType origen del registro de desabastecimiento.
type ShortageType string

const (
	ShortageFDAReported  ShortageType = "FDA_REPORTED"
	ShortageNewsInferred ShortageType = "NEWS_INFERRED"
)

// Shortage registro de desabastecimiento (reportado por el registro oficial o inferido de noticias).
type Shortage struct {
	ID             string
	DrugName       string
	Type           ShortageType
	Source         string // etiqueta legible, ej. "FDA Drug Shortages"
	SourceURL      string
	ImpactSeverity string // LOW | MEDIUM | HIGH | CRITICAL
	Description    string
	ReportedDate   *time.Time
	Resolved       bool
	CreatedAt      time.Time
}

// FromRegistry indica si la etiqueta de origen corresponde al registro FDA.
func (s Shortage) FromRegistry() bool {
	return strings.Contains(strings.ToUpper(s.Source), "FDA")
}

// RecentWithin indica si el reporte tiene fecha y cae dentro de la ventana respecto a now.
func (s Shortage) RecentWithin(now time.Time, window time.Duration) bool {
	if s.ReportedDate == nil {
		return false
	}
	return !s.ReportedDate.Before(now.Add(-window))
}
