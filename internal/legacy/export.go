// Package legacy converts progress exported from the previous document store
// into attempts. It is a one-time migration path and is not used when
// resolving status.
package legacy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Export is one student's progress as exported from the legacy store.
// Field names follow the legacy documents.
type Export struct {
	StudentID string                     `json:"student_id"`
	Profile   map[string]ProfileCounters `json:"progreso"` // keyed "año1", "año2", ...
	Progress  map[string]YearDocument    `json:"progress"` // keyed like Profile
}

// ProfileCounters are the summary counters kept on the legacy profile document.
type ProfileCounters struct {
	CompletedLevels int     `json:"nivelesCompletados"`
	ApprovedLevels  int     `json:"nivelesAprobados"`
	AverageScore    float64 `json:"promedioPuntaje"`
	Completed       bool    `json:"completado"`
	TotalLevels     int     `json:"totalNiveles"`
}

// YearDocument is the legacy per-year progress document.
type YearDocument struct {
	Tests          map[string]Test `json:"tests"`
	Resume         *Resume         `json:"resumen,omitempty"`
	TestsCompleted int             `json:"testsCompletados"`
	TestsApproved  int             `json:"testsAprobados"`
	TotalTests     int             `json:"totalTests"`
}

// Resume is the summary block embedded in a legacy year document.
type Resume struct {
	Completed      bool    `json:"completado"`
	TestsCompleted int     `json:"testsCompletados"`
	TestsApproved  int     `json:"testsAprobados"`
	Average        float64 `json:"promedioGeneral"`
}

// Test is one legacy test result. Depending on the code path that wrote it,
// any of the module references may be missing.
type Test struct {
	ModuleID       string              `json:"moduleId,omitempty"`
	TestID         FlexInt             `json:"testId,omitempty"`
	ModuloID       string              `json:"moduloId,omitempty"`     // "modulo3"
	ModuloNombre   string              `json:"moduloNombre,omitempty"` // "sistema_operativo"
	TotalQuestions int                 `json:"totalPreguntas,omitempty"`
	MaxScore       int                 `json:"puntajeMaximo,omitempty"`
	Score          *int                `json:"puntajeObtenido,omitempty"`
	Percentage     *float64            `json:"porcentaje,omitempty"`
	Approved       *bool               `json:"aprobado,omitempty"`
	Questions      map[string]Question `json:"preguntas,omitempty"` // keyed "q1", "q2", ...
	CompletedAt    string              `json:"fechaCompletado,omitempty"`
	FinishedAt     string              `json:"tiempoFin,omitempty"`
	TakenAt        string              `json:"fechaRealizacion,omitempty"`
}

// Question is a legacy per-question answer record.
type Question struct {
	UserAnswer FlexInt `json:"respuestaUsuario"`
}

// FlexInt decodes a JSON number or a numeric string. Zero means absent.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = FlexInt(n)
	return nil
}

// completedAt returns the first parseable completion timestamp.
func (t Test) completedAt() (time.Time, bool) {
	for _, v := range []string{t.CompletedAt, t.FinishedAt, t.TakenAt} {
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// DecodeExports reads either a single export object or an array of them.
func DecodeExports(r io.Reader) ([]Export, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err != nil {
			return nil, fmt.Errorf("reading export: %w", err)
		}
		if b[0] == ' ' || b[0] == '\n' || b[0] == '\r' || b[0] == '\t' {
			if _, err := br.Discard(1); err != nil {
				return nil, err
			}
			continue
		}

		dec := json.NewDecoder(br)
		if b[0] == '[' {
			var exports []Export
			if err := dec.Decode(&exports); err != nil {
				return nil, fmt.Errorf("decoding exports: %w", err)
			}
			return exports, nil
		}
		var e Export
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decoding export: %w", err)
		}
		return []Export{e}, nil
	}
}
