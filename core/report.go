package core

import (
	"encoding/json"
	"time"
)

// ValidationIssue is one reported Error/Warning/Info entry in a report.
// Info issues appear here too but never affect the overall pass/fail
// outcome.
type ValidationIssue struct {
	CheckName      string
	ConstraintName string
	Level          Level
	Message        string
	Metric         *float64
}

// ValidationMetrics summarizes one suite run.
type ValidationMetrics struct {
	TotalChecks     int
	PassedChecks    int
	FailedChecks    int
	SkippedChecks   int
	ExecutionTimeMS int64
	CustomMetrics   map[string]float64
}

// ValidationReport is the typed result of running a Suite: metrics plus
// issues, timestamped at completion.
type ValidationReport struct {
	SuiteName string
	Timestamp time.Time
	Metrics   ValidationMetrics
	Issues    []ValidationIssue
}

// ValidationResult is the sum type Success{metrics,report} |
// Failure{report}: failure iff any Error-level constraint failed.
type ValidationResult struct {
	Ok      bool
	Metrics ValidationMetrics
	Report  ValidationReport
}

func (r ValidationResult) IsSuccess() bool { return r.Ok }

type jsonIssue struct {
	CheckName      string   `json:"check_name"`
	ConstraintName string   `json:"constraint_name"`
	Level          string   `json:"level"`
	Message        string   `json:"message"`
	Metric         *float64 `json:"metric,omitempty"`
}

type jsonMetrics struct {
	TotalChecks     int                `json:"total_checks"`
	PassedChecks    int                `json:"passed_checks"`
	FailedChecks    int                `json:"failed_checks"`
	SkippedChecks   int                `json:"skipped_checks"`
	ExecutionTimeMS int64              `json:"execution_time_ms"`
	CustomMetrics   map[string]float64 `json:"custom_metrics,omitempty"`
}

type jsonReport struct {
	SuiteName string      `json:"suite_name"`
	Timestamp string      `json:"timestamp"`
	Metrics   jsonMetrics `json:"metrics"`
	Issues    []jsonIssue `json:"issues"`
}

type jsonResult struct {
	Status  string       `json:"status"`
	Report  jsonReport   `json:"report"`
	Metrics *jsonMetrics `json:"metrics,omitempty"`
}

func toJSONReport(r ValidationReport) jsonReport {
	issues := make([]jsonIssue, len(r.Issues))
	for i, is := range r.Issues {
		issues[i] = jsonIssue{
			CheckName:      is.CheckName,
			ConstraintName: is.ConstraintName,
			Level:          is.Level.String(),
			Message:        is.Message,
			Metric:         is.Metric,
		}
	}
	return jsonReport{
		SuiteName: r.SuiteName,
		Timestamp: r.Timestamp.Format(time.RFC3339),
		Metrics: jsonMetrics{
			TotalChecks:     r.Metrics.TotalChecks,
			PassedChecks:    r.Metrics.PassedChecks,
			FailedChecks:    r.Metrics.FailedChecks,
			SkippedChecks:   r.Metrics.SkippedChecks,
			ExecutionTimeMS: r.Metrics.ExecutionTimeMS,
			CustomMetrics:   r.Metrics.CustomMetrics,
		},
		Issues: issues,
	}
}

// MarshalJSON produces the stable report JSON shape:
// status, report (always present), and a top-level metrics field that is
// present only on success.
func (r ValidationResult) MarshalJSON() ([]byte, error) {
	out := jsonResult{Report: toJSONReport(r.Report)}
	if r.Ok {
		out.Status = "success"
		m := toJSONReport(r.Report).Metrics
		out.Metrics = &m
	} else {
		out.Status = "failure"
	}
	return json.Marshal(out)
}
