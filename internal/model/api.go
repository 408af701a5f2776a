package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxInvestorInfoBytes caps the free-form investor payload stored with a
// demo session. The frontend sends a handful of fields; anything larger is
// almost certainly a misbehaving client.
const MaxInvestorInfoBytes = 16 * 1024

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Data  any          `json:"data"`
	Total int          `json:"total"`
	Limit int          `json:"limit"`
	Meta  ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInvalidTransition  = "INVALID_STATE_TRANSITION"
	ErrCodeAlreadyCompleted   = "ALREADY_COMPLETED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// StartDemoRequest is the request body for POST /api/demo/start.
// The body is optional; an empty request starts an anonymous session.
type StartDemoRequest struct {
	InvestorInfo map[string]any `json:"investor_info,omitempty"`
}

// StartDemoResponse is returned by POST /api/demo/start.
type StartDemoResponse struct {
	SessionID    uuid.UUID `json:"session_id"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	DemoDuration string    `json:"demo_duration"`
	Sections     int       `json:"sections"`
}

// CompleteDemoResponse is returned by POST /api/demo/{session_id}/complete.
type CompleteDemoResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Status    string    `json:"status"`
	EndedAt   time.Time `json:"ended_at"`
	Message   string    `json:"message"`
}

// StartPresentationRequest is the optional body for POST /api/presentation/start.
// When SessionID is set, that demo session is completed when the
// presentation runs to the end.
type StartPresentationRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}

// DemoStatusResponse is returned by GET /api/demo/status.
type DemoStatusResponse struct {
	Presentation   PresentationState `json:"presentation"`
	MetricsRunning bool              `json:"metrics_running"`
	Uptime         int64             `json:"uptime_seconds"`
}

// LiveMetricsResponse is returned by GET /api/metrics/live.
type LiveMetricsResponse struct {
	Timestamp          time.Time `json:"timestamp"`
	ActiveModels       int       `json:"active_models"`
	Accuracy           float64   `json:"accuracy"`
	ProcessingSpeed    float64   `json:"processing_speed"`
	ComponentsAnalyzed int       `json:"components_analyzed"`
	EnergySavings      int       `json:"energy_savings"`
	CarbonReduction    int       `json:"carbon_reduction"`
	ROIImprovement     float64   `json:"roi_improvement"`
	SystemStatus       string    `json:"system_status"`
	AnalysisProgress   int       `json:"analysis_progress"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	Storage        string   `json:"storage"`
	MetricsSource  string   `json:"metrics_source"`
	Presentation   string   `json:"presentation"`
	SSEBroker      string   `json:"sse_broker,omitempty"`
	CPUPercent     *float64 `json:"cpu_percent,omitempty"`
	MemUsedPercent *float64 `json:"mem_used_percent,omitempty"`
	Uptime         int64    `json:"uptime_seconds"`
}

// ValidateInvestorInfo rejects investor payloads that would bloat the
// sessions table.
func ValidateInvestorInfo(info map[string]any) error {
	if len(info) == 0 {
		return nil
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("investor_info is not valid JSON: %w", err)
	}
	if len(raw) > MaxInvestorInfoBytes {
		return fmt.Errorf("investor_info exceeds maximum size of %d bytes", MaxInvestorInfoBytes)
	}
	return nil
}
