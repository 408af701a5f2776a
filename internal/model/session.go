package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session lifecycle errors shared by every session store.
var (
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionAlreadyCompleted = errors.New("session already completed")
)

// DemoSession records one investor walkthrough. Sessions are append-only:
// created on start, completed at most once, never deleted.
type DemoSession struct {
	SessionID    uuid.UUID      `json:"session_id"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
	Completed    bool           `json:"completed"`
	InvestorInfo map[string]any `json:"investor_info,omitempty"`
}
