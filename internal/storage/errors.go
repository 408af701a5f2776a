package storage

import (
	"github.com/retrofitforge/twin/internal/sessions"
)

// Lookup and state errors are the session registry's sentinels so callers
// match them with errors.Is without importing storage.
var (
	ErrNotFound         = sessions.ErrNotFound
	ErrAlreadyCompleted = sessions.ErrAlreadyCompleted
)
