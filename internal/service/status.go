package service

import (
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
)

// DefaultStatusFilter returns the status codes a listing shows when the
// caller has not chosen any: everything except the terminal DONE and
// CANCELLED states.
func DefaultStatusFilter(statuses []database.Status) []string {
	terminal := make(map[string]bool, len(enum.TerminalStatuses))
	for _, code := range enum.TerminalStatuses {
		terminal[code] = true
	}

	var out []string
	for _, st := range statuses {
		if !terminal[st.StatusCode] {
			out = append(out, st.StatusCode)
		}
	}
	return out
}
