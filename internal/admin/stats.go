// AngelaMos | 2026
// stats.go

package admin

import (
	"net/http"
	"runtime"

	"github.com/carterperez-dev/member-portal/internal/core"
	"github.com/carterperez-dev/member-portal/internal/identity"
	"github.com/carterperez-dev/member-portal/internal/pending"
)

// GetStats reports account totals and the sign-up backlog next to the
// pools backing them.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Database: h.databaseStats(),
		Runtime:  runtimeStats(),
	}

	if h.pending != nil {
		stats, err := h.pending.Stats(r.Context())
		if err != nil {
			core.WriteError(w, err, http.StatusBadRequest)
			return
		}
		resp.Pending = stats
	}

	for _, kind := range []identity.Kind{identity.KindUser, identity.KindMember} {
		list, err := h.accounts.List(r.Context(), kind, identity.ListParams{PageSize: 1})
		if err != nil {
			core.WriteError(w, err, http.StatusBadRequest)
			return
		}
		if kind == identity.KindUser {
			resp.Users = list.Total
		} else {
			resp.Members = list.Total
		}
	}

	core.OK(w, resp)
}

func (h *Handler) databaseStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func runtimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAlloc:     mem.Alloc,
	}
}

type StatsResponse struct {
	Users    int            `json:"users"`
	Members  int            `json:"members"`
	Pending  *pending.Stats `json:"pending_registrations,omitempty"`
	Database *DBPoolStats   `json:"database,omitempty"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
}
