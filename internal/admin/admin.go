// Package admin serves the HTTP side channel of a framesock server:
// Prometheus metrics, a health probe and a snapshot of open connections.
package admin

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Zereker/framesock"
)

// Registry is the part of *framesock.Server the admin routes read.
type Registry interface {
	Connections() []*framesock.Conn
}

// ConnInfo describes one registered connection.
type ConnInfo struct {
	ID     uint64 `json:"id"`
	State  string `json:"state"`
	Remote string `json:"remote,omitempty"`
	Local  string `json:"local,omitempty"`
}

// NewRouter returns the admin routes. A nil gatherer serves the default
// Prometheus registry.
func NewRouter(reg Registry, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/connections", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Snapshot(reg))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// Snapshot lists the active connections of reg ordered by id. Connections
// still waiting in accept are left out.
func Snapshot(reg Registry) []ConnInfo {
	infos := make([]ConnInfo, 0)
	for _, c := range reg.Connections() {
		if c.State() != framesock.StateActive {
			continue
		}
		info := ConnInfo{ID: c.ID(), State: c.State().String()}
		if addr := c.RemoteAddr(); addr != nil {
			info.Remote = addr.String()
		}
		if addr := c.LocalAddr(); addr != nil {
			info.Local = addr.String()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
