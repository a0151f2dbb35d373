// Package server is the browser surface: a login gate, a Leaflet map of the
// parcels next to a selectable table, the lead list download, health and
// metrics.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"parcelview/internal/colorscale"
	"parcelview/internal/config"
	"parcelview/internal/dataset"
	"parcelview/internal/logging"
	"parcelview/internal/metrics"
	"parcelview/internal/session"
)

// DatasetSource yields the dataset to render.
type DatasetSource interface {
	Dataset(ctx context.Context) (*dataset.Dataset, error)
}

// Deps are the collaborators the server needs.
type Deps struct {
	Sessions  *session.Manager
	Data      DatasetSource
	Attribute string
	Mode      colorscale.Mode
	Tiles     []config.Tile
	LoginRate int // login attempts per minute per IP; 0 disables the limit
	Secure    bool
	Logger    *log.Logger
}

// Server renders one dataset for many sessions.
type Server struct {
	deps Deps

	mu     sync.Mutex
	scales map[string]*colorscale.Scale // by dataset key
}

// New returns a Server.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return &Server{deps: d, scales: make(map[string]*colorscale.Scale)}
}

// BuildRouter wires every route.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(s.accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]bool{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/login", s.handleLoginPage)
	r.Group(func(r chi.Router) {
		if s.deps.LoginRate > 0 {
			r.Use(httprate.LimitByIP(s.deps.LoginRate, time.Minute))
		}
		r.Post("/login", s.handleLogin)
	})
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession(true))
		r.Get("/", s.handleMapPage)
		r.Get("/"+leadsPath, s.handleLeads)
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(s.requireSession(false))
		r.Get("/layer", s.handleLayer)
		r.Get("/table", s.handleTable)
		r.Get("/view", s.handleView)
		r.Post("/select", s.handleSelect)
	})
	return r
}

const leadsPath = "leads.csv"

// scale returns the fitted scale for ds, fitting it on first use.
func (s *Server) scale(ds *dataset.Dataset) (*colorscale.Scale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.scales[ds.Key]; ok {
		return sc, nil
	}
	sc, err := colorscale.Build(ds, s.deps.Attribute, s.deps.Mode)
	if err != nil {
		return nil, err
	}
	s.scales[ds.Key] = sc
	return sc, nil
}

// load returns the dataset and its scale.
func (s *Server) load(ctx context.Context) (*dataset.Dataset, *colorscale.Scale, error) {
	ds, err := s.deps.Data.Dataset(ctx)
	if err != nil {
		return nil, nil, err
	}
	sc, err := s.scale(ds)
	if err != nil {
		return nil, nil, err
	}
	return ds, sc, nil
}
