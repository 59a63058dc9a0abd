package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/duplifind/duplifind/internal/action"
	"github.com/duplifind/duplifind/internal/api/handlers"
	"github.com/duplifind/duplifind/internal/cache"
	"github.com/duplifind/duplifind/internal/pipeline"
	"github.com/duplifind/duplifind/internal/scheduler"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// New wires all routes and returns a Server ready to Run. scanCfg is used
// for scans triggered through the API; actionOpts supplies the defaults
// (trash dir, collision policy) for batches executed through the API, with
// Kind/Permanent overridden per-request.
func New(
	addr string,
	mgr *pipeline.Manager,
	c *cache.Cache,
	scanCfg pipeline.Config,
	executor *action.Executor,
	actionOpts action.Options,
	sched *scheduler.Scheduler,
	version string,
) *Server {
	state := NewState()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	statusH := &handlers.StatusHandler{Manager: mgr, Sched: sched, Version: version}
	scansH := &handlers.ScansHandler{
		Manager: mgr,
		Cache:   c,
		ScanCfg: scanCfg,
		OnStarted: func(h *pipeline.ScanHandle) {
			go watchAndRecord(state, h)
		},
	}
	groupsH := &handlers.GroupsHandler{State: state}
	executeH := &handlers.ExecuteHandler{State: state, Executor: executor, Options: actionOpts}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
			statusH.ServeHTTP(w, req, state)
		})

		r.Post("/scans", scansH.Create)
		r.Delete("/scans/current", scansH.Cancel)

		r.Get("/groups", groupsH.List)
		r.Get("/groups/stats", groupsH.Stats)
		r.Get("/groups/{index}", groupsH.Get)
		r.Post("/groups/{index}/strategy", groupsH.ApplyStrategy)

		r.Post("/execute", executeH.ServeHTTP)
	})

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: r},
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
