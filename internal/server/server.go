// Package server exposes the registry, vector index, notes journal and
// relocation engine over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/foldermate/foldermate/internal/registry"
	"github.com/foldermate/foldermate/internal/relocation"
)

// Server serves the foldermate HTTP API.
type Server struct {
	store      *registry.Store
	engine     *relocation.Engine
	configPath string
	port       int
	allowAll   bool
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server over the given store. configPath is where config
// updates are written back (runtime-only keys excluded).
func New(store *registry.Store, engine *relocation.Engine, configPath string) *Server {
	cfg := store.Config()
	s := &Server{
		store:      store,
		engine:     engine,
		configPath: configPath,
		port:       cfg.Server.Port,
		allowAll:   cfg.Server.AllowAll,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.allowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handlePutConfig)
		r.Post("/reset", s.handleReset)

		r.Get("/files", s.handleListFiles)
		r.Post("/files", s.handleInsertFile)
		r.Post("/files/notes/append", s.handleAppendNotes)
		r.Post("/files/selected", s.handleSetSelectedBatch)

		r.Route("/files/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetFile)
			r.Get("/report", s.handleGetReport)
			r.Put("/file_report", s.handlePutReport)
			r.Get("/notes", s.handleGetNotes)
			r.Put("/planned_dest", s.handlePutPlannedDest)
			r.Put("/selected", s.handlePutSelected)
			r.Get("/similar", s.handleSimilar)
		})

		r.Get("/next/{stage}", s.handleNextPath)

		r.Post("/actions/scan", s.handleScan)
		r.Post("/actions/relocate", s.handleRelocate)
	})

	return r
}

// Router returns the chi router, primarily for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("foldermate server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
