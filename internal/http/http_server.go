package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/clb-2025.net/internal/config"
	"gitlab.com/clb-2025.net/internal/core/ports/primary"
	"gitlab.com/clb-2025.net/internal/core/ports/secondary"
	"gitlab.com/clb-2025.net/internal/core/services/dispatch"
	"gitlab.com/clb-2025.net/internal/core/services/registry"
	"gitlab.com/clb-2025.net/internal/handlers/tasks"
	"gitlab.com/clb-2025.net/internal/handlers/workers"
)

type ServiceProvider struct {
	workerRegistry  registry.IWorkerRegistry
	workerRepo      secondary.WorkerRepository
	dispatchService dispatch.IDispatchService
	dispatchCfg     *config.DispatchCfg
}

func NewServiceProvider(
	workerRegistry registry.IWorkerRegistry,
	workerRepo secondary.WorkerRepository,
	dispatchService dispatch.IDispatchService,
	dispatchCfg *config.DispatchCfg,
) *ServiceProvider {
	return &ServiceProvider{
		workerRegistry:  workerRegistry,
		workerRepo:      workerRepo,
		dispatchService: dispatchService,
		dispatchCfg:     dispatchCfg,
	}
}

type Server struct {
	router          *mux.Router
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	logger          primary.Logger
	srv             *http.Server
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	r := mux.NewRouter()
	workers.
		NewHandler(s.ServiceProvider.workerRegistry, s.ServiceProvider.workerRepo, s.ServiceProvider.dispatchCfg.StaleAfter).
		Register(r)
	tasks.
		NewTaskHandler(s.ServiceProvider.dispatchService, s.logger).
		Register(r)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
	s.router = r
	return nil
}

func (s *Server) Start(ctx context.Context) {
	// Set up server
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		s.logger.Info("Server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("Shutting down http server...")
	if s.srv != nil {
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Error("Server forced to shutdown", "error", err)
		}
	}
}
