package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-image-studio/internal/domain"
	"ai-image-studio/internal/domain/ports/adapter"
	"ai-image-studio/internal/infra/logging"
	"ai-image-studio/internal/usecase"
)

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	ModelID         string
}

type Server struct {
	genUC     usecase.GenerationUseCase
	projectUC usecase.ProjectUseCase
	billingUC usecase.BillingUseCase
	verifier  adapter.IdentityVerifier
	cfg       ServerConfig
	log       *zerolog.Logger
}

func NewServer(
	genUC usecase.GenerationUseCase,
	projectUC usecase.ProjectUseCase,
	billingUC usecase.BillingUseCase,
	verifier adapter.IdentityVerifier,
	cfg ServerConfig,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		genUC:     genUC,
		projectUC: projectUC,
		billingUC: billingUC,
		verifier:  verifier,
		cfg:       cfg,
		log:       &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook deliveries authenticate with a signature, not a user.
		r.Post("/billing/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/generate", s.handleGenerate)
			r.Get("/projects", s.handleListProjects)
			r.Delete("/projects", s.handleDeleteProject)
			r.Get("/subscription", s.handleSubscription)
			r.Post("/billing/checkout", s.handleCheckout)
			r.Post("/billing/portal", s.handlePortal)
		})
	})
	return r
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.cfg.Port).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type ctxKey string

const identityKey ctxKey = "identity"

// authMiddleware authenticates the bearer token and stashes the caller's
// identity in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, s.log, domain.ErrUnauthenticated)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeError(w, s.log, domain.ErrUnauthenticated)
			return
		}

		identity, err := s.verifier.Verify(parts[1])
		if err != nil {
			writeError(w, s.log, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		ctx = logging.WithUserID(ctx, identity.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(logging.WithTraceID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}

func identityFrom(ctx context.Context) (*adapter.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*adapter.Identity)
	return id, ok
}
