package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vectorinstitute/workspace-insights/internal/analytics"
	"github.com/vectorinstitute/workspace-insights/internal/cache"
	"github.com/vectorinstitute/workspace-insights/internal/lib/httperr"
	"github.com/vectorinstitute/workspace-insights/internal/logging"
	"github.com/vectorinstitute/workspace-insights/internal/metrics"
	"github.com/vectorinstitute/workspace-insights/internal/store"
	"github.com/vectorinstitute/workspace-insights/pkg/types"
)

const (
	version         = "0.1.0"
	otelServiceName = "workspace-insights-api"
	defaultCacheTTL = 5 * time.Minute

	maxBodyBytes int64 = 1 << 20 // 1MB
)

// healthChecker is implemented by stores with a real backend to ping.
type healthChecker interface {
	Health(ctx context.Context) error
}

// Server exposes the analytics HTTP API over the latest stored snapshot.
type Server struct {
	store       store.Store
	cache       cache.Cache
	cacheTTL    time.Duration
	requireAuth bool
	signingKey  []byte

	// now is swapped in tests for deterministic aggregation windows.
	now func() time.Time
}

// NewServer builds a Server using the provided store. Aggregate results are
// cached in c for the configured TTL.
func NewServer(st store.Store, c cache.Cache) *Server {
	ttl := defaultCacheTTL
	if v := os.Getenv("INSIGHTS_CACHE_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Server{
		store:       st,
		cache:       c,
		cacheTTL:    ttl,
		requireAuth: parseBool(os.Getenv("INSIGHTS_REQUIRE_AUTH")),
		signingKey:  []byte(os.Getenv("JWT_SIGNING_KEY")),
		now:         time.Now,
	}
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otelhttp.NewMiddleware(otelServiceName))
	r.Use(s.logMiddleware)
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/healthz", s.healthz)
		api.Get("/readyz", s.readyz)
		api.Get("/version", s.version)

		api.Group(func(g chi.Router) {
			g.Use(s.authMiddleware)

			g.Route("/analytics", func(r chi.Router) {
				r.Get("/", s.analytics)
				r.Get("/teams", s.teams)
				r.Get("/templates", s.templates)
				r.Get("/platform", s.platform)
				r.Get("/engagement", s.engagement)
				r.Get("/templates/{templateID}/teams", s.templateTeams)
				r.Get("/templates/{templateID}/companies", s.templateCompanies)
			})

			g.Route("/snapshots", func(r chi.Router) {
				r.Get("/", s.listSnapshots)
				r.Get("/{snapshotID}", s.getSnapshot)
			})

			g.Route("/participants", func(r chi.Router) {
				r.Get("/", s.listParticipants)
				r.Put("/", s.upsertParticipants)
			})
		})
	})

	return r
}

// StartHTTP listens and serves until the context is canceled.
func StartHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		_ = srv.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		spanCtx := trace.SpanContextFromContext(r.Context())
		if spanCtx.IsValid() {
			fields = append(fields, zap.String("trace_id", spanCtx.TraceID().String()))
		}
		logging.L.Info("http_request", fields...)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.requireAuth {
			next.ServeHTTP(w, r)
			return
		}
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "WI-401", "missing bearer token")
			return
		}
		tokenStr := strings.TrimPrefix(authz, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
			}
			return s.signingKey, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "WI-401", "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if hc, ok := s.store.(healthChecker); ok {
		if err := hc.Health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "WI-503", "store not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version})
}

// aggregate computes the full result for the latest snapshot, serving from
// the cache when the same snapshot was already aggregated recently.
func (s *Server) aggregate(ctx context.Context) (types.AggregateResult, error) {
	snap, err := s.store.LatestSnapshot(ctx)
	if err != nil {
		return types.AggregateResult{}, err
	}

	key := "aggregate:" + snap.Timestamp.UTC().Format(time.RFC3339)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var result types.AggregateResult
		if err := json.Unmarshal(raw, &result); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
			return result, nil
		}
	}
	metrics.CacheHitsTotal.WithLabelValues("miss").Inc()

	result := analytics.Compute(snap, s.now())
	if raw, err := json.Marshal(result); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.cacheTTL)
	}
	return result, nil
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregate(r.Context())
	if err != nil {
		s.writeAggregateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) teams(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregate(r.Context())
	if err != nil {
		s.writeAggregateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Teams)
}

func (s *Server) templates(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregate(r.Context())
	if err != nil {
		s.writeAggregateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Templates)
}

func (s *Server) platform(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregate(r.Context())
	if err != nil {
		s.writeAggregateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Platform)
}

func (s *Server) engagement(w http.ResponseWriter, r *http.Request) {
	result, err := s.aggregate(r.Context())
	if err != nil {
		s.writeAggregateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.DailyEngagement)
}

func (s *Server) templateTeams(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LatestSnapshot(r.Context())
	if err != nil {
		s.writeAggregateError(w, err)
		return
	}
	templateID := chi.URLParam(r, "templateID")
	if !templateExists(snap, templateID) {
		writeError(w, http.StatusNotFound, "WI-404", "template not found")
		return
	}
	writeJSON(w, http.StatusOK, analytics.TemplateTeamBreakdown(snap, templateID, s.now()))
}

func (s *Server) templateCompanies(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LatestSnapshot(r.Context())
	if err != nil {
		s.writeAggregateError(w, err)
		return
	}
	templateID := chi.URLParam(r, "templateID")
	if !templateExists(snap, templateID) {
		writeError(w, http.StatusNotFound, "WI-404", "template not found")
		return
	}
	writeJSON(w, http.StatusOK, analytics.TemplateCompanyRollup(snap, templateID, s.now()))
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	metas, err := s.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "WI-500", err.Error())
		return
	}
	if metas == nil {
		metas = []types.SnapshotMeta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "snapshotID")
	snap, err := s.store.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "WI-404", "snapshot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "WI-500", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) listParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := s.store.ListParticipants(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "WI-500", err.Error())
		return
	}
	if ps == nil {
		ps = []types.Participant{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) upsertParticipants(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req []types.Participant
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "WI-400", err.Error())
		return
	}
	for _, p := range req {
		if strings.TrimSpace(p.Handle) == "" {
			writeError(w, http.StatusBadRequest, "WI-400", "handle is required")
			return
		}
	}
	if err := s.store.UpsertParticipants(r.Context(), req); err != nil {
		writeError(w, http.StatusInternalServerError, "WI-500", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(req)})
}

func (s *Server) writeAggregateError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "WI-404", "no snapshot collected yet")
		return
	}
	writeError(w, http.StatusInternalServerError, "WI-500", err.Error())
}

func templateExists(snap types.Snapshot, templateID string) bool {
	for _, tpl := range snap.Templates {
		if tpl.ID == templateID {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	httperr.Write(w, status, code, msg)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on", "y", "t":
		return true
	default:
		return false
	}
}
