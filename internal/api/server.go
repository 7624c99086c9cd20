// Package api exposes the availability search and the reservation commit
// pipeline over JSON/HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"studiobook/internal/apperr"
	"studiobook/internal/availability"
	"studiobook/internal/metrics"
	"studiobook/internal/models"
	"studiobook/internal/reservation"
)

const actorHeader = "X-Actor-ID"

// Searcher answers availability searches.
type Searcher interface {
	Search(ctx context.Context, req availability.Request) (*availability.Result, error)
}

// Committer persists reservations and moves them through their lifecycle.
type Committer interface {
	Commit(ctx context.Context, req reservation.Request, actor string) (*reservation.Confirmation, error)
	Transition(ctx context.Context, tenantID, reservationID string, to models.ReservationStatus, actor string) (*reservation.StatusChange, error)
}

type Server struct {
	searcher  Searcher
	committer Committer
	limiter   *TenantLimiter
	logger    *zerolog.Logger
	router    *httprouter.Router
}

func NewServer(searcher Searcher, committer Committer, limiter *TenantLimiter, logger *zerolog.Logger) *Server {
	if limiter == nil {
		limiter = NewTenantLimiter(0, 0)
	}
	s := &Server{
		searcher:  searcher,
		committer: committer,
		limiter:   limiter,
		logger:    logger,
		router:    httprouter.New(),
	}
	s.router.POST("/v1/availability/search", s.instrument("search", s.handleSearch))
	s.router.POST("/v1/reservations", s.instrument("commit", s.handleCommit))
	s.router.POST("/v1/tenants/:tenantId/reservations/:id/status", s.instrument("status", s.handleStatus))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter returns the per-tenant limiter so callers can retune it.
func (s *Server) Limiter() *TenantLimiter {
	return s.limiter
}

// ListenAndServe serves until ctx is done and then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Int("port", port).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(endpoint string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r, ps)

		metrics.IncHTTP(endpoint, rec.status)
		s.logger.Info().
			Str("method", r.Method).
			Str("route", endpoint).
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("request")
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, err := availability.DecodeRequest(r.Body)
	if err != nil {
		writeError(w, err, apperr.CodeQueryFailed)
		return
	}
	if !s.limiter.Allow(req.TenantID) {
		writeRateLimited(w)
		return
	}

	res, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		writeError(w, err, apperr.CodeQueryFailed)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, err := reservation.DecodeRequest(r.Body)
	if err != nil {
		writeError(w, err, apperr.CodeInternal)
		return
	}
	if !s.limiter.Allow(req.TenantID) {
		writeRateLimited(w)
		return
	}

	conf, err := s.committer.Commit(r.Context(), req, r.Header.Get(actorHeader))
	if err != nil {
		writeError(w, err, apperr.CodeInternal)
		return
	}
	writeJSON(w, http.StatusCreated, conf)
}

type statusRequest struct {
	Status models.ReservationStatus `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := ps.ByName("tenantId")

	var body statusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, apperr.Validation(apperr.CodeValidationFailed, apperr.Issue{
			Path:    "(root)",
			Message: fmt.Sprintf("invalid request body: %v", err),
		}), apperr.CodeInternal)
		return
	}
	if !s.limiter.Allow(tenantID) {
		writeRateLimited(w)
		return
	}

	change, err := s.committer.Transition(r.Context(), tenantID, ps.ByName("id"), body.Status, r.Header.Get(actorHeader))
	if err != nil {
		writeError(w, err, apperr.CodeInternal)
		return
	}
	writeJSON(w, http.StatusOK, change)
}
