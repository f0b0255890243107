// Package api exposes the lottery over a JSON HTTP API.
//
// Mutating and operator-only routes identify the caller by an Ethereum
// personal_sign signature; see SignatureVerifier.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"lottery/domain/interfaces"
	"lottery/domain/ledger"
	"lottery/domain/services"
	"lottery/infrastructure/observability"
)

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Server serves the lottery API
type Server struct {
	factory    interfaces.UnitOfWorkFactory
	entropy    ledger.EntropySource
	verifier   *SignatureVerifier
	operator   common.Address
	health     HealthChecker
	httpServer *http.Server
}

// NewServer creates a server listening on addr. The operator is allowed to fund accounts.
func NewServer(
	addr string,
	factory interfaces.UnitOfWorkFactory,
	entropy ledger.EntropySource,
	verifier *SignatureVerifier,
	operator common.Address,
	health HealthChecker,
) *Server {
	s := &Server{
		factory:  factory,
		entropy:  entropy,
		verifier: verifier,
		operator: operator,
		health:   health,
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed API handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ledger", s.handleLedger)
	mux.HandleFunc("POST /enter", s.authenticated(s.handleEnter))
	mux.HandleFunc("GET /players", s.authenticated(s.handlePlayers))
	mux.HandleFunc("POST /pick-winner", s.authenticated(s.handlePickWinner))
	mux.HandleFunc("GET /draws", s.handleRecentDraws)
	mux.HandleFunc("GET /draws/{round}", s.handleDraw)
	mux.HandleFunc("GET /accounts/{address}", s.handleAccount)
	mux.HandleFunc("GET /accounts/{address}/history", s.handleAccountHistory)
	mux.HandleFunc("POST /accounts/{address}/deposit", s.authenticated(s.handleDeposit))

	return instrument(mux)
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		log.WithField("addr", s.httpServer.Addr).Info("Lottery API listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Lottery API server error")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// withUnitOfWork runs fn in a transaction, committing only if fn succeeds
func (s *Server) withUnitOfWork(ctx context.Context, fn func(uow interfaces.UnitOfWork) error) error {
	uow := s.factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Server) lotteryService(uow interfaces.UnitOfWork) interfaces.LotteryService {
	return services.NewLotteryService(
		uow.LedgerRepository(),
		uow.DrawRepository(),
		uow.AccountRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
		s.entropy,
	)
}

func (s *Server) accountService(uow interfaces.UnitOfWork) interfaces.AccountService {
	return services.NewAccountService(
		uow.AccountRepository(),
		uow.BalanceHistoryRepository(),
		uow.EventBus(),
	)
}

type callerHandler func(w http.ResponseWriter, r *http.Request, caller common.Address)

// authenticated resolves the signing caller before calling next
func (s *Server) authenticated(next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.verifier.Authenticate(r)
		if err != nil {
			log.WithFields(log.Fields{
				"path":  r.URL.Path,
				"error": err,
			}).Debug("Rejected request signature")
			respondWithError(w, "", err.Error(), http.StatusUnauthorized)
			return
		}
		next(w, r, caller)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument counts requests by matched route and status
func instrument(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		_, route := next.Handler(r)
		if route == "" {
			route = "unmatched"
		}
		observability.GetMetrics().RecordHTTPRequest(route, rec.status)

		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("Handled API request")
	})
}
