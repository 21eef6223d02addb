// Package api serves the detection rules HTTP API. Update payloads are
// validated before they reach storage; rejected payloads are answered with
// 400 and the path of the first violated constraint.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ruleguard/config"
	"ruleguard/core"
	"ruleguard/util/goroutine"
)

// RulesPath is the mount point of the detection rules endpoints
const RulesPath = "/api/detection_engine/rules"

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RuleStorer interface for rule storage
type RuleStorer interface {
	GetRule(id string) (*core.Rule, error)
	GetRuleByRuleID(ruleID string) (*core.Rule, error)
	CreateRule(rule *core.Rule) error
	UpdateRule(update *core.RuleUpdate) (*core.Rule, error)
	DeleteRule(id string) error
	ListRules(limit, offset int) ([]core.Rule, error)
	GetRuleCount() (int64, error)
}

// HealthChecker is implemented by storages that can report their health
type HealthChecker interface {
	HealthCheck() error
}

// API holds the API server
type API struct {
	router         *mux.Router
	server         *http.Server
	serverMu       sync.Mutex
	ruleStorage    RuleStorer
	config         *config.Config
	logger         *zap.SugaredLogger
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
	stopOnce       sync.Once
	now            func() time.Time
}

// NewAPI creates a new API server. The rate limiter cleanup goroutine runs
// until Stop is called.
func NewAPI(ruleStorage RuleStorer, cfg *config.Config, logger *zap.SugaredLogger) *API {
	api := &API{
		router:       mux.NewRouter(),
		ruleStorage:  ruleStorage,
		config:       cfg,
		logger:       logger,
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}
	api.setupRoutes()
	go func() {
		defer goroutine.Recover("rate-limiter-cleanup", logger)
		api.cleanupRateLimiters()
	}()
	return api
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.accessLogMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	a.router.HandleFunc(RulesPath, a.updateRule).Methods("PUT", "PATCH")
	a.router.HandleFunc(RulesPath, a.createRule).Methods("POST")
	a.router.HandleFunc(RulesPath, a.getRule).Methods("GET")
	a.router.HandleFunc(RulesPath, a.deleteRule).Methods("DELETE")
	a.router.HandleFunc(RulesPath+"/_bulk_update", a.bulkUpdateRules).Methods("PUT", "PATCH")
	a.router.HandleFunc(RulesPath+"/_validate", a.validateRule).Methods("POST")
	a.router.HandleFunc(RulesPath+"/_find", a.findRules).Methods("GET")
	a.router.HandleFunc(RulesPath+"/_schema", a.getSchema).Methods("GET")
	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())
}

// Handler returns the routed handler with all middleware applied
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) newServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  a.config.API.ReadTimeout,
		WriteTimeout: a.config.API.WriteTimeout,
	}
}

// Start starts the API server
func (a *API) Start(addr string) error {
	return a.setServer(addr).ListenAndServe()
}

// StartTLS starts the API server with TLS
func (a *API) StartTLS(addr, certFile, keyFile string) error {
	return a.setServer(addr).ListenAndServeTLS(certFile, keyFile)
}

func (a *API) setServer(addr string) *http.Server {
	srv := a.newServer(addr)
	a.serverMu.Lock()
	a.server = srv
	a.serverMu.Unlock()
	return srv
}

// Stop stops the API server and its background goroutines
func (a *API) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.serverMu.Lock()
	srv := a.server
	a.serverMu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
