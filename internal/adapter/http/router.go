package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quorvia/erpcore/internal/adapter/http/handler"
	"github.com/quorvia/erpcore/internal/adapter/http/middleware"
	"github.com/quorvia/erpcore/internal/infrastructure/auth"
	"github.com/quorvia/erpcore/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	LedgerHandler     *handler.LedgerHandler
	ApprovalHandler   *handler.ApprovalHandler
	RuleHandler       *handler.RuleHandler
	AutomationHandler *handler.AutomationHandler
	CostingHandler    *handler.CostingHandler
	CreditHandler     *handler.CreditHandler
	HealthHandler     *handler.HealthHandler
	IdempotencyStore  usecase.IdempotencyStore
	JWTManager        *auth.JWTManager
	RateLimiter       *middleware.RateLimiter
	RequestLogger     *middleware.LoggingMiddleware
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if cfg.RequestLogger != nil {
		r.Use(cfg.RequestLogger.Wrap)
	} else {
		r.Use(chimiddleware.Logger)
	}
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health and telemetry endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Inbound webhooks authenticate by HMAC signature, not by bearer token.
	r.HandleFunc("/hooks/*", cfg.AutomationHandler.ReceiveWebhook)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager))
		}

		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Ledger
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.CreateAccount)
			r.Get("/", cfg.LedgerHandler.ListAccounts)
			r.Get("/{id}", cfg.LedgerHandler.GetAccount)
		})
		r.Route("/journal-entries", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.CreateEntry)
			r.Get("/", cfg.LedgerHandler.ListEntries)
			r.Get("/{id}", cfg.LedgerHandler.GetEntry)
			r.Post("/{id}/post", cfg.LedgerHandler.PostEntry)
			r.Post("/{id}/reverse", cfg.LedgerHandler.ReverseEntry)
		})
		r.Route("/fiscal-years", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.CreateFiscalYear)
		})
		r.Route("/periods", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.CreatePeriod)
			r.Post("/{id}/lock", cfg.LedgerHandler.SetPeriodLock)
		})
		r.Route("/recurring-journals", func(r chi.Router) {
			r.Post("/", cfg.LedgerHandler.CreateRecurring)
			r.Post("/run", cfg.LedgerHandler.RunRecurring)
		})
		r.Route("/reports", func(r chi.Router) {
			r.Get("/trial-balance", cfg.LedgerHandler.TrialBalance)
			r.Get("/balance-sheet", cfg.LedgerHandler.BalanceSheet)
			r.Get("/profit-loss", cfg.LedgerHandler.ProfitAndLoss)
		})

		// Approvals
		r.Route("/approval-workflows", func(r chi.Router) {
			r.Post("/", cfg.ApprovalHandler.CreateWorkflow)
			r.Get("/", cfg.ApprovalHandler.ListWorkflows)
			r.Get("/{id}", cfg.ApprovalHandler.GetWorkflow)
		})
		r.Route("/approval-requests", func(r chi.Router) {
			r.Post("/", cfg.ApprovalHandler.StartRequest)
			r.Get("/", cfg.ApprovalHandler.ListRequests)
			r.Get("/pending", cfg.ApprovalHandler.PendingRequests)
			r.Get("/pending/summary", cfg.ApprovalHandler.PendingSummary)
			r.Get("/{id}", cfg.ApprovalHandler.GetRequest)
			r.Post("/{id}/decisions", cfg.ApprovalHandler.Decide)
			r.Post("/{id}/cancel", cfg.ApprovalHandler.CancelRequest)
			r.Post("/escalate", cfg.ApprovalHandler.EscalateOverdue)
		})

		// Rules
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", cfg.RuleHandler.CreateRule)
			r.Get("/{id}", cfg.RuleHandler.GetRule)
			r.Post("/{id}/evaluate", cfg.RuleHandler.EvaluateRule)
			r.Get("/{id}/executions", cfg.RuleHandler.ListExecutions)
			r.Post("/evaluate", cfg.RuleHandler.EvaluateForEntity)
		})
		r.Route("/rule-sets", func(r chi.Router) {
			r.Post("/{id}/evaluate", cfg.RuleHandler.EvaluateSet)
		})
		r.Route("/rule-functions", func(r chi.Router) {
			r.Post("/", cfg.RuleHandler.CreateFunction)
		})
		r.Route("/decision-tables", func(r chi.Router) {
			r.Post("/", cfg.RuleHandler.CreateTable)
			r.Post("/{id}/lookup", cfg.RuleHandler.Lookup)
		})

		// Automation
		r.Route("/automations", func(r chi.Router) {
			r.Post("/", cfg.AutomationHandler.CreateWorkflow)
			r.Get("/{id}", cfg.AutomationHandler.GetWorkflow)
			r.Post("/{id}/status", cfg.AutomationHandler.SetWorkflowStatus)
			r.Get("/{id}/executions", cfg.AutomationHandler.ListExecutions)
			r.Post("/trigger", cfg.AutomationHandler.Trigger)
		})
		r.Route("/executions", func(r chi.Router) {
			r.Get("/{id}", cfg.AutomationHandler.GetExecution)
			r.Post("/{id}/resume", cfg.AutomationHandler.Resume)
			r.Post("/{id}/cancel", cfg.AutomationHandler.CancelExecution)
		})
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", cfg.AutomationHandler.CreateJob)
		})

		// Costing
		r.Route("/valuations", func(r chi.Router) {
			r.Post("/", cfg.CostingHandler.CreateValuation)
			r.Get("/", cfg.CostingHandler.ListValuations)
			r.Get("/lookup", cfg.CostingHandler.GetValuation)
		})
		r.Route("/costing", func(r chi.Router) {
			r.Post("/receipts", cfg.CostingHandler.RecordReceipt)
			r.Post("/issues", cfg.CostingHandler.RecordIssue)
		})
		r.Route("/cost-adjustments", func(r chi.Router) {
			r.Post("/", cfg.CostingHandler.CreateAdjustment)
			r.Post("/{id}/post", cfg.CostingHandler.PostAdjustment)
		})

		// Credit
		r.Route("/credit-profiles", func(r chi.Router) {
			r.Post("/", cfg.CreditHandler.CreateProfile)
			r.Get("/summary", cfg.CreditHandler.Summary)
			r.Get("/on-hold", cfg.CreditHandler.ListOnHold)
			r.Get("/high-risk", cfg.CreditHandler.ListHighRisk)
			r.Get("/{customerID}", cfg.CreditHandler.GetProfile)
			r.Put("/{customerID}/limit", cfg.CreditHandler.UpdateLimit)
			r.Post("/{customerID}/hold", cfg.CreditHandler.PlaceManualHold)
			r.Post("/{customerID}/evaluate-hold", cfg.CreditHandler.EvaluateHold)
			r.Post("/{customerID}/risk", cfg.CreditHandler.RefreshRisk)
			r.Get("/{customerID}/transactions", cfg.CreditHandler.ListTransactions)
			r.Get("/{customerID}/limit-changes", cfg.CreditHandler.ListLimitChanges)
		})
		r.Route("/credit-transactions", func(r chi.Router) {
			r.Post("/", cfg.CreditHandler.ApplyTransaction)
		})
		r.Route("/credit-holds", func(r chi.Router) {
			r.Post("/{id}/release", cfg.CreditHandler.ReleaseHold)
		})
		r.Route("/credit-alerts", func(r chi.Router) {
			r.Post("/{id}/acknowledge", cfg.CreditHandler.AcknowledgeAlert)
		})
	})

	return r
}
