package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quorvia/erpcore/internal/adapter/http/dto"
	"github.com/quorvia/erpcore/internal/usecase"
)

// RuleHandler handles business rule and decision table endpoints.
type RuleHandler struct {
	ruleUC *usecase.RuleUseCase
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(ruleUC *usecase.RuleUseCase) *RuleHandler {
	return &RuleHandler{ruleUC: ruleUC}
}

// CreateRule creates a business rule.
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rule, err := h.ruleUC.CreateRule(r.Context(), req.ToDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RuleFromDomain(rule))
}

// GetRule returns one rule by ID.
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.ruleUC.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RuleFromDomain(rule))
}

// CreateFunction registers a reusable rule function.
func (h *RuleHandler) CreateFunction(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateFunctionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fn, err := h.ruleUC.CreateFunction(r.Context(), req.ToDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.FunctionFromDomain(fn))
}

// EvaluateRule evaluates one rule against an entity snapshot.
func (h *RuleHandler) EvaluateRule(w http.ResponseWriter, r *http.Request) {
	var req dto.EvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.ruleUC.EvaluateByID(r.Context(), chi.URLParam(r, "id"), req.EntityID, req.Entity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EvaluationFromUseCase(res))
}

// EvaluateSet evaluates a rule set against an entity snapshot.
func (h *RuleHandler) EvaluateSet(w http.ResponseWriter, r *http.Request) {
	var req dto.EvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.ruleUC.EvaluateSet(r.Context(), chi.URLParam(r, "id"), req.EntityID, req.Entity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SetEvaluationFromUseCase(res))
}

// EvaluateForEntity evaluates every active rule bound to an entity kind.
func (h *RuleHandler) EvaluateForEntity(w http.ResponseWriter, r *http.Request) {
	var req dto.EvaluateForEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.ruleUC.EvaluateForEntity(r.Context(), req.EntityKind, req.EntityID, req.Entity)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SetEvaluationFromUseCase(res))
}

// ListExecutions lists the execution log of a rule.
func (h *RuleHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	res, err := h.ruleUC.ListExecutions(r.Context(), chi.URLParam(r, "id"), parsePage(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromResult(res, dto.RuleExecutionFromDomain))
}

// CreateTable creates a decision table.
func (h *RuleHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTableRequest
	if !decodeBody(w, r, &req) {
		return
	}

	table, err := h.ruleUC.CreateTable(r.Context(), req.ToDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TableFromDomain(table))
}

// Lookup runs a decision table lookup.
func (h *RuleHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req dto.LookupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rows, err := h.ruleUC.Lookup(r.Context(), chi.URLParam(r, "id"), req.Inputs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}
