package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/rulexpr"
)

// RuleUseCase evaluates business rules and decision tables.
type RuleUseCase struct {
	ruleRepo  RuleRepository
	tableRepo DecisionTableRepository
	cache     Cache
	idGen     IDGenerator
	clock     Clock
}

// NewRuleUseCase creates a new RuleUseCase.
func NewRuleUseCase(ruleRepo RuleRepository, tableRepo DecisionTableRepository, idGen IDGenerator, clock Clock) *RuleUseCase {
	return &RuleUseCase{
		ruleRepo:  ruleRepo,
		tableRepo: tableRepo,
		idGen:     idGen,
		clock:     clock,
	}
}

// tableCacheTTL bounds how stale a cached decision table can get.
const tableCacheTTL = 5 * time.Minute

// WithCache enables decision-table caching for Lookup. Tables change
// rarely relative to how often pricing and approval paths hit them.
func (uc *RuleUseCase) WithCache(cache Cache) *RuleUseCase {
	uc.cache = cache
	return uc
}

// CreateRule persists a business rule.
func (uc *RuleUseCase) CreateRule(ctx context.Context, rule *domain.Rule) (*domain.Rule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if _, err := rulexpr.Parse(rule.Condition); err != nil {
		return nil, domain.Validation("rule_condition_invalid", "condition does not parse: %v", err)
	}
	if len(rule.Actions) > 0 {
		if _, err := rulexpr.ParseActions(rule.Actions); err != nil {
			return nil, domain.Validation("rule_actions_invalid", "actions do not parse: %v", err)
		}
	}
	if len(rule.ElseActions) > 0 {
		if _, err := rulexpr.ParseActions(rule.ElseActions); err != nil {
			return nil, domain.Validation("rule_actions_invalid", "else actions do not parse: %v", err)
		}
	}

	now := uc.clock.Now().UTC()
	rule.ID = uc.idGen.Generate()
	rule.Version = 1
	if rule.Status == "" {
		rule.Status = domain.RuleActive
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := uc.ruleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// CreateFunction persists a user-defined expression function.
func (uc *RuleUseCase) CreateFunction(ctx context.Context, fn *domain.RuleFunction) (*domain.RuleFunction, error) {
	if err := fn.Validate(); err != nil {
		return nil, err
	}
	if _, err := rulexpr.Parse(fn.Body); err != nil {
		return nil, domain.Validation("function_body_invalid", "function body does not parse: %v", err)
	}
	now := uc.clock.Now().UTC()
	fn.ID = uc.idGen.Generate()
	fn.CreatedAt = now
	fn.UpdatedAt = now
	if err := uc.ruleRepo.CreateFunction(ctx, fn); err != nil {
		return nil, err
	}
	return fn, nil
}

// ExecutionResult is the outcome of evaluating one rule.
type ExecutionResult struct {
	RuleID   string
	RuleCode string
	Matched  bool
	Effects  []rulexpr.Effect
	Err      error
	Duration time.Duration
}

// Evaluate evaluates a rule against an entity and persists the
// execution record. Evaluation errors land in the record with
// matched=false; they do not propagate.
func (uc *RuleUseCase) Evaluate(ctx context.Context, rule *domain.Rule, entityID string, entity map[string]any) (*ExecutionResult, error) {
	env, err := uc.buildEnv(ctx, entity)
	if err != nil {
		return nil, err
	}
	return uc.evaluateInEnv(ctx, rule, entityID, env)
}

// EvaluateByID loads and evaluates a single rule.
func (uc *RuleUseCase) EvaluateByID(ctx context.Context, ruleID, entityID string, entity map[string]any) (*ExecutionResult, error) {
	rule, err := uc.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	return uc.Evaluate(ctx, rule, entityID, entity)
}

// evaluateInEnv runs one rule in a prepared environment so sequential
// sets share mutated context.
func (uc *RuleUseCase) evaluateInEnv(ctx context.Context, rule *domain.Rule, entityID string, env *rulexpr.Env) (*ExecutionResult, error) {
	now := uc.clock.Now().UTC()
	if !rule.EffectiveAt(now) {
		return nil, domain.ErrRuleNotEffective
	}

	start := time.Now()
	result := &ExecutionResult{RuleID: rule.ID, RuleCode: rule.Code}

	cond, err := rulexpr.Parse(rule.Condition)
	if err == nil {
		result.Matched, err = rulexpr.EvalBool(cond, env)
	}

	if err == nil {
		actions := rule.Actions
		if !result.Matched {
			actions = rule.ElseActions
		}
		if len(actions) > 0 {
			var parsed []rulexpr.Action
			parsed, err = rulexpr.ParseActions(actions)
			if err == nil {
				result.Effects, err = rulexpr.Apply(parsed, env)
			}
		}
	}

	result.Err = err
	result.Duration = time.Since(start)
	if err != nil && !isFailAction(err) {
		// Evaluation errors record matched=false, nothing fires.
		result.Matched = false
		result.Effects = nil
	}

	exec := &domain.RuleExecution{
		ID:         uc.idGen.Generate(),
		RuleID:     rule.ID,
		RuleCode:   rule.Code,
		EntityKind: rule.EntityKind,
		EntityID:   entityID,
		Conditions: rule.Condition,
		Matched:    result.Matched,
		Duration:   result.Duration,
		ExecutedAt: now,
	}
	if result.Err != nil {
		exec.Error = result.Err.Error()
	}
	if len(result.Effects) > 0 {
		if raw, mErr := json.Marshal(result.Effects); mErr == nil {
			exec.ExecutedActions = raw
		}
	}
	if err := uc.ruleRepo.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}
	return result, nil
}

func isFailAction(err error) bool {
	var fe *rulexpr.FailError
	return errors.As(err, &fe)
}

// SetResult is the outcome of evaluating a rule set.
type SetResult struct {
	Results []*ExecutionResult
	// Halted is non-nil when a required rule failed and stopped a
	// sequential set.
	Halted error
}

// EvaluateSet executes a rule set's members per execution mode.
func (uc *RuleUseCase) EvaluateSet(ctx context.Context, setID, entityID string, entity map[string]any) (*SetResult, error) {
	set, err := uc.ruleRepo.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	rules, err := uc.ruleRepo.RulesInSet(ctx, set)
	if err != nil {
		return nil, err
	}

	out := &SetResult{}
	switch set.Mode {
	case domain.ModeSequential:
		// One shared env: action effects are visible to later rules.
		env, err := uc.buildEnv(ctx, entity)
		if err != nil {
			return nil, err
		}
		for _, rule := range rules {
			res, err := uc.evaluateInEnv(ctx, rule, entityID, env)
			if err != nil {
				return nil, err
			}
			out.Results = append(out.Results, res)
			if res.Err != nil && rule.Required() {
				out.Halted = res.Err
				break
			}
		}
	case domain.ModeFirstMatch:
		env, err := uc.buildEnv(ctx, entity)
		if err != nil {
			return nil, err
		}
		for _, rule := range rules {
			res, err := uc.evaluateInEnv(ctx, rule, entityID, env)
			if err != nil {
				return nil, err
			}
			out.Results = append(out.Results, res)
			if res.Matched {
				break
			}
		}
	case domain.ModeParallel:
		// Independent envs; merged last-writer by declared priority.
		results := make([]*ExecutionResult, len(rules))
		for i, rule := range rules {
			env, err := uc.buildEnv(ctx, entity)
			if err != nil {
				return nil, err
			}
			res, err := uc.evaluateInEnv(ctx, rule, entityID, env)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		order := make([]int, len(rules))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return rules[order[a]].Priority < rules[order[b]].Priority
		})
		merged := map[string]rulexpr.Effect{}
		for _, i := range order {
			for _, eff := range results[i].Effects {
				if eff.Set != "" {
					merged[eff.Set] = eff
				}
			}
			out.Results = append(out.Results, results[i])
		}
		for k, eff := range merged {
			entity[k] = eff.Value
		}
	default:
		return nil, domain.Validation("invalid_execution_mode", "unknown execution mode %q", set.Mode)
	}
	return out, nil
}

// EvaluateForEntity runs all active rules declared for an entity kind
// in priority order, sequential semantics.
func (uc *RuleUseCase) EvaluateForEntity(ctx context.Context, entityKind, entityID string, entity map[string]any) (*SetResult, error) {
	rules, err := uc.ruleRepo.ListByEntityKind(ctx, entityKind)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(a, b int) bool { return rules[a].Priority > rules[b].Priority })

	env, err := uc.buildEnv(ctx, entity)
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now().UTC()
	out := &SetResult{}
	for _, rule := range rules {
		if !rule.EffectiveAt(now) {
			continue
		}
		res, err := uc.evaluateInEnv(ctx, rule, entityID, env)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, res)
		if res.Err != nil && rule.Required() {
			out.Halted = res.Err
			break
		}
	}
	return out, nil
}

// buildEnv layers shared variables and user functions over the entity.
func (uc *RuleUseCase) buildEnv(ctx context.Context, entity map[string]any) (*rulexpr.Env, error) {
	env := rulexpr.NewEnv(entity)

	vars, err := uc.ruleRepo.ListVariables(ctx)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		resolved := make(map[string]any, len(vars))
		for _, v := range vars {
			expr, err := rulexpr.Parse(v.Expression)
			if err != nil {
				continue
			}
			val, err := rulexpr.Eval(expr, env)
			if err != nil {
				continue
			}
			resolved[v.Name] = val
		}
		env = env.WithVars(resolved)
	}

	funcs, err := uc.ruleRepo.ListFunctions(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range funcs {
		body, err := rulexpr.Parse(f.Body)
		if err != nil {
			continue
		}
		params := make([]string, len(f.Params))
		for i, p := range f.Params {
			params[i] = p.Name
		}
		env.Define(&rulexpr.Function{Name: f.Name, Params: params, Body: body})
	}
	return env, nil
}

// CreateTable persists a decision table with its rows.
func (uc *RuleUseCase) CreateTable(ctx context.Context, table *domain.DecisionTable) (*domain.DecisionTable, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	now := uc.clock.Now().UTC()
	table.ID = uc.idGen.Generate()
	table.Version = 1
	if table.Status == "" {
		table.Status = domain.RuleActive
	}
	table.CreatedAt = now
	table.UpdatedAt = now
	for i := range table.Rows {
		table.Rows[i].ID = uc.idGen.Generate()
		table.Rows[i].TableID = table.ID
		table.Rows[i].Ordinal = i + 1
	}
	if err := uc.tableRepo.Create(ctx, table); err != nil {
		return nil, err
	}
	return table, nil
}

// Lookup matches inputs against a decision table's rows and returns
// outputs per the table's hit policy. All / Collect return one map per
// matching row; the other policies return a single map.
func (uc *RuleUseCase) Lookup(ctx context.Context, tableID string, inputs map[string]any) ([]map[string]any, error) {
	table, err := uc.loadTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return uc.lookupRows(table, inputs)
}

func (uc *RuleUseCase) loadTable(ctx context.Context, tableID string) (*domain.DecisionTable, error) {
	cacheKey := "decision_table:" + tableID
	if uc.cache != nil {
		if raw, err := uc.cache.Get(ctx, cacheKey); err == nil {
			var table domain.DecisionTable
			if err := json.Unmarshal(raw, &table); err == nil {
				return &table, nil
			}
		}
	}
	table, err := uc.tableRepo.GetByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if uc.cache != nil {
		if raw, err := json.Marshal(table); err == nil {
			// Best effort; a failed write just means a repo hit next time.
			_ = uc.cache.Set(ctx, cacheKey, raw, tableCacheTTL)
		}
	}
	return table, nil
}

func (uc *RuleUseCase) lookupRows(table *domain.DecisionTable, inputs map[string]any) ([]map[string]any, error) {
	type match struct {
		row     *domain.DecisionTableRow
		outputs map[string]any
	}
	var matches []match

	for i := range table.Rows {
		row := &table.Rows[i]
		if !row.Active {
			continue
		}
		ok, err := uc.rowMatches(row, inputs)
		if err != nil {
			return nil, domain.Validation("table_row_invalid", "row %d: %v", row.Ordinal, err)
		}
		if !ok {
			continue
		}
		outputs, err := uc.rowOutputs(row, inputs)
		if err != nil {
			return nil, domain.Validation("table_row_invalid", "row %d: %v", row.Ordinal, err)
		}
		matches = append(matches, match{row: row, outputs: outputs})

		// First and Any stop at the earliest match; Any stays
		// deterministic by always taking row order.
		if table.HitPolicy == domain.HitFirst || table.HitPolicy == domain.HitAny {
			break
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}

	switch table.HitPolicy {
	case domain.HitFirst, domain.HitAny:
		return []map[string]any{matches[0].outputs}, nil
	case domain.HitUnique:
		if len(matches) > 1 {
			return nil, domain.ErrAmbiguousMatch
		}
		return []map[string]any{matches[0].outputs}, nil
	case domain.HitPriority:
		best := matches[0]
		for _, m := range matches[1:] {
			if m.row.Priority > best.row.Priority {
				best = m
			}
		}
		return []map[string]any{best.outputs}, nil
	case domain.HitAll, domain.HitCollect:
		out := make([]map[string]any, len(matches))
		for i, m := range matches {
			out[i] = m.outputs
		}
		return out, nil
	default:
		return nil, domain.Validation("invalid_hit_policy", "unknown hit policy %q", table.HitPolicy)
	}
}

// rowMatches evaluates every input-column expression; a row matches
// when all of them hold. Missing columns match anything.
func (uc *RuleUseCase) rowMatches(row *domain.DecisionTableRow, inputs map[string]any) (bool, error) {
	var cells map[string]json.RawMessage
	if err := json.Unmarshal(row.Inputs, &cells); err != nil {
		return false, err
	}
	env := rulexpr.NewEnv(inputs)
	for _, raw := range cells {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		expr, err := rulexpr.Parse(raw)
		if err != nil {
			return false, err
		}
		ok, err := rulexpr.EvalBool(expr, env)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (uc *RuleUseCase) rowOutputs(row *domain.DecisionTableRow, inputs map[string]any) (map[string]any, error) {
	var cells map[string]json.RawMessage
	if err := json.Unmarshal(row.Outputs, &cells); err != nil {
		return nil, err
	}
	env := rulexpr.NewEnv(inputs)
	out := make(map[string]any, len(cells))
	for col, raw := range cells {
		expr, err := rulexpr.Parse(raw)
		if err != nil {
			return nil, err
		}
		v, err := rulexpr.Eval(expr, env)
		if err != nil {
			return nil, err
		}
		out[col] = v
	}
	return out, nil
}

// GetRule fetches a rule by id.
func (uc *RuleUseCase) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	return uc.ruleRepo.GetByID(ctx, id)
}

// ListExecutions pages through a rule's execution log.
func (uc *RuleUseCase) ListExecutions(ctx context.Context, ruleID string, page domain.Page) (domain.PageResult[*domain.RuleExecution], error) {
	page = page.Normalize()
	items, total, err := uc.ruleRepo.ListExecutions(ctx, ruleID, page)
	if err != nil {
		return domain.PageResult[*domain.RuleExecution]{}, err
	}
	return domain.NewPageResult(items, total, page), nil
}
