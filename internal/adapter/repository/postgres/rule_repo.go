package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvia/erpcore/internal/domain"
)

// RuleRepository implements usecase.RuleRepository.
type RuleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

const ruleColumns = `id, code, name, description, entity_kind, rule_type, priority, effective_from, effective_to, condition, actions, else_actions, status, version, created_at, updated_at, created_by`

// Create persists a business rule.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.Rule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO business_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rule.ID, rule.Code, rule.Name, rule.Description, rule.EntityKind,
		string(rule.Type), rule.Priority, tszPtr(rule.EffectiveFrom),
		tszPtr(rule.EffectiveTo), []byte(rule.Condition), []byte(rule.Actions),
		jsonOrNil(rule.ElseActions), string(rule.Status), rule.Version,
		tsz(rule.CreatedAt), tsz(rule.UpdatedAt), rule.CreatedBy,
	)
	return err
}

// GetByID retrieves a rule by ID.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.Rule, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByCode retrieves a rule by code.
func (r *RuleRepository) GetByCode(ctx context.Context, code string) (*domain.Rule, error) {
	return r.get(ctx, `WHERE code = $1`, code)
}

func (r *RuleRepository) get(ctx context.Context, where, arg string) (*domain.Rule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM business_rules `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}
	return rule, nil
}

// ListByEntityKind returns all rules for an entity kind ordered by
// priority then code.
func (r *RuleRepository) ListByEntityKind(ctx context.Context, entityKind string) ([]*domain.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+` FROM business_rules
		WHERE entity_kind = $1
		ORDER BY priority DESC, code`,
		entityKind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// Update rewrites a rule's mutable fields.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE business_rules
		SET name = $2, description = $3, priority = $4, effective_from = $5,
		    effective_to = $6, condition = $7, actions = $8, else_actions = $9,
		    status = $10, version = $11, updated_at = $12
		WHERE id = $1`,
		rule.ID, rule.Name, rule.Description, rule.Priority,
		tszPtr(rule.EffectiveFrom), tszPtr(rule.EffectiveTo),
		[]byte(rule.Condition), []byte(rule.Actions), jsonOrNil(rule.ElseActions),
		string(rule.Status), rule.Version, tsz(rule.UpdatedAt),
	)
	return err
}

// GetSet retrieves a rule set by ID.
func (r *RuleRepository) GetSet(ctx context.Context, id string) (*domain.RuleSet, error) {
	var (
		set    domain.RuleSet
		mode   string
		status string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, description, mode, rule_ids, status, created_at, updated_at
		FROM rule_sets WHERE id = $1`, id,
	).Scan(&set.ID, &set.Code, &set.Name, &set.Description, &mode, &set.RuleIDs, &status, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleSetNotFound
		}
		return nil, err
	}
	set.Mode = domain.ExecutionMode(mode)
	set.Status = domain.RuleStatus(status)
	return &set, nil
}

// CreateSet persists a rule set.
func (r *RuleRepository) CreateSet(ctx context.Context, set *domain.RuleSet) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rule_sets (id, code, name, description, mode, rule_ids, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		set.ID, set.Code, set.Name, set.Description, string(set.Mode),
		set.RuleIDs, string(set.Status), tsz(set.CreatedAt), tsz(set.UpdatedAt),
	)
	return err
}

// RulesInSet loads the member rules of a set in member order.
func (r *RuleRepository) RulesInSet(ctx context.Context, set *domain.RuleSet) ([]*domain.Rule, error) {
	if len(set.RuleIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+` FROM business_rules WHERE id = ANY($1)`,
		set.RuleIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules, err := collectRules(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Rule, len(rules))
	for _, rule := range rules {
		byID[rule.ID] = rule
	}

	ordered := make([]*domain.Rule, 0, len(set.RuleIDs))
	for _, id := range set.RuleIDs {
		if rule, ok := byID[id]; ok {
			ordered = append(ordered, rule)
		}
	}
	return ordered, nil
}

// ListVariables returns all shared rule variables.
func (r *RuleRepository) ListVariables(ctx context.Context) ([]*domain.RuleVariable, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, expression, created_at, updated_at
		FROM rule_variables ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variables []*domain.RuleVariable
	for rows.Next() {
		var (
			v    domain.RuleVariable
			expr []byte
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.Description, &expr, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		v.Expression = expr
		variables = append(variables, &v)
	}
	return variables, rows.Err()
}

// ListFunctions returns all user-defined rule functions.
func (r *RuleRepository) ListFunctions(ctx context.Context) ([]*domain.RuleFunction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, params, body, created_at, updated_at
		FROM rule_functions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var functions []*domain.RuleFunction
	for rows.Next() {
		var (
			fn     domain.RuleFunction
			params []byte
			body   []byte
		)
		if err := rows.Scan(&fn.ID, &fn.Name, &fn.Description, &params, &body, &fn.CreatedAt, &fn.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(params, &fn.Params); err != nil {
			return nil, err
		}
		fn.Body = body
		functions = append(functions, &fn)
	}
	return functions, rows.Err()
}

// CreateFunction persists a user-defined rule function.
func (r *RuleRepository) CreateFunction(ctx context.Context, fn *domain.RuleFunction) error {
	params, err := json.Marshal(fn.Params)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO rule_functions (id, name, description, params, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fn.ID, fn.Name, fn.Description, params, []byte(fn.Body), tsz(fn.CreatedAt), tsz(fn.UpdatedAt),
	)
	return err
}

// CreateExecution records one rule evaluation.
func (r *RuleRepository) CreateExecution(ctx context.Context, exec *domain.RuleExecution) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rule_executions (id, rule_id, rule_code, entity_kind, entity_id, conditions, matched, executed_actions, result, error, duration_micros, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		exec.ID, exec.RuleID, exec.RuleCode, exec.EntityKind, exec.EntityID,
		jsonOrNil(exec.Conditions), exec.Matched, jsonOrNil(exec.ExecutedActions),
		jsonOrNil(exec.Result), exec.Error, exec.Duration.Microseconds(),
		tsz(exec.ExecutedAt),
	)
	return err
}

// ListExecutions lists a rule's evaluation history newest-first.
func (r *RuleRepository) ListExecutions(ctx context.Context, ruleID string, page domain.Page) ([]*domain.RuleExecution, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM rule_executions WHERE rule_id = $1`, ruleID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, rule_id, rule_code, entity_kind, entity_id, conditions, matched, executed_actions, result, error, duration_micros, executed_at
		FROM rule_executions
		WHERE rule_id = $1
		ORDER BY executed_at DESC
		LIMIT $2 OFFSET $3`,
		ruleID, page.PerPage, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	executions := make([]*domain.RuleExecution, 0, page.PerPage)
	for rows.Next() {
		var (
			exec                        domain.RuleExecution
			conditions, actions, result []byte
			micros                      int64
		)
		err := rows.Scan(
			&exec.ID, &exec.RuleID, &exec.RuleCode, &exec.EntityKind,
			&exec.EntityID, &conditions, &exec.Matched, &actions, &result,
			&exec.Error, &micros, &exec.ExecutedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		exec.Conditions = conditions
		exec.ExecutedActions = actions
		exec.Result = result
		exec.Duration = time.Duration(micros) * time.Microsecond
		executions = append(executions, &exec)
	}
	return executions, total, rows.Err()
}

func collectRules(rows pgx.Rows) ([]*domain.Rule, error) {
	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row pgx.Row) (*domain.Rule, error) {
	var (
		rule                            domain.Rule
		ruleType, status                string
		from, to                        *time.Time
		condition, actions, elseActions []byte
	)
	err := row.Scan(
		&rule.ID, &rule.Code, &rule.Name, &rule.Description, &rule.EntityKind,
		&ruleType, &rule.Priority, &from, &to, &condition, &actions,
		&elseActions, &status, &rule.Version, &rule.CreatedAt, &rule.UpdatedAt,
		&rule.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	rule.Type = domain.RuleType(ruleType)
	rule.Status = domain.RuleStatus(status)
	rule.EffectiveFrom = from
	rule.EffectiveTo = to
	rule.Condition = condition
	rule.Actions = actions
	rule.ElseActions = elseActions
	return &rule, nil
}

func jsonOrNil(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
