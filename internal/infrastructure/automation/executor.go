package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/quorvia/erpcore/internal/domain"
	"github.com/quorvia/erpcore/internal/usecase"
)

const maxHTTPResponseBytes = 64 * 1024

// RuleEvaluator is the slice of the rule engine an action node needs.
type RuleEvaluator interface {
	EvaluateForEntity(ctx context.Context, entityKind, entityID string, entity map[string]any) (*usecase.SetResult, error)
}

// Executor runs action nodes. Node kinds:
//
//	http    - POST the step input to the URL in the node config
//	publish - publish the step input on the event bus
//	rule    - evaluate the rules bound to an entity kind against the
//	          trigger data
//	wait    - suspend until resumed with a signal; echoes the signal
//	noop    - succeed with no output
type Executor struct {
	bus    usecase.EventBus
	rules  RuleEvaluator
	idGen  usecase.IDGenerator
	client *http.Client
}

// ExecutorConfig for Executor.
type ExecutorConfig struct {
	Bus         usecase.EventBus
	Rules       RuleEvaluator
	IDGen       usecase.IDGenerator
	HTTPTimeout time.Duration
}

// NewExecutor creates a new Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	return &Executor{
		bus:    cfg.Bus,
		rules:  cfg.Rules,
		idGen:  cfg.IDGen,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

type httpNodeConfig struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

type publishNodeConfig struct {
	Topic string `json:"topic"`
}

type ruleNodeConfig struct {
	EntityKind string `json:"entity_kind"`
}

// Execute dispatches one action node.
func (e *Executor) Execute(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
	switch node.Kind {
	case "http":
		return e.executeHTTP(ctx, node, input)
	case "publish":
		return e.executePublish(ctx, node, input)
	case "rule":
		return e.executeRule(ctx, node, input)
	case "wait":
		return e.executeWait(node, input)
	case "noop", "":
		return usecase.StepResult{}, nil
	default:
		return usecase.StepResult{}, domain.Validation("unknown_action_kind", "action node %s has unknown kind %q", node.ID, node.Kind)
	}
}

func (e *Executor) executeHTTP(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
	var cfg httpNodeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return usecase.StepResult{}, domain.Validation("bad_action_config", "action node %s: %v", node.ID, err)
	}
	if cfg.URL == "" {
		return usecase.StepResult{}, domain.Validation("bad_action_config", "action node %s has no url", node.ID)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}

	body, err := json.Marshal(stepEnvelope(input))
	if err != nil {
		return usecase.StepResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return usecase.StepResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return usecase.StepResult{}, domain.Dependency("action_http_failed", "action node %s: %v", node.ID, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return usecase.StepResult{}, err
	}
	if resp.StatusCode >= 300 {
		return usecase.StepResult{}, domain.Dependency("action_http_status", "action node %s: status %d", node.ID, resp.StatusCode)
	}
	if !json.Valid(out) {
		out, _ = json.Marshal(string(out))
	}
	return usecase.StepResult{Output: out}, nil
}

func (e *Executor) executePublish(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
	var cfg publishNodeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return usecase.StepResult{}, domain.Validation("bad_action_config", "action node %s: %v", node.ID, err)
	}
	if cfg.Topic == "" {
		return usecase.StepResult{}, domain.Validation("bad_action_config", "action node %s has no topic", node.ID)
	}
	if err := e.bus.Publish(ctx, cfg.Topic, stepEnvelope(input)); err != nil {
		return usecase.StepResult{}, domain.Dependency("action_publish_failed", "action node %s: %v", node.ID, err)
	}
	return usecase.StepResult{}, nil
}

func (e *Executor) executeRule(ctx context.Context, node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
	var cfg ruleNodeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return usecase.StepResult{}, domain.Validation("bad_action_config", "action node %s: %v", node.ID, err)
	}
	if cfg.EntityKind == "" {
		return usecase.StepResult{}, domain.Validation("bad_action_config", "action node %s has no entity_kind", node.ID)
	}

	entity := map[string]any{}
	if len(input.TriggerData) > 0 {
		if err := json.Unmarshal(input.TriggerData, &entity); err != nil {
			return usecase.StepResult{}, domain.Validation("bad_trigger_data", "action node %s: trigger data is not an object", node.ID)
		}
	}

	res, err := e.rules.EvaluateForEntity(ctx, cfg.EntityKind, input.ExecutionID, entity)
	if err != nil {
		return usecase.StepResult{}, err
	}
	if res.Halted != nil {
		return usecase.StepResult{}, res.Halted
	}

	matched := 0
	for _, r := range res.Results {
		if r.Matched {
			matched++
		}
	}
	out, err := json.Marshal(map[string]any{"evaluated": len(res.Results), "matched": matched})
	if err != nil {
		return usecase.StepResult{}, err
	}
	return usecase.StepResult{Output: out}, nil
}

func (e *Executor) executeWait(node domain.ActionNode, input usecase.StepInput) (usecase.StepResult, error) {
	if len(input.Signal) == 0 {
		return usecase.StepResult{
			Suspended:   true,
			ResumeToken: e.idGen.Generate(),
		}, nil
	}
	return usecase.StepResult{Output: input.Signal}, nil
}

// stepEnvelope is what outbound actions see.
func stepEnvelope(input usecase.StepInput) map[string]any {
	env := map[string]any{
		"execution_id": input.ExecutionID,
	}
	if input.CorrelationID != "" {
		env["correlation_id"] = input.CorrelationID
	}
	if len(input.TriggerData) > 0 {
		env["trigger_data"] = json.RawMessage(input.TriggerData)
	}
	if len(input.PriorOutputs) > 0 {
		env["prior_outputs"] = input.PriorOutputs
	}
	return env
}
