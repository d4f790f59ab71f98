package mediator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/rinkside-ai/rinkside/internal/fault"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/policy"
)

// ExecuteAction runs a governed action: policy check, input validation
// against the action's schema, then handler dispatch under the action
// timeout.
func (m *Mediator) ExecuteAction(ctx context.Context, actor policy.Actor, actionName string, input map[string]any) (model.Record, error) {
	ctx, finish := m.observe(ctx, opExecuteAction, actionName)
	start := time.Now()
	result, err := m.executeAction(ctx, actor, actionName, input)
	m.audit(ctx, actor, opExecuteAction, actionName, "", start, err)
	finish(err)
	return result, err
}

func (m *Mediator) executeAction(ctx context.Context, actor policy.Actor, actionName string, input map[string]any) (model.Record, error) {
	at, err := m.registry.GetActionType(ctx, actionName, "")
	if err != nil {
		return nil, err
	}
	if at == nil {
		return nil, fault.NotFound("action type %s not found", actionName)
	}

	if _, err := m.decide(ctx, actor, model.OpExecute, "action", "", at.PolicyRef); err != nil {
		return nil, err
	}

	if err := validateActionInput(at, input); err != nil {
		return nil, err
	}

	handler, ok := m.handlerFor(actionName)
	if !ok {
		return nil, fault.Internal("no handler registered for action %s", actionName)
	}

	timeout := time.Duration(at.EffectiveTimeout()) * time.Second
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := handler(actx, actor, at, input)
	if err != nil {
		var f *fault.Fault
		if errors.As(err, &f) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fault.Wrap(fault.Timeout("action %s exceeded %s", actionName, timeout), err)
		}
		return nil, fault.Wrap(fault.Internal("action %s failed", actionName), err)
	}
	return result, nil
}

// validateActionInput checks input against the action's JSON schema. An
// absent schema accepts anything.
func validateActionInput(at *model.ActionType, input map[string]any) error {
	if len(at.InputSchema) == 0 {
		return nil
	}

	schema, err := toSchema(at.InputSchema)
	if err != nil {
		return fault.InvalidRequest("action %s has an unreadable input schema: %v", at.Name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fault.InvalidRequest("action %s has an invalid input schema: %v", at.Name, err)
	}

	if input == nil {
		input = map[string]any{}
	}
	if err := resolved.Validate(input); err != nil {
		return fault.InvalidRequest("action %s input rejected: %v", at.Name, err)
	}
	return nil
}

// toSchema converts the stored schema map into a jsonschema value by
// marshaling through JSON.
func toSchema(raw map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}
