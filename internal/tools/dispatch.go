package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Dispatcher routes a tool name and untyped payload to exactly one handler.
type Dispatcher struct {
	deps     *Dependencies
	registry *Registry
}

// NewDispatcher creates a dispatcher over the tool catalog.
func NewDispatcher(deps *Dependencies) *Dispatcher {
	if deps == nil {
		deps = &Dependencies{}
	}
	return &Dispatcher{deps: deps, registry: NewRegistry()}
}

// Registry returns the catalog the dispatcher routes over.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch decodes payload into the named tool's request, runs its handler and returns the
// handler's value. payload may be json.RawMessage, []byte, nil (treated as {}) or any
// JSON-marshalable value. Errors are always *Error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload any) (result any, err error) {
	e, ok := d.registry.entry(name)
	if !ok {
		d.deps.logger().Warn("unknown tool", "tool", name)
		return nil, methodNotFound(name)
	}

	start := time.Now()
	var finish func(DispatchObservation)
	if d.deps.Observer != nil {
		ctx, finish = d.deps.Observer.StartDispatch(ctx, name)
	}
	defer func() {
		duration := time.Since(start)
		if d.deps.Metrics != nil {
			d.deps.Metrics.RecordDispatch(name, duration, err != nil)
		}
		if finish != nil {
			obs := DispatchObservation{Tool: name, Duration: duration, Success: err == nil}
			if err != nil {
				obs.ErrorKind = KindOf(err).String()
			}
			finish(obs)
		}
	}()

	raw, err := decodePayload(payload)
	if err != nil {
		return nil, invalidParams(name, err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, invalidParams(name, err)
	}
	args, ok := instance.(map[string]any)
	if !ok {
		return nil, invalidParams(name, errors.New("arguments must be a JSON object"))
	}
	if err := checkNulls(e.desc.InputSchema, args); err != nil {
		return nil, invalidParams(name, err)
	}
	if err := e.resolved.Validate(instance); err != nil {
		return nil, invalidParams(name, err)
	}

	result, err = e.invoke(ctx, d.deps, raw)
	if err != nil {
		var te *Error
		if errors.As(err, &te) {
			if te.Tool == "" {
				te.Tool = name
			}
			return nil, te
		}
		d.deps.logger().Error("tool failed", "tool", name, "error", err)
		return nil, backendError(name, err)
	}
	return result, nil
}

func decodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		return p, nil
	case []byte:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		return p, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		return data, nil
	}
}

// checkNulls reports the first null the schema does not allow, naming its path and
// the expected type.
func checkNulls(schema *jsonschema.Schema, args map[string]any) error {
	if schema == nil {
		return nil
	}
	for field, prop := range schema.Properties {
		if v, ok := args[field]; ok {
			if err := checkNull(field, prop, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkNull(path string, s *jsonschema.Schema, v any) error {
	if s == nil {
		return nil
	}
	if v == nil {
		if want, nullable := schemaTypes(s); !nullable {
			return fmt.Errorf("%s must be %s, got null", path, want)
		}
		return nil
	}
	if items, ok := v.([]any); ok && s.Items != nil {
		for i, item := range items {
			if err := checkNull(fmt.Sprintf("%s[%d]", path, i), s.Items, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// schemaTypes describes the non-null types s accepts and whether it accepts null.
func schemaTypes(s *jsonschema.Schema) (string, bool) {
	types := s.Types
	if s.Type != "" {
		types = []string{s.Type}
	}
	if len(types) == 0 {
		return "any value", true
	}
	var want []string
	nullable := false
	for _, t := range types {
		if t == "null" {
			nullable = true
			continue
		}
		want = append(want, article(t)+" "+t)
	}
	return strings.Join(want, " or "), nullable
}

func article(t string) string {
	switch t {
	case "array", "object", "integer":
		return "an"
	}
	return "a"
}
