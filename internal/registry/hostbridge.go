package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/nativegate/gateway/internal/services"
	"github.com/nativegate/gateway/internal/services/cache"
	"github.com/nativegate/gateway/internal/services/document"
	"github.com/nativegate/gateway/internal/services/mail"
	"github.com/nativegate/gateway/internal/services/objectstore"
	"github.com/nativegate/gateway/internal/services/sqldb"
)

// hostModuleName is the wazero host module a compiled handler imports its
// single multiplexed service_call function from, matching
// pkg/handlersdk/hostcall_wasip1.go's `//go:wasmimport gateway service_call`.
const hostModuleName = "gateway"

type bundleCtxKey struct{}

// WithBundle attaches the per-request service bundle to ctx so the
// service_call host function — invoked by wazero during the entry call, and
// receiving that same ctx — can resolve the handler's bound aliases.
func WithBundle(ctx context.Context, bundle *services.Bundle) context.Context {
	return context.WithValue(ctx, bundleCtxKey{}, bundle)
}

func bundleFromContext(ctx context.Context) (*services.Bundle, bool) {
	b, ok := ctx.Value(bundleCtxKey{}).(*services.Bundle)
	return b, ok
}

// serviceEnvelope mirrors pkg/handlersdk's unexported wire type; only the
// JSON shape needs to match, not the Go type identity.
type serviceEnvelope struct {
	Alias   string          `json:"alias"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

type serviceReply struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func instantiateHostModule(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder(hostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(serviceCallHostFunc), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}).
		Export("service_call").
		Instantiate(ctx)
	return err
}

// serviceCallHostFunc is the host side of every handler's service_call
// import. It reads the request envelope from the calling module's own
// memory, dispatches it against that call's service bundle, writes the
// JSON reply back into the SAME module's memory via its "allocate" export,
// and returns (ptr, len).
func serviceCallHostFunc(ctx context.Context, mod api.Module, stack []uint64) {
	reqPtr, reqLen := uint32(stack[0]), uint32(stack[1])

	reply := dispatch(ctx, mod, reqPtr, reqLen)
	replyJSON, err := json.Marshal(reply)
	if err != nil {
		replyJSON = []byte(`{"error":"internal: failed to marshal service reply"}`)
	}

	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		stack[0], stack[1] = 0, 0
		return
	}
	allocResult, err := allocate.Call(ctx, uint64(len(replyJSON)))
	if err != nil || len(allocResult) == 0 {
		stack[0], stack[1] = 0, 0
		return
	}
	respPtr := uint32(allocResult[0])
	if !mod.Memory().Write(respPtr, replyJSON) {
		stack[0], stack[1] = 0, 0
		return
	}

	stack[0], stack[1] = uint64(respPtr), uint64(len(replyJSON))
}

func dispatch(ctx context.Context, mod api.Module, reqPtr, reqLen uint32) serviceReply {
	reqBytes, ok := mod.Memory().Read(reqPtr, reqLen)
	if !ok {
		return serviceReply{Error: "failed to read request envelope from guest memory"}
	}

	var env serviceEnvelope
	if err := json.Unmarshal(reqBytes, &env); err != nil {
		return serviceReply{Error: fmt.Sprintf("malformed service envelope: %v", err)}
	}

	bundle, ok := bundleFromContext(ctx)
	if !ok {
		return serviceReply{Error: "no service bundle bound to this call"}
	}

	result, err := execOp(ctx, bundle, env)
	if err != nil {
		return serviceReply{Error: err.Error()}
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return serviceReply{Error: fmt.Sprintf("failed to marshal result: %v", err)}
	}
	return serviceReply{Result: resultJSON}
}

func execOp(ctx context.Context, bundle *services.Bundle, env serviceEnvelope) (any, error) {
	switch env.Op {
	case "db.query", "db.execute":
		return dbOp(ctx, bundle, env)
	case "cache.get", "cache.set", "cache.incr":
		return cacheOp(ctx, bundle, env)
	case "objectstore.put", "objectstore.get":
		return objectstoreOp(ctx, bundle, env)
	case "document.find", "document.insert_one":
		return documentOp(ctx, bundle, env)
	case "mail.send":
		return mailOp(ctx, bundle, env)
	default:
		return nil, fmt.Errorf("unknown service operation %q", env.Op)
	}
}

func dbOp(ctx context.Context, bundle *services.Bundle, env serviceEnvelope) (any, error) {
	h, err := services.Require[*sqldb.Handle](bundle, env.Alias)
	if err != nil {
		return nil, err
	}
	var payload struct {
		SQL    string `json:"sql"`
		Params []any  `json:"params"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return nil, fmt.Errorf("malformed db payload: %w", err)
	}
	params := toParams(payload.Params)

	switch env.Op {
	case "db.query":
		rows, err := h.Query(ctx, payload.SQL, params)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(rows))
		for i, r := range rows {
			out[i] = r.Values
		}
		return map[string]any{"rows": out}, nil
	default:
		n, err := h.Execute(ctx, payload.SQL, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{"affected": n}, nil
	}
}

func toParams(values []any) []services.Param {
	out := make([]services.Param, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
			out[i] = services.Param{Null: true}
		case float64:
			out[i] = services.Param{Real: &val}
		case string:
			out[i] = services.Param{Text: &val}
		case bool:
			s := fmt.Sprintf("%v", val)
			out[i] = services.Param{Text: &s}
		default:
			s := fmt.Sprintf("%v", val)
			out[i] = services.Param{Text: &s}
		}
	}
	return out
}

func cacheOp(ctx context.Context, bundle *services.Bundle, env serviceEnvelope) (any, error) {
	h, err := services.Require[*cache.Handle](bundle, env.Alias)
	if err != nil {
		return nil, err
	}

	switch env.Op {
	case "cache.get":
		var p struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		value, found, err := h.Get(ctx, p.Key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": value, "found": found}, nil
	case "cache.set":
		var p struct {
			Key        string `json:"key"`
			Value      string `json:"value"`
			TTLSeconds int    `json:"ttl_seconds"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		var ttl *time.Duration
		if p.TTLSeconds > 0 {
			d := time.Duration(p.TTLSeconds) * time.Second
			ttl = &d
		}
		return nil, h.Set(ctx, p.Key, p.Value, ttl)
	default:
		var p struct {
			Key   string `json:"key"`
			Delta int64  `json:"delta"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		v, err := h.Incr(ctx, p.Key, p.Delta)
		if err != nil {
			return nil, err
		}
		return map[string]any{"value": v}, nil
	}
}

func objectstoreOp(ctx context.Context, bundle *services.Bundle, env serviceEnvelope) (any, error) {
	h, err := services.Require[*objectstore.Handle](bundle, env.Alias)
	if err != nil {
		return nil, err
	}

	switch env.Op {
	case "objectstore.put":
		var p struct {
			Bucket      string `json:"bucket"`
			Key         string `json:"key"`
			Data        []byte `json:"data"`
			ContentType string `json:"content_type"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		var ct *string
		if p.ContentType != "" {
			ct = &p.ContentType
		}
		return nil, h.Put(ctx, p.Bucket, p.Key, p.Data, ct)
	default:
		var p struct {
			Bucket string `json:"bucket"`
			Key    string `json:"key"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, err
		}
		data, err := h.Get(ctx, p.Bucket, p.Key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"data": data}, nil
	}
}

func documentOp(ctx context.Context, bundle *services.Bundle, env serviceEnvelope) (any, error) {
	h, err := services.Require[*document.Handle](bundle, env.Alias)
	if err != nil {
		return nil, err
	}
	var p struct {
		Collection string         `json:"collection"`
		Filter     map[string]any `json:"filter"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, err
	}

	switch env.Op {
	case "document.find":
		docs, err := h.Find(ctx, p.Collection, p.Filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"docs": docs}, nil
	default:
		id, err := h.InsertOne(ctx, p.Collection, p.Filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"inserted_id": id}, nil
	}
}

func mailOp(ctx context.Context, bundle *services.Bundle, env serviceEnvelope) (any, error) {
	h, err := services.Require[*mail.Handle](bundle, env.Alias)
	if err != nil {
		return nil, err
	}
	var p struct {
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		Body    string   `json:"body"`
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, err
	}
	id, err := h.Send(ctx, p.To, p.Subject, p.Body, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message_id": id}, nil
}
