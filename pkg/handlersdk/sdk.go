// Package handlersdk is imported by every compiled handler module. It is
// deliberately dependency-free (stdlib only): it is compiled as part of the
// GOOS=wasip1 GOARCH=wasm guest binary, so pulling in the gateway's own
// zap/viper/wazero stack here would bloat every handler artifact with code
// that only the host process needs.
package handlersdk

import (
	"encoding/json"
	"fmt"
)

// Request mirrors internal/domain.Request field-for-field; it is the guest
// side of the same JSON envelope crossing the wazero host/guest boundary
// (§3).
type Request struct {
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      map[string]string `json:"query"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body,omitempty"`
	BodyBinary bool              `json:"body_binary,omitempty"`
	PathParams map[string]string `json:"path_params"`
	RequestID  string            `json:"request_id"`
}

// Response mirrors internal/domain.Response.
type Response struct {
	Status  uint16            `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// serviceEnvelope is what crosses the service_call host import: the bound
// alias the handler wants to reach, a dotted operation name ("db.query",
// "cache.get", ...), and an opaque JSON payload specific to that operation.
type serviceEnvelope struct {
	Alias   string          `json:"alias"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

type serviceReply struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Context is the per-call capability object a handler's Handle function
// receives. It carries no live connections itself (the guest has none) —
// every operation is a round trip through the single service_call host
// import, keeping the WASM ABI narrow per the frozen-ABI design goal.
type Context struct{}

// Call invokes one service operation by alias and decodes the JSON result
// into out. Handler-facing per-kind helpers (Database, Cache, ...) are thin
// wrappers over this.
func (c Context) Call(alias, op string, payload any, out any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	envelope, err := json.Marshal(serviceEnvelope{Alias: alias, Op: op, Payload: payloadJSON})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	respBytes := hostServiceCall(envelope)

	var reply serviceReply
	if err := json.Unmarshal(respBytes, &reply); err != nil {
		return fmt.Errorf("unmarshal service reply: %w", err)
	}
	if reply.Error != "" {
		return fmt.Errorf("service call failed: %s", reply.Error)
	}
	if out != nil && len(reply.Result) > 0 {
		if err := json.Unmarshal(reply.Result, out); err != nil {
			return fmt.Errorf("unmarshal service result: %w", err)
		}
	}
	return nil
}

// Database is the guest-side view of the Database command taxonomy (§4.3),
// reached through alias.
type Database struct {
	ctx   Context
	alias string
}

func (c Context) Database(alias string) Database { return Database{ctx: c, alias: alias} }

type dbQueryPayload struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type dbQueryResult struct {
	Rows []map[string]any `json:"rows"`
}

func (d Database) Query(sql string, params ...any) ([]map[string]any, error) {
	var out dbQueryResult
	if err := d.ctx.Call(d.alias, "db.query", dbQueryPayload{SQL: sql, Params: params}, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

type dbExecuteResult struct {
	Affected int64 `json:"affected"`
}

func (d Database) Execute(sql string, params ...any) (int64, error) {
	var out dbExecuteResult
	if err := d.ctx.Call(d.alias, "db.execute", dbQueryPayload{SQL: sql, Params: params}, &out); err != nil {
		return 0, err
	}
	return out.Affected, nil
}

// Cache is the guest-side view of the Cache command taxonomy (§4.3).
type Cache struct {
	ctx   Context
	alias string
}

func (c Context) Cache(alias string) Cache { return Cache{ctx: c, alias: alias} }

type cacheGetResult struct {
	Value string `json:"value"`
	Found bool   `json:"found"`
}

func (c Cache) Get(key string) (string, bool, error) {
	var out cacheGetResult
	if err := c.ctx.Call(c.alias, "cache.get", map[string]any{"key": key}, &out); err != nil {
		return "", false, err
	}
	return out.Value, out.Found, nil
}

func (c Cache) Set(key, value string, ttlSeconds int) error {
	return c.ctx.Call(c.alias, "cache.set", map[string]any{"key": key, "value": value, "ttl_seconds": ttlSeconds}, nil)
}

type cacheIncrResult struct {
	Value int64 `json:"value"`
}

func (c Cache) Incr(key string, delta int64) (int64, error) {
	var out cacheIncrResult
	if err := c.ctx.Call(c.alias, "cache.incr", map[string]any{"key": key, "delta": delta}, &out); err != nil {
		return 0, err
	}
	return out.Value, nil
}

// ObjectStore is the guest-side view of the Object store command taxonomy.
type ObjectStore struct {
	ctx   Context
	alias string
}

func (c Context) ObjectStore(alias string) ObjectStore { return ObjectStore{ctx: c, alias: alias} }

func (o ObjectStore) Put(bucket, key string, data []byte, contentType string) error {
	return o.ctx.Call(o.alias, "objectstore.put", map[string]any{
		"bucket": bucket, "key": key, "data": data, "content_type": contentType,
	}, nil)
}

type objectGetResult struct {
	Data []byte `json:"data"`
}

func (o ObjectStore) Get(bucket, key string) ([]byte, error) {
	var out objectGetResult
	if err := o.ctx.Call(o.alias, "objectstore.get", map[string]any{"bucket": bucket, "key": key}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Document is the guest-side view of the Document command taxonomy
// (mongodb, §3/§4.3 supplement).
type Document struct {
	ctx        Context
	alias      string
	collection string
}

func (c Context) Document(alias, collection string) Document {
	return Document{ctx: c, alias: alias, collection: collection}
}

type docFindPayload struct {
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter"`
}

type docFindResult struct {
	Docs []map[string]any `json:"docs"`
}

func (d Document) Find(filter map[string]any) ([]map[string]any, error) {
	var out docFindResult
	if err := d.ctx.Call(d.alias, "document.find", docFindPayload{Collection: d.collection, Filter: filter}, &out); err != nil {
		return nil, err
	}
	return out.Docs, nil
}

type docInsertResult struct {
	InsertedID string `json:"inserted_id"`
}

func (d Document) InsertOne(doc map[string]any) (string, error) {
	var out docInsertResult
	if err := d.ctx.Call(d.alias, "document.insert_one", docFindPayload{Collection: d.collection, Filter: doc}, &out); err != nil {
		return "", err
	}
	return out.InsertedID, nil
}

// Mail is the guest-side view of the Mail command taxonomy (smtp, §3/§4.3
// supplement).
type Mail struct {
	ctx   Context
	alias string
}

func (c Context) Mail(alias string) Mail { return Mail{ctx: c, alias: alias} }

type mailSendResult struct {
	MessageID string `json:"message_id"`
}

func (m Mail) Send(to []string, subject, body string) (string, error) {
	var out mailSendResult
	err := m.ctx.Call(m.alias, "mail.send", map[string]any{"to": to, "subject": subject, "body": body}, &out)
	if err != nil {
		return "", err
	}
	return out.MessageID, nil
}
