// Package document implements the Document command taxonomy (§4.3, §3
// supplement) for the mongodb service kind, added because the Database
// taxonomy's SQL query/params shape does not fit a document store.
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/services"
)

func init() {
	services.Register(domain.ServiceKindMongoDB, newTask)
}

// Config is the opaque JSON shape for a Document service.
type Config struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

// Handle is the clonable per-request reference to a document task. Every
// collection call runs on the task's owning actor goroutine, serialized in
// arrival order against every other command the task receives (§4.3).
type Handle struct {
	db    *mongo.Database
	actor *services.Actor
}

func newTask(raw json.RawMessage) (services.Task, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%w: uri and database are required", domain.ErrInvalidConfig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}

	return &Handle{db: client.Database(cfg.Database), actor: services.NewActor()}, nil
}

func (h *Handle) Kind() domain.ServiceKind { return domain.ServiceKindMongoDB }

func toBSON(doc services.Document) bson.M {
	return bson.M(doc)
}

func (h *Handle) Find(ctx context.Context, collection string, filter services.Document) ([]services.Document, error) {
	var out []services.Document
	var opErr error
	if err := h.actor.Do(ctx, func() {
		cur, e := h.db.Collection(collection).Find(ctx, toBSON(filter))
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			var doc bson.M
			if e := cur.Decode(&doc); e != nil {
				opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
				return
			}
			out = append(out, services.Document(doc))
		}
		opErr = cur.Err()
	}); err != nil {
		return nil, err
	}
	return out, opErr
}

func (h *Handle) FindOne(ctx context.Context, collection string, filter services.Document) (services.Document, bool, error) {
	var doc services.Document
	var found bool
	var opErr error
	if err := h.actor.Do(ctx, func() {
		var raw bson.M
		e := h.db.Collection(collection).FindOne(ctx, toBSON(filter)).Decode(&raw)
		if e == mongo.ErrNoDocuments {
			return
		}
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		doc, found = services.Document(raw), true
	}); err != nil {
		return nil, false, err
	}
	return doc, found, opErr
}

func (h *Handle) InsertOne(ctx context.Context, collection string, doc services.Document) (string, error) {
	var id string
	var opErr error
	if err := h.actor.Do(ctx, func() {
		res, e := h.db.Collection(collection).InsertOne(ctx, toBSON(doc))
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		if oid, ok := res.InsertedID.(interface{ Hex() string }); ok {
			id = oid.Hex()
			return
		}
		id = fmt.Sprintf("%v", res.InsertedID)
	}); err != nil {
		return "", err
	}
	return id, opErr
}

func (h *Handle) UpdateOne(ctx context.Context, collection string, filter, update services.Document) (matched, modified int64, err error) {
	var opErr error
	if doErr := h.actor.Do(ctx, func() {
		res, e := h.db.Collection(collection).UpdateOne(ctx, toBSON(filter), bson.M{"$set": toBSON(update)})
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		matched, modified = res.MatchedCount, res.ModifiedCount
	}); doErr != nil {
		return 0, 0, doErr
	}
	return matched, modified, opErr
}

func (h *Handle) DeleteOne(ctx context.Context, collection string, filter services.Document) (int64, error) {
	var deleted int64
	var opErr error
	if err := h.actor.Do(ctx, func() {
		res, e := h.db.Collection(collection).DeleteOne(ctx, toBSON(filter))
		if e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		deleted = res.DeletedCount
	}); err != nil {
		return 0, err
	}
	return deleted, opErr
}

func (h *Handle) Health(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var healthy bool
	err := h.actor.Do(ctx, func() { healthy = h.db.Client().Ping(ctx, nil) == nil })
	return err == nil && healthy
}

// Shutdown queues the client's own disconnect as the task's last command,
// then stops the actor.
func (h *Handle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var opErr error
	_ = h.actor.Do(ctx, func() { opErr = h.db.Client().Disconnect(ctx) })
	h.actor.Stop()
	return opErr
}
