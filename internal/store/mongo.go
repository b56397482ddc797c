package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore backs Store with a single MongoDB collection. Each record is keyed by
// the full document path and keeps its fields under "data". Subscriptions and atomic
// units need a replica set (change streams and multi-document transactions).
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoRecord struct {
	Path   string `bson:"_id"`
	Parent string `bson:"parent"`
	ID     string `bson:"doc_id"`
	Data   bson.M `bson:"data"`
}

// NewMongoStore stores documents in db.documents.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{client: client, collection: db.Collection("documents")}
}

// EnsureIndexes creates the parent index used by every query.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}},
	})
	return err
}

func (s *MongoStore) Get(ctx context.Context, path string) (Document, error) {
	if err := checkPath(path); err != nil {
		return Document{}, err
	}
	var rec mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": path}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, fmt.Errorf("get %s: %w", path, ErrNotFound)
		}
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return rec.document(), nil
}

func (s *MongoStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := checkPath(path); err != nil {
		return false, err
	}
	n, err := s.collection.CountDocuments(ctx, bson.M{"_id": path}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", path, err)
	}
	return n > 0, nil
}

func (s *MongoStore) Set(ctx context.Context, path string, data map[string]any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	parent, id := Split(path)
	rec := mongoRecord{Path: path, Parent: parent, ID: id, Data: toMongo(data)}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": path}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (s *MongoStore) Merge(ctx context.Context, path string, data map[string]any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	parent, id := Split(path)
	set := bson.M{"parent": parent, "doc_id": id}
	for k, v := range toMongo(data) {
		set["data."+k] = v
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": path}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, path string, data map[string]any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	set := bson.M{}
	for k, v := range toMongo(data) {
		set["data."+k] = v
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": path}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": path}); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *MongoStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := primitive.NewObjectID().Hex()
	if err := s.Set(ctx, Join(collection, id), data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) List(ctx context.Context, q Query) ([]Document, error) {
	filter := bson.M{"parent": q.Collection}
	for _, f := range q.Filters {
		// Mongo equality on an array field already means "contains".
		filter["data."+f.Field] = f.Value
	}
	findOptions := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		findOptions.SetSort(bson.D{{Key: "data." + q.OrderBy, Value: dir}})
	}

	cursor, err := s.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	defer cursor.Close(ctx)

	var recs []mongoRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	docs := make([]Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, rec.document())
	}
	return docs, nil
}

func (s *MongoStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	pattern := "^" + regexp.QuoteMeta(q.Collection+"/") + "[^/]+$"
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: bson.M{"$regex": pattern}}}}},
	}
	stream, err := s.collection.Watch(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", q.Collection, err)
	}

	return startSubscription(ctx, func(ctx context.Context, emit func(Snapshot) bool) error {
		defer stream.Close(context.Background())

		docs, err := s.List(ctx, q)
		if err != nil {
			return err
		}
		if !emit(Snapshot{Documents: docs, ReadAt: time.Now().UTC()}) {
			return nil
		}
		for stream.Next(ctx) {
			docs, err := s.List(ctx, q)
			if err != nil {
				return err
			}
			if !emit(Snapshot{Documents: docs, ReadAt: time.Now().UTC()}) {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		return stream.Err()
	}), nil
}

func (s *MongoStore) RunAtomic(ctx context.Context, fn func(tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&mongoTx{ctx: sc, store: s})
	})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type mongoTx struct {
	ctx   context.Context
	store *MongoStore
}

func (t *mongoTx) Get(path string) (Document, error) { return t.store.Get(t.ctx, path) }

func (t *mongoTx) Set(path string, data map[string]any) error { return t.store.Set(t.ctx, path, data) }

func (t *mongoTx) Merge(path string, data map[string]any) error {
	return t.store.Merge(t.ctx, path, data)
}

func (t *mongoTx) Update(path string, data map[string]any) error {
	return t.store.Update(t.ctx, path, data)
}

func (t *mongoTx) Delete(path string) error { return t.store.Delete(t.ctx, path) }

func (r mongoRecord) document() Document {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = fromMongo(v)
	}
	return Document{ID: r.ID, Path: r.Path, Data: data}
}

func toMongo(data map[string]any) bson.M {
	out := make(bson.M, len(data))
	now := time.Now().UTC()
	for k, v := range data {
		if IsServerTimestamp(v) {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

func fromMongo(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromMongo(e)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = fromMongo(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromMongo(e.Value)
		}
		return out
	case int32:
		return int(t)
	default:
		return v
	}
}
