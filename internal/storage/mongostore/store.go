// Package mongostore implements storage.Store on MongoDB.
//
// Each entity lives in its own collection. IDs are stored as their string
// form in _id so the natural sort order is creation order.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/storage"
	"github.com/maruel/markdb/internal/storage/entity"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is a storage.Store backed by a MongoDB database.
type Store struct {
	client *mongo.Client

	users     *userRepo
	tags      *repo[*entity.Tag, tagDoc]
	schemas   *repo[*entity.Schema, schemaDoc]
	documents *repo[*entity.Document, documentDoc]
	extracted *extractedRepo
}

// Open connects to uri, selects the database and ensures the unique indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	db := client.Database(database)
	s := &Store{
		client: client,
		users: &userRepo{repo: repo[*entity.User, userDoc]{
			coll: db.Collection("users"), unique: "email", toDoc: toUserDoc, fromDoc: fromUserDoc,
		}},
		tags:      &repo[*entity.Tag, tagDoc]{coll: db.Collection("tags"), unique: "name", toDoc: toTagDoc, fromDoc: fromTagDoc},
		schemas:   &repo[*entity.Schema, schemaDoc]{coll: db.Collection("schemas"), toDoc: toSchemaDoc, fromDoc: fromSchemaDoc},
		documents: &repo[*entity.Document, documentDoc]{coll: db.Collection("documents"), unique: "name", toDoc: toDocumentDoc, fromDoc: fromDocumentDoc},
		extracted: &extractedRepo{repo: repo[*entity.Extracted, extractedDoc]{
			coll: db.Collection("extracted"), unique: "document", toDoc: toExtractedDoc, fromDoc: fromExtractedDoc,
		}},
	}
	indexes := []struct {
		coll  *mongo.Collection
		field string
	}{
		{s.users.coll, "email_key"},
		{s.tags.coll, "name"},
		{s.documents.coll, "name"},
		{s.extracted.coll, "document"},
	}
	for _, idx := range indexes {
		_, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: idx.field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("creating index %s.%s: %w", idx.coll.Name(), idx.field, err)
		}
	}
	return s, nil
}

// Driver implements storage.Store.
func (s *Store) Driver() string { return "mongo" }

// Users implements storage.Store.
func (s *Store) Users() storage.UserRepository { return s.users }

// Tags implements storage.Store.
func (s *Store) Tags() storage.Repository[*entity.Tag] { return s.tags }

// Schemas implements storage.Store.
func (s *Store) Schemas() storage.Repository[*entity.Schema] { return s.schemas }

// Documents implements storage.Store.
func (s *Store) Documents() storage.Repository[*entity.Document] { return s.documents }

// Extracted implements storage.Store.
func (s *Store) Extracted() storage.ExtractedRepository { return s.extracted }

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type identified interface {
	GetID() ksid.ID
}

type repo[E identified, D any] struct {
	coll    *mongo.Collection
	unique  string
	toDoc   func(E) *D
	fromDoc func(*D) (E, error)
}

func (r *repo[E, D]) List(ctx context.Context) ([]E, error) {
	return r.find(ctx, bson.M{})
}

func (r *repo[E, D]) find(ctx context.Context, filter bson.M) ([]E, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.coll.Name(), err)
	}
	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", r.coll.Name(), err)
	}
	out := make([]E, 0, len(docs))
	for i := range docs {
		e, err := r.fromDoc(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *repo[E, D]) Get(ctx context.Context, id ksid.ID) (E, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *repo[E, D]) findOne(ctx context.Context, filter bson.M) (E, error) {
	var zero E
	var doc D
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, storage.ErrNotFound
		}
		return zero, fmt.Errorf("retrieving from %s: %w", r.coll.Name(), err)
	}
	return r.fromDoc(&doc)
}

func (r *repo[E, D]) Create(ctx context.Context, e E) error {
	if _, err := r.coll.InsertOne(ctx, r.toDoc(e)); err != nil {
		return r.mapErr("inserting", err)
	}
	return nil
}

func (r *repo[E, D]) Update(ctx context.Context, e E) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": e.GetID().String()}, r.toDoc(e))
	if err != nil {
		return r.mapErr("replacing", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *repo[E, D]) Delete(ctx context.Context, id ksid.ID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", r.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *repo[E, D]) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("wiping %s: %w", r.coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (r *repo[E, D]) mapErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", storage.ErrConflict, r.unique)
	}
	return fmt.Errorf("%s %s: %w", op, r.coll.Name(), err)
}

type userRepo struct {
	repo[*entity.User, userDoc]
}

func (r *userRepo) ByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, bson.M{"email_key": entity.NormalizeEmail(email)})
}

type extractedRepo struct {
	repo[*entity.Extracted, extractedDoc]
}

func (r *extractedRepo) ForDocument(ctx context.Context, doc ksid.ID) (*entity.Extracted, error) {
	return r.findOne(ctx, bson.M{"document": doc.String()})
}

func (r *extractedRepo) Upsert(ctx context.Context, e *entity.Extracted) error {
	if e.ID.IsZero() {
		e.ID = ksid.NewID()
	}
	d := toExtractedDoc(e)
	update := bson.M{
		"$set":         bson.M{"data": d.Data, "created": d.Created},
		"$setOnInsert": bson.M{"_id": d.ID},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var got extractedDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"document": d.Document}, update, opts).Decode(&got); err != nil {
		return r.mapErr("upserting", err)
	}
	id, err := parseID(got.ID)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (r *extractedRepo) DeleteForDocument(ctx context.Context, doc ksid.ID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"document": doc.String()})
	if err != nil {
		return fmt.Errorf("deleting extracted data for %s: %w", doc, err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
