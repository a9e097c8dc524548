package store

import (
	"context"
	"encoding/json"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBackend keeps each kind in its own MongoDB collection with _id set to
// the record id.
type MongoBackend struct {
	client *mongo.Client
	db     *mongo.Database
	cols   map[Kind]*mongoCollection
}

func NewMongoBackend(client *mongo.Client, db *mongo.Database) *MongoBackend {
	b := &MongoBackend{client: client, db: db, cols: make(map[Kind]*mongoCollection, len(Kinds))}
	for _, k := range Kinds {
		b.cols[k] = &mongoCollection{col: db.Collection(string(k))}
	}
	return b
}

// Migrate creates the unique email index and the lookup indexes.
func (b *MongoBackend) Migrate(ctx context.Context) error {
	indexes := map[Kind]mongo.IndexModel{
		Users:    {Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		Projects: {Keys: bson.D{{Key: "userId", Value: 1}}},
		Tokens:   {Keys: bson.D{{Key: "projectId", Value: 1}}},
		Flows:    {Keys: bson.D{{Key: "projectId", Value: 1}}},
		Nodes:    {Keys: bson.D{{Key: "flowId", Value: 1}}},
	}
	for kind, model := range indexes {
		if _, err := b.db.Collection(string(kind)).Indexes().CreateOne(ctx, model); err != nil {
			return storageErr("mongo index "+string(kind), err)
		}
	}
	return nil
}

func (b *MongoBackend) Collection(kind Kind) Collection {
	return b.cols[kind]
}

func (b *MongoBackend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

type mongoCollection struct {
	col *mongo.Collection
}

var mongoSort = bson.D{{Key: FieldCreatedAt, Value: 1}, {Key: "_id", Value: 1}}

func filter(crit Criteria) bson.M {
	f := bson.M{}
	for k, v := range crit {
		f[k] = v
	}
	return f
}

func (c *mongoCollection) FindMany(ctx context.Context, crit Criteria) ([]Document, error) {
	cur, err := c.col.Find(ctx, filter(crit), options.Find().SetSort(mongoSort))
	if err != nil {
		return nil, storageErr("mongo find", err)
	}
	defer cur.Close(ctx)

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, storageErr("mongo find", err)
	}
	docs := make([]Document, 0, len(raw))
	for _, m := range raw {
		doc, err := fromBSON(m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *mongoCollection) FindUnique(ctx context.Context, crit Criteria) (Document, error) {
	var m bson.M
	err := c.col.FindOne(ctx, filter(crit), options.FindOne().SetSort(mongoSort)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("mongo find", err)
	}
	return fromBSON(m)
}

func (c *mongoCollection) Create(ctx context.Context, doc Document) (Document, error) {
	rec := prepareCreate(doc)
	m := bson.M{"_id": rec.ID()}
	for k, v := range rec {
		m[k] = v
	}
	if _, err := c.col.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, storageErr("mongo insert", err)
	}
	return rec, nil
}

func (c *mongoCollection) Update(ctx context.Context, crit Criteria, patch Document) (Document, error) {
	set := bson.M{}
	for k, v := range preparePatch(patch) {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(mongoSort)

	var m bson.M
	err := c.col.FindOneAndUpdate(ctx, filter(crit), bson.M{"$set": set}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, storageErr("mongo update", err)
	}
	return fromBSON(m)
}

func (c *mongoCollection) Delete(ctx context.Context, crit Criteria) (bool, error) {
	res, err := c.col.DeleteMany(ctx, filter(crit))
	if err != nil {
		return false, storageErr("mongo delete", err)
	}
	return res.DeletedCount > 0, nil
}

// fromBSON drops _id and normalises nested BSON values to plain JSON types
// through relaxed extended JSON.
func fromBSON(m bson.M) (Document, error) {
	delete(m, "_id")
	raw, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return nil, storageErr("mongo decode", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, storageErr("mongo decode", err)
	}
	return doc, nil
}
