// Package mongo stores loan applications in a MongoDB collection laid out
// the way the original application documents were.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/store"
	"kilimokredo/pkg/platform/sentinel"
)

// CollectionName is the collection holding application documents.
const CollectionName = "loanapplications"

// Store is a MongoDB-backed application store.
type Store struct {
	coll *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New uses the loanapplications collection of db.
func New(db *mongo.Database) *Store {
	return NewWithCollection(db.Collection(CollectionName))
}

// NewWithCollection uses an explicit collection.
func NewWithCollection(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the indexes behind the list queries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "farmerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "others.loanStatus", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create loan application indexes: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, app *models.LoanApplication) error {
	if _, err := s.coll.InsertOne(ctx, toDoc(app)); err != nil {
		return fmt.Errorf("insert loan application: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.LoanApplication, error) {
	var doc applicationDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find loan application: %w", err)
	}
	return doc.toModel(), nil
}

func (s *Store) Find(ctx context.Context, filter store.Filter, limit int) ([]*models.LoanApplication, error) {
	q := bson.D{}
	if filter.FarmerID != "" {
		q = append(q, bson.E{Key: "farmerId", Value: filter.FarmerID})
	}
	if filter.Status != "" {
		q = append(q, bson.E{Key: "others.loanStatus", Value: string(filter.Status)})
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find loan applications: %w", err)
	}
	defer cur.Close(ctx)

	var docs []applicationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode loan applications: %w", err)
	}
	out := make([]*models.LoanApplication, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *Store) UpdateStatusIfPending(ctx context.Context, id string, status models.LoanStatus, now time.Time) (*models.LoanApplication, error) {
	now = now.UTC()
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "others.loanStatus", Value: string(models.LoanStatusPending)},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "others.loanStatus", Value: string(status)},
		{Key: "updatedAt", Value: now},
		{Key: "decidedAt", Value: now},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc applicationDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toModel(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("update loan status: %w", err)
	}

	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return nil, fmt.Errorf("check loan application: %w", err)
	}
	if n == 0 {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrInvalidState
}

func (s *Store) CountByStatus(ctx context.Context) (map[models.LoanStatus]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$others.loanStatus"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count loan applications: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode status counts: %w", err)
	}
	counts := make(map[models.LoanStatus]int, len(rows))
	for _, r := range rows {
		counts[models.LoanStatus(r.Status)] = r.Count
	}
	return counts, nil
}
