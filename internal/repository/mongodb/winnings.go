package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/repository"
)

type winningStore struct {
	col *mongo.Collection
}

func (s *winningStore) Insert(ctx context.Context, w *models.Winning) error {
	if w.Date.IsZero() {
		w.Date = time.Now()
	}
	res, err := s.col.InsertOne(ctx, w)
	if err != nil {
		return fmt.Errorf("insert winning: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		w.ID = oid
	}
	return nil
}

func (s *winningStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete winning: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *winningStore) ListByRange(ctx context.Context, from, to time.Time, types []models.TransactionType) ([]models.Winning, error) {
	filter := bson.M{"date": bson.M{"$gte": from, "$lte": to}}
	if len(types) > 0 {
		filter["transactionType"] = bson.M{"$in": types}
	}
	return s.list(ctx, filter)
}

// ListSuspendedByReason matches the debtor's name against the free-text
// reason field. A substring match on a human-written reason is inherited
// behavior; the reporting and settlement paths rely on it.
func (s *winningStore) ListSuspendedByReason(ctx context.Context, name string) ([]models.Winning, error) {
	filter := bson.M{
		"transactionType": models.TransactionSuspended,
		"reason": primitive.Regex{
			Pattern: regexp.QuoteMeta(name),
			Options: "i",
		},
	}
	return s.list(ctx, filter)
}

func (s *winningStore) ListByType(ctx context.Context, t models.TransactionType) ([]models.Winning, error) {
	return s.list(ctx, bson.M{"transactionType": t})
}

func (s *winningStore) list(ctx context.Context, filter bson.M) ([]models.Winning, error) {
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list winnings: %w", err)
	}
	var out []models.Winning
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode winnings: %w", err)
	}
	return out, nil
}
