package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/repository"
)

type debtorStore struct {
	col *mongo.Collection
}

func (s *debtorStore) FindByName(ctx context.Context, name string) (*models.Debtor, error) {
	var d models.Debtor
	if err := s.col.FindOne(ctx, bson.M{"name": strings.TrimSpace(name)}).Decode(&d); err != nil {
		return nil, mapFindError(err)
	}
	return &d, nil
}

func (s *debtorStore) Insert(ctx context.Context, d *models.Debtor) error {
	d.CreatedAt = time.Now()
	res, err := s.col.InsertOne(ctx, d)
	if err != nil {
		return fmt.Errorf("insert debtor: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		d.ID = oid
	}
	return nil
}

func (s *debtorStore) SetPartialPayments(ctx context.Context, id primitive.ObjectID, amount float64) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"partialPayments": amount}})
	if err != nil {
		return fmt.Errorf("update debtor payments: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *debtorStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete debtor: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type orderStore struct {
	col *mongo.Collection
}

func (s *orderStore) Insert(ctx context.Context, o *models.Order) error {
	if o.OrderedAt.IsZero() {
		o.OrderedAt = time.Now()
	}
	res, err := s.col.InsertOne(ctx, o)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		o.ID = oid
	}
	return nil
}

func (s *orderStore) ListByDebtor(ctx context.Context, debtorID primitive.ObjectID) ([]models.Order, error) {
	cur, err := s.col.Find(ctx, bson.M{"debtorId": debtorID}, options.Find().SetSort(bson.D{{Key: "orderedAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var out []models.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return out, nil
}

func (s *orderStore) DeleteByDebtor(ctx context.Context, debtorID primitive.ObjectID) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"debtorId": debtorID}); err != nil {
		return fmt.Errorf("delete orders: %w", err)
	}
	return nil
}
