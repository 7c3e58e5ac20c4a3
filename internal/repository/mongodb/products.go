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

type productStore struct {
	col *mongo.Collection
}

func (s *productStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapFindError(err)
	}
	return &p, nil
}

func (s *productStore) FindByNameTypePrice(ctx context.Context, name, productType string, price float64) (*models.Product, error) {
	filter := bson.M{
		"name":  strings.TrimSpace(name),
		"type":  productType,
		"price": price,
	}
	var p models.Product
	if err := s.col.FindOne(ctx, filter).Decode(&p); err != nil {
		return nil, mapFindError(err)
	}
	return &p, nil
}

func (s *productStore) FindByName(ctx context.Context, name string) (*models.Product, error) {
	var p models.Product
	if err := s.col.FindOne(ctx, bson.M{"name": strings.TrimSpace(name)}).Decode(&p); err != nil {
		return nil, mapFindError(err)
	}
	return &p, nil
}

func (s *productStore) Insert(ctx context.Context, p *models.Product) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	res, err := s.col.InsertOne(ctx, p)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = oid
	}
	return nil
}

func (s *productStore) Update(ctx context.Context, p models.Product) error {
	p.UpdatedAt = time.Now()
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *productStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *productStore) ListShortcomings(ctx context.Context) ([]models.Product, error) {
	return s.list(ctx, bson.M{"isShortcoming": true})
}

func (s *productStore) ListExpiring(ctx context.Context, before time.Time) ([]models.Product, error) {
	return s.list(ctx, bson.M{"expiryDate": bson.M{"$ne": nil, "$lte": before}})
}

func (s *productStore) ListByCompany(ctx context.Context, company string) ([]models.Product, error) {
	return s.list(ctx, bson.M{"company": company})
}

func (s *productStore) list(ctx context.Context, filter bson.M) ([]models.Product, error) {
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var out []models.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}
