package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/karimdiab/saydaly/internal/domain/models"
)

type settingStore struct {
	col *mongo.Collection
}

func (s *settingStore) Get(ctx context.Context, key, fallback string) (string, error) {
	var setting models.Setting
	err := s.col.FindOne(ctx, bson.M{"key": key}).Decode(&setting)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return setting.Value, nil
}

func (s *settingStore) Set(ctx context.Context, key, value string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"key": key, "value": value}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

type reportStore struct {
	col *mongo.Collection
}

func (s *reportStore) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	if _, err := s.col.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}
