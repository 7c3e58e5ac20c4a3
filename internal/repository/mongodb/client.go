// Package mongodb implements the repository contracts on top of MongoDB,
// using multi-document sessions as the atomic unit of work.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/karimdiab/saydaly/internal/repository"
)

// Client wraps a MongoDB connection and routes pharmacy identifiers to
// per-pharmacy databases.
type Client struct {
	client   *mongo.Client
	dbPrefix string
}

// NewClient connects to MongoDB and verifies the connection.
func NewClient(ctx context.Context, uri, dbPrefix string) (*Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{client: client, dbPrefix: dbPrefix}, nil
}

// Tenant returns the store scoped to one pharmacy's database.
func (c *Client) Tenant(pharmacyID string) repository.Store {
	name := c.dbPrefix
	if pharmacyID != "" {
		name = fmt.Sprintf("%s_%s", c.dbPrefix, pharmacyID)
	}
	return &Store{db: c.client.Database(name)}
}

// Close disconnects the underlying client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Store is one pharmacy's database handle.
type Store struct {
	db *mongo.Database
}

func (s *Store) Products() repository.ProductStore {
	return &productStore{col: s.db.Collection("products")}
}

func (s *Store) Winnings() repository.WinningStore {
	return &winningStore{col: s.db.Collection("winnings")}
}

func (s *Store) Debtors() repository.DebtorStore {
	return &debtorStore{col: s.db.Collection("debtors")}
}

func (s *Store) Orders() repository.OrderStore {
	return &orderStore{col: s.db.Collection("orders")}
}

func (s *Store) Settings() repository.SettingStore {
	return &settingStore{col: s.db.Collection("settings")}
}

func (s *Store) Reports() repository.ReportStore {
	return &reportStore{col: s.db.Collection("daily_reports")}
}

// RunTransaction executes fn inside one multi-document transaction with
// snapshot reads and majority writes. Any error from fn aborts the session's
// transaction; transient conflicts are surfaced as repository.ErrConflict so
// callers can retry the whole operation.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	err = mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(txnOpts); err != nil {
			return fmt.Errorf("start transaction: %w", err)
		}
		if err := fn(sc); err != nil {
			_ = session.AbortTransaction(sc)
			return err
		}
		if err := session.CommitTransaction(sc); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})

	return mapTxnError(err)
}

func mapTxnError(err error) error {
	if err == nil {
		return nil
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.HasErrorLabel("TransientTransactionError") || cmdErr.HasErrorLabel("UnknownTransactionCommitResult") {
			return fmt.Errorf("%w: %s", repository.ErrConflict, cmdErr.Message)
		}
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) && writeErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %s", repository.ErrConflict, writeErr.Error())
	}
	return err
}

func mapFindError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}
