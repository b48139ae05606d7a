package attemptledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/db"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// collection names
const (
	COLLECTION_NAME_SIGNUP_ATTEMPTS = "signupAttempts"
)

const DEFAULT_ATTEMPT_RETENTION = 90 * 24 * time.Hour

type AttemptLedgerDBService struct {
	DBClient        *mongo.Client
	timeout         int
	noCursorTimeout bool
	DBNamePrefix    string
	retention       time.Duration
}

func NewAttemptLedgerDBService(configs db.DBConfig, retention time.Duration) (*AttemptLedgerDBService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	defer cancel()

	dbClient, err := mongo.Connect(ctx,
		options.Client().ApplyURI(configs.URI),
		options.Client().SetMaxConnIdleTime(time.Duration(configs.IdleConnTimeout)*time.Second),
		options.Client().SetMaxPoolSize(configs.MaxPoolSize),
	)

	if err != nil {
		return nil, err
	}

	ctx, conCancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	err = dbClient.Ping(ctx, nil)
	defer conCancel()

	if err != nil {
		return nil, err
	}

	if retention <= 0 {
		retention = DEFAULT_ATTEMPT_RETENTION
	}

	alDBSc := &AttemptLedgerDBService{
		DBClient:        dbClient,
		timeout:         configs.Timeout,
		noCursorTimeout: configs.NoCursorTimeout,
		DBNamePrefix:    configs.DBNamePrefix,
		retention:       retention,
	}

	if configs.RunIndexCreation {
		alDBSc.ensureIndexes()
	}
	return alDBSc, nil
}

func (dbService *AttemptLedgerDBService) getDBName() string {
	return dbService.DBNamePrefix + "signup-risk"
}

func (dbService *AttemptLedgerDBService) getContext() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(dbService.timeout)*time.Second)
}

func (dbService *AttemptLedgerDBService) collectionSignupAttempts() *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName()).Collection(COLLECTION_NAME_SIGNUP_ATTEMPTS)
}

func (dbService *AttemptLedgerDBService) ensureIndexes() {
	slog.Debug("Ensuring indexes for attempt ledger DB")

	err := dbService.CreateIndexesForSignupAttempts()
	if err != nil {
		slog.Error("Error creating indexes for signup attempts", slog.String("error", err.Error()))
	}
}
