package counters

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
	COLLECTION_NAME_RATE_LIMIT_COUNTERS = "rateLimitCounters"
)

type CounterDBService struct {
	DBClient        *mongo.Client
	timeout         int
	noCursorTimeout bool
	DBNamePrefix    string
}

func NewCounterDBService(configs db.DBConfig) (*CounterDBService, error) {
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

	cDBSc := &CounterDBService{
		DBClient:        dbClient,
		timeout:         configs.Timeout,
		noCursorTimeout: configs.NoCursorTimeout,
		DBNamePrefix:    configs.DBNamePrefix,
	}

	if configs.RunIndexCreation {
		cDBSc.ensureIndexes()
	}
	return cDBSc, nil
}

func (dbService *CounterDBService) getDBName() string {
	return dbService.DBNamePrefix + "signup-risk"
}

func (dbService *CounterDBService) getContext() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(dbService.timeout)*time.Second)
}

func (dbService *CounterDBService) collectionRateLimitCounters() *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName()).Collection(COLLECTION_NAME_RATE_LIMIT_COUNTERS)
}

func (dbService *CounterDBService) ensureIndexes() {
	slog.Debug("Ensuring indexes for rate limit counter DB")

	err := dbService.CreateIndexesForRateLimitCounters()
	if err != nil {
		slog.Error("Error creating indexes for rate limit counters", slog.String("error", err.Error()))
	}
}
