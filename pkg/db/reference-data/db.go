package referencedata

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
	COLLECTION_NAME_BLOCK_ENTRIES      = "blockEntries"
	COLLECTION_NAME_DISPOSABLE_DOMAINS = "disposableDomains"
)

type ReferenceDataDBService struct {
	DBClient        *mongo.Client
	timeout         int
	noCursorTimeout bool
	DBNamePrefix    string
}

func NewReferenceDataDBService(configs db.DBConfig) (*ReferenceDataDBService, error) {
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

	rdDBSc := &ReferenceDataDBService{
		DBClient:        dbClient,
		timeout:         configs.Timeout,
		noCursorTimeout: configs.NoCursorTimeout,
		DBNamePrefix:    configs.DBNamePrefix,
	}

	if configs.RunIndexCreation {
		rdDBSc.ensureIndexes()
	}
	return rdDBSc, nil
}

func (dbService *ReferenceDataDBService) getDBName() string {
	return dbService.DBNamePrefix + "signup-reference"
}

func (dbService *ReferenceDataDBService) getContext() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(dbService.timeout)*time.Second)
}

func (dbService *ReferenceDataDBService) collectionBlockEntries() *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName()).Collection(COLLECTION_NAME_BLOCK_ENTRIES)
}

func (dbService *ReferenceDataDBService) collectionDisposableDomains() *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName()).Collection(COLLECTION_NAME_DISPOSABLE_DOMAINS)
}

func (dbService *ReferenceDataDBService) ensureIndexes() {
	slog.Debug("Ensuring indexes for reference data DB")

	err := dbService.CreateIndexesForBlockEntries()
	if err != nil {
		slog.Error("Error creating indexes for block entries", slog.String("error", err.Error()))
	}
	err = dbService.CreateIndexesForDisposableDomains()
	if err != nil {
		slog.Error("Error creating indexes for disposable domains", slog.String("error", err.Error()))
	}
}
