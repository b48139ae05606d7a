package verificationtokens

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
	COLLECTION_NAME_VERIFICATION_TOKENS = "verificationTokens"
)

type VerificationTokenDBService struct {
	DBClient        *mongo.Client
	timeout         int
	noCursorTimeout bool
	DBNamePrefix    string
}

func NewVerificationTokenDBService(configs db.DBConfig) (*VerificationTokenDBService, error) {
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

	vtDBSc := &VerificationTokenDBService{
		DBClient:        dbClient,
		timeout:         configs.Timeout,
		noCursorTimeout: configs.NoCursorTimeout,
		DBNamePrefix:    configs.DBNamePrefix,
	}

	if configs.RunIndexCreation {
		vtDBSc.ensureIndexes()
	}
	return vtDBSc, nil
}

func (dbService *VerificationTokenDBService) getDBName() string {
	return dbService.DBNamePrefix + "signup-users"
}

func (dbService *VerificationTokenDBService) getContext() (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(dbService.timeout)*time.Second)
}

func (dbService *VerificationTokenDBService) collectionVerificationTokens() *mongo.Collection {
	return dbService.DBClient.Database(dbService.getDBName()).Collection(COLLECTION_NAME_VERIFICATION_TOKENS)
}

func (dbService *VerificationTokenDBService) ensureIndexes() {
	slog.Debug("Ensuring indexes for verification token DB")

	err := dbService.CreateIndexesForVerificationTokens()
	if err != nil {
		slog.Error("Error creating indexes for verification tokens", slog.String("error", err.Error()))
	}
}
