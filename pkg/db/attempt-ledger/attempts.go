package attemptledger

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrAttemptNotFound = errors.New("signup attempt not found")

func (dbService *AttemptLedgerDBService) CreateIndexesForSignupAttempts() error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionSignupAttempts().Indexes().CreateMany(
		ctx, []mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "createdAt", Value: 1},
				},
				Options: options.Index().SetExpireAfterSeconds(int32(dbService.retention.Seconds())),
			},
			{
				Keys: bson.D{
					{Key: "fingerprintHash", Value: 1},
				},
			},
			{
				Keys: bson.D{
					{Key: "addressHash", Value: 1},
					{Key: "createdAt", Value: 1},
				},
			},
			{
				Keys: bson.D{
					{Key: "status", Value: 1},
					{Key: "createdAt", Value: 1},
				},
			},
		},
	)
	return err
}

// AddAttempt appends one record to the ledger. Records are never updated
// afterwards except for the status transition operations below.
func (dbService *AttemptLedgerDBService) AddAttempt(attempt SignupAttempt) (SignupAttempt, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	res, err := dbService.collectionSignupAttempts().InsertOne(ctx, attempt)
	if err != nil {
		return attempt, err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return attempt, errors.New("unexpected inserted id type")
	}
	attempt.ID = id
	return attempt, nil
}

func (dbService *AttemptLedgerDBService) GetAttemptByID(id string) (SignupAttempt, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return SignupAttempt{}, ErrAttemptNotFound
	}

	var attempt SignupAttempt
	err = dbService.collectionSignupAttempts().FindOne(ctx, bson.M{"_id": objID}).Decode(&attempt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return SignupAttempt{}, ErrAttemptNotFound
		}
		return SignupAttempt{}, err
	}
	return attempt, nil
}

// MarkCompletedByAccountID transitions the account's open attempt to
// completed. Attempts already in a terminal state are never touched.
func (dbService *AttemptLedgerDBService) MarkCompletedByAccountID(accountID string, completedAt time.Time) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	res, err := dbService.collectionSignupAttempts().UpdateOne(ctx,
		bson.M{
			"accountID": accountID,
			"status":    bson.M{"$in": []AttemptStatus{StatusPending, StatusAllowed, StatusChallenged}},
		},
		bson.M{"$set": bson.M{
			"status":      StatusCompleted,
			"completedAt": completedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

// MarkAbandonedOlderThan transitions open attempts created before the
// cutoff to abandoned. Returns the number of transitioned attempts.
func (dbService *AttemptLedgerDBService) MarkAbandonedOlderThan(cutoff time.Time) (int64, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	res, err := dbService.collectionSignupAttempts().UpdateMany(ctx,
		bson.M{
			"status":    bson.M{"$in": []AttemptStatus{StatusPending, StatusAllowed, StatusChallenged}},
			"createdAt": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{"status": StatusAbandoned}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountDistinctAccountsByFingerprint reports how many different accounts
// were created from attempts sharing this fingerprint hash.
func (dbService *AttemptLedgerDBService) CountDistinctAccountsByFingerprint(fingerprintHash string) (int, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	if fingerprintHash == "" {
		return 0, nil
	}

	values, err := dbService.collectionSignupAttempts().Distinct(ctx, "accountID", bson.M{
		"fingerprintHash": fingerprintHash,
		"accountID":       bson.M{"$nin": bson.A{nil, ""}},
	})
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// DeleteAttemptsOlderThan removes records past the retention window. The
// TTL index performs the same cleanup; this is the explicit backstop used
// by the maintenance job.
func (dbService *AttemptLedgerDBService) DeleteAttemptsOlderThan(cutoff time.Time) (int64, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	res, err := dbService.collectionSignupAttempts().DeleteMany(ctx, bson.M{
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CountAttemptsByStatusSince is used by operational tooling to gauge
// decision volumes.
func (dbService *AttemptLedgerDBService) CountAttemptsByStatusSince(status AttemptStatus, since time.Time) (int64, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	return dbService.collectionSignupAttempts().CountDocuments(ctx, bson.M{
		"status":    status,
		"createdAt": bson.M{"$gte": since},
	})
}
