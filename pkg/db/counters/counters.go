package counters

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RateLimitCounter struct {
	Key       string    `bson:"key"`
	WindowEnd time.Time `bson:"windowEnd"`
	Count     int64     `bson:"count"`
}

func (dbService *CounterDBService) CreateIndexesForRateLimitCounters() error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionRateLimitCounters().Indexes().CreateMany(
		ctx, []mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "key", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{
					{Key: "windowEnd", Value: 1},
				},
				Options: options.Index().SetExpireAfterSeconds(0),
			},
		},
	)
	return err
}

// IncrementAndGet adds one to the fixed-window counter under key in a
// single findAndModify, creating it with the window lifetime when absent.
// Counts from concurrent callers are distinct. Satisfies the rate limiter
// store contract.
func (dbService *CounterDBService) IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	// A duplicate key means an elapsed window still holds the key until
	// the TTL monitor reaps it. Remove it and start the new window; a
	// concurrent caller can recreate the key between the delete and the
	// upsert, so the delete-and-retry loops a few times before giving up.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		var counter RateLimitCounter
		counter, err = dbService.tryIncrement(ctx, key, now, window)
		if err == nil {
			return counter.Count, counter.WindowEnd.Sub(now), nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return 0, 0, err
		}

		if _, errDelete := dbService.collectionRateLimitCounters().DeleteOne(ctx, bson.M{
			"key":       key,
			"windowEnd": bson.M{"$lte": now},
		}); errDelete != nil {
			return 0, 0, errDelete
		}
	}
	return 0, 0, err
}

func (dbService *CounterDBService) tryIncrement(ctx context.Context, key string, now time.Time, window time.Duration) (RateLimitCounter, error) {
	counter := RateLimitCounter{}
	err := dbService.collectionRateLimitCounters().FindOneAndUpdate(
		ctx,
		bson.M{
			"key":       key,
			"windowEnd": bson.M{"$gt": now},
		},
		bson.M{
			"$inc":         bson.M{"count": 1},
			"$setOnInsert": bson.M{"key": key, "windowEnd": now.Add(window)},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter, err
}

// GetCurrentCount reads the counter without incrementing. Elapsed windows
// report zero.
func (dbService *CounterDBService) GetCurrentCount(ctx context.Context, key string) (int64, error) {
	counter := RateLimitCounter{}
	err := dbService.collectionRateLimitCounters().FindOne(ctx, bson.M{
		"key":       key,
		"windowEnd": bson.M{"$gt": time.Now()},
	}).Decode(&counter)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}
	return counter.Count, nil
}

// RemoveCounter resets the window for a key.
func (dbService *CounterDBService) RemoveCounter(ctx context.Context, key string) error {
	_, err := dbService.collectionRateLimitCounters().DeleteOne(ctx, bson.M{"key": key})
	return err
}

// RemoveElapsedCounters is the maintenance backstop behind the TTL index.
func (dbService *CounterDBService) RemoveElapsedCounters(ctx context.Context) (int64, error) {
	res, err := dbService.collectionRateLimitCounters().DeleteMany(ctx, bson.M{
		"windowEnd": bson.M{"$lte": time.Now()},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
