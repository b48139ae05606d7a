package verificationtokens

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (dbService *VerificationTokenDBService) CreateIndexesForVerificationTokens() error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionVerificationTokens().Indexes().CreateMany(
		ctx, []mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "token", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{
					{Key: "expiresAt", Value: 1},
				},
				Options: options.Index().SetExpireAfterSeconds(0),
			},
			{
				Keys: bson.D{
					{Key: "accountID", Value: 1},
					{Key: "invalidated", Value: 1},
				},
			},
		},
	)
	return err
}

func (dbService *VerificationTokenDBService) AddToken(token VerificationToken) (VerificationToken, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	res, err := dbService.collectionVerificationTokens().InsertOne(ctx, token)
	if err != nil {
		return token, err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return token, errors.New("unexpected inserted id type")
	}
	token.ID = id
	return token, nil
}

// InvalidateOlderActiveTokens revokes every still-usable token of the
// account that precedes the given one in _id order. Ran after inserting a
// replacement: when issues race, each caller revokes everything older than
// its own insert, so only the last-inserted token can stay usable.
func (dbService *VerificationTokenDBService) InvalidateOlderActiveTokens(token VerificationToken) (int64, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	res, err := dbService.collectionVerificationTokens().UpdateMany(ctx,
		bson.M{
			"accountID":   token.AccountID,
			"invalidated": false,
			"consumedAt":  nil,
			"_id":         bson.M{"$lt": token.ID},
		},
		bson.M{"$set": bson.M{"invalidated": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ConsumeToken marks the token consumed if and only if it is still valid.
// The filter and update run as one findAndModify, so two concurrent calls
// with the same token cannot both succeed. On failure the token is looked
// up once more to report which rule rejected it.
func (dbService *VerificationTokenDBService) ConsumeToken(token string, now time.Time) (VerificationToken, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{
		"token":       token,
		"invalidated": false,
		"consumedAt":  nil,
		"expiresAt":   bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"consumedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var consumed VerificationToken
	err := dbService.collectionVerificationTokens().FindOneAndUpdate(ctx, filter, update, opts).Decode(&consumed)
	if err == nil {
		return consumed, nil
	}
	if err != mongo.ErrNoDocuments {
		return VerificationToken{}, err
	}

	var existing VerificationToken
	err = dbService.collectionVerificationTokens().FindOne(ctx, bson.M{"token": token}).Decode(&existing)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return VerificationToken{}, ErrTokenNotFound
		}
		return VerificationToken{}, err
	}
	switch {
	case existing.Invalidated:
		return VerificationToken{}, ErrTokenInvalidated
	case existing.IsConsumed():
		return VerificationToken{}, ErrTokenConsumed
	case existing.IsExpired(now):
		return VerificationToken{}, ErrTokenExpired
	default:
		return VerificationToken{}, ErrTokenNotFound
	}
}

func (dbService *VerificationTokenDBService) GetTokenInfo(token string) (VerificationToken, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	var t VerificationToken
	err := dbService.collectionVerificationTokens().FindOne(ctx, bson.M{"token": token}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return VerificationToken{}, ErrTokenNotFound
		}
		return VerificationToken{}, err
	}
	return t, nil
}

func (dbService *VerificationTokenDBService) GetActiveTokenForAccount(accountID string, now time.Time) (VerificationToken, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var t VerificationToken
	err := dbService.collectionVerificationTokens().FindOne(ctx, bson.M{
		"accountID":   accountID,
		"invalidated": false,
		"consumedAt":  nil,
		"expiresAt":   bson.M{"$gt": now},
	}, opts).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return VerificationToken{}, ErrTokenNotFound
		}
		return VerificationToken{}, err
	}
	return t, nil
}

// DeleteTokensExpiredBefore is the maintenance backstop behind the TTL
// index.
func (dbService *VerificationTokenDBService) DeleteTokensExpiredBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	res, err := dbService.collectionVerificationTokens().DeleteMany(ctx, bson.M{
		"expiresAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
