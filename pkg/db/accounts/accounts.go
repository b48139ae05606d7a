package accounts

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (dbService *AccountDBService) CreateIndexesForAccounts() error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionAccounts().Indexes().CreateMany(
		ctx, []mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "emailHash", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{
					{Key: "createdAt", Value: 1},
				},
			},
		},
	)
	return err
}

// CreateAccount inserts a new registry entry. The unique index on the
// email hash makes concurrent signups for the same address resolve to
// exactly one account.
func (dbService *AccountDBService) CreateAccount(account Account) (Account, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	res, err := dbService.collectionAccounts().InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return account, ErrAccountExists
		}
		return account, err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return account, errors.New("unexpected inserted id type")
	}
	account.ID = id
	return account, nil
}

func (dbService *AccountDBService) GetAccountByEmailHash(emailHash string) (Account, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	var account Account
	err := dbService.collectionAccounts().FindOne(ctx, bson.M{"emailHash": emailHash}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (dbService *AccountDBService) GetAccountByID(id string) (Account, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}

	var account Account
	err = dbService.collectionAccounts().FindOne(ctx, bson.M{"_id": objID}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (dbService *AccountDBService) MarkAccountVerified(id string, verifiedAt time.Time) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrAccountNotFound
	}

	res, err := dbService.collectionAccounts().UpdateOne(ctx,
		bson.M{"_id": objID},
		bson.M{"$set": bson.M{"verifiedAt": verifiedAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (dbService *AccountDBService) SetVerificationRequired(id string, required bool) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrAccountNotFound
	}

	res, err := dbService.collectionAccounts().UpdateOne(ctx,
		bson.M{"_id": objID},
		bson.M{"$set": bson.M{"verificationRequired": required}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteUnverifiedAccountsCreatedBefore removes accounts that never
// completed verification within the allowed time.
func (dbService *AccountDBService) DeleteUnverifiedAccountsCreatedBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	filter := bson.M{
		"verifiedAt": nil,
		"createdAt":  bson.M{"$lt": cutoff},
	}

	res, err := dbService.collectionAccounts().DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
