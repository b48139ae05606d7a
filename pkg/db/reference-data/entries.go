package referencedata

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (dbService *ReferenceDataDBService) CreateIndexesForBlockEntries() error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionBlockEntries().Indexes().CreateMany(
		ctx, []mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "kind", Value: 1},
					{Key: "value", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
	)
	return err
}

func (dbService *ReferenceDataDBService) CreateIndexesForDisposableDomains() error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionDisposableDomains().Indexes().CreateMany(
		ctx, []mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "domain", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
	)
	return err
}

func (dbService *ReferenceDataDBService) AddBlockEntry(entry BlockEntry) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	entry.Value = strings.TrimSpace(entry.Value)
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	_, err := dbService.collectionBlockEntries().InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (dbService *ReferenceDataDBService) RemoveBlockEntry(kind BlockEntryKind, value string) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionBlockEntries().DeleteOne(ctx, bson.M{
		"kind":  kind,
		"value": strings.TrimSpace(value),
	})
	return err
}

func (dbService *ReferenceDataDBService) AddDisposableDomain(domain string) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	entry := DisposableDomainEntry{
		Domain:  strings.ToLower(strings.TrimSpace(domain)),
		AddedAt: time.Now(),
	}
	_, err := dbService.collectionDisposableDomains().InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (dbService *ReferenceDataDBService) RemoveDisposableDomain(domain string) error {
	ctx, cancel := dbService.getContext()
	defer cancel()

	_, err := dbService.collectionDisposableDomains().DeleteOne(ctx, bson.M{
		"domain": strings.ToLower(strings.TrimSpace(domain)),
	})
	return err
}

// LoadSnapshot reads both collections into one immutable view. Callers
// swap the returned snapshot in atomically; the decision path never
// queries these collections directly.
func (dbService *ReferenceDataDBService) LoadSnapshot() (Snapshot, error) {
	ctx, cancel := dbService.getContext()
	defer cancel()

	snapshot := Snapshot{
		LoadedAt: time.Now(),
	}

	opts := options.Find()
	if dbService.noCursorTimeout {
		opts.SetNoCursorTimeout(dbService.noCursorTimeout)
	}

	cursor, err := dbService.collectionBlockEntries().Find(ctx, bson.D{}, opts)
	if err != nil {
		return snapshot, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var entry BlockEntry
		if err := cursor.Decode(&entry); err != nil {
			return snapshot, err
		}
		switch entry.Kind {
		case KindAddress:
			snapshot.Addresses = append(snapshot.Addresses, entry.Value)
		case KindCIDR:
			snapshot.CIDRs = append(snapshot.CIDRs, entry.Value)
		case KindEmailHash:
			snapshot.EmailHashes = append(snapshot.EmailHashes, entry.Value)
		}
	}
	if err := cursor.Err(); err != nil {
		return snapshot, err
	}

	domainCursor, err := dbService.collectionDisposableDomains().Find(ctx, bson.D{}, opts)
	if err != nil {
		return snapshot, err
	}
	defer domainCursor.Close(ctx)
	for domainCursor.Next(ctx) {
		var entry DisposableDomainEntry
		if err := domainCursor.Decode(&entry); err != nil {
			return snapshot, err
		}
		snapshot.DisposableDomains = append(snapshot.DisposableDomains, entry.Domain)
	}
	if err := domainCursor.Err(); err != nil {
		return snapshot, err
	}

	return snapshot, nil
}
