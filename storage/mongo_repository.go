package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"babylon/reconciler/model"
)

const (
	BankRecordsCollection     = "bank_records"
	LedgerCollection          = "ledger_transactions"
	StatementsCollection      = "statements"
	ReconciliationsCollection = "reconciliations"
	syncTableName             = "dataSync"
)

// MongoRepository implements reconcile.Store for MongoDB.
type MongoRepository struct {
	provider CollectionProvider
	now      func() time.Time
}

// NewMongoRepository creates a new MongoRepository.
func NewMongoRepository(provider CollectionProvider) *MongoRepository {
	return &MongoRepository{
		provider: provider,
		now:      time.Now,
	}
}

// SaveStatement stores the statement header and upserts its lines into the
// "bank_records" collection. Lines already flagged as matched stay matched.
func (r *MongoRepository) SaveStatement(ctx context.Context, stmt model.Statement, records []model.BankRecord) error {
	_, err := r.provider.Collection(StatementsCollection).ReplaceOne(
		ctx,
		bson.M{"_id": stmt.ID},
		toStatementDoc(stmt),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save statement %s: %w", stmt.ID, err)
	}

	if len(records) == 0 {
		return nil // Nothing to upsert
	}

	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		doc := toBankDoc(rec)
		update := bson.M{"$set": doc}
		if !doc.Matched {
			update["$setOnInsert"] = bson.M{"matched": false}
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetUpdate(update).
			SetUpsert(true))
	}

	return r.bulkUpsert(ctx, BankRecordsCollection, models)
}

// UpsertLedgerRecords upserts ledger transactions into "ledger_transactions".
// An UNMATCHED status from the export never overwrites progress already
// recorded by reconciliation.
func (r *MongoRepository) UpsertLedgerRecords(ctx context.Context, records []model.LedgerRecord) error {
	if len(records) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		doc := toLedgerDoc(rec)
		update := bson.M{"$set": doc}
		if doc.ReconStatus == "" || doc.ReconStatus == string(model.ReconUnmatched) {
			doc.ReconStatus = ""
			update = bson.M{
				"$set":         doc,
				"$setOnInsert": bson.M{"reconStatus": string(model.ReconUnmatched)},
			}
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetUpdate(update).
			SetUpsert(true))
	}

	return r.bulkUpsert(ctx, LedgerCollection, models)
}

func (r *MongoRepository) bulkUpsert(ctx context.Context, collectionName string, models []mongo.WriteModel) error {
	collection := r.provider.Collection(collectionName)
	_, err := collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to perform bulk write for collection %s: %w", collectionName, err)
	}

	// Update sync log
	syncCollection := r.provider.Collection(syncTableName)
	syncLog := SyncLog{
		CollectionName:  collectionName,
		SyncTimestamp:   r.now(),
		RecordsUploaded: int64(len(models)),
	}
	_, err = syncCollection.InsertOne(ctx, syncLog)
	if err != nil {
		return fmt.Errorf("failed to insert into dataSync collection: %w", err)
	}

	return nil
}

// ListBankRecords returns the account's statement lines dated within
// [from, to], oldest first.
func (r *MongoRepository) ListBankRecords(ctx context.Context, accountID string, from, to time.Time) ([]model.BankRecord, error) {
	filter := bson.M{
		"accountId": accountID,
		"date": bson.M{
			"$gte": model.DateOnly(from),
			"$lt":  model.DateOnly(to).AddDate(0, 0, 1),
		},
	}

	var docs []bankDoc
	if err := r.find(ctx, BankRecordsCollection, filter, &docs); err != nil {
		return nil, err
	}

	records := make([]model.BankRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListLedgerRecords returns the account's ledger transactions dated on or
// before to, oldest first.
func (r *MongoRepository) ListLedgerRecords(ctx context.Context, accountID string, to time.Time) ([]model.LedgerRecord, error) {
	filter := bson.M{
		"accountId": accountID,
		"date":      bson.M{"$lt": model.DateOnly(to).AddDate(0, 0, 1)},
	}

	var docs []ledgerDoc
	if err := r.find(ctx, LedgerCollection, filter, &docs); err != nil {
		return nil, err
	}

	records := make([]model.LedgerRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := doc.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *MongoRepository) find(ctx context.Context, collectionName string, filter bson.M, out interface{}) error {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.provider.Collection(collectionName).Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("failed to query collection %s: %w", collectionName, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode documents from collection %s: %w", collectionName, err)
	}
	return nil
}

// LatestStatement returns the most recent statement for the account that
// ends on or before periodEnd.
func (r *MongoRepository) LatestStatement(ctx context.Context, accountID string, periodEnd time.Time) (model.Statement, error) {
	filter := bson.M{
		"accountId": accountID,
		"periodEnd": bson.M{"$lt": model.DateOnly(periodEnd).AddDate(0, 0, 1)},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "periodEnd", Value: -1}, {Key: "uploadedAt", Value: -1}})

	var doc statementDoc
	err := r.provider.Collection(StatementsCollection).FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Statement{}, model.NotFoundError("statement for account", accountID)
	}
	if err != nil {
		return model.Statement{}, fmt.Errorf("failed to load statement for account %s: %w", accountID, err)
	}
	return doc.statement()
}

// SaveRun inserts or replaces a reconciliation run.
func (r *MongoRepository) SaveRun(ctx context.Context, run model.Run) error {
	_, err := r.provider.Collection(ReconciliationsCollection).ReplaceOne(
		ctx,
		bson.M{"_id": run.ID},
		toRunDoc(run),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads a reconciliation run by id.
func (r *MongoRepository) GetRun(ctx context.Context, id string) (model.Run, error) {
	var doc runDoc
	err := r.provider.Collection(ReconciliationsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Run{}, model.NotFoundError("reconciliation run", id)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to load reconciliation run %s: %w", id, err)
	}
	return doc.run()
}

// MarkLedgerReconciled sets reconStatus RECONCILED on the given ledger
// transactions and records runID as their owner.
func (r *MongoRepository) MarkLedgerReconciled(ctx context.Context, runID string, ids []string) error {
	return r.updateByIDs(ctx, LedgerCollection, ids, bson.M{
		"reconStatus":  string(model.ReconReconciled),
		"reconciledBy": runID,
	})
}

// MarkBankMatched flags the given statement lines as matched by runID.
func (r *MongoRepository) MarkBankMatched(ctx context.Context, runID string, ids []string) error {
	return r.updateByIDs(ctx, BankRecordsCollection, ids, bson.M{"matched": true, "matchedBy": runID})
}

func (r *MongoRepository) updateByIDs(ctx context.Context, collectionName string, ids []string, set bson.M) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.provider.Collection(collectionName).UpdateMany(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to update collection %s: %w", collectionName, err)
	}
	return nil
}
