package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/statement-insights/internal/dedup"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	TransactionsCollection = "transactions"
	DocumentsCollection    = "documents"
	RunsCollection         = "ingestion_runs"

	duplicateKeyCode = 11000
)

// Repository implements the store contracts on MongoDB.
type Repository struct {
	provider CollectionProvider
	now      func() time.Time
}

var (
	_ store.Store           = (*Repository)(nil)
	_ store.RunRecorder     = (*Repository)(nil)
	_ store.Backfiller      = (*Repository)(nil)
	_ store.DocumentLister  = (*Repository)(nil)
	_ store.DocumentRemover = (*Repository)(nil)
)

// NewRepository creates a repository over provider.
func NewRepository(provider CollectionProvider) *Repository {
	return &Repository{provider: provider, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureIndexes creates the unique fingerprint index. Rows without a
// fingerprint are left out of the index so legacy data can coexist.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "fingerprint", Value: 1}},
		Options: options.Index().
			SetName("user_fingerprint_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"fingerprint": bson.M{"$gt": ""}}),
	}
	if _, err := r.provider.Collection(TransactionsCollection).CreateIndex(ctx, model); err != nil {
		return fmt.Errorf("EnsureIndexes: %w", err)
	}

	byDate := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "transaction_date", Value: 1}},
		Options: options.Index().SetName("user_transaction_date"),
	}
	if _, err := r.provider.Collection(TransactionsCollection).CreateIndex(ctx, byDate); err != nil {
		return fmt.Errorf("EnsureIndexes: %w", err)
	}
	return nil
}

// LoadCorpus returns the distinct non-empty fingerprints of userID.
func (r *Repository) LoadCorpus(ctx context.Context, userID string) (*dedup.Corpus, error) {
	values, err := r.provider.Collection(TransactionsCollection).Distinct(ctx, "fingerprint",
		bson.M{"user_id": userID, "fingerprint": bson.M{"$gt": ""}})
	if err != nil {
		return nil, fmt.Errorf("LoadCorpus: %w", err)
	}
	fps := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			fps = append(fps, s)
		}
	}
	return dedup.NewCorpus(fps...), nil
}

// InsertTransactions inserts txs unordered so one duplicate does not stop
// the batch. Duplicate-key write errors are counted as conflicts.
func (r *Repository) InsertTransactions(ctx context.Context, userID string, txs []domain.Transaction) (store.InsertResult, error) {
	var res store.InsertResult
	if len(txs) == 0 {
		return res, nil
	}

	now := r.now()
	runID := store.RunIDFromContext(ctx)
	docs := make([]interface{}, 0, len(txs))
	for _, tx := range txs {
		if tx.Fingerprint == "" {
			return res, fmt.Errorf("InsertTransactions: transaction %q has no fingerprint", tx.ActivityDescription)
		}
		doc, err := toTransactionDoc(uuid.NewString(), userID, runID, tx, now)
		if err != nil {
			return res, fmt.Errorf("InsertTransactions: %w", err)
		}
		docs = append(docs, doc)
	}

	_, err := r.provider.Collection(TransactionsCollection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	rejected, err := duplicateConflicts(err)
	if err != nil {
		return res, fmt.Errorf("InsertTransactions: %w", err)
	}
	for _, i := range rejected {
		if i >= 0 && i < len(txs) {
			res.Rejected = append(res.Rejected, txs[i].Fingerprint)
		}
	}
	res.Conflicts = len(rejected)
	res.Inserted = len(docs) - res.Conflicts

	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", userID).
		Int("inserted", res.Inserted).
		Int("conflicts", res.Conflicts).
		Msg("Transactions written to MongoDB")
	return res, nil
}

// duplicateConflicts returns the batch indexes of duplicate-key write
// errors in err. It returns err unchanged when any other kind of failure is
// present.
func duplicateConflicts(err error) ([]int, error) {
	if err == nil {
		return nil, nil
	}
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return nil, err
	}
	indexes := make([]int, 0, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return nil, err
		}
		indexes = append(indexes, we.Index)
	}
	return indexes, nil
}

// ListTransactions returns the user's transactions, undated rows last.
func (r *Repository) ListTransactions(ctx context.Context, userID string, filter store.ListFilter) ([]domain.Transaction, error) {
	q := bson.M{"user_id": userID}
	if filter.From != nil || filter.To != nil {
		rng := bson.M{}
		if filter.From != nil {
			rng["$gte"] = filter.From.UTC()
		}
		if filter.To != nil {
			rng["$lte"] = filter.To.UTC()
		}
		q["transaction_date"] = rng
	}

	docs, err := r.findTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate != nil && out[j].TransactionDate == nil
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Repository) findTransactions(ctx context.Context, filter bson.M) ([]transactionDoc, error) {
	opts := options.Find().SetSort(bson.D{{Key: "transaction_date", Value: 1}, {Key: "created_at", Value: 1}})
	cursor, err := r.provider.Collection(TransactionsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var docs []transactionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding cursor: %w", err)
	}
	return docs, nil
}

// StartRun inserts a RUNNING run document.
func (r *Repository) StartRun(ctx context.Context, userID string, documents int) (string, error) {
	run := runDoc{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    store.RunStatusRunning,
		Documents: documents,
		StartedAt: r.now(),
	}
	if _, err := r.provider.Collection(RunsCollection).InsertOne(ctx, run); err != nil {
		return "", fmt.Errorf("StartRun: %w", err)
	}
	return run.ID, nil
}

// RecordDocument stores the document with its raw model response.
func (r *Repository) RecordDocument(ctx context.Context, doc store.DocumentRecord) error {
	if _, err := r.provider.Collection(DocumentsCollection).InsertOne(ctx, toDocumentDoc(doc, r.now())); err != nil {
		return fmt.Errorf("RecordDocument: %w", err)
	}
	return nil
}

// MarkRunSucceeded closes the run with its final counts.
func (r *Repository) MarkRunSucceeded(ctx context.Context, runID string, inserted, duplicates int) error {
	return r.updateRun(ctx, "MarkRunSucceeded", runID, bson.M{
		"status":      store.RunStatusSucceeded,
		"inserted":    inserted,
		"duplicates":  duplicates,
		"finished_at": r.now(),
	})
}

// MarkRunFailed records the failure; errors are logged, not returned.
func (r *Repository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	set := bson.M{"status": store.RunStatusFailed, "finished_at": r.now()}
	if runErr != nil {
		set["error_message"] = runErr.Error()
	}
	if err := r.updateRun(ctx, "MarkRunFailed", runID, set); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("Failed to mark ingestion run as failed")
	}
}

func (r *Repository) updateRun(ctx context.Context, op, runID string, set bson.M) error {
	res, err := r.provider.Collection(RunsCollection).UpdateOne(ctx, bson.M{"_id": runID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: run %s: %w", op, runID, store.ErrNotFound)
	}
	return nil
}

// ListDocuments returns the user's documents, newest first.
func (r *Repository) ListDocuments(ctx context.Context, userID string) ([]store.DocumentRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.provider.Collection(DocumentsCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: %w", err)
	}
	var docs []documentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ListDocuments: decoding cursor: %w", err)
	}
	out := make([]store.DocumentRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toRecord())
	}
	return out, nil
}

// ListMissingFingerprints returns rows stored without a fingerprint, keyed by _id.
func (r *Repository) ListMissingFingerprints(ctx context.Context, userID string) (map[string]domain.Transaction, error) {
	docs, err := r.findTransactions(ctx, bson.M{
		"user_id": userID,
		"$or": bson.A{
			bson.M{"fingerprint": bson.M{"$exists": false}},
			bson.M{"fingerprint": ""},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ListMissingFingerprints: %w", err)
	}
	out := make(map[string]domain.Transaction, len(docs))
	for _, d := range docs {
		out[d.ID] = d.toDomain()
	}
	return out, nil
}

// SetFingerprint back-fills one row. A duplicate-key error means the user
// already holds a row with that fingerprint.
func (r *Repository) SetFingerprint(ctx context.Context, rowID, fp string) error {
	res, err := r.provider.Collection(TransactionsCollection).UpdateOne(ctx,
		bson.M{"_id": rowID}, bson.M{"$set": bson.M{"fingerprint": fp}})
	if err != nil {
		return fmt.Errorf("SetFingerprint: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("SetFingerprint: row %s: %w", rowID, store.ErrNotFound)
	}
	return nil
}

// FindDocumentByChecksum returns the newest document with checksum, or store.ErrNotFound.
func (r *Repository) FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*store.DocumentRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(1)
	cursor, err := r.provider.Collection(DocumentsCollection).Find(ctx, bson.M{"user_id": userID, "checksum": checksum}, opts)
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: %w", err)
	}
	var docs []documentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: decoding cursor: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("FindDocumentByChecksum: %s: %w", checksum, store.ErrNotFound)
	}
	rec := docs[0].toRecord()
	return &rec, nil
}

// DeleteDocument removes the document and the transactions extracted from it.
func (r *Repository) DeleteDocument(ctx context.Context, userID, documentID string) error {
	filter := bson.M{"user_id": userID, "document_id": documentID}
	txRes, err := r.provider.Collection(TransactionsCollection).DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("DeleteDocument: deleting transactions: %w", err)
	}
	docRes, err := r.provider.Collection(DocumentsCollection).DeleteMany(ctx, bson.M{"user_id": userID, "_id": documentID})
	if err != nil {
		return fmt.Errorf("DeleteDocument: deleting document: %w", err)
	}
	if txRes.DeletedCount == 0 && docRes.DeletedCount == 0 {
		return fmt.Errorf("DeleteDocument: document %s: %w", documentID, store.ErrNotFound)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("document_id", documentID).
		Int64("transactions", txRes.DeletedCount).
		Msg("Document deleted")
	return nil
}
