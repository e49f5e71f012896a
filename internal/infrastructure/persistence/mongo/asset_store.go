package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
	"github.com/calculus-oom/gradebook/pkg/retry"
)

// AssetCollection is the collection holding asset bundles.
const AssetCollection = "exam_assets"

const upsertAttempts = 3

type bundleDoc struct {
	ObjectID      primitive.ObjectID `bson:"_id,omitempty"`
	BundleID      string             `bson:"bundle_id"`
	PaperPath     string             `bson:"paper_path"`
	HistogramPath string             `bson:"histogram_path"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

func (d bundleDoc) toBundle() asset.Bundle {
	return asset.Bundle{
		ID:            d.BundleID,
		PaperPath:     d.PaperPath,
		HistogramPath: d.HistogramPath,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func pathField(kind asset.Kind) string {
	if kind == asset.KindHistogram {
		return "histogram_path"
	}
	return "paper_path"
}

// AssetStore implements asset.Store on one collection.
type AssetStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

var _ asset.Store = (*AssetStore)(nil)

// NewAssetStore returns a store on db's exam_assets collection.
func NewAssetStore(db *mongo.Database) *AssetStore {
	return NewAssetStoreFromCollection(db.Collection(AssetCollection))
}

// NewAssetStoreFromCollection returns a store on an arbitrary collection.
func NewAssetStoreFromCollection(coll *mongo.Collection) *AssetStore {
	return &AssetStore{coll: coll, timeout: 5 * time.Second}
}

// EnsureIndexes creates the unique bundle_id index.
func (s *AssetStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "bundle_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("bundle_id_unique"),
	})
	if err != nil {
		return shared.StorageFailure("asset", "EnsureIndexes", err)
	}
	return nil
}

// Get implements asset.Store.
func (s *AssetStore) Get(ctx context.Context, id string) (asset.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc bundleDoc
	err := s.coll.FindOne(ctx, bson.M{"bundle_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return asset.Bundle{}, shared.NotFound("asset", "Get", id)
	}
	if err != nil {
		return asset.Bundle{}, shared.StorageFailure("asset", "Get", err)
	}
	return doc.toBundle(), nil
}

// Upsert implements asset.Store with one FindOneAndUpdate. Two concurrent
// first uploads may both try to insert; the loser hits the unique index and
// is retried, which then matches the winner's document. Network errors are
// retried the same way.
func (s *AssetStore) Upsert(ctx context.Context, id string, kind asset.Kind, path string, now time.Time) (asset.Bundle, error) {
	if !kind.IsValid() {
		return asset.Bundle{}, shared.NewValidationError("asset", "Upsert", "invalid kind", "kind")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now = now.UTC()
	update := bson.M{
		"$set": bson.M{
			pathField(kind): path,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"bundle_id":  id,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc bundleDoc
	err := retry.Do(ctx, func(ctx context.Context) error {
		err := s.coll.FindOneAndUpdate(ctx, bson.M{"bundle_id": id}, update, opts).Decode(&doc)
		if mongo.IsDuplicateKeyError(err) || mongo.IsNetworkError(err) {
			return retry.Retryable(err)
		}
		return err
	}, retry.WithMaxAttempts(upsertAttempts), retry.WithInitialDelay(10*time.Millisecond), retry.WithJitter(0))
	if err != nil {
		return asset.Bundle{}, shared.StorageFailure("asset", "Upsert", err)
	}
	return doc.toBundle(), nil
}

// Update implements asset.Store.
func (s *AssetStore) Update(ctx context.Context, b asset.Bundle) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, bson.M{"bundle_id": b.ID}, bson.M{
		"$set": bson.M{
			"paper_path":     b.PaperPath,
			"histogram_path": b.HistogramPath,
			"updated_at":     b.UpdatedAt.UTC(),
		},
	})
	if err != nil {
		return shared.StorageFailure("asset", "Update", err)
	}
	if res.MatchedCount == 0 {
		return shared.NotFound("asset", "Update", b.ID)
	}
	return nil
}

// Delete implements asset.Store.
func (s *AssetStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"bundle_id": id})
	if err != nil {
		return shared.StorageFailure("asset", "Delete", err)
	}
	if res.DeletedCount == 0 {
		return shared.NotFound("asset", "Delete", id)
	}
	return nil
}

// Ping checks that the server answers.
func (s *AssetStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}
