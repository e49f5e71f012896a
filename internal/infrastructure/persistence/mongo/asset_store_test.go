package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/calculus-oom/gradebook/internal/domain/asset"
	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

var (
	created = time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC)
	updated = created.Add(time.Hour)
)

func bundleDocument(id, paper, histogram string) bson.D {
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "bundle_id", Value: id},
		{Key: "paper_path", Value: paper},
		{Key: "histogram_path", Value: histogram},
		{Key: "created_at", Value: primitive.NewDateTimeFromTime(created)},
		{Key: "updated_at", Value: primitive.NewDateTimeFromTime(updated)},
	}
}

func TestAssetStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get returns the bundle", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
			bundleDocument("tpic_1141_file_0000abcd", "uploads/p.png", "")))

		b, err := NewAssetStoreFromCollection(mt.Coll).Get(ctx, "tpic_1141_file_0000abcd")
		require.NoError(t, err)
		assert.Equal(t, "tpic_1141_file_0000abcd", b.ID)
		assert.Equal(t, "uploads/p.png", b.PaperPath)
		assert.Empty(t, b.HistogramPath)
		assert.True(t, b.CreatedAt.Equal(created))
	})

	mt.Run("get missing bundle is not found", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewAssetStoreFromCollection(mt.Coll).Get(ctx, "missing")
		assert.True(t, shared.IsNotFound(err))
	})

	mt.Run("upsert sets one path and inserts created_at only once", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: bundleDocument("tpic_1141_file_0000abcd", "", "uploads/h.png"),
		}))

		b, err := NewAssetStoreFromCollection(mt.Coll).
			Upsert(ctx, "tpic_1141_file_0000abcd", asset.KindHistogram, "uploads/h.png", updated)
		require.NoError(t, err)
		assert.Equal(t, "uploads/h.png", b.HistogramPath)

		cmd := mt.GetStartedEvent().Command
		assert.True(t, cmd.Lookup("upsert").Boolean())
		assert.True(t, cmd.Lookup("new").Boolean())
		assert.Equal(t, "uploads/h.png", cmd.Lookup("update", "$set", "histogram_path").StringValue())
		_, err = cmd.LookupErr("update", "$set", "paper_path")
		assert.Error(t, err, "only the uploaded kind is written")
		assert.Equal(t, "tpic_1141_file_0000abcd", cmd.Lookup("update", "$setOnInsert", "bundle_id").StringValue())
	})

	mt.Run("upsert retries after a duplicate key race", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Name: "DuplicateKey", Message: "E11000 duplicate key"}),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bundleDocument("b1", "uploads/p.png", "")}),
		)

		b, err := NewAssetStoreFromCollection(mt.Coll).Upsert(ctx, "b1", asset.KindPaper, "uploads/p.png", updated)
		require.NoError(t, err)
		assert.Equal(t, "uploads/p.png", b.PaperPath)
	})

	mt.Run("upsert gives up after repeated duplicate keys", func(mt *mtest.T) {
		dup := mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Name: "DuplicateKey", Message: "E11000 duplicate key"})
		mt.AddMockResponses(dup, dup, dup)

		_, err := NewAssetStoreFromCollection(mt.Coll).Upsert(ctx, "b1", asset.KindPaper, "uploads/p.png", updated)
		assert.True(t, shared.IsStorage(err))
		assert.True(t, mongo.IsDuplicateKeyError(err))
	})

	mt.Run("upsert rejects unknown kind", func(mt *mtest.T) {
		_, err := NewAssetStoreFromCollection(mt.Coll).Upsert(ctx, "b1", asset.Kind("video"), "x", updated)
		assert.True(t, shared.IsValidation(err))
	})

	mt.Run("update missing bundle is not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := NewAssetStoreFromCollection(mt.Coll).Update(ctx, asset.Bundle{ID: "missing"})
		assert.True(t, shared.IsNotFound(err))
	})

	mt.Run("update existing bundle", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := NewAssetStoreFromCollection(mt.Coll).Update(ctx, asset.Bundle{ID: "b1", PaperPath: "p2.png", UpdatedAt: updated})
		assert.NoError(t, err)
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		store := NewAssetStoreFromCollection(mt.Coll)
		assert.NoError(t, store.Delete(ctx, "b1"))
		assert.True(t, shared.IsNotFound(store.Delete(ctx, "b1")))
	})

	mt.Run("driver failure is a storage error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad value"}))

		err := NewAssetStoreFromCollection(mt.Coll).Delete(ctx, "b1")
		assert.True(t, shared.IsStorage(err))
	})
}
