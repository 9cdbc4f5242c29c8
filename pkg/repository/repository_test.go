package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"marketplace-backend/pkg/db/option"
)

type thing struct {
	ID    string `gorm:"primaryKey"`
	Owner string
	Rank  int
}

func newTestStore(t *testing.T) (Repository[thing], *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&thing{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return ProvideStore[thing](db), db
}

func TestStore_CreateFindOne(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &thing{ID: "t1", Owner: "alpha", Rank: 1}))

	got, err := store.FindOne(ctx, &thing{ID: "t1"})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "alpha", got.Owner)
}

func TestStore_FindOne_AbsentIsNilNil(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.FindOne(context.Background(), &thing{ID: "missing"})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStore_FindWithOptions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.BatchCreate(ctx, []*thing{
		{ID: "t1", Owner: "alpha", Rank: 3},
		{ID: "t2", Owner: "alpha", Rank: 1},
		{ID: "t3", Owner: "beta", Rank: 2},
	}))

	got, err := store.Find(ctx, &thing{Owner: "alpha"},
		option.ApplyOperator(option.Condition{Field: "rank", Operator: option.GTE, Value: 2}),
		option.WithSortBy(option.QuerySortBy{SortBy: "rank", OrderBy: "DESC", Allow: map[string]bool{"rank": true}}),
	)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "t1", got[0].ID)
}

func TestStore_Count(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.BatchCreate(ctx, []*thing{
		{ID: "t1", Owner: "alpha"},
		{ID: "t2", Owner: "alpha"},
		{ID: "t3", Owner: "beta"},
	}))

	count, err := store.Count(ctx, &thing{Owner: "alpha"})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestStore_Update(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &thing{ID: "t1", Owner: "alpha", Rank: 1}))
	require.NoError(t, store.Update(ctx, "t1", map[string]any{"rank": 9}))

	got, err := store.FindOne(ctx, &thing{ID: "t1"})
	require.NoError(t, err)
	require.Equal(t, 9, got.Rank)
}

func TestStore_Delete_ReportsRowsAffected(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &thing{ID: "t1", Owner: "alpha"}))

	rows, err := store.Delete(ctx, &thing{ID: "t1", Owner: "alpha"})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	rows, err = store.Delete(ctx, &thing{ID: "t1"})
	require.NoError(t, err)
	require.Zero(t, rows)
}

func TestStore_WithTrx(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		repo := store.WithTrx(tx)
		if err := repo.Create(ctx, &thing{ID: "t1", Owner: "alpha"}); err != nil {
			return err
		}
		return gorm.ErrInvalidTransaction // force rollback
	})
	require.Error(t, err)

	got, err := store.FindOne(ctx, &thing{ID: "t1"})
	require.NoError(t, err)
	require.Nil(t, got)
}
