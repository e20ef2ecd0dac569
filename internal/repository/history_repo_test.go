package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/database"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")
	require.NoError(t, database.Migrate(db), "Failed to run migrations")
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestHistoryRepository_Uploads(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	first := &models.Upload{
		SessionID:  "session-1",
		Generation: 1,
		FileName:   "competitors.xlsx",
		FileSize:   2048,
		Sheets:     datatypes.JSON(`["Competitors","Notes"]`),
	}
	require.NoError(t, repo.CreateUpload(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, models.UploadStatusIndexing, first.Status)

	require.NoError(t, repo.UpdateUploadStatus(ctx, first.ID, models.UploadStatusReady, 3, ""))
	got, err := repo.GetUpload(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusReady, got.Status)
	assert.Equal(t, 3, got.PassageCount)
	assert.NotNil(t, got.IndexedAt)
	assert.JSONEq(t, `["Competitors","Notes"]`, string(got.Sheets))

	second := &models.Upload{SessionID: "session-1", Generation: 2, FileName: "v2.xlsx"}
	require.NoError(t, repo.CreateUpload(ctx, second))

	got, err = repo.GetUpload(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusSuperseded, got.Status)

	latest, err := repo.LatestUpload(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestHistoryRepository_UploadErrors(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	assert.Error(t, repo.CreateUpload(ctx, &models.Upload{FileName: "x.xlsx"}))

	_, err := repo.GetUpload(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrUploadNotFound))

	_, err = repo.LatestUpload(ctx, "nobody")
	assert.True(t, errors.Is(err, models.ErrUploadNotFound))

	err = repo.UpdateUploadStatus(ctx, "missing", models.UploadStatusFailed, 0, "boom")
	assert.True(t, errors.Is(err, models.ErrUploadNotFound))

	err = repo.UpdateUploadStatus(ctx, "missing", models.UploadStatus("weird"), 0, "")
	assert.True(t, errors.Is(err, models.ErrInvalidUploadStatus))
}

func TestHistoryRepository_Queries(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		q := &models.Query{
			SessionID:  "session-1",
			Generation: 1,
			Mode:       models.QueryModeAsk,
			Question:   fmt.Sprintf("question %d", i),
			Answer:     "answer",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.RecordQuery(ctx, q))
	}
	require.NoError(t, repo.RecordQuery(ctx, &models.Query{SessionID: "session-2", Mode: models.QueryModeSummary}))

	queries, err := repo.ListQueries(ctx, "session-1", 3)
	require.NoError(t, err)
	require.Len(t, queries, 3)
	assert.Equal(t, "question 4", queries[0].Question)
	assert.Equal(t, "question 2", queries[2].Question)

	count, err := repo.CountQueries(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	assert.Error(t, repo.RecordQuery(ctx, &models.Query{Mode: models.QueryModeAsk}))
}

func TestHistoryRepository_LateOlderUpload(t *testing.T) {
	repo := NewHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	newer := &models.Upload{SessionID: "session-1", Generation: 2, FileName: "v2.xlsx"}
	require.NoError(t, repo.CreateUpload(ctx, newer))

	// 旧一代的记录晚到
	older := &models.Upload{SessionID: "session-1", Generation: 1, FileName: "v1.xlsx"}
	require.NoError(t, repo.CreateUpload(ctx, older))
	assert.Equal(t, models.UploadStatusSuperseded, older.Status)

	got, err := repo.GetUpload(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusIndexing, got.Status)

	// 已取代的记录保持不变
	require.NoError(t, repo.UpdateUploadStatus(ctx, older.ID, models.UploadStatusReady, 4, ""))
	got, err = repo.GetUpload(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusSuperseded, got.Status)
}
