package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"todo-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newGormStore(t *testing.T) TaskStore {
	t.Helper()
	s := NewGormStore(setupTestDB(t))
	require.NoError(t, s.Migrate())
	return s
}

func newFileStore(t *testing.T) TaskStore {
	t.Helper()
	s, err := NewFileStore(FileStoreConfig{Path: filepath.Join(t.TempDir(), "tasks.json")})
	require.NoError(t, err)
	return s
}

func sampleTask(title string) models.Task {
	now := time.Date(2025, 9, 1, 8, 30, 0, 123456000, time.UTC)
	return models.Task{
		Title:     title,
		Status:    models.StatusTodo,
		Priority:  models.PriorityMed,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStoreContract(t *testing.T) {
	backends := map[string]func(t *testing.T) TaskStore{
		"gorm": newGormStore,
		"file": newFileStore,
	}

	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("insert assigns ids", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()

				first, err := s.Insert(ctx, sampleTask("first"))
				require.NoError(t, err)
				second, err := s.Insert(ctx, sampleTask("second"))
				require.NoError(t, err)

				assert.Positive(t, first.ID)
				assert.Greater(t, second.ID, first.ID)
			})

			t.Run("get round trips every field", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()

				desc := "2% organic"
				due := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
				task := sampleTask("Buy milk")
				task.Description = &desc
				task.DueDate = &due
				task.Priority = models.PriorityHigh
				task.Tags = []string{"groceries", "errands"}

				created, err := s.Insert(ctx, task)
				require.NoError(t, err)

				got, found, err := s.Get(ctx, created.ID)
				require.NoError(t, err)
				require.True(t, found)
				got.NormalizeTimes()

				assert.Equal(t, "Buy milk", got.Title)
				assert.Equal(t, desc, *got.Description)
				assert.Equal(t, models.PriorityHigh, got.Priority)
				assert.Equal(t, models.StatusTodo, got.Status)
				assert.Equal(t, []string{"groceries", "errands"}, got.Tags)
				require.NotNil(t, got.DueDate)
				assert.True(t, got.DueDate.Equal(due))
				assert.True(t, got.CreatedAt.Equal(task.CreatedAt))
				assert.True(t, got.UpdatedAt.Equal(task.UpdatedAt))
			})

			t.Run("get on absent id", func(t *testing.T) {
				s := factory(t)
				_, found, err := s.Get(context.Background(), 42)
				assert.NoError(t, err)
				assert.False(t, found)
			})

			t.Run("list is ordered by id", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()

				for _, title := range []string{"a", "b", "c"} {
					_, err := s.Insert(ctx, sampleTask(title))
					require.NoError(t, err)
				}

				tasks, err := s.ListAll(ctx)
				require.NoError(t, err)
				require.Len(t, tasks, 3)
				assert.Equal(t, "a", tasks[0].Title)
				assert.Equal(t, "b", tasks[1].Title)
				assert.Equal(t, "c", tasks[2].Title)
				assert.Less(t, tasks[0].ID, tasks[1].ID)
				assert.Less(t, tasks[1].ID, tasks[2].ID)
			})

			t.Run("update replaces the record", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()

				created, err := s.Insert(ctx, sampleTask("before"))
				require.NoError(t, err)

				created.Title = "after"
				created.Status = models.StatusDone
				created.Tags = []string{"x"}
				created.UpdatedAt = created.UpdatedAt.Add(time.Minute)
				_, err = s.Update(ctx, created)
				require.NoError(t, err)

				got, found, err := s.Get(ctx, created.ID)
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, "after", got.Title)
				assert.Equal(t, models.StatusDone, got.Status)
				assert.Equal(t, []string{"x"}, got.Tags)
				assert.True(t, got.UpdatedAt.Equal(created.UpdatedAt))
			})

			t.Run("update on absent id", func(t *testing.T) {
				s := factory(t)
				task := sampleTask("ghost")
				task.ID = 99

				_, err := s.Update(context.Background(), task)
				assert.ErrorIs(t, err, ErrNotFound)

				tasks, err := s.ListAll(context.Background())
				require.NoError(t, err)
				assert.Empty(t, tasks)
			})

			t.Run("delete reports existence", func(t *testing.T) {
				s := factory(t)
				ctx := context.Background()

				created, err := s.Insert(ctx, sampleTask("doomed"))
				require.NoError(t, err)

				removed, err := s.Delete(ctx, created.ID)
				require.NoError(t, err)
				assert.True(t, removed)

				removed, err = s.Delete(ctx, created.ID)
				require.NoError(t, err)
				assert.False(t, removed)

				_, found, err := s.Get(ctx, created.ID)
				require.NoError(t, err)
				assert.False(t, found)
			})

			t.Run("health", func(t *testing.T) {
				assert.NoError(t, factory(t).Health(context.Background()))
			})
		})
	}
}

func TestGormStore_WriteFailureIsStorageError(t *testing.T) {
	db := setupTestDB(t)
	s := NewGormStore(db)
	require.NoError(t, s.Migrate())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = s.Insert(context.Background(), sampleTask("never stored"))
	require.Error(t, err)
	assert.True(t, IsStorageError(err))

	_, err = s.Delete(context.Background(), 1)
	assert.True(t, IsStorageError(err))
}

func TestGormStore_FailedTransactionLeavesNoRow(t *testing.T) {
	db := setupTestDB(t)
	s := NewGormStore(db)
	require.NoError(t, s.Migrate())

	require.NoError(t, db.Exec("CREATE TRIGGER reject_bad BEFORE INSERT ON tasks WHEN NEW.title = 'reject' BEGIN SELECT RAISE(ABORT, 'rejected'); END").Error)

	_, err := s.Insert(context.Background(), sampleTask("reject"))
	require.Error(t, err)
	assert.True(t, IsStorageError(err))

	tasks, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
