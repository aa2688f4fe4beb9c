package store

import (
	"context"
	"errors"
	"fmt"

	"todo-api/internal/models"

	"gorm.io/gorm"
)

// GormStore keeps tasks in a single relational table. Each write runs in
// its own transaction, so a failed write is rolled back before the error
// reaches the caller.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the tasks table when it does not exist yet.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&models.Task{}); err != nil {
		return fmt.Errorf("failed to migrate tasks table: %w", err)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id int64) (models.Task, bool, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Take(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, false, nil
		}
		return models.Task{}, false, fmt.Errorf("failed to find task %d: %w", id, err)
	}
	task.NormalizeTimes()
	return task, true, nil
}

func (s *GormStore) ListAll(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := s.db.WithContext(ctx).Order("id asc").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	for i := range tasks {
		tasks[i].NormalizeTimes()
	}
	return tasks, nil
}

func (s *GormStore) Insert(ctx context.Context, task models.Task) (models.Task, error) {
	task.ID = 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&task).Error
	})
	if err != nil {
		return models.Task{}, storageErr("insert", err)
	}
	return task, nil
}

func (s *GormStore) Update(ctx context.Context, task models.Task) (models.Task, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Task{ID: task.ID}).Select("*").Omit("id").Updates(&task)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return models.Task{}, storageErr("update", err)
	}
	return task, nil
}

func (s *GormStore) Delete(ctx context.Context, id int64) (bool, error) {
	var removed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Task{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, storageErr("delete", err)
	}
	return removed, nil
}

func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close is a no-op: the connection pool belongs to whoever opened it.
func (s *GormStore) Close() error {
	return nil
}
