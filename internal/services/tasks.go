package services

import (
	"context"
	"errors"
	"log"
	"time"

	"todo-api/internal/models"
	"todo-api/internal/query"
	"todo-api/internal/store"
	"todo-api/internal/validation"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskService interface {
	CreateTask(ctx context.Context, input validation.CreateTaskInput) (models.Task, error)
	ListTasks(ctx context.Context, filter query.Filter) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, input validation.UpdateTaskInput) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) (bool, error)
}

type taskService struct {
	store  store.TaskStore
	owners query.OwnerResolver
	now    func() time.Time
}

type Option func(*taskService)

// WithClock replaces time.Now. The returned times are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(s *taskService) { s.now = now }
}

func NewTaskService(st store.TaskStore, opts ...Option) TaskService {
	s := &taskService{store: st, now: time.Now}
	if r, ok := store.ResolveOwners(st); ok {
		s.owners = r
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is microsecond precision so values survive both backends
// unchanged.
func (s *taskService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *taskService) CreateTask(ctx context.Context, input validation.CreateTaskInput) (models.Task, error) {
	fields, err := validation.ValidateCreate(input)
	if err != nil {
		return models.Task{}, err
	}

	now := s.timestamp()
	task := models.Task{
		Title:       fields.Title,
		Description: fields.Description,
		Status:      models.InitialStatus,
		Priority:    fields.Priority,
		Tags:        fields.Tags,
		DueDate:     fields.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.store.Insert(ctx, task)
	if err != nil {
		log.Printf("[tasks] create failed: %v", err)
		return models.Task{}, err
	}
	created.NormalizeTimes()
	return created, nil
}

func (s *taskService) ListTasks(ctx context.Context, filter query.Filter) ([]models.Task, error) {
	// Validate before touching the store so a bad filter costs nothing.
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.ListAll(ctx)
	if err != nil {
		log.Printf("[tasks] list failed: %v", err)
		return nil, err
	}
	for i := range tasks {
		tasks[i].NormalizeTimes()
	}

	return query.Apply(tasks, filter, s.owners)
}

func (s *taskService) GetTask(ctx context.Context, id int64) (models.Task, error) {
	task, found, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Task{}, err
	}
	if !found {
		return models.Task{}, ErrTaskNotFound
	}
	task.NormalizeTimes()
	return task, nil
}

func (s *taskService) UpdateTask(ctx context.Context, id int64, input validation.UpdateTaskInput) (models.Task, error) {
	existing, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Task{}, err
	}

	changes, err := validation.ValidateUpdate(input)
	if err != nil {
		return models.Task{}, err
	}

	task := applyChanges(existing, changes)
	task.UpdatedAt = s.timestamp()
	if task.UpdatedAt.Before(existing.UpdatedAt) {
		task.UpdatedAt = existing.UpdatedAt
	}

	updated, err := s.store.Update(ctx, task)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		log.Printf("[tasks] update %d failed: %v", id, err)
		return models.Task{}, err
	}
	updated.NormalizeTimes()
	return updated, nil
}

func (s *taskService) DeleteTask(ctx context.Context, id int64) (bool, error) {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		log.Printf("[tasks] delete %d failed: %v", id, err)
		return false, err
	}
	return removed, nil
}

func applyChanges(task models.Task, c validation.TaskChanges) models.Task {
	task = task.Clone()
	if c.Title != nil {
		task.Title = *c.Title
	}
	if c.SetDescription {
		task.Description = c.Description
	}
	if c.SetDueDate {
		task.DueDate = c.DueDate
	}
	if c.Priority != nil {
		task.Priority = *c.Priority
	}
	if c.Status != nil {
		task.Status = *c.Status
	}
	if c.SetTags {
		task.Tags = append([]string{}, c.Tags...)
	}
	return task
}
