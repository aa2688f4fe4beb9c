package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"todo-api/internal/models"
	"todo-api/internal/query"
	"todo-api/internal/services"
	"todo-api/internal/store"
	"todo-api/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type TaskServiceTestSuite struct {
	suite.Suite
	newStore func(t *testing.T) store.TaskStore
	store    store.TaskStore
	clock    *stepClock
	service  services.TaskService
	ctx      context.Context
}

func (suite *TaskServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = suite.newStore(suite.T())
	suite.clock = &stepClock{t: time.Date(2025, 9, 1, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))}
	suite.service = services.NewTaskService(suite.store, services.WithClock(suite.clock.Now))
}

func strp(s string) *string { return &s }

func (suite *TaskServiceTestSuite) create(title string, mutate ...func(*validation.CreateTaskInput)) models.Task {
	in := validation.CreateTaskInput{Title: strp(title)}
	for _, m := range mutate {
		m(&in)
	}
	task, err := suite.service.CreateTask(suite.ctx, in)
	suite.Require().NoError(err)
	return task
}

func (suite *TaskServiceTestSuite) TestCreateForcesInitialStatus() {
	task := suite.create("  Buy milk  ", func(in *validation.CreateTaskInput) {
		in.Status = strp("done")
	})

	suite.Equal(models.StatusTodo, task.Status)
	suite.Equal("Buy milk", task.Title)
	suite.Equal(models.PriorityMed, task.Priority)
	suite.NotNil(task.Tags)
	suite.Empty(task.Tags)
	suite.Equal(time.UTC, task.CreatedAt.Location())
	suite.True(task.CreatedAt.Equal(task.UpdatedAt))
	suite.Positive(task.ID)
}

func (suite *TaskServiceTestSuite) TestDueDateRoundTrip() {
	task := suite.create("Dentist", func(in *validation.CreateTaskInput) {
		in.DueDate = strp("2025-09-15T12:00:00Z")
	})

	want := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	suite.Require().NotNil(task.DueDate)
	suite.True(task.DueDate.Equal(want))

	stored, err := suite.service.GetTask(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.True(stored.DueDate.Equal(want))
	suite.Equal(time.UTC, stored.DueDate.Location())
}

func (suite *TaskServiceTestSuite) TestInvalidInputStoresNothing() {
	for _, due := range []string{"2025-09-15T12:00:00", "not-a-date", "2025-09-15T12:00:00+02:00"} {
		_, err := suite.service.CreateTask(suite.ctx, validation.CreateTaskInput{
			Title:   strp("x"),
			DueDate: strp(due),
		})
		suite.True(validation.IsValidationError(err), due)
	}

	_, err := suite.service.CreateTask(suite.ctx, validation.CreateTaskInput{Title: strp("   ")})
	suite.True(validation.IsValidationError(err))

	tasks, err := suite.store.ListAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Empty(tasks)
}

func (suite *TaskServiceTestSuite) TestPartialUpdate() {
	task := suite.create("Report", func(in *validation.CreateTaskInput) {
		in.Description = strp("quarterly")
		in.Priority = strp("high")
		in.Tags = []string{"work"}
	})

	updated, err := suite.service.UpdateTask(suite.ctx, task.ID, validation.UpdateTaskInput{
		Status: models.Some("done"),
	})
	suite.Require().NoError(err)

	suite.Equal(models.StatusDone, updated.Status)
	suite.Equal(task.Title, updated.Title)
	suite.Equal(task.Priority, updated.Priority)
	suite.Equal(task.Tags, updated.Tags)
	suite.Equal(*task.Description, *updated.Description)
	suite.True(updated.UpdatedAt.After(task.UpdatedAt))
	suite.True(updated.CreatedAt.Equal(task.CreatedAt))
}

func (suite *TaskServiceTestSuite) TestUpdateClearsNullableFields() {
	task := suite.create("Trip", func(in *validation.CreateTaskInput) {
		in.Description = strp("pack")
		in.DueDate = strp("2025-10-01T00:00:00Z")
		in.Tags = []string{"travel"}
	})

	updated, err := suite.service.UpdateTask(suite.ctx, task.ID, validation.UpdateTaskInput{
		Title:       models.Some("  Trip to Rome "),
		Description: models.Null[*string](),
		DueDate:     models.Null[string](),
		Tags:        models.Null[[]string](),
	})
	suite.Require().NoError(err)

	suite.Equal("Trip to Rome", updated.Title)
	suite.Nil(updated.Description)
	suite.Nil(updated.DueDate)
	suite.NotNil(updated.Tags)
	suite.Empty(updated.Tags)
}

func (suite *TaskServiceTestSuite) TestEmptyUpdateStillTouchesTimestamp() {
	task := suite.create("Idle")

	updated, err := suite.service.UpdateTask(suite.ctx, task.ID, validation.UpdateTaskInput{})
	suite.Require().NoError(err)
	suite.True(updated.UpdatedAt.After(task.UpdatedAt))
}

func (suite *TaskServiceTestSuite) TestUpdatedAtNeverMovesBackwards() {
	task := suite.create("Clock skew")
	suite.clock.t = suite.clock.t.Add(-time.Hour)

	updated, err := suite.service.UpdateTask(suite.ctx, task.ID, validation.UpdateTaskInput{Status: models.Some("in_progress")})
	suite.Require().NoError(err)
	suite.True(updated.UpdatedAt.Equal(task.UpdatedAt))
}

func (suite *TaskServiceTestSuite) TestUpdateMissing() {
	_, err := suite.service.UpdateTask(suite.ctx, 404, validation.UpdateTaskInput{Title: models.Some("ghost")})
	suite.ErrorIs(err, services.ErrTaskNotFound)

	tasks, err := suite.store.ListAll(suite.ctx)
	suite.Require().NoError(err)
	suite.Empty(tasks)
}

func (suite *TaskServiceTestSuite) TestUpdateValidation() {
	task := suite.create("Valid")

	_, err := suite.service.UpdateTask(suite.ctx, task.ID, validation.UpdateTaskInput{Priority: models.Some("urgent")})
	suite.True(validation.IsValidationError(err))

	_, err = suite.service.UpdateTask(suite.ctx, task.ID, validation.UpdateTaskInput{Title: models.Null[string]()})
	suite.True(validation.IsValidationError(err))

	stored, err := suite.service.GetTask(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.Equal(task.Priority, stored.Priority)
	suite.True(stored.UpdatedAt.Equal(task.UpdatedAt))
}

func (suite *TaskServiceTestSuite) TestDeleteIsIdempotentOnAbsence() {
	task := suite.create("Temp")

	removed, err := suite.service.DeleteTask(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.True(removed)

	for i := 0; i < 2; i++ {
		removed, err = suite.service.DeleteTask(suite.ctx, task.ID)
		suite.Require().NoError(err)
		suite.False(removed)
	}

	_, err = suite.service.GetTask(suite.ctx, task.ID)
	suite.ErrorIs(err, services.ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestListFilters() {
	a := suite.create("Write report")
	b := suite.create("Ship release")
	_, err := suite.service.UpdateTask(suite.ctx, b.ID, validation.UpdateTaskInput{Status: models.Some("done")})
	suite.Require().NoError(err)

	all, err := suite.service.ListTasks(suite.ctx, query.Filter{})
	suite.Require().NoError(err)
	suite.Equal([]int64{a.ID, b.ID}, ids(all))

	status := models.StatusDone
	done, err := suite.service.ListTasks(suite.ctx, query.Filter{Status: &status})
	suite.Require().NoError(err)
	suite.Equal([]int64{b.ID}, ids(done))

	limit := 0
	_, err = suite.service.ListTasks(suite.ctx, query.Filter{Limit: &limit})
	suite.True(validation.IsValidationError(err))
}

func (suite *TaskServiceTestSuite) TestEndToEnd() {
	a := suite.create("Buy milk", func(in *validation.CreateTaskInput) {
		in.Priority = strp("high")
		in.Tags = []string{"groceries"}
	})
	b := suite.create("Clean room", func(in *validation.CreateTaskInput) {
		in.Priority = strp("low")
	})

	high := models.PriorityHigh
	got, err := suite.service.ListTasks(suite.ctx, query.Filter{Priority: &high})
	suite.Require().NoError(err)
	suite.Equal([]int64{a.ID}, ids(got))

	removed, err := suite.service.DeleteTask(suite.ctx, a.ID)
	suite.Require().NoError(err)
	suite.True(removed)

	got, err = suite.service.ListTasks(suite.ctx, query.Filter{})
	suite.Require().NoError(err)
	suite.Equal([]int64{b.ID}, ids(got))

	updated, err := suite.service.UpdateTask(suite.ctx, b.ID, validation.UpdateTaskInput{Title: models.Some("Clean room now")})
	suite.Require().NoError(err)
	suite.Equal("Clean room now", updated.Title)
	suite.Equal(models.PriorityLow, updated.Priority)
}

func ids(tasks []models.Task) []int64 {
	out := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func gormBackend(t *testing.T) store.TaskStore {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tasks.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s := store.NewGormStore(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func fileBackend(t *testing.T) store.TaskStore {
	s, err := store.NewFileStore(store.FileStoreConfig{
		Path:       filepath.Join(t.TempDir(), "tasks.json"),
		Vocabulary: store.VocabularyLegacy,
	})
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return s
}

func TestTaskServiceGorm(t *testing.T) {
	suite.Run(t, &TaskServiceTestSuite{newStore: gormBackend})
}

func TestTaskServiceFile(t *testing.T) {
	suite.Run(t, &TaskServiceTestSuite{newStore: fileBackend})
}

func TestOwnerFilterNeedsFileBackend(t *testing.T) {
	ctx := context.Background()
	owner := "default"

	fileSvc := services.NewTaskService(fileBackend(t))
	_, err := fileSvc.CreateTask(ctx, validation.CreateTaskInput{Title: strp("mine")})
	assert.NoError(t, err)

	got, err := fileSvc.ListTasks(ctx, query.Filter{Owner: &owner})
	assert.NoError(t, err)
	assert.Len(t, got, 1)

	other := "someone-else"
	got, err = fileSvc.ListTasks(ctx, query.Filter{Owner: &other})
	assert.NoError(t, err)
	assert.Empty(t, got)

	gormSvc := services.NewTaskService(gormBackend(t))
	_, err = gormSvc.ListTasks(ctx, query.Filter{Owner: &owner})
	assert.True(t, validation.IsValidationError(err))
}
