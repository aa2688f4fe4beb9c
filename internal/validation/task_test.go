package validation

import (
	"strings"
	"testing"
	"time"

	"todo-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestValidateCreate_Defaults(t *testing.T) {
	fields, err := ValidateCreate(CreateTaskInput{Title: strPtr("  Buy milk  ")})
	require.NoError(t, err)

	assert.Equal(t, "Buy milk", fields.Title)
	assert.Equal(t, models.PriorityMed, fields.Priority)
	assert.NotNil(t, fields.Tags)
	assert.Empty(t, fields.Tags)
	assert.Nil(t, fields.DueDate)
	assert.Nil(t, fields.Description)
}

func TestValidateCreate_FullPayload(t *testing.T) {
	fields, err := ValidateCreate(CreateTaskInput{
		Title:       strPtr("Buy milk"),
		Description: strPtr("2% organic"),
		DueDate:     strPtr("2025-09-15T12:00:00Z"),
		Priority:    strPtr("high"),
		Tags:        []string{"groceries", " errands "},
	})
	require.NoError(t, err)

	assert.Equal(t, models.PriorityHigh, fields.Priority)
	assert.Equal(t, []string{"groceries", "errands"}, fields.Tags)
	require.NotNil(t, fields.DueDate)
	assert.True(t, fields.DueDate.Equal(time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2% organic", *fields.Description)
}

func TestValidateCreate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input CreateTaskInput
		field string
	}{
		{"missing title", CreateTaskInput{}, "title"},
		{"empty title", CreateTaskInput{Title: strPtr("")}, "title"},
		{"blank title", CreateTaskInput{Title: strPtr("   ")}, "title"},
		{"long title", CreateTaskInput{Title: strPtr(strings.Repeat("x", 256))}, "title"},
		{"bad priority", CreateTaskInput{Title: strPtr("Test"), Priority: strPtr("invalid")}, "priority"},
		{"naive due date", CreateTaskInput{Title: strPtr("Test"), DueDate: strPtr("2025-09-15T12:00:00")}, "due_date"},
		{"garbage due date", CreateTaskInput{Title: strPtr("Test"), DueDate: strPtr("not-a-date")}, "due_date"},
		{"offset due date", CreateTaskInput{Title: strPtr("Test"), DueDate: strPtr("2025-09-15T12:00:00+02:00")}, "due_date"},
		{"empty tag", CreateTaskInput{Title: strPtr("Test"), Tags: []string{"ok", " "}}, "tags[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateCreate(tt.input)
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestValidateCreate_IgnoresStatus(t *testing.T) {
	_, err := ValidateCreate(CreateTaskInput{Title: strPtr("Test"), Status: strPtr("bogus")})
	assert.NoError(t, err)
}

func TestDueDate_Messages(t *testing.T) {
	_, err := DueDate("2025-09-15T12:00:00")
	assert.EqualError(t, err, "due_date: must include timezone (UTC)")

	_, err = DueDate("2025-09-15T12:00:00-05:00")
	assert.EqualError(t, err, "due_date: must be in UTC (e.g., 2025-09-15T12:00:00Z)")

	_, err = DueDate("not-a-date")
	assert.EqualError(t, err, "due_date: must be a valid ISO-8601 timestamp")
}

func TestDueDate_AcceptsBothUTCDesignators(t *testing.T) {
	want := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

	for _, raw := range []string{"2025-09-15T12:00:00Z", "2025-09-15T12:00:00+00:00", "2025-09-15T12:00:00.000Z"} {
		got, err := DueDate(raw)
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(want), raw)
		assert.Equal(t, time.UTC, got.Location(), raw)
	}
}

func TestValidateUpdate_OnlyPresentFields(t *testing.T) {
	changes, err := ValidateUpdate(UpdateTaskInput{Status: models.Some("done")})
	require.NoError(t, err)

	require.NotNil(t, changes.Status)
	assert.Equal(t, models.StatusDone, *changes.Status)
	assert.Nil(t, changes.Title)
	assert.Nil(t, changes.Priority)
	assert.False(t, changes.SetDescription)
	assert.False(t, changes.SetDueDate)
	assert.False(t, changes.SetTags)
	assert.False(t, changes.Empty())
}

func TestValidateUpdate_EmptyPayload(t *testing.T) {
	changes, err := ValidateUpdate(UpdateTaskInput{})
	require.NoError(t, err)
	assert.True(t, changes.Empty())
}

func TestValidateUpdate_Clears(t *testing.T) {
	changes, err := ValidateUpdate(UpdateTaskInput{
		Description: models.Null[*string](),
		DueDate:     models.Null[string](),
		Tags:        models.Null[[]string](),
	})
	require.NoError(t, err)

	assert.True(t, changes.SetDescription)
	assert.Nil(t, changes.Description)
	assert.True(t, changes.SetDueDate)
	assert.Nil(t, changes.DueDate)
	assert.True(t, changes.SetTags)
	assert.Equal(t, []string{}, changes.Tags)
}

func TestValidateUpdate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input UpdateTaskInput
		field string
	}{
		{"blank title", UpdateTaskInput{Title: models.Some("  ")}, "title"},
		{"null title", UpdateTaskInput{Title: models.Null[string]()}, "title"},
		{"bad status", UpdateTaskInput{Status: models.Some("pending")}, "status"},
		{"null status", UpdateTaskInput{Status: models.Null[string]()}, "status"},
		{"bad priority", UpdateTaskInput{Priority: models.Some("urgent")}, "priority"},
		{"null priority", UpdateTaskInput{Priority: models.Null[string]()}, "priority"},
		{"naive due date", UpdateTaskInput{DueDate: models.Some("2025-09-15T12:00:00")}, "due_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUpdate(tt.input)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateUpdate_TrimsTitle(t *testing.T) {
	changes, err := ValidateUpdate(UpdateTaskInput{Title: models.Some("  Clean room now ")})
	require.NoError(t, err)
	require.NotNil(t, changes.Title)
	assert.Equal(t, "Clean room now", *changes.Title)
}
