// Package validation enforces the field-level contracts on task input
// before anything reaches a store. Every function here is pure.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"todo-api/internal/models"
)

// ValidationError names the offending field and why it was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func newError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err (or anything it wraps) is a
// ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CreateTaskInput is the raw creation payload. Status is accepted on the
// wire but never honored.
type CreateTaskInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	DueDate     *string  `json:"due_date"`
	Priority    *string  `json:"priority"`
	Tags        []string `json:"tags"`
	Status      *string  `json:"status,omitempty"`
}

// UpdateTaskInput is a partial update; only fields with Set == true apply.
type UpdateTaskInput struct {
	Title       models.Optional[string]   `json:"title"`
	Description models.Optional[*string]  `json:"description"`
	DueDate     models.Optional[string]   `json:"due_date"`
	Priority    models.Optional[string]   `json:"priority"`
	Status      models.Optional[string]   `json:"status"`
	Tags        models.Optional[[]string] `json:"tags"`
}

// TaskFields is the normalized value set produced from a create payload.
type TaskFields struct {
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    models.Priority
	Tags        []string
}

// TaskChanges is the normalized value set produced from an update payload.
// Nil pointers mean "leave as is".
type TaskChanges struct {
	Title          *string
	SetDescription bool
	Description    *string
	SetDueDate     bool
	DueDate        *time.Time
	Priority       *models.Priority
	Status         *models.Status
	Tags           []string
	SetTags        bool
}

func (c TaskChanges) Empty() bool {
	return c.Title == nil && !c.SetDescription && !c.SetDueDate &&
		c.Priority == nil && c.Status == nil && !c.SetTags
}

func ValidateCreate(in CreateTaskInput) (TaskFields, error) {
	if in.Title == nil {
		return TaskFields{}, newError("title", "field required")
	}
	title, err := Title(*in.Title)
	if err != nil {
		return TaskFields{}, err
	}

	fields := TaskFields{
		Title:       title,
		Description: in.Description,
		Priority:    models.DefaultPriority,
		Tags:        []string{},
	}

	if in.Priority != nil {
		p, err := Priority(*in.Priority)
		if err != nil {
			return TaskFields{}, err
		}
		fields.Priority = p
	}

	if in.DueDate != nil {
		due, err := DueDate(*in.DueDate)
		if err != nil {
			return TaskFields{}, err
		}
		fields.DueDate = &due
	}

	if in.Tags != nil {
		tags, err := Tags(in.Tags)
		if err != nil {
			return TaskFields{}, err
		}
		fields.Tags = tags
	}

	return fields, nil
}

func ValidateUpdate(in UpdateTaskInput) (TaskChanges, error) {
	var changes TaskChanges

	if in.Title.Set {
		if in.Title.Null {
			return TaskChanges{}, newError("title", "must be non-empty")
		}
		title, err := Title(in.Title.Value)
		if err != nil {
			return TaskChanges{}, err
		}
		changes.Title = &title
	}

	if in.Description.Set {
		changes.SetDescription = true
		if !in.Description.Null {
			changes.Description = in.Description.Value
		}
	}

	if in.DueDate.Set {
		changes.SetDueDate = true
		if !in.DueDate.Null {
			due, err := DueDate(in.DueDate.Value)
			if err != nil {
				return TaskChanges{}, err
			}
			changes.DueDate = &due
		}
	}

	if in.Priority.Set {
		if in.Priority.Null {
			return TaskChanges{}, newError("priority", "must be one of: %s", priorityList())
		}
		p, err := Priority(in.Priority.Value)
		if err != nil {
			return TaskChanges{}, err
		}
		changes.Priority = &p
	}

	if in.Status.Set {
		if in.Status.Null {
			return TaskChanges{}, newError("status", "must be one of: %s", statusList())
		}
		s, err := Status(in.Status.Value)
		if err != nil {
			return TaskChanges{}, err
		}
		changes.Status = &s
	}

	if in.Tags.Set {
		changes.SetTags = true
		changes.Tags = []string{}
		if !in.Tags.Null {
			tags, err := Tags(in.Tags.Value)
			if err != nil {
				return TaskChanges{}, err
			}
			changes.Tags = tags
		}
	}

	return changes, nil
}

// Title trims surrounding whitespace and rejects what is left if empty.
func Title(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", newError("title", "must be non-empty")
	}
	if len(title) > 255 {
		return "", newError("title", "must be at most 255 characters")
	}
	return title, nil
}

func Priority(raw string) (models.Priority, error) {
	p := models.Priority(raw)
	if !p.Valid() {
		return "", newError("priority", "must be one of: %s", priorityList())
	}
	return p, nil
}

func Status(raw string) (models.Status, error) {
	s := models.Status(raw)
	if !s.Valid() {
		return "", newError("status", "must be one of: %s", statusList())
	}
	return s, nil
}

func Tags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	for i, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, newError(fmt.Sprintf("tags[%d]", i), "must be non-empty")
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// naiveLayouts are accepted by the parser only to produce a precise error
// for timestamps that lack an offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// DueDate parses an RFC 3339 timestamp and insists on a UTC offset. The
// returned time is in UTC.
func DueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		for _, layout := range naiveLayouts {
			if _, naiveErr := time.Parse(layout, raw); naiveErr == nil {
				return time.Time{}, newError("due_date", "must include timezone (UTC)")
			}
		}
		return time.Time{}, newError("due_date", "must be a valid ISO-8601 timestamp")
	}
	if _, offset := t.Zone(); offset != 0 {
		return time.Time{}, newError("due_date", "must be in UTC (e.g., 2025-09-15T12:00:00Z)")
	}
	return t.UTC(), nil
}

func statusList() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func priorityList() string {
	names := make([]string, len(models.Priorities))
	for i, p := range models.Priorities {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
