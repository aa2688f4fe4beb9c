// Package query narrows a listed task set with conjunctive filters and an
// offset/limit window.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"todo-api/internal/models"
	"todo-api/internal/validation"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Filter holds optional predicates. Nil means "not filtered".
type Filter struct {
	ID       *int64
	Status   *models.Status
	Priority *models.Priority
	Owner    *string
	Tag      *string
	Search   *string
	Limit    *int
	Offset   *int
}

// OwnerResolver reports the owner of a task id.
type OwnerResolver interface {
	OwnerOf(id int64) (string, bool)
}

// Normalize fills the window defaults and validates every set field.
func (f Filter) Normalize() (Filter, error) {
	if f.Status != nil && !f.Status.Valid() {
		return f, &validation.ValidationError{Field: "status", Message: "must be one of todo, in_progress, done"}
	}
	if f.Priority != nil && !f.Priority.Valid() {
		return f, &validation.ValidationError{Field: "priority", Message: "must be one of low, med, high"}
	}

	limit, offset := DefaultLimit, 0
	if f.Limit != nil {
		limit = *f.Limit
	}
	if f.Offset != nil {
		offset = *f.Offset
	}
	if limit < 1 || limit > MaxLimit {
		return f, &validation.ValidationError{Field: "limit", Message: "must be between 1 and 200"}
	}
	if offset < 0 {
		return f, &validation.ValidationError{Field: "offset", Message: "must be greater than or equal to 0"}
	}
	f.Limit, f.Offset = &limit, &offset
	return f, nil
}

// FromValues reads a Filter from URL query parameters. task_id and
// owner_id are accepted as aliases of id and owner.
func FromValues(v url.Values) (Filter, error) {
	var f Filter

	if raw := first(v, "id", "task_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, &validation.ValidationError{Field: "id", Message: "must be an integer"}
		}
		f.ID = &id
	}
	if raw := v.Get("status"); raw != "" {
		s := models.Status(raw)
		f.Status = &s
	}
	if raw := v.Get("priority"); raw != "" {
		p := models.Priority(raw)
		f.Priority = &p
	}
	if raw := first(v, "owner", "owner_id"); raw != "" {
		f.Owner = &raw
	}
	if raw := v.Get("tag"); raw != "" {
		f.Tag = &raw
	}
	if raw := v.Get("search"); raw != "" {
		f.Search = &raw
	}
	for _, p := range []struct {
		name string
		dst  **int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		raw := v.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, &validation.ValidationError{Field: p.name, Message: "must be an integer"}
		}
		*p.dst = &n
	}
	return f, nil
}

func first(v url.Values, keys ...string) string {
	for _, k := range keys {
		if raw := v.Get(k); raw != "" {
			return raw
		}
	}
	return ""
}

// Apply returns the tasks matching every predicate, then the offset/limit
// window, in input order. The input slice is left untouched. An Owner
// predicate needs a resolver; without one it is a ValidationError.
func Apply(tasks []models.Task, f Filter, owners OwnerResolver) ([]models.Task, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	if f.Owner != nil && owners == nil {
		return nil, &validation.ValidationError{Field: "owner", Message: "owner filtering is not supported by this storage backend"}
	}

	var needle string
	if f.Search != nil {
		needle = strings.ToLower(*f.Search)
	}

	matched := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.ID != nil && t.ID != *f.ID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			continue
		}
		if f.Tag != nil && !t.HasTag(*f.Tag) {
			continue
		}
		if f.Owner != nil {
			if owner, ok := owners.OwnerOf(t.ID); !ok || owner != *f.Owner {
				continue
			}
		}
		if f.Search != nil && !strings.Contains(strings.ToLower(t.Title), needle) {
			continue
		}
		matched = append(matched, t.Clone())
	}

	offset, limit := *f.Offset, *f.Limit
	if offset >= len(matched) {
		return []models.Task{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}
