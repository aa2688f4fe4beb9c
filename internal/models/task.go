package models

import (
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// InitialStatus is forced onto every newly created task.
const InitialStatus = StatusTodo

var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityMed  Priority = "med"
	PriorityHigh Priority = "high"
)

const DefaultPriority = PriorityMed

var Priorities = []Priority{PriorityLow, PriorityMed, PriorityHigh}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Task is the single persisted to-do item. Timestamps are owned by the
// service layer, so gorm's automatic time tracking is switched off.
type Task struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string     `json:"title" gorm:"size:255;not null"`
	Description *string    `json:"description" gorm:"type:text"`
	Status      Status     `json:"status" gorm:"size:32;not null;default:todo"`
	Priority    Priority   `json:"priority" gorm:"size:8;not null;default:med"`
	Tags        []string   `json:"tags" gorm:"type:text;serializer:json;not null"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null;autoUpdateTime:false"`
}

func (Task) TableName() string {
	return "tasks"
}

// NormalizeTimes converts every timestamp to UTC and makes sure Tags is
// never nil. Some backends hand back times in the local zone.
func (t *Task) NormalizeTimes() {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		t.DueDate = &due
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (t Task) Clone() Task {
	out := t
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	return out
}

func (t Task) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}
