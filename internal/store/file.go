package store

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"todo-api/internal/models"

	"github.com/gofrs/uuid"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed tasks.schema.json
var taskFileSchema []byte

const taskFileSchemaURL = "tasks.schema.json"

// StatusVocabulary selects how statuses are spelled on disk.
type StatusVocabulary string

const (
	// VocabularyCanonical stores todo, in_progress, done as is.
	VocabularyCanonical StatusVocabulary = "canonical"
	// VocabularyLegacy stores the initial status as "pending".
	VocabularyLegacy StatusVocabulary = "legacy"
)

const legacyPending = "pending"

func (v StatusVocabulary) Valid() bool {
	return v == VocabularyCanonical || v == VocabularyLegacy
}

func (v StatusVocabulary) encode(s models.Status) string {
	if v == VocabularyLegacy && s == models.StatusTodo {
		return legacyPending
	}
	return string(s)
}

func (v StatusVocabulary) decode(raw string) (models.Status, error) {
	switch {
	case v == VocabularyLegacy && raw == legacyPending:
		return models.StatusTodo, nil
	case v == VocabularyLegacy && raw == string(models.StatusTodo):
		return "", fmt.Errorf("status %q is not part of the legacy vocabulary", raw)
	case raw == legacyPending:
		return "", fmt.Errorf("status %q is not part of the canonical vocabulary", raw)
	}
	s := models.Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// fileRecord is the on-disk shape. TaskID and OwnerID exist only in this
// backend.
type fileRecord struct {
	ID          int64      `json:"id"`
	TaskID      string     `json:"task_id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Tags        []string   `json:"tags"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type FileStoreConfig struct {
	Path         string
	Vocabulary   StatusVocabulary
	DefaultOwner string
}

// FileStore keeps the whole collection as one JSON array. The file is the
// source of truth and is re-read for every operation; writes replace it
// atomically through a temporary file in the same directory.
type FileStore struct {
	mu         sync.Mutex
	path       string
	vocabulary StatusVocabulary
	owner      string
	schema     *jsonschema.Schema
	lastID     int64
	owners     map[int64]string
}

func NewFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.Path == "" {
		return nil, errors.New("task file path is required")
	}
	if config.Vocabulary == "" {
		config.Vocabulary = VocabularyCanonical
	}
	if !config.Vocabulary.Valid() {
		return nil, fmt.Errorf("unknown status vocabulary %q", config.Vocabulary)
	}
	if config.DefaultOwner == "" {
		config.DefaultOwner = "default"
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(taskFileSchemaURL, bytes.NewReader(taskFileSchema)); err != nil {
		return nil, fmt.Errorf("load task file schema: %w", err)
	}
	schema, err := compiler.Compile(taskFileSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile task file schema: %w", err)
	}

	s := &FileStore{
		path:       config.Path,
		vocabulary: config.Vocabulary,
		owner:      config.DefaultOwner,
		schema:     schema,
		owners:     make(map[int64]string),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, id int64) (models.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return models.Task{}, false, err
	}
	for _, r := range records {
		if r.ID == id {
			task, err := s.toTask(r)
			if err != nil {
				return models.Task{}, false, err
			}
			return task, true, nil
		}
	}
	return models.Task{}, false, nil
}

func (s *FileStore) ListAll(_ context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	tasks := make([]models.Task, 0, len(records))
	for _, r := range records {
		task, err := s.toTask(r)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *FileStore) Insert(_ context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return models.Task{}, storageErr("insert", err)
	}

	taskID, err := uuid.NewV4()
	if err != nil {
		return models.Task{}, storageErr("insert", fmt.Errorf("generate task_id: %w", err))
	}

	task.ID = s.lastID + 1
	record := s.fromTask(task)
	record.TaskID = taskID.String()
	record.OwnerID = s.owner

	if err := s.save(append(records, record)); err != nil {
		return models.Task{}, storageErr("insert", err)
	}
	return task, nil
}

func (s *FileStore) Update(_ context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return models.Task{}, storageErr("update", err)
	}

	idx := indexOf(records, task.ID)
	if idx < 0 {
		return models.Task{}, ErrNotFound
	}

	updated := make([]fileRecord, len(records))
	copy(updated, records)
	record := s.fromTask(task)
	record.TaskID = records[idx].TaskID
	record.OwnerID = records[idx].OwnerID
	updated[idx] = record

	if err := s.save(updated); err != nil {
		return models.Task{}, storageErr("update", err)
	}
	return task, nil
}

func (s *FileStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return false, storageErr("delete", err)
	}

	idx := indexOf(records, id)
	if idx < 0 {
		return false, nil
	}

	remaining := make([]fileRecord, 0, len(records)-1)
	remaining = append(remaining, records[:idx]...)
	remaining = append(remaining, records[idx+1:]...)

	if err := s.save(remaining); err != nil {
		return false, storageErr("delete", err)
	}
	return true, nil
}

// OwnerOf answers from the owner index refreshed by the last load or save.
func (s *FileStore) OwnerOf(id int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[id]
	return owner, ok
}

func (s *FileStore) Health(_ context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("task file directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("task file directory %s is not a directory", dir)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// load reads, validates and sorts the collection. A missing file is an
// empty collection. Callers must hold s.mu.
func (s *FileStore) load() ([]fileRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.index(nil)
			return nil, nil
		}
		return nil, fmt.Errorf("read task file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.index(nil)
		return nil, nil
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("task file %s does not match schema: %w", s.path, err)
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode task file: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	s.index(records)
	return records, nil
}

// save writes the collection to a temp file and renames it over the
// original, so the previous contents survive any failure.
func (s *FileStore) save(records []fileRecord) error {
	if records == nil {
		records = []fileRecord{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal task file: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("create temp task file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp task file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp task file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace task file: %w", err)
	}

	s.index(records)
	return nil
}

func (s *FileStore) index(records []fileRecord) {
	s.owners = make(map[int64]string, len(records))
	for _, r := range records {
		s.owners[r.ID] = r.OwnerID
		if r.ID > s.lastID {
			s.lastID = r.ID
		}
	}
}

func (s *FileStore) toTask(r fileRecord) (models.Task, error) {
	status, err := s.vocabulary.decode(r.Status)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", r.ID, err)
	}
	task := models.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      status,
		Priority:    models.Priority(r.Priority),
		Tags:        r.Tags,
		DueDate:     r.DueDate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	task = task.Clone()
	task.NormalizeTimes()
	return task, nil
}

func (s *FileStore) fromTask(t models.Task) fileRecord {
	t = t.Clone()
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return fileRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      s.vocabulary.encode(t.Status),
		Priority:    string(t.Priority),
		Tags:        t.Tags,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func indexOf(records []fileRecord, id int64) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
