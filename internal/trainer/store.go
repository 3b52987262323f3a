package trainer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/neuroforge/trainlink/internal/protocol"
)

var (
	ErrModelNotFound = errors.New("trainer: model not found")
	ErrRunNotFound   = errors.New("trainer: run not found")
)

// Model is one registered architecture.
type Model struct {
	ID         string                   `json:"id"`
	Definition protocol.ModelDefinition `json:"definition"`
	CreatedAt  time.Time                `json:"createdAt"`
}

// Run is the persisted state of one training invocation.
type Run struct {
	ID           string             `json:"id"`
	ModelID      string             `json:"modelId"`
	DatasetID    string             `json:"datasetId"`
	Epochs       int                `json:"epochs"`
	Status       protocol.Status    `json:"status"`
	FinalMetrics map[string]float64 `json:"finalMetrics,omitempty"`
	TrainingTime float64            `json:"trainingTime,omitempty"`
	StartedAt    time.Time          `json:"startedAt"`
	FinishedAt   time.Time          `json:"finishedAt,omitempty"`
}

// Store persists models and runs for the backend.
type Store interface {
	RegisterModel(ctx context.Context, model Model) error
	GetModel(ctx context.Context, id string) (Model, error)
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	models map[string]Model
	runs   map[string]Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models: make(map[string]Model),
		runs:   make(map[string]Run),
	}
}

func (s *MemoryStore) RegisterModel(_ context.Context, model Model) error {
	s.mu.Lock()
	s.models[model.ID] = model
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetModel(_ context.Context, id string) (Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	model, ok := s.models[id]
	if !ok {
		return Model{}, ErrModelNotFound
	}
	return model, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}
