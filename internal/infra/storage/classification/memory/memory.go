// Package memory provides in-memory implementations of the classification
// repositories for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
)

var _ classification.BatchRepository = (*BatchStore)(nil)

// BatchStore is a thread-safe in-memory batch repository. The error fields
// allow tests to inject datastore failures.
type BatchStore struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*classification.Batch

	GetErr    error
	UpdateErr error
}

// NewBatchStore creates an empty in-memory batch repository.
func NewBatchStore() *BatchStore {
	return &BatchStore{batches: make(map[uuid.UUID]*classification.Batch)}
}

// Put seeds or replaces a batch.
func (s *BatchStore) Put(batch *classification.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[batch.ID()] = batch
}

func (s *BatchStore) GetBatch(_ context.Context, id uuid.UUID) (*classification.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	batch, ok := s.batches[id]
	if !ok {
		return nil, classification.ErrBatchNotFound
	}
	// Hand back a copy so callers mutate their own snapshot, mirroring a
	// real row read.
	return cloneBatch(batch), nil
}

func (s *BatchStore) UpdateBatch(_ context.Context, batch *classification.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	stored, ok := s.batches[batch.ID()]
	if !ok {
		return classification.ErrNoBatchUpdated
	}
	s.batches[batch.ID()] = classification.ReconstructBatch(
		batch.ID(), batch.Name(), batch.PromptID(),
		batch.TotalCount(), batch.CompletedCount(), batch.FailedCount(),
		batch.Status(),
		stored.IncompleteReportedAt(),
		batch.CreatedAt(), batch.UpdatedAt(),
	)
	return nil
}

func (s *BatchStore) MarkIncompleteReported(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return false, classification.ErrBatchNotFound
	}
	if batch.IncompleteReportedAt() != nil {
		return false, nil
	}
	now := time.Now().UTC()
	s.batches[id] = classification.ReconstructBatch(
		batch.ID(), batch.Name(), batch.PromptID(),
		batch.TotalCount(), batch.CompletedCount(), batch.FailedCount(),
		batch.Status(), &now, batch.CreatedAt(), batch.UpdatedAt(),
	)
	return true, nil
}

func cloneBatch(b *classification.Batch) *classification.Batch {
	return classification.ReconstructBatch(
		b.ID(), b.Name(), b.PromptID(),
		b.TotalCount(), b.CompletedCount(), b.FailedCount(),
		b.Status(), b.IncompleteReportedAt(), b.CreatedAt(), b.UpdatedAt(),
	)
}

var _ classification.ItemRepository = (*ItemStore)(nil)

// ItemStore is a thread-safe in-memory work item repository.
type ItemStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*classification.Item

	GetErr    error
	UpdateErr error
	CountErr  error
}

// NewItemStore creates an empty in-memory item repository.
func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[uuid.UUID]*classification.Item)}
}

// Put seeds or replaces an item.
func (s *ItemStore) Put(item *classification.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID()] = item
}

func (s *ItemStore) GetItem(_ context.Context, id uuid.UUID) (*classification.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	item, ok := s.items[id]
	if !ok {
		return nil, classification.ErrItemNotFound
	}
	return cloneItem(item), nil
}

func (s *ItemStore) UpdateItem(_ context.Context, item *classification.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	if _, ok := s.items[item.ID()]; !ok {
		return classification.ErrNoItemUpdated
	}
	s.items[item.ID()] = cloneItem(item)
	return nil
}

func (s *ItemStore) CountByStatus(_ context.Context, batchID uuid.UUID) (classification.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CountErr != nil {
		return classification.StatusCounts{}, s.CountErr
	}

	var counts classification.StatusCounts
	for _, item := range s.items {
		if item.BatchID() != batchID {
			continue
		}
		switch item.Status() {
		case classification.ItemStatusPending:
			counts.Pending++
		case classification.ItemStatusProcessing:
			counts.Processing++
		case classification.ItemStatusCompleted:
			counts.Completed++
		case classification.ItemStatusFailed:
			counts.Failed++
		case classification.ItemStatusCancelled:
			counts.Cancelled++
		}
	}
	return counts, nil
}

func (s *ItemStore) CancelActive(_ context.Context, batchID uuid.UUID, message string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for id, item := range s.items {
		if item.BatchID() != batchID || item.Status().IsTerminal() {
			continue
		}
		clone := cloneItem(item)
		if err := clone.Cancel(message); err != nil {
			continue
		}
		s.items[id] = clone
		affected++
	}
	return affected, nil
}

func cloneItem(i *classification.Item) *classification.Item {
	return classification.ReconstructItem(
		i.ID(), i.BatchID(), i.URL(), i.Status(),
		i.ErrorMessage(), i.Content(), i.ProcessedAt(),
		i.CreatedAt(), i.UpdatedAt(),
	)
}

var _ classification.ResultRepository = (*ResultStore)(nil)

// ResultStore is a thread-safe in-memory classification result repository.
type ResultStore struct {
	mu      sync.Mutex
	results []*classification.Result

	CreateErr error
}

// NewResultStore creates an empty in-memory result repository.
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) CreateResult(_ context.Context, result *classification.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.results = append(s.results, result)
	return nil
}

// Results returns a copy of all stored results.
func (s *ResultStore) Results() []*classification.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*classification.Result, len(s.results))
	copy(out, s.results)
	return out
}

var _ classification.PromptRepository = (*PromptStore)(nil)

// PromptStore is a thread-safe in-memory prompt repository.
type PromptStore struct {
	mu      sync.Mutex
	prompts map[uuid.UUID]*classification.Prompt
}

// NewPromptStore creates an empty in-memory prompt repository.
func NewPromptStore() *PromptStore {
	return &PromptStore{prompts: make(map[uuid.UUID]*classification.Prompt)}
}

// Put seeds or replaces a prompt.
func (s *PromptStore) Put(prompt *classification.Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[prompt.ID()] = prompt
}

func (s *PromptStore) GetPrompt(_ context.Context, id uuid.UUID) (*classification.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prompt, ok := s.prompts[id]
	if !ok {
		return nil, classification.ErrPromptNotFound
	}
	return prompt, nil
}
