// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package tracker provides transaction lifecycle tracking for the
// commit/reveal inscription flow.
package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/BoostyLabs/ordinals/bitcoin"
)

// Status defines tracked transaction lifecycle state.
type Status string

const (
	// StatusPending defines that the transaction is registered but no work started.
	StatusPending Status = "PENDING"
	// StatusPrepared defines that the unsigned transaction is fully assembled.
	StatusPrepared Status = "PREPARED"
	// StatusSigning defines that signing is in progress.
	StatusSigning Status = "SIGNING"
	// StatusBroadcasting defines that the transaction is being broadcast.
	StatusBroadcasting Status = "BROADCASTING"
	// StatusConfirming defines that the transaction is in the mempool awaiting confirmation.
	StatusConfirming Status = "CONFIRMING"
	// StatusConfirmed defines terminal success.
	StatusConfirmed Status = "CONFIRMED"
	// StatusFailed defines terminal failure, reachable from any non-terminal state.
	StatusFailed Status = "FAILED"
)

// statusRank orders the forward-only lifecycle. FAILED is outside the rank
// order and handled separately.
var statusRank = map[Status]int{
	StatusPending:      0,
	StatusPrepared:     1,
	StatusSigning:      2,
	StatusBroadcasting: 3,
	StatusConfirming:   4,
	StatusConfirmed:    5,
}

// IsTerminal returns true for states no transition may leave.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Type defines tracked transaction kind.
type Type string

const (
	// TypeCommit defines a single-inscription commit transaction.
	TypeCommit Type = "COMMIT"
	// TypeReveal defines a reveal transaction.
	TypeReveal Type = "REVEAL"
	// TypeBatchCommit defines a batch commit transaction.
	TypeBatchCommit Type = "BATCH_COMMIT"
)

// Event describes one timestamped progress record of a tracked transaction.
type Event struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackedTransaction describes the lifecycle of one commit, reveal or batch
// commit transaction. Status only advances forward; re-attempts are modeled
// as new tracked entities, never as state re-entry.
type TrackedTransaction struct {
	ID            uuid.UUID                 `json:"id"`
	TxID          string                    `json:"txid,omitempty"`
	Type          Type                      `json:"type"`
	Status        Status                    `json:"status"`
	CreatedAt     time.Time                 `json:"createdAt"`
	LastUpdatedAt time.Time                 `json:"lastUpdatedAt"`
	ParentID      *uuid.UUID                `json:"parentId,omitempty"` // links a reveal to its commit.
	Metadata      map[string]string         `json:"metadata,omitempty"`
	Events        []Event                   `json:"events"`
	Error         *bitcoin.InscriptionError `json:"error,omitempty"`
}

// Config defines configuration for Tracker.
type Config struct {
	// ErrorLogSize bounds the diagnostics error log, 64 when non-positive.
	ErrorLogSize int
}

// defaultErrorLogSize defines error log capacity when none is configured.
const defaultErrorLogSize = 64

// Tracker registers transactions and records their lifecycle transitions.
// Safe for concurrent use. An explicit dependency-injected service, tests
// instantiate isolated trackers.
type Tracker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*TrackedTransaction
	order   []uuid.UUID

	errSeq int
	errLog *lru.Cache[int, *bitcoin.InscriptionError]

	now func() time.Time
}

// NewTracker is a constructor for Tracker.
func NewTracker(config Config) (*Tracker, error) {
	size := config.ErrorLogSize
	if size <= 0 {
		size = defaultErrorLogSize
	}

	errLog, err := lru.New[int, *bitcoin.InscriptionError](size)
	if err != nil {
		return nil, bitcoin.NewError(bitcoin.CodeInitializationFailed).WithCause(err)
	}

	return &Tracker{
		entries: make(map[uuid.UUID]*TrackedTransaction),
		errLog:  errLog,
		now:     time.Now,
	}, nil
}

// TrackParams describes data needed to register one transaction.
type TrackParams struct {
	Type     Type
	ParentID *uuid.UUID
	Metadata map[string]string
}

// Track registers a new transaction in PENDING state and returns its id.
func (t *Tracker) Track(params TrackParams) uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	id := uuid.New()
	t.entries[id] = &TrackedTransaction{
		ID:            id,
		Type:          params.Type,
		Status:        StatusPending,
		CreatedAt:     now,
		LastUpdatedAt: now,
		ParentID:      params.ParentID,
		Metadata:      params.Metadata,
		Events: []Event{{
			Status:    StatusPending,
			Message:   "transaction registered",
			Timestamp: now,
		}},
	}
	t.order = append(t.order, id)

	log.Debugf("tracking %s transaction %s", params.Type, id)

	return id
}

// Advance moves the transaction forward to the given status and appends a
// progress event. Transitions are monotonic: moving backwards, re-entering
// the current state or leaving a terminal state returns STATE_ERROR.
func (t *Tracker) Advance(id uuid.UUID, status Status, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return bitcoin.NewError(bitcoin.CodeStateError).
			WithDetail("id", id.String()).
			WithDetail("reason", "unknown transaction")
	}
	if entry.Status.IsTerminal() {
		return bitcoin.NewError(bitcoin.CodeStateError).
			WithDetail("id", id.String()).
			WithDetailf("status", "%s is terminal", entry.Status)
	}

	if status == StatusFailed {
		t.transition(entry, status, message)

		return nil
	}

	newRank, ok := statusRank[status]
	if !ok {
		return bitcoin.NewError(bitcoin.CodeStateError).
			WithDetailf("status", "unknown status %q", status)
	}
	if newRank <= statusRank[entry.Status] {
		return bitcoin.NewError(bitcoin.CodeStateError).
			WithDetail("id", id.String()).
			WithDetailf("status", "%s does not advance %s", status, entry.Status)
	}

	t.transition(entry, status, message)

	return nil
}

// SetTxID records the on-chain transaction id once it is known.
func (t *Tracker) SetTxID(id uuid.UUID, txid string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return bitcoin.NewError(bitcoin.CodeStateError).
			WithDetail("id", id.String()).
			WithDetail("reason", "unknown transaction")
	}

	entry.TxID = txid
	entry.LastUpdatedAt = t.now()

	return nil
}

// Fail moves the transaction to FAILED recording the structured error on the
// entity exactly once and appending it to the bounded diagnostics log.
func (t *Tracker) Fail(id uuid.UUID, inscErr *bitcoin.InscriptionError) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return bitcoin.NewError(bitcoin.CodeStateError).
			WithDetail("id", id.String()).
			WithDetail("reason", "unknown transaction")
	}
	if entry.Status.IsTerminal() {
		return bitcoin.NewError(bitcoin.CodeStateError).
			WithDetail("id", id.String()).
			WithDetailf("status", "%s is terminal", entry.Status)
	}

	if entry.Error == nil {
		entry.Error = inscErr
	}

	message := "failed"
	if inscErr != nil {
		message = inscErr.Message
		t.errSeq++
		t.errLog.Add(t.errSeq, inscErr)
	}
	t.transition(entry, StatusFailed, message)

	log.Errorf("transaction %s failed: %v", id, inscErr)

	return nil
}

// Get returns a snapshot of one tracked transaction.
func (t *Tracker) Get(id uuid.UUID) (TrackedTransaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return TrackedTransaction{}, bitcoin.NewError(bitcoin.CodeStateError).
			WithDetail("id", id.String()).
			WithDetail("reason", "unknown transaction")
	}

	return snapshot(entry), nil
}

// List returns snapshots of all tracked transactions in registration order.
func (t *Tracker) List() []TrackedTransaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := make([]TrackedTransaction, 0, len(t.order))
	for _, id := range t.order {
		list = append(list, snapshot(t.entries[id]))
	}

	return list
}

// Errors returns the retained diagnostics errors, oldest first. The log is
// bounded, older entries are evicted once capacity is reached.
func (t *Tracker) Errors() []*bitcoin.InscriptionError {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := t.errLog.Keys()
	errs := make([]*bitcoin.InscriptionError, 0, len(keys))
	for _, key := range keys {
		if inscErr, ok := t.errLog.Peek(key); ok {
			errs = append(errs, inscErr)
		}
	}

	return errs
}

// transition applies the status change under the held lock.
func (t *Tracker) transition(entry *TrackedTransaction, status Status, message string) {
	now := t.now()
	entry.Status = status
	entry.LastUpdatedAt = now
	entry.Events = append(entry.Events, Event{
		Status:    status,
		Message:   message,
		Timestamp: now,
	})
}

// snapshot copies the entry so callers never share tracker-owned state.
func snapshot(entry *TrackedTransaction) TrackedTransaction {
	copied := *entry
	copied.Events = append([]Event(nil), entry.Events...)
	if entry.Metadata != nil {
		copied.Metadata = make(map[string]string, len(entry.Metadata))
		for key, value := range entry.Metadata {
			copied.Metadata[key] = value
		}
	}

	return copied
}
