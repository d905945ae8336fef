// Package models holds the rows the ledger reasons about and the tagged
// variants that keep illegal task and answer states unrepresentable.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkerID identifies a user as resolved by the identity layer. Empty means anonymous.
type WorkerID string

// Role separates labelers from dataset owners.
type Role string

const (
	RoleWorker Role = "WORKER"
	RoleClient Role = "CLIENT"
)

// DatasetStatus is the client-facing state of a dataset.
type DatasetStatus string

const (
	DatasetDraft     DatasetStatus = "DRAFT"
	DatasetActive    DatasetStatus = "ACTIVE"
	DatasetPaused    DatasetStatus = "PAUSED"
	DatasetCompleted DatasetStatus = "COMPLETED"
)

// Valid reports whether s is a known dataset status.
func (s DatasetStatus) Valid() bool {
	switch s {
	case DatasetDraft, DatasetActive, DatasetPaused, DatasetCompleted:
		return true
	}
	return false
}

// DataType is the kind of item a dataset holds.
type DataType string

const (
	DataText  DataType = "TEXT"
	DataImage DataType = "IMAGE"
)

// TaskStatus is the persisted form of TaskState.
type TaskStatus string

const (
	TaskActive    TaskStatus = "ACTIVE"
	TaskPending   TaskStatus = "PENDING"
	TaskCompleted TaskStatus = "COMPLETED"
)

// User is a worker or a client. Balance and Reputation change only through the balance ledger.
type User struct {
	ID         WorkerID
	ExternalID string
	Username   string
	Role       Role
	Balance    decimal.Decimal
	Reputation float64
	CreatedAt  time.Time
}

// Dataset is a batch of tasks sharing one question, option set and payout.
type Dataset struct {
	ID            string
	OwnerID       WorkerID
	Title         string
	Description   string
	DataType      DataType
	Question      string
	Options       []string
	Reward        decimal.Decimal
	RequiredVotes int
	Status        DatasetStatus
	CreatedAt     time.Time
}

// HasOption reports whether answer is one of the dataset's options.
func (d *Dataset) HasOption(answer string) bool {
	for _, o := range d.Options {
		if o == answer {
			return true
		}
	}
	return false
}

// Task is one item to label. Status and CollectedVotes are derived from State.
type Task struct {
	ID        string
	DatasetID string
	Content   string
	ImageURLs []string
	Kind      TaskKind
	State     TaskState
	CreatedAt time.Time
}

// Status returns the persisted status string for the task state.
func (t *Task) Status() TaskStatus {
	if _, ok := t.State.(Settled); ok {
		return TaskCompleted
	}
	return TaskActive
}

// CollectedVotes returns the number of distinct workers that answered.
func (t *Task) CollectedVotes() int {
	return t.State.Votes()
}

// Vote is the single mutable answer of one worker on one task.
type Vote struct {
	ID        string
	WorkerID  WorkerID
	TaskID    string
	Selection string
	Answer    Answer
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JournalKind labels why a journal entry was written.
type JournalKind string

const (
	JournalGenesis   JournalKind = "genesis"
	JournalVote      JournalKind = "vote"
	JournalAmendment JournalKind = "amendment"
	JournalDeposit   JournalKind = "deposit"
)

// JournalEntry is one hash-chained, signed record of an applied balance change.
type JournalEntry struct {
	ID              string
	SeqIndex        int64
	Kind            JournalKind
	UserID          WorkerID
	TaskID          string
	VoteID          string
	BalanceDelta    decimal.Decimal
	ReputationDelta float64
	BalanceAfter    decimal.Decimal
	Note            string
	Timestamp       time.Time
	PrevHash        string
	CurrentHash     string
	Signature       string
}
