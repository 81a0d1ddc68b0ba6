package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// On-demand payment requests: tasks pay a raw ledger address, proofs pay a
// recipient by ID after an admin approves the submitted work.

type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskExecuted TaskStatus = "executed"
	TaskFailed   TaskStatus = "failed"
)

type ProofStatus string

const (
	ProofPending  ProofStatus = "pending"
	ProofApproved ProofStatus = "approved"
	ProofRejected ProofStatus = "rejected"
)

var (
	ErrTaskNotFound  = errors.New("store: task not found")
	ErrProofNotFound = errors.New("store: proof not found")
)

type Task struct {
	ID               int64
	CommunityID      string
	CreatorID        string
	RecipientAddress string
	Amount           decimal.Decimal
	Description      string
	Status           TaskStatus
	CreatedAt        int64
}

type Proof struct {
	ID           int64
	CommunityID  string
	RecipientID  string
	Amount       decimal.Decimal
	Currency     string // "USD" amounts are converted via the price oracle
	Status       ProofStatus
	ReviewedBy   string
	RejectReason string
	CreatedAt    int64
}

const (
	taskSeqKey  = "seq:task"
	proofSeqKey = "seq:proof"
)

func taskKey(id int64) string  { return fmt.Sprintf("task:%d", id) }
func proofKey(id int64) string { return fmt.Sprintf("proof:%d", id) }

func (s *Store) CreateTask(ctx context.Context, t *Task) (int64, error) {
	id, err := s.nextID(ctx, taskSeqKey)
	if err != nil {
		return 0, err
	}
	t.ID = id
	t.Status = TaskPending
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	if err := s.rdb.HSet(ctx, taskKey(id),
		"id", id,
		"community_id", t.CommunityID,
		"creator_id", t.CreatorID,
		"recipient_address", t.RecipientAddress,
		"amount", t.Amount.String(),
		"description", t.Description,
		"status", string(t.Status),
		"created_at", t.CreatedAt,
	).Err(); err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	vals, err := s.rdb.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, ErrTaskNotFound
	}
	amount, err := decimal.NewFromString(vals["amount"])
	if err != nil {
		return nil, fmt.Errorf("parse task amount %q: %w", vals["amount"], err)
	}
	taskID, _ := strconv.ParseInt(vals["id"], 10, 64)
	createdAt, _ := strconv.ParseInt(vals["created_at"], 10, 64)
	return &Task{
		ID:               taskID,
		CommunityID:      vals["community_id"],
		CreatorID:        vals["creator_id"],
		RecipientAddress: vals["recipient_address"],
		Amount:           amount,
		Description:      vals["description"],
		Status:           TaskStatus(vals["status"]),
		CreatedAt:        createdAt,
	}, nil
}

// UpdateTaskStatus moves a task out of pending. The CAS keeps a task from
// being executed twice.
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, from, to TaskStatus) error {
	return s.transition(ctx, taskKey(id), string(from), string(to))
}

func (s *Store) CreateProof(ctx context.Context, p *Proof) (int64, error) {
	id, err := s.nextID(ctx, proofSeqKey)
	if err != nil {
		return 0, err
	}
	p.ID = id
	p.Status = ProofPending
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	if err := s.rdb.HSet(ctx, proofKey(id),
		"id", id,
		"community_id", p.CommunityID,
		"recipient_id", p.RecipientID,
		"amount", p.Amount.String(),
		"currency", p.Currency,
		"status", string(p.Status),
		"created_at", p.CreatedAt,
	).Err(); err != nil {
		return 0, fmt.Errorf("create proof: %w", err)
	}
	return id, nil
}

func (s *Store) GetProof(ctx context.Context, id int64) (*Proof, error) {
	vals, err := s.rdb.HGetAll(ctx, proofKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get proof %d: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, ErrProofNotFound
	}
	amount, err := decimal.NewFromString(vals["amount"])
	if err != nil {
		return nil, fmt.Errorf("parse proof amount %q: %w", vals["amount"], err)
	}
	proofID, _ := strconv.ParseInt(vals["id"], 10, 64)
	createdAt, _ := strconv.ParseInt(vals["created_at"], 10, 64)
	return &Proof{
		ID:           proofID,
		CommunityID:  vals["community_id"],
		RecipientID:  vals["recipient_id"],
		Amount:       amount,
		Currency:     vals["currency"],
		Status:       ProofStatus(vals["status"]),
		ReviewedBy:   vals["reviewed_by"],
		RejectReason: vals["reject_reason"],
		CreatedAt:    createdAt,
	}, nil
}

// ApproveProof moves a pending proof to approved. A proof already reviewed
// yields ErrStatusConflict.
func (s *Store) ApproveProof(ctx context.Context, id int64, reviewer string) error {
	if err := s.transition(ctx, proofKey(id), string(ProofPending), string(ProofApproved)); err != nil {
		return err
	}
	return s.rdb.HSet(ctx, proofKey(id), "reviewed_by", reviewer).Err()
}

func (s *Store) RejectProof(ctx context.Context, id int64, reason, reviewer string) error {
	if err := s.transition(ctx, proofKey(id), string(ProofPending), string(ProofRejected)); err != nil {
		return err
	}
	return s.rdb.HSet(ctx, proofKey(id), "reject_reason", reason, "reviewed_by", reviewer).Err()
}
