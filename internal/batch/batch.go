// Package batch implements the settlement transaction: a set of staged writes
// across several ledgers that is committed exactly once, atomically, inside a
// single database transaction.
//
// Values that only exist after the commit (sequential codes, the commit
// timestamp) are handed out as PendingRef tokens while staging. Ops of a later
// phase read them inside the transaction; callers read them after Commit
// returns nil.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Phase orders staged ops at commit time. Ops of the same phase must not
// depend on each other.
type Phase int

const (
	// PhaseSequence assigns forward references (counters).
	PhaseSequence Phase = iota
	// PhaseDocument writes the aggregate root.
	PhaseDocument
	// PhaseLedger writes side-effect ledgers (stock, bank, bills, logs).
	PhaseLedger
)

// State of a batch: DRAFT → STAGED → COMMITTED | FAILED.
type State string

const (
	StateDraft     State = "DRAFT"
	StateStaged    State = "STAGED"
	StateCommitted State = "COMMITTED"
	StateFailed    State = "FAILED"
)

var (
	ErrClosed = errors.New("batch: already committed or failed")
)

// Op is one staged write. tx is nil when the batch runs without a database
// (unit-test mode).
type Op func(ctx context.Context, tx *gorm.DB) error

// Sequencer hands out per-owner monotonic values inside a transaction.
type Sequencer interface {
	Next(ctx context.Context, tx *gorm.DB, owner, collection string) (int64, error)
}

type stagedOp struct {
	phase Phase
	name  string
	op    Op
}

type resettable interface {
	reset()
	resolve()
}

// Batch is the settlement transaction builder. It is safe to stage from
// several goroutines; Commit must be called once by the batch owner.
type Batch struct {
	db  *gorm.DB
	now func() time.Time

	mu       sync.Mutex
	ops      []stagedOp
	refs     []resettable
	hooks    []func()
	stageErr error
	closed   bool
	failed   bool
	stamp    *PendingRef[time.Time]
}

// New opens an empty batch. db may be nil.
func New(db *gorm.DB) *Batch {
	b := &Batch{db: db, now: func() time.Time { return time.Now().UTC() }}
	b.stamp = &PendingRef[time.Time]{name: "commit_time"}
	b.refs = append(b.refs, b.stamp)
	return b
}

// WithClock overrides the commit clock; used by tests.
func (b *Batch) WithClock(now func() time.Time) *Batch {
	b.now = now
	return b
}

// Stage appends op to the batch.
func (b *Batch) Stage(phase Phase, name string, op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, stagedOp{phase: phase, name: name, op: op})
}

// Fail records a staging failure. A failed batch never reaches the database.
func (b *Batch) Fail(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stageErr == nil {
		b.stageErr = err
	}
}

// Err returns the first staging failure, if any.
func (b *Batch) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stageErr
}

// Sequence stages a counter increment and returns the forward reference to
// the value it will assign.
func (b *Batch) Sequence(seq Sequencer, owner, collection string) *PendingRef[int64] {
	ref := &PendingRef[int64]{name: collection}
	b.mu.Lock()
	b.refs = append(b.refs, ref)
	b.mu.Unlock()

	b.Stage(PhaseSequence, "sequence:"+collection, func(ctx context.Context, tx *gorm.DB) error {
		v, err := seq.Next(ctx, tx, owner, collection)
		if err != nil {
			return err
		}
		ref.assign(v)
		return nil
	})
	return ref
}

// Timestamp is the forward reference to the commit time.
func (b *Batch) Timestamp() *PendingRef[time.Time] { return b.stamp }

// OnCommit registers fn to run after a successful commit.
func (b *Batch) OnCommit(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, fn)
}

// Len returns the number of staged ops.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// State reports the batch lifecycle state.
func (b *Batch) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.failed || (b.stageErr != nil):
		return StateFailed
	case b.closed:
		return StateCommitted
	case len(b.ops) == 0:
		return StateDraft
	default:
		return StateStaged
	}
}

// Commit runs every staged op, ordered by phase, inside one transaction.
// Forward references resolve only when it returns nil; on error nothing
// staged has taken effect.
func (b *Batch) Commit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.failed {
		return ErrClosed
	}
	if b.stageErr != nil {
		b.failed = true
		b.resetRefs()
		return b.stageErr
	}

	ops := make([]stagedOp, len(b.ops))
	copy(ops, b.ops)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].phase < ops[j].phase })

	b.stamp.assign(b.now())
	run := func(tx *gorm.DB) error {
		for _, s := range ops {
			if err := s.op(ctx, tx); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
		}
		return nil
	}

	var err error
	if b.db == nil {
		err = run(nil)
	} else {
		err = b.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		b.failed = true
		b.resetRefs()
		return err
	}

	b.closed = true
	for _, r := range b.refs {
		r.resolve()
	}
	for _, fn := range b.hooks {
		fn()
	}
	return nil
}

func (b *Batch) resetRefs() {
	for _, r := range b.refs {
		r.reset()
	}
}
