package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakePgxTx implements pgx.Tx via embedding; only the methods exercised by
// the gateway are overridden.
type fakePgxTx struct {
	pgx.Tx

	commitErr   error
	rollbackErr error
	execErr     error

	commits   int
	rollbacks int
	execs     int
	lastSQL   string
}

func (f *fakePgxTx) Commit(_ context.Context) error {
	f.commits++
	return f.commitErr
}

func (f *fakePgxTx) Rollback(_ context.Context) error {
	f.rollbacks++
	return f.rollbackErr
}

func (f *fakePgxTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs++
	f.lastSQL = sql
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func newTestTx(fake *fakePgxTx) *Tx {
	return &Tx{tx: fake}
}

func TestTx_CommitOnce(t *testing.T) {
	fake := &fakePgxTx{}
	tx := newTestTx(fake)

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() = %v, want nil", err)
	}
	if fake.commits != 1 {
		t.Errorf("commits = %d, want 1", fake.commits)
	}
	if !tx.Finished() {
		t.Error("Finished() = false after Commit")
	}
}

func TestTx_DoubleCommit(t *testing.T) {
	tx := newTestTx(&fakePgxTx{})

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("first Commit() = %v", err)
	}
	err := tx.Commit(context.Background())
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("second Commit() = %v, want ErrProtocolViolation", err)
	}
}

func TestTx_RollbackAfterCommit(t *testing.T) {
	fake := &fakePgxTx{}
	tx := newTestTx(fake)

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	// Second finish is a caller defect; it must not reach the driver.
	err := tx.Rollback(context.Background())
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Rollback() after Commit = %v, want ErrProtocolViolation", err)
	}
	if fake.rollbacks != 0 {
		t.Errorf("rollbacks = %d, want 0", fake.rollbacks)
	}
}

func TestTx_DoubleRollback(t *testing.T) {
	fake := &fakePgxTx{}
	tx := newTestTx(fake)

	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("first Rollback() = %v", err)
	}
	err := tx.Rollback(context.Background())
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("second Rollback() = %v, want ErrProtocolViolation", err)
	}
	if fake.rollbacks != 1 {
		t.Errorf("rollbacks = %d, want 1", fake.rollbacks)
	}
}

func TestTx_CommitAfterRollback(t *testing.T) {
	tx := newTestTx(&fakePgxTx{})

	if err := tx.Rollback(context.Background()); err != nil {
		t.Fatalf("Rollback() = %v", err)
	}
	err := tx.Commit(context.Background())
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Commit() after Rollback = %v, want ErrProtocolViolation", err)
	}
}

func TestTx_NilCommit(t *testing.T) {
	var tx *Tx
	if err := tx.Commit(context.Background()); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("nil Commit() = %v, want ErrProtocolViolation", err)
	}
}

func TestTx_UseAfterFinish(t *testing.T) {
	s := New(nil, nil)
	fake := &fakePgxTx{}
	tx := newTestTx(fake)

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit() = %v", err)
	}

	err := s.InsertDocument(context.Background(), tx, InsertDocumentParams{ID: "d1"})
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("InsertDocument on finished tx = %v, want ErrProtocolViolation", err)
	}
	if fake.execs != 0 {
		t.Errorf("execs = %d, want 0 (write must not reach the driver)", fake.execs)
	}
}

func TestTx_ReleaseRunsExactlyOnce(t *testing.T) {
	released := 0
	tx := &Tx{tx: &fakePgxTx{}, onFinish: func() { released++ }}

	_ = tx.Commit(context.Background())
	_ = tx.Rollback(context.Background())
	_ = tx.Commit(context.Background())

	if released != 1 {
		t.Errorf("release count = %d, want 1", released)
	}
}

func TestTx_CommitErrorStillReleases(t *testing.T) {
	released := 0
	tx := &Tx{
		tx:       &fakePgxTx{commitErr: errors.New("connection reset")},
		onFinish: func() { released++ },
	}

	err := tx.Commit(context.Background())
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Commit() = %v, want ErrConnection", err)
	}
	if released != 1 {
		t.Errorf("release count = %d, want 1", released)
	}
}
