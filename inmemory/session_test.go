package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/perchdb/perch"
)

func newCtx() context.Context {
	return perch.WithRegistry(context.Background(), perch.NewRegistry())
}

func Test_CommitMakesWritesVisible(t *testing.T) {
	ctx := newCtx()
	store := NewStore()
	ses := NewSession(store)

	tx := ses.Transaction(ctx)
	ses.Set("alpha", 1)
	ses.Exec(perch.Statement{Text: "create alpha"})
	if _, ok := store.Get("alpha"); ok {
		t.Fatalf("write visible before commit")
	}
	if v, ok := ses.Get("alpha"); !ok || v != 1 {
		t.Fatalf("session read-through: got (%v, %v) want (1, true)", v, ok)
	}

	if err := tx.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if v, ok := store.Get("alpha"); !ok || v != 1 {
		t.Fatalf("committed value: got (%v, %v) want (1, true)", v, ok)
	}
	if got := len(store.CommittedStatements()); got != 1 {
		t.Fatalf("committed statements: got %d want 1", got)
	}
}

func Test_RollbackDiscardsWrites(t *testing.T) {
	ctx := newCtx()
	store := NewStore()
	ses := NewSession(store)

	tx := ses.Transaction(ctx)
	ses.Set("beta", "x")
	tx.MarkFailed()
	if err := tx.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, ok := store.Get("beta"); ok {
		t.Fatalf("rolled-back write reached the store")
	}
	if ses.Pending() != 0 {
		t.Fatalf("pending writes after rollback: got %d want 0", ses.Pending())
	}
}

func Test_NestedCloseKeepsBuffering(t *testing.T) {
	ctx := newCtx()
	store := NewStore()
	ses := NewSession(store)

	outer := ses.Transaction(ctx)
	inner := ses.Transaction(ctx)
	ses.Set("gamma", true)
	if err := inner.Close(ctx); err != nil {
		t.Fatalf("inner close failed: %v", err)
	}
	if _, ok := store.Get("gamma"); ok {
		t.Fatalf("nested close flushed the buffer")
	}
	if err := outer.Close(ctx); err != nil {
		t.Fatalf("outer close failed: %v", err)
	}
	if _, ok := store.Get("gamma"); !ok {
		t.Fatalf("root close did not flush the buffer")
	}
}

func Test_SetNilDeletesOnCommit(t *testing.T) {
	ctx := newCtx()
	store := NewStore()
	ses := NewSession(store)

	tx := ses.Transaction(ctx)
	ses.Set("delta", 4)
	if err := tx.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	tx = ses.Transaction(ctx)
	ses.Set("delta", nil)
	if _, ok := ses.Get("delta"); ok {
		t.Fatalf("buffered delete still readable through session")
	}
	if err := tx.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, ok := store.Get("delta"); ok {
		t.Fatalf("delete did not reach the store")
	}
}

func Test_ProviderCurrentOrFail(t *testing.T) {
	ctx := context.Background()
	var p Provider

	_, err := p.CurrentOrFail(ctx)
	if perch.CodeOf(err) != perch.NoActiveSession {
		t.Fatalf("empty provider: got %v want NoActiveSession", err)
	}

	ses := NewSession(NewStore())
	p.SetCurrent(ses)
	got, err := p.CurrentOrFail(ctx)
	if err != nil || got != perch.Session(ses) {
		t.Fatalf("provider: got (%v, %v) want the installed session", got, err)
	}
}

func Test_RunnerWithProvider(t *testing.T) {
	ctx := newCtx()
	store := NewStore()
	ses := NewSession(store)
	var p Provider
	p.SetCurrent(ses)
	r := perch.NewRunner(&p)

	boom := errors.New("boom")
	_, err := r.Run(ctx, func(ctx context.Context, tx *perch.Transaction) (any, error) {
		ses.Set("epsilon", 5)
		return nil, boom
	})
	if err != boom {
		t.Fatalf("run error: got %v want boom", err)
	}
	if _, ok := store.Get("epsilon"); ok {
		t.Fatalf("failed run committed its writes")
	}

	_, err = r.Run(ctx, func(ctx context.Context, tx *perch.Transaction) (any, error) {
		ses.Set("epsilon", 5)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if v, ok := store.Get("epsilon"); !ok || v != 5 {
		t.Fatalf("committed value: got (%v, %v) want (5, true)", v, ok)
	}
}
