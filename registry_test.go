package perch_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/perchdb/perch"
	"github.com/perchdb/perch/mocks"
)

func Test_StacksAreLazy(t *testing.T) {
	reg := perch.NewRegistry()
	ses := mocks.NewSession("2.0.0")

	if got := reg.CurrentFor(ses); got != nil {
		t.Fatalf("CurrentFor on idle session: got %v want nil", got)
	}
	if got := reg.DepthFor(ses); got != 0 {
		t.Fatalf("DepthFor on idle session: got %d want 0", got)
	}
	// Probing must not open a transaction.
	if got := reg.CurrentFor(ses); got != nil {
		t.Fatalf("second CurrentFor: got %v want nil", got)
	}
}

func Test_CurrentForTracksTop(t *testing.T) {
	ctx := newCtx()
	reg := perch.RegistryFrom(ctx)
	ses := mocks.NewSession("2.0.0")

	tx1 := perch.Begin(ctx, ses)
	if got := reg.CurrentFor(ses); got != tx1 {
		t.Fatalf("current: got %v want tx1", got)
	}
	tx2 := perch.Begin(ctx, ses)
	if got := reg.CurrentFor(ses); got != tx2 {
		t.Fatalf("current: got %v want tx2", got)
	}
}

// Two registries simulating two execution contexts must not share stacks,
// even for the same session.
func Test_RegistriesAreIsolated(t *testing.T) {
	ses := mocks.NewSession("2.0.0")
	ctxA := perch.WithRegistry(context.Background(), perch.NewRegistry())
	ctxB := perch.WithRegistry(context.Background(), perch.NewRegistry())

	txA := perch.Begin(ctxA, ses)
	if got := perch.RegistryFrom(ctxB).DepthFor(ses); got != 0 {
		t.Fatalf("context B sees context A's transaction: depth %d want 0", got)
	}
	txB := perch.Begin(ctxB, ses)
	if txB.Root() != txB {
		t.Fatalf("context B root: got %v want itself, stacks must not interleave", txB.Root().ID())
	}
	if err := txB.Close(ctxB); err != nil {
		t.Fatalf("close in B failed: %v", err)
	}
	if got := perch.RegistryFrom(ctxA).DepthFor(ses); got != 1 {
		t.Fatalf("close in B drained A's stack: depth %d want 1", got)
	}
	if err := txA.Close(ctxA); err != nil {
		t.Fatalf("close in A failed: %v", err)
	}
}

func Test_SessionsHaveIndependentStacks(t *testing.T) {
	ctx := newCtx()
	reg := perch.RegistryFrom(ctx)
	ses1 := mocks.NewSession("2.0.0")
	ses2 := mocks.NewSession("2.0.0")

	tx1 := perch.Begin(ctx, ses1)
	if got := reg.DepthFor(ses2); got != 0 {
		t.Fatalf("session 2 depth: got %d want 0", got)
	}
	tx2 := perch.Begin(ctx, ses2)
	if tx2.Root() != tx2 {
		t.Fatalf("session 2 root crossed sessions")
	}
	if err := tx2.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := tx1.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if ses1.CommitCount != 1 || ses2.CommitCount != 1 {
		t.Fatalf("commits: ses1=%d ses2=%d want 1/1", ses1.CommitCount, ses2.CommitCount)
	}
}

// Many goroutines, each with its own registry and session, running nested
// transactions concurrently. Every context must resolve exactly once and end
// with an empty stack.
func Test_ConcurrentContexts(t *testing.T) {
	const contexts = 16
	tr := perch.NewTaskRunner(context.Background(), 8)
	sessions := make([]*mocks.Session, contexts)
	for i := 0; i < contexts; i++ {
		sessions[i] = mocks.NewSession("2.0.0")
	}
	for i := 0; i < contexts; i++ {
		i := i
		tr.Go(func() error {
			ctx := perch.WithRegistry(tr.Context(), perch.NewRegistry())
			ses := sessions[i]
			outer := perch.Begin(ctx, ses)
			inner := perch.Begin(ctx, ses)
			if inner.Root() != outer {
				return fmt.Errorf("context %d: nested root mismatch", i)
			}
			if err := inner.Close(ctx); err != nil {
				return fmt.Errorf("context %d: inner close: %w", i, err)
			}
			if err := outer.Close(ctx); err != nil {
				return fmt.Errorf("context %d: outer close: %w", i, err)
			}
			if got := perch.RegistryFrom(ctx).DepthFor(ses); got != 0 {
				return fmt.Errorf("context %d: final depth %d want 0", i, got)
			}
			return nil
		})
	}
	if err := tr.Wait(); err != nil {
		t.Fatalf("concurrent contexts failed: %v", err)
	}
	for i, ses := range sessions {
		if ses.CommitCount != 1 || ses.DeleteCount != 0 {
			t.Fatalf("session %d: commits=%d deletes=%d want 1/0", i, ses.CommitCount, ses.DeleteCount)
		}
	}
}
