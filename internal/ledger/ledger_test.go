package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
)

func openMemory(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestInitSchema_Idempotent(t *testing.T) {
	l := openMemory(t)
	ctx := context.Background()
	if err := InitSchema(ctx, l.db); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
	v, err := schemaVersion(ctx, l.db)
	if err != nil || v != SchemaVersion {
		t.Errorf("schema version = %d, %v, want %d", v, err, SchemaVersion)
	}
}

func TestCounts_LatestRowWins(t *testing.T) {
	l := openMemory(t)
	ctx := context.Background()
	rows := []Run{
		{BatchID: "b1", Design: "A", Status: StatusFailed, Error: "solve failed", Stage: "force"},
		{BatchID: "b1", Design: "B", Status: StatusCompleted, Steps: 12},
		{BatchID: "b2", Design: "A", Status: StatusCompleted, Attempt: 1},
		{BatchID: "b2", Design: "B", Status: StatusSkipped},
		{BatchID: "b2", Design: "C", Status: StatusFailed, Error: "mesh", Stage: "inductance"},
	}
	for _, r := range rows {
		if err := l.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.Counts(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	want := Counts{Completed: 1, Failed: 1, Skipped: 1}
	if got != want {
		t.Errorf("Counts() = %+v, want %+v", got, want)
	}

	got, err = l.Counts(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if want := (Counts{Completed: 1, Failed: 1}); got != want {
		t.Errorf("Counts(b1) = %+v, want %+v", got, want)
	}

	failed, err := l.Failed(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Design != "C" || failed[0].Stage != "inductance" {
		t.Errorf("Failed() = %+v, want only design C", failed)
	}

	batch, err := l.LatestBatch(ctx)
	if err != nil || batch != "b2" {
		t.Errorf("LatestBatch() = %q, %v, want b2", batch, err)
	}
}

func TestRecord_Concurrent(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- l.Record(ctx, Run{BatchID: "b", Design: string(rune('a' + i)), Worker: i % 4, Status: StatusCompleted})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	c, err := l.Counts(ctx, "b")
	if err != nil || c.Completed != 20 {
		t.Errorf("Counts() = %+v, %v, want 20 completed", c, err)
	}
}

func TestLatestBatch_Empty(t *testing.T) {
	l := openMemory(t)
	got, err := l.LatestBatch(context.Background())
	if err != nil || got != "" {
		t.Errorf("LatestBatch() on empty ledger = %q, %v", got, err)
	}
}
