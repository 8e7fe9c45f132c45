package progress

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"
)

// openTestPostgres connects to SUNO_TEST_DATABASE_URL, skipping the test
// when it is unset. Each test gets its own namespace.
func openTestPostgres(t *testing.T) *PostgresBackend {
	t.Helper()
	dsn := os.Getenv("SUNO_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SUNO_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	ns := fmt.Sprintf("test_%s_%d", t.Name(), time.Now().UnixNano())
	backend, err := OpenPostgres(ctx, dsn, ns)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	t.Cleanup(func() {
		backend.Clear(context.Background())
		backend.Close()
	})
	return backend
}

func TestPostgresBackend_MissingRowIsEmpty(t *testing.T) {
	backend := openTestPostgres(t)

	rec, err := backend.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(rec.Downloaded) != 0 || len(rec.Failed) != 0 {
		t.Errorf("Read() = %+v, want empty record", rec)
	}
}

func TestPostgresBackend_UpsertAndClear(t *testing.T) {
	ctx := context.Background()
	backend := openTestPostgres(t)

	if err := backend.Write(ctx, Record{Downloaded: []string{"a"}}); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	want := Record{Downloaded: []string{"a", "b"}, Failed: []string{"c"}}
	if err := backend.Write(ctx, want); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	var rows int
	if err := backend.db.QueryRowContext(ctx,
		`SELECT count(*) FROM download_progress WHERE namespace = $1`, backend.namespace,
	).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("rows for namespace = %d, want 1", rows)
	}

	got, err := backend.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Read() = %+v, want %+v", got, want)
	}

	// a second store over the same row resumes where the first left off
	store, err := Open(ctx, NewPostgresBackend(backend.db, backend.namespace))
	if err != nil {
		t.Fatal(err)
	}
	if !store.IsDone("b") || !store.IsFailed("c") {
		t.Errorf("reopened store lost state: %+v", store.Snapshot())
	}

	if err := backend.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := backend.Clear(ctx); err != nil {
		t.Fatalf("Clear() on a missing row error = %v", err)
	}
	got, err = backend.Read(ctx)
	if err != nil || len(got.Downloaded) != 0 || len(got.Failed) != 0 {
		t.Errorf("Read() after Clear = %+v, %v", got, err)
	}
}

func TestOpenPostgres_BadURL(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "postgres://%zz", ""); err == nil {
		t.Error("OpenPostgres() with a malformed URL should fail")
	}
}
