// Package progress records which items finished and which failed, so an
// interrupted run can resume where it stopped.
//
// # Store
//
//	backend := progress.NewFileBackend(dir, progress.DefaultNamespace)
//	store, err := progress.Open(ctx, backend)
//
//	if !store.IsDone(id) {
//	    // ... process ...
//	    store.MarkDone(ctx, id)
//	}
//
// # Backends
//
// The record is a single JSON document {"downloaded": [...], "failed": [...]}
// stored under a namespace. Available backends:
//   - FileBackend: a JSON file, replaced atomically
//   - PostgresBackend: one JSONB row in download_progress
//   - S3Backend: one object in an S3-compatible bucket
//   - MemoryBackend: process memory, for dry runs and tests
package progress
