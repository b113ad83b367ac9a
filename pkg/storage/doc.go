// Package storage persists extraction results as one JSON document per
// organisation.
//
// The Manager keeps an in-memory index of the ids already on disk so a batch
// can skip them, and writes every document through a temporary file and a
// rename so a crash never leaves a truncated result behind.
//
// Usage:
//
//	store, err := storage.NewManager("out", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !store.IsSaved(1124715036) {
//	    res := manager.RunExtraction(ctx, 1124715036, models.ModeAll)
//	    if err := store.SaveResult(1124715036, res); err != nil {
//	        log.Printf("Failed to save result: %v", err)
//	    }
//	}
package storage
