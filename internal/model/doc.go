// Package model defines the core data structures used throughout
// spritefetch.
//
// # Record
//
// Record is one unit of work, a name, a category and a resource URL:
//
//	rec := model.NewRecord("Bulbasaur", "Grass", "https://example.com/1.png")
//	fmt.Println(rec.Key())             // "grass/bulbasaur"
//	fmt.Println(rec.FileName(".png"))  // "bulbasaur.png"
//
// Records are always normalized (trimmed, lowercase name and category)
// so the on-disk layout does not depend on how the input spelled them.
//
// # Batch helpers
//
// A batch is a plain []Record. Duplicates reports storage keys that occur
// more than once, including names that only collide once sanitized, and
// Categories lists the distinct categories.
package model
