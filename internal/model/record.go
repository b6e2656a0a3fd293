package model

import (
	"regexp"
	"sort"
	"strings"
)

// Record is one unit of work: a named resource to fetch and the category
// it is filed under.
//
// Records are values and are never modified after a RecordSource produces
// them. Identity is the (Category, Name) pair, see Key.
//
// Example:
//
//	rec := model.NewRecord("Bulbasaur", "Grass", "https://example.com/1.png")
//	// rec.Name = "bulbasaur", rec.Category = "grass"
type Record struct {
	// Name is the record name, used as the file name (without extension).
	Name string

	// Category is the destination category, used as the directory name.
	Category string

	// URL is the location of the resource to fetch.
	URL string
}

// NewRecord creates a normalized Record.
func NewRecord(name, category, url string) Record {
	return Normalize(Record{Name: name, Category: category, URL: url})
}

// Normalize returns rec with name and category trimmed and lowercased, so
// that category directories are stable regardless of input casing.
// The URL is only trimmed.
func Normalize(rec Record) Record {
	return Record{
		Name:     strings.ToLower(strings.TrimSpace(rec.Name)),
		Category: strings.ToLower(strings.TrimSpace(rec.Category)),
		URL:      strings.TrimSpace(rec.URL),
	}
}

// Key returns the identity of the record as "category/name".
func (r Record) Key() string {
	return r.Category + "/" + r.Name
}

// String implements fmt.Stringer.
func (r Record) String() string {
	return r.Key()
}

// DirName returns the sanitized directory name for the record's category.
func (r Record) DirName() string {
	return SanitizeFileName(r.Category)
}

// FileName returns the sanitized file name for the record, with ext
// appended. ext must include the leading dot.
//
//	NewRecord("Mr. Mime", "psychic", url).FileName(".png") // "mr. mime.png"
func (r Record) FileName(ext string) string {
	return SanitizeFileName(r.Name) + ext
}

// StorageKey returns the sanitized "category/name" the record is stored
// under. Records with different keys can share a storage key, for example
// "mr/mime" and "mr_mime".
func (r Record) StorageKey() string {
	return r.DirName() + "/" + SanitizeFileName(r.Name)
}

// Duplicates returns the storage keys that occur more than once in batch,
// sorted.
//
// Duplicated records are still processed; the stored file is whichever
// complete write lands last.
func Duplicates(batch []Record) []string {
	seen := make(map[string]int, len(batch))
	for _, rec := range batch {
		seen[rec.StorageKey()]++
	}

	var dups []string
	for key, n := range seen {
		if n > 1 {
			dups = append(dups, key)
		}
	}
	sort.Strings(dups)
	return dups
}

// Categories returns the distinct categories present in batch, sorted.
func Categories(batch []Record) []string {
	seen := make(map[string]struct{})
	var cats []string
	for _, rec := range batch {
		if _, ok := seen[rec.Category]; ok {
			continue
		}
		seen[rec.Category] = struct{}{}
		cats = append(cats, rec.Category)
	}
	sort.Strings(cats)
	return cats
}

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	leadingDots    = regexp.MustCompile(`^\.+`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are replaced with underscore
//   - Trailing dots are removed (Windows limitation)
//   - Multiple whitespace is collapsed to single space
//   - Leading and trailing whitespace is removed
//   - Leading dots are replaced with a single underscore
//
// A name that sanitizes to nothing becomes "_", so a record can never
// escape its category directory or produce a hidden file. Hidden names
// are reserved for in-progress writes.
//
// Example:
//
//	SanitizeFileName("Type: Null") // Returns "Type_ Null"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = leadingDots.ReplaceAllString(name, "_")

	if name == "" {
		return "_"
	}
	return name
}
