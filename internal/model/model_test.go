package model

import (
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"normal-file.png", "normal-file.png"},
		{"file:with:colons.png", "file_with_colons.png"},
		{"file<with>brackets.png", "file_with_brackets.png"},
		{"file/with\\slashes.png", "file_with_slashes.png"},
		{"file|with|pipes.png", "file_with_pipes.png"},
		{"file?with*wildcards.png", "file_with_wildcards.png"},
		{"file\"with\"quotes.png", "file_with_quotes.png"},
		{"trailing dots...", "trailing dots"},
		{"multiple   spaces", "multiple spaces"},
		{"trailing spaces   ", "trailing spaces"},
		{"", "_"},
		{"..", "_"},
		{"../../etc", "__.._etc"},
		{".tmp-bulbasaur", "_tmp-bulbasaur"},
		{" .hidden", "_hidden"},
		{"...", "_"},
		{"Type: Null", "Type_ Null"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizeFileName(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	rec := NewRecord("  Bulbasaur ", "GRASS", " https://example.com/Sprite1.png ")

	if rec.Name != "bulbasaur" {
		t.Errorf("Name = %q, want %q", rec.Name, "bulbasaur")
	}
	if rec.Category != "grass" {
		t.Errorf("Category = %q, want %q", rec.Category, "grass")
	}
	// URLs are case sensitive and must be left alone.
	if rec.URL != "https://example.com/Sprite1.png" {
		t.Errorf("URL = %q", rec.URL)
	}
	if rec.Key() != "grass/bulbasaur" {
		t.Errorf("Key() = %q", rec.Key())
	}
}

func TestRecord_FileName(t *testing.T) {
	rec := NewRecord("Mr. Mime", "Psychic", "https://example.com/122.png")

	if got := rec.FileName(".png"); got != "mr. mime.png" {
		t.Errorf("FileName() = %q, want %q", got, "mr. mime.png")
	}
	if got := rec.DirName(); got != "psychic" {
		t.Errorf("DirName() = %q, want %q", got, "psychic")
	}
}

func TestDuplicates(t *testing.T) {
	batch := []Record{
		NewRecord("pikachu", "electric", "a"),
		NewRecord("Pikachu", "Electric", "b"),
		NewRecord("raichu", "electric", "c"),
		NewRecord("pikachu", "fairy", "d"),
	}

	dups := Duplicates(batch)
	if len(dups) != 1 || dups[0] != "electric/pikachu" {
		t.Errorf("Duplicates() = %v, want [electric/pikachu]", dups)
	}
}

func TestDuplicates_SanitizedCollisions(t *testing.T) {
	batch := []Record{
		NewRecord("Mr/Mime", "Psychic", "a"),
		NewRecord("mr_mime", "psychic", "b"),
		NewRecord("Farfetchd.", "Normal", "c"),
		NewRecord("farfetchd", "normal", "d"),
		NewRecord("Mime Jr.", "psychic", "e"),
	}

	dups := Duplicates(batch)
	want := []string{"normal/farfetchd", "psychic/mr_mime"}
	if len(dups) != len(want) || dups[0] != want[0] || dups[1] != want[1] {
		t.Errorf("Duplicates() = %v, want %v", dups, want)
	}
}

func TestRecord_StorageKey(t *testing.T) {
	rec := NewRecord("Type: Null", "Normal", "https://example.com/772.png")
	if got := rec.StorageKey(); got != "normal/type_ null" {
		t.Errorf("StorageKey() = %q, want %q", got, "normal/type_ null")
	}
}

func TestCategories(t *testing.T) {
	batch := []Record{
		NewRecord("charmander", "fire", "a"),
		NewRecord("bulbasaur", "grass", "b"),
		NewRecord("vulpix", "fire", "c"),
	}

	cats := Categories(batch)
	want := []string{"fire", "grass"}
	if len(cats) != len(want) {
		t.Fatalf("Categories() = %v, want %v", cats, want)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("Categories()[%d] = %q, want %q", i, cats[i], want[i])
		}
	}
}
