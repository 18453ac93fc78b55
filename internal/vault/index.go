package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ListCategory enumerates every record in one category directory. A missing
// directory yields an empty slice, not an error. Files that fail to parse
// are skipped with a warning so one corrupt record cannot take down a scan.
func (v *Vault) ListCategory(cat Category) ([]Entry, error) {
	dir := filepath.Join(v.root, string(cat))

	names, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "vault: list %s", cat)
	}

	var entries []Entry
	for _, de := range names {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, de.Name())
		rec, err := v.Read(path)
		if err != nil {
			zap.L().Warn("skipping unreadable record",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, Entry{
			Category: cat,
			Filename: strings.TrimSuffix(de.Name(), ".md"),
			Path:     path,
			Record:   *rec,
		})
	}
	return entries, nil
}

// ReadAll reads every record in the given categories. With no arguments it
// covers the four content categories; InboxLog and Digests must be asked for
// explicitly.
func (v *Vault) ReadAll(cats ...Category) (map[Category][]Entry, error) {
	if len(cats) == 0 {
		cats = ContentCategories()
	}

	contents := make(map[Category][]Entry, len(cats))
	for _, cat := range cats {
		entries, err := v.ListCategory(cat)
		if err != nil {
			return nil, err
		}
		contents[cat] = entries
	}
	return contents, nil
}

// Recent returns the records in cat whose last_touched date falls within the
// last days days. The comparison is lexicographic on the stored YYYY-MM-DD
// strings; that is only correct because the format is fixed-width and
// zero-padded, so the representation must not change independently.
func (v *Vault) Recent(cat Category, days int) ([]Entry, error) {
	cutoff := v.now().AddDate(0, 0, -days).Format("2006-01-02")

	entries, err := v.ListCategory(cat)
	if err != nil {
		return nil, err
	}

	var recent []Entry
	for _, e := range entries {
		if e.Meta.GetString("last_touched") >= cutoff {
			recent = append(recent, e)
		}
	}
	return recent, nil
}

// Search scans the content categories for records whose body or rendered
// metadata contains term, case-insensitively. No ranking; order follows
// directory enumeration.
func (v *Vault) Search(term string) ([]Entry, error) {
	needle := strings.ToLower(term)

	var hits []Entry
	for _, cat := range ContentCategories() {
		entries, err := v.ListCategory(cat)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			haystack := strings.ToLower(e.Body + " " + e.Meta.String())
			if strings.Contains(haystack, needle) {
				hits = append(hits, e)
			}
		}
	}
	return hits, nil
}

// FindBySourceID locates the record carrying the given source_id across the
// content categories. Source ids are expected to be unique; if duplicates
// exist the scan order breaks the tie. Returns ErrNotFound when no record
// matches.
func (v *Vault) FindBySourceID(sourceID string) (*Entry, error) {
	for _, cat := range ContentCategories() {
		entries, err := v.ListCategory(cat)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Meta.GetString("source_id") == sourceID {
				return &e, nil
			}
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "source_id %s", sourceID)
}

// Stats counts records per content category.
func (v *Vault) Stats() (map[Category]int, error) {
	contents, err := v.ReadAll()
	if err != nil {
		return nil, err
	}
	stats := make(map[Category]int, len(contents))
	for cat, entries := range contents {
		stats[cat] = len(entries)
	}
	return stats, nil
}
