package vault

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a record, capture id, or review placeholder
// does not exist.
var ErrNotFound = eris.New("vault: not found")

// maxFilenameLen bounds sanitized filenames.
const maxFilenameLen = 100

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Sanitize makes a display name safe for use as a filename: strips everything
// outside [A-Za-z0-9 -_], collapses whitespace runs, trims, and truncates to
// 100 characters. Returns "untitled" when nothing survives.
func Sanitize(name string) string {
	s := unsafeChars.ReplaceAllString(name, "")
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > maxFilenameLen {
		s = strings.TrimSpace(s[:maxFilenameLen])
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// Vault is the filesystem-backed record store. All state lives on disk; the
// struct itself only carries the root path, the clock, and the per-source-id
// lock table.
type Vault struct {
	root  string
	now   func() time.Time
	locks *keyLocks
}

// Option configures a Vault.
type Option func(*Vault)

// WithClock overrides the time source. Tests use this to control
// last_touched stamps and source ids.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		v.now = now
	}
}

// New opens a vault rooted at path, creating the category directories if
// they are missing.
func New(root string, opts ...Option) (*Vault, error) {
	v := &Vault{
		root:  root,
		now:   time.Now,
		locks: newKeyLocks(),
	}
	for _, o := range opts {
		o(v)
	}

	for _, cat := range AllCategories() {
		if err := os.MkdirAll(filepath.Join(root, string(cat)), 0o755); err != nil {
			return nil, eris.Wrapf(err, "vault: create category dir %s", cat)
		}
	}
	return v, nil
}

// Root returns the vault root path.
func (v *Vault) Root() string {
	return v.root
}

// NewSourceID generates a capture correlation token from the current time.
// The format sorts chronologically and doubles as the audit entry filename.
func (v *Vault) NewSourceID() string {
	return v.now().Format("2006-01-02_150405")
}

// LockSourceID acquires the per-capture mutex serializing the write, move,
// and delete family for one source id. The returned function releases it.
func (v *Vault) LockSourceID(sourceID string) func() {
	return v.locks.acquire(sourceID)
}

// PathFor resolves the storage location for a record.
func (v *Vault) PathFor(cat Category, filename string) string {
	return filepath.Join(v.root, string(cat), filename+".md")
}

// RelPath returns path relative to the vault root, used as the destination
// reference in audit entries.
func (v *Vault) RelPath(path string) string {
	rel, err := filepath.Rel(v.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Write persists a record, creating the category directory if needed and
// silently replacing any existing file at the same location. last_touched is
// always stamped with the current date before serializing. Returns the
// written path.
func (v *Vault) Write(cat Category, filename string, meta Metadata, body string) (string, error) {
	path := v.PathFor(cat, filename)

	meta.Set("last_touched", v.Today())

	data, err := encodeRecord(Record{Meta: meta, Body: body})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", eris.Wrapf(err, "vault: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "vault: write %s", path)
	}
	return path, nil
}

// Read loads a record. Absence is reported as ErrNotFound, not a filesystem
// error; a malformed header is a parse failure.
func (v *Vault) Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "read %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "vault: read %s", path)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, eris.Wrapf(err, "in %s", path)
	}
	return &rec, nil
}

// Update merges metadata updates into an existing record and optionally
// replaces its body, then rewrites the file in full. Keys not named in
// updates are preserved; this is the only metadata-preserving mutation path
// (Write is destructive-replace). Fails with ErrNotFound if the record is
// absent.
func (v *Vault) Update(path string, updates map[string]any, body *string) error {
	rec, err := v.Read(path)
	if err != nil {
		return err
	}

	rec.Meta.Merge(updates)
	rec.Meta.Set("last_touched", v.Today())
	if body != nil {
		rec.Body = *body
	}

	data, err := encodeRecord(*rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "vault: rewrite %s", path)
	}
	return nil
}

// Today returns the current date at day granularity in the fixed-width
// format recency filtering depends on.
func (v *Vault) Today() string {
	return v.now().Format("2006-01-02")
}
