// Package vault implements the markdown vault: category-scoped records with
// YAML front matter, index operations (recent, search, lookup by source id),
// the inbox audit trail, and the edit/delete correction operations.
package vault

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Category is a vault subdirectory. The set is fixed; records never live
// anywhere else.
type Category string

const (
	People   Category = "People"
	Projects Category = "Projects"
	Ideas    Category = "Ideas"
	Admin    Category = "Admin"
	InboxLog Category = "InboxLog"
	Digests  Category = "_digests"
)

// AllCategories returns every category directory the vault maintains.
func AllCategories() []Category {
	return []Category{People, Projects, Ideas, Admin, InboxLog, Digests}
}

// ContentCategories returns the four user-facing categories. InboxLog and
// Digests are excluded from default reads and searches.
func ContentCategories() []Category {
	return []Category{People, Projects, Ideas, Admin}
}

// categoryByKey maps classifier keys to categories. Unknown keys land in
// InboxLog so nothing is ever dropped.
var categoryByKey = map[string]Category{
	"people":       People,
	"project":      Projects,
	"idea":         Ideas,
	"admin":        Admin,
	"needs_review": InboxLog,
}

// CategoryForKey resolves a classifier category key. Unknown keys fall back
// to InboxLog.
func CategoryForKey(key string) Category {
	if c, ok := categoryByKey[key]; ok {
		return c
	}
	return InboxLog
}

// field is a single metadata key/value pair.
type field struct {
	key   string
	value any
}

// Metadata is an order-preserving string-keyed map of scalar values. Front
// matter round-trips keep the key order records were written with.
type Metadata struct {
	fields []field
}

// NewMetadata builds Metadata from alternating key, value pairs.
func NewMetadata(pairs ...any) Metadata {
	if len(pairs)%2 != 0 {
		panic("vault: NewMetadata requires key/value pairs")
	}
	var m Metadata
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

// Set adds a key or overwrites an existing one in place.
func (m *Metadata) Set(key string, value any) {
	for i := range m.fields {
		if m.fields[i].key == key {
			m.fields[i].value = value
			return
		}
	}
	m.fields = append(m.fields, field{key: key, value: value})
}

// Get returns the value for key and whether it is present.
func (m Metadata) Get(key string) (any, bool) {
	for _, f := range m.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

// GetString returns the value for key rendered as a string, or "" if absent.
func (m Metadata) GetString(key string) string {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// GetFloat returns the value for key as a float64, or 0 if absent or not
// numeric.
func (m Metadata) GetFloat(key string) float64 {
	switch v, _ := m.Get(key); n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// Keys returns the keys in insertion order.
func (m Metadata) Keys() []string {
	keys := make([]string, len(m.fields))
	for i, f := range m.fields {
		keys[i] = f.key
	}
	return keys
}

// Len returns the number of keys.
func (m Metadata) Len() int {
	return len(m.fields)
}

// Merge applies updates key by key: existing keys are overwritten in place,
// new keys are appended in sorted order so merges are deterministic. Keys not
// named in updates are untouched.
func (m *Metadata) Merge(updates map[string]any) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.Set(k, updates[k])
	}
}

// Clone returns a deep-enough copy (values are scalars).
func (m Metadata) Clone() Metadata {
	fields := make([]field, len(m.fields))
	copy(fields, m.fields)
	return Metadata{fields: fields}
}

// String renders the mapping as "key: value" lines. Search matches against
// this rendering in addition to record bodies.
func (m Metadata) String() string {
	var b strings.Builder
	for _, f := range m.fields {
		fmt.Fprintf(&b, "%s: %v\n", f.key, f.value)
	}
	return b.String()
}

// MarshalYAML emits the mapping in insertion order.
func (m Metadata) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range m.fields {
		keyNode := &yaml.Node{}
		if err := keyNode.Encode(f.key); err != nil {
			return nil, err
		}
		valNode := &yaml.Node{}
		if err := valNode.Encode(f.value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping preserving key order.
func (m *Metadata) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return eris.Errorf("vault: front matter is not a mapping (line %d)", node.Line)
	}
	m.fields = nil
	for i := 0; i < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			return eris.Wrap(err, "vault: decode front matter key")
		}
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return eris.Wrapf(err, "vault: decode front matter value for %q", key)
		}
		m.fields = append(m.fields, field{key: key, value: value})
	}
	return nil
}

// Record is the persisted unit: front-matter metadata plus a free-text body.
type Record struct {
	Meta Metadata
	Body string
}

// Entry is a Record together with where it was found.
type Entry struct {
	Category Category
	Filename string // without the .md extension
	Path     string
	Record
}

const frontMatterDelim = "---"

// encodeRecord serializes metadata as a YAML front-matter header followed by
// the body.
func encodeRecord(rec Record) ([]byte, error) {
	header, err := yaml.Marshal(rec.Meta)
	if err != nil {
		return nil, eris.Wrap(err, "vault: marshal front matter")
	}

	var b strings.Builder
	b.WriteString(frontMatterDelim + "\n")
	b.Write(header)
	b.WriteString(frontMatterDelim + "\n")
	if rec.Body != "" {
		b.WriteString("\n")
		b.WriteString(rec.Body)
		if !strings.HasSuffix(rec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}

// decodeRecord parses a front-matter file. A file without an opening
// delimiter is treated as all body; an opening delimiter without a closing
// one, or invalid YAML, is a parse failure.
func decodeRecord(data []byte) (Record, error) {
	text := string(data)

	if !strings.HasPrefix(text, frontMatterDelim+"\n") {
		return Record{Body: strings.TrimSuffix(text, "\n")}, nil
	}

	rest := text[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return Record{}, eris.New("vault: unterminated front matter")
	}

	header := rest[:end+1]
	body := rest[end+1+len(frontMatterDelim):]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")

	var meta Metadata
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return Record{}, eris.Wrap(err, "vault: parse front matter")
	}

	return Record{Meta: meta, Body: strings.TrimSuffix(body, "\n")}, nil
}
