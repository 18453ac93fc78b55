package digest

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldnotes/second-brain/internal/vault"
	"github.com/fieldnotes/second-brain/pkg/anthropic"
)

type mockOracle struct {
	text  string
	calls []anthropic.MessageRequest
}

func (m *mockOracle) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.calls = append(m.calls, req)
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: m.text}},
	}, nil
}

func TestDaily(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	v, err := vault.New(t.TempDir(), vault.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	_, err = v.Write(vault.People, "Alice",
		vault.NewMetadata("type", "people", "name", "Alice", "source_id", "2024-03-15_090000"),
		"Talked about the migration.")
	require.NoError(t, err)

	oracle := &mockOracle{text: "You met Alice today."}
	svc := New(oracle, v, Config{Model: "claude-sonnet-4-5-20250929"})

	res, err := svc.Daily(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "You met Alice today.", res.Digest)
	assert.Equal(t, "2024-03-15", res.Date)
	assert.Equal(t, 1, res.EntriesCount)

	require.Len(t, oracle.calls, 1)
	prompt := oracle.calls[0].Messages[0].Content
	assert.Contains(t, prompt, "### Alice")
	assert.Contains(t, prompt, "Talked about the migration.")
	assert.NotContains(t, prompt, "source_id", "bookkeeping keys stay out of the context")

	// Digest is persisted for later reading.
	rec, err := v.Read(v.PathFor(vault.Digests, "daily_2024-03-15"))
	require.NoError(t, err)
	assert.Equal(t, "digest", rec.Meta.GetString("type"))
	assert.Equal(t, "daily", rec.Meta.GetString("digest_type"))
	assert.Equal(t, "2024-03-15", rec.Meta.GetString("date"))
	assert.Equal(t, "You met Alice today.", rec.Body)
}

func TestDailyEmptyVaultShortCircuits(t *testing.T) {
	v, err := vault.New(t.TempDir())
	require.NoError(t, err)

	oracle := &mockOracle{text: "unused"}
	svc := New(oracle, v, Config{})

	res, err := svc.Daily(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "No new entries in the last 24 hours.", res.Digest)
	assert.Zero(t, res.EntriesCount)
	assert.Empty(t, oracle.calls, "no oracle call for an empty window")

	// Nothing is filed either.
	entries, err := v.ListCategory(vault.Digests)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWeeklyWindowAndMetadata(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	clock := func() time.Time { return now }
	v, err := vault.New(t.TempDir(), vault.WithClock(clock))
	require.NoError(t, err)

	// Touched 10 days ago: outside the weekly window.
	now = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	_, err = v.Write(vault.Ideas, "Stale", vault.NewMetadata("type", "idea"), "old")
	require.NoError(t, err)

	// Touched 3 days ago: inside.
	now = time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	_, err = v.Write(vault.Ideas, "Fresh", vault.NewMetadata("type", "idea"), "new thought")
	require.NoError(t, err)

	now = time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	oracle := &mockOracle{text: "One fresh idea this week."}
	svc := New(oracle, v, Config{Model: "claude-sonnet-4-5-20250929"})

	res, err := svc.Weekly(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.EntriesCount)
	require.Len(t, oracle.calls, 1)
	prompt := oracle.calls[0].Messages[0].Content
	assert.Contains(t, prompt, "### Fresh")
	assert.NotContains(t, prompt, "### Stale")

	rec, err := v.Read(v.PathFor(vault.Digests, "weekly_2024-03-15"))
	require.NoError(t, err)
	assert.Equal(t, "weekly", rec.Meta.GetString("digest_type"))
	assert.Equal(t, "2024-03-15", rec.Meta.GetString("week_ending"))
}

func TestWeeklyEmptyMessage(t *testing.T) {
	v, err := vault.New(t.TempDir())
	require.NoError(t, err)

	oracle := &mockOracle{}
	svc := New(oracle, v, Config{})

	res, err := svc.Weekly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No entries in the last 7 days.", res.Digest)
}

func TestFormatEntriesTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", bodyPreviewChars+50)
	entries := map[vault.Category][]vault.Entry{
		vault.Ideas: {{
			Category: vault.Ideas,
			Filename: "Accents",
			Record: vault.Record{
				Meta: vault.NewMetadata("type", "idea"),
				Body: long,
			},
		}},
	}

	out := formatEntries(entries)
	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
	assert.Contains(t, out, strings.Repeat("é", bodyPreviewChars))
	assert.NotContains(t, out, strings.Repeat("é", bodyPreviewChars+1))
}

func TestFormatEntriesCapsBodies(t *testing.T) {
	long := strings.Repeat("x", bodyPreviewChars+200)
	entries := map[vault.Category][]vault.Entry{
		vault.Ideas: {{
			Category: vault.Ideas,
			Filename: "Long",
			Record: vault.Record{
				Meta: vault.NewMetadata("type", "idea"),
				Body: long,
			},
		}},
	}

	out := formatEntries(entries)
	assert.Contains(t, out, strings.Repeat("x", bodyPreviewChars))
	assert.NotContains(t, out, strings.Repeat("x", bodyPreviewChars+1))
}
