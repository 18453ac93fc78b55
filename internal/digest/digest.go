// Package digest generates daily and weekly summaries of recent vault
// activity and files them under the digests category.
package digest

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fieldnotes/second-brain/internal/vault"
	"github.com/fieldnotes/second-brain/pkg/anthropic"
)

//go:embed prompts/daily_digest.txt
var dailyPrompt string

//go:embed prompts/weekly_digest.txt
var weeklyPrompt string

// bodyPreviewChars caps how much of each note body goes into the digest
// context.
const bodyPreviewChars = 500

// Config tunes the digest service.
type Config struct {
	Model           string
	DailyMaxTokens  int64
	WeeklyMaxTokens int64
}

// Service generates digests.
type Service struct {
	oracle anthropic.Client
	vault  *vault.Vault
	cfg    Config
}

// New creates a digest service.
func New(oracle anthropic.Client, v *vault.Vault, cfg Config) *Service {
	if cfg.DailyMaxTokens == 0 {
		cfg.DailyMaxTokens = 2048
	}
	if cfg.WeeklyMaxTokens == 0 {
		cfg.WeeklyMaxTokens = 4096
	}
	return &Service{oracle: oracle, vault: v, cfg: cfg}
}

// Result carries a generated digest.
type Result struct {
	Success      bool   `json:"success"`
	Digest       string `json:"digest"`
	Date         string `json:"date"`
	EntriesCount int    `json:"entries_count"`
}

// Daily digests entries touched in the last 24 hours.
func (s *Service) Daily(ctx context.Context) (*Result, error) {
	return s.generate(ctx, "daily", 1, dailyPrompt, "{{DATE}}", s.cfg.DailyMaxTokens)
}

// Weekly digests entries touched in the last 7 days.
func (s *Service) Weekly(ctx context.Context) (*Result, error) {
	return s.generate(ctx, "weekly", 7, weeklyPrompt, "{{WEEK_ENDING}}", s.cfg.WeeklyMaxTokens)
}

func (s *Service) generate(ctx context.Context, kind string, days int, promptTemplate, datePlaceholder string, maxTokens int64) (*Result, error) {
	entries, err := s.recentByCategory(days)
	if err != nil {
		return nil, err
	}

	count := 0
	for _, items := range entries {
		count += len(items)
	}

	date := s.vault.Today()

	ctxText := formatEntries(entries)
	if strings.TrimSpace(ctxText) == "" {
		msg := "No new entries in the last 24 hours."
		if kind == "weekly" {
			msg = "No entries in the last 7 days."
		}
		return &Result{Success: true, Digest: msg, Date: date}, nil
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{CONTEXT}}", ctxText)
	prompt = strings.ReplaceAll(prompt, datePlaceholder, date)

	resp, err := s.oracle.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(s.cfg.Model, "digest_"+kind)

	text := resp.Text()

	dateKey := "date"
	if kind == "weekly" {
		dateKey = "week_ending"
	}
	meta := vault.NewMetadata(
		"type", "digest",
		"digest_type", kind,
		dateKey, date,
		"entries_count", count,
	)
	if _, err := s.vault.Write(vault.Digests, kind+"_"+date, meta, text); err != nil {
		return nil, err
	}

	return &Result{Success: true, Digest: text, Date: date, EntriesCount: count}, nil
}

// recentByCategory gathers recent entries for all content categories. The
// scans are independent directory walks, so they run concurrently.
func (s *Service) recentByCategory(days int) (map[vault.Category][]vault.Entry, error) {
	var mu sync.Mutex
	out := make(map[vault.Category][]vault.Entry)

	var g errgroup.Group
	for _, cat := range vault.ContentCategories() {
		g.Go(func() error {
			entries, err := s.vault.Recent(cat, days)
			if err != nil {
				return err
			}
			mu.Lock()
			out[cat] = entries
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// formatEntries renders recent entries as digest context. Bodies are capped
// and bookkeeping keys elided.
func formatEntries(entries map[vault.Category][]vault.Entry) string {
	var parts []string

	for _, cat := range vault.ContentCategories() {
		items := entries[cat]
		if len(items) == 0 {
			continue
		}

		parts = append(parts, fmt.Sprintf("\n## %s\n", cat))

		for _, item := range items {
			parts = append(parts, fmt.Sprintf("### %s", item.Filename))
			for _, key := range item.Meta.Keys() {
				if key == "type" || key == "source_id" {
					continue
				}
				parts = append(parts, fmt.Sprintf("- %s: %s", key, item.Meta.GetString(key)))
			}
			if strings.TrimSpace(item.Body) != "" {
				body := item.Body
				if runes := []rune(body); len(runes) > bodyPreviewChars {
					body = string(runes[:bodyPreviewChars])
				}
				parts = append(parts, "\n"+body)
			}
			parts = append(parts, "")
		}
	}

	return strings.Join(parts, "\n")
}
