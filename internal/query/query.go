// Package query answers natural-language questions over the vault by
// assembling context from index operations and handing it to the generation
// oracle.
package query

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/fieldnotes/second-brain/internal/vault"
	"github.com/fieldnotes/second-brain/pkg/anthropic"
)

//go:embed prompts/query.txt
var queryPrompt string

// Config tunes the query service.
type Config struct {
	Model     string
	MaxTokens int64
}

// Service answers questions about vault contents.
type Service struct {
	oracle    anthropic.Client
	vault     *vault.Vault
	model     string
	maxTokens int64
}

// New creates a query service.
func New(oracle anthropic.Client, v *vault.Vault, cfg Config) *Service {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	return &Service{oracle: oracle, vault: v, model: cfg.Model, maxTokens: cfg.MaxTokens}
}

// Result carries the oracle's answer.
type Result struct {
	Success     bool     `json:"success"`
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	SearchTerms []string `json:"search_terms,omitempty"`
}

// Answer responds to a question using the full content categories as
// context.
func (s *Service) Answer(ctx context.Context, question string) (*Result, error) {
	contents, err := s.vault.ReadAll()
	if err != nil {
		return nil, err
	}

	answer, err := s.ask(ctx, FormatContents(contents), question)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Question: question, Answer: answer}, nil
}

// SearchAndAnswer narrows the context to substring-search hits for the given
// terms before asking. With no terms it behaves like Answer.
func (s *Service) SearchAndAnswer(ctx context.Context, question string, searchTerms []string) (*Result, error) {
	if len(searchTerms) == 0 {
		res, err := s.Answer(ctx, question)
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	var hits []vault.Entry
	for _, term := range searchTerms {
		found, err := s.vault.Search(term)
		if err != nil {
			return nil, err
		}
		hits = append(hits, found...)
	}

	ctxText := "(No matching entries found)"
	if len(hits) > 0 {
		grouped := make(map[vault.Category][]vault.Entry)
		for _, e := range hits {
			grouped[e.Category] = append(grouped[e.Category], e)
		}
		ctxText = FormatContents(grouped)
	}

	answer, err := s.ask(ctx, ctxText, question)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Question: question, Answer: answer, SearchTerms: searchTerms}, nil
}

func (s *Service) ask(ctx context.Context, vaultContext, question string) (string, error) {
	prompt := strings.ReplaceAll(queryPrompt, "{{CONTEXT}}", vaultContext)
	prompt = strings.ReplaceAll(prompt, "{{QUESTION}}", question)

	resp, err := s.oracle.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(s.model, "query")

	return resp.Text(), nil
}

// FormatContents renders vault entries as oracle context: category headers,
// per-entry metadata bullets, then the note body.
func FormatContents(contents map[vault.Category][]vault.Entry) string {
	var parts []string

	for _, cat := range vault.ContentCategories() {
		entries := contents[cat]
		if len(entries) == 0 {
			continue
		}

		parts = append(parts, fmt.Sprintf("\n## %s\n", cat))

		for _, e := range entries {
			parts = append(parts, fmt.Sprintf("### %s", e.Filename))
			parts = append(parts, "**Metadata:**")
			for _, key := range e.Meta.Keys() {
				if key == "type" {
					continue
				}
				parts = append(parts, fmt.Sprintf("- %s: %s", key, e.Meta.GetString(key)))
			}
			if strings.TrimSpace(e.Body) != "" {
				parts = append(parts, fmt.Sprintf("\n**Notes:**\n%s", e.Body))
			}
			parts = append(parts, "")
		}
	}

	return strings.Join(parts, "\n")
}
