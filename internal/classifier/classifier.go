// Package classifier routes text captures into the vault. It asks the
// classification oracle for a judgment, decides filed-vs-review on a
// confidence threshold, and keeps the inbox audit trail in step with every
// disposition.
package classifier

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fieldnotes/second-brain/internal/vault"
	"github.com/fieldnotes/second-brain/pkg/anthropic"
)

//go:embed prompts/classification.txt
var classificationPrompt string

// DefaultConfidenceThreshold parks captures for review when the oracle is
// less certain than this.
const DefaultConfidenceThreshold = 0.6

// Config tunes the classifier service.
type Config struct {
	Model               string
	MaxTokens           int64
	ConfidenceThreshold float64
}

// Service classifies captures and writes the results to the vault.
type Service struct {
	oracle    anthropic.Client
	vault     *vault.Vault
	model     string
	maxTokens int64
	threshold float64
}

// New creates a classifier service. The oracle client is injected so its
// lifecycle belongs to the composition root.
func New(oracle anthropic.Client, v *vault.Vault, cfg Config) *Service {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &Service{
		oracle:    oracle,
		vault:     v,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		threshold: cfg.ConfidenceThreshold,
	}
}

// Judgment is the oracle's structured verdict. Beyond type, confidence, name,
// and body, fields are opaque and passed through as record metadata.
type Judgment map[string]any

func (j Judgment) stringField(key, fallback string) string {
	if v, ok := j[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (j Judgment) confidence() float64 {
	switch v := j["confidence"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

var fencedJSON = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// parseJudgment decodes the oracle's response, tolerating a markdown code
// fence around the JSON.
func parseJudgment(text string) (Judgment, error) {
	text = strings.TrimSpace(text)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var j Judgment
	if err := json.Unmarshal([]byte(text), &j); err != nil {
		return nil, eris.Wrap(err, "classifier: parse judgment")
	}
	return j, nil
}

// Classify asks the oracle to categorize text. Nothing is written; callers
// own the disposition.
func (s *Service) Classify(ctx context.Context, text string) (Judgment, error) {
	prompt := strings.ReplaceAll(classificationPrompt, "{{INPUT}}", text)

	resp, err := s.oracle.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(s.model, "classify")

	return parseJudgment(resp.Text())
}

// CaptureResult reports how a capture was routed.
type CaptureResult struct {
	Success     bool           `json:"success"`
	SourceID    string         `json:"source_id"`
	Category    vault.Category `json:"category"`
	Name        string         `json:"name"`
	Confidence  float64        `json:"confidence"`
	NeedsReview bool           `json:"needs_review"`
	Judgment    Judgment       `json:"classification"`
}

// ProcessCapture runs the full routing flow: classify, file or park for
// review, and append exactly one audit entry. Any oracle failure aborts
// before the first write, so a filed record never exists without its audit
// entry or vice versa.
func (s *Service) ProcessCapture(ctx context.Context, text string) (*CaptureResult, error) {
	sourceID := s.vault.NewSourceID()

	judgment, err := s.Classify(ctx, text)
	if err != nil {
		return nil, err
	}

	categoryKey := judgment.stringField("type", "needs_review")
	confidence := judgment.confidence()
	if confidence < s.threshold {
		categoryKey = "needs_review"
	}

	category := vault.CategoryForKey(categoryKey)
	name := judgment.stringField("name", "Untitled")
	filename := vault.Sanitize(name)

	meta := vault.NewMetadata(
		"type", categoryKey,
		"source_id", sourceID,
		"confidence", confidence,
	)
	mergeExtras(&meta, judgment)
	body, _ := judgment["body"].(string)

	var destinationFile, status string
	if categoryKey != "needs_review" {
		path, err := s.vault.Write(category, filename, meta, body)
		if err != nil {
			return nil, err
		}
		destinationFile = s.vault.RelPath(path)
		status = vault.StatusFiled
	} else {
		destinationFile = vault.StatusNeedsReview
		status = vault.StatusNeedsReview
		reviewMeta := vault.NewMetadata(
			"type", "needs_review",
			"original_text", text,
			"suggested_type", judgment.stringField("type", ""),
			"suggested_name", name,
			"confidence", confidence,
			"source_id", sourceID,
		)
		if _, err := s.vault.Write(vault.InboxLog, vault.ReviewPrefix+sourceID, reviewMeta, text); err != nil {
			return nil, err
		}
	}

	if _, err := s.vault.WriteAuditEntry(vault.AuditEntry{
		SourceID:        sourceID,
		OriginalText:    text,
		FiledTo:         categoryKey,
		DestinationName: name,
		DestinationFile: destinationFile,
		Confidence:      confidence,
		Status:          status,
	}); err != nil {
		return nil, err
	}

	zap.L().Info("capture routed",
		zap.String("source_id", sourceID),
		zap.String("category", string(category)),
		zap.Float64("confidence", confidence),
		zap.Bool("needs_review", categoryKey == "needs_review"),
	)

	return &CaptureResult{
		Success:     true,
		SourceID:    sourceID,
		Category:    category,
		Name:        name,
		Confidence:  confidence,
		NeedsReview: categoryKey == "needs_review",
		Judgment:    judgment,
	}, nil
}

// ReclassifyResult reports where a corrected capture was filed.
type ReclassifyResult struct {
	Success  bool           `json:"success"`
	SourceID string         `json:"source_id"`
	Category vault.Category `json:"category"`
	Name     string         `json:"name"`
	Path     string         `json:"file_path"`
}

// Reclassify files a parked capture under a caller-chosen category and name.
// The oracle re-runs on the original text to regenerate structured fields,
// but the caller's category and name always win, and the corrected record is
// filed at confidence 1.0. The review placeholder is marked fixed and the
// audit entry, when present, is updated with the new disposition.
func (s *Service) Reclassify(ctx context.Context, sourceID, newCategory, newName string) (*ReclassifyResult, error) {
	unlock := s.vault.LockSourceID(sourceID)
	defer unlock()

	reviewPath := s.vault.ReviewPath(sourceID)
	placeholder, err := s.vault.Read(reviewPath)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return nil, eris.Wrapf(vault.ErrNotFound, "review item %s", sourceID)
		}
		return nil, err
	}

	originalText := placeholder.Meta.GetString("original_text")
	if originalText == "" {
		originalText = placeholder.Body
	}

	judgment, err := s.Classify(ctx, originalText)
	if err != nil {
		return nil, err
	}
	judgment["type"] = newCategory
	judgment["name"] = newName

	category := vault.CategoryForKey(newCategory)
	filename := vault.Sanitize(newName)

	meta := vault.NewMetadata(
		"type", newCategory,
		"source_id", sourceID,
		"confidence", 1.0,
	)
	mergeExtras(&meta, judgment)

	body := judgment.stringField("body", originalText)
	path, err := s.vault.Write(category, filename, meta, body)
	if err != nil {
		return nil, err
	}

	if err := s.vault.Update(reviewPath, map[string]any{
		"status":     vault.StatusFixed,
		"fixed_to":   newCategory,
		"fixed_name": newName,
	}, nil); err != nil {
		return nil, err
	}

	auditPath := s.vault.AuditPath(sourceID)
	if _, err := s.vault.Read(auditPath); err == nil {
		if err := s.vault.Update(auditPath, map[string]any{
			"status":           vault.StatusFixed,
			"filed_to":         newCategory,
			"destination_name": newName,
			"destination_file": s.vault.RelPath(path),
		}, nil); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, vault.ErrNotFound) {
		return nil, err
	}

	zap.L().Info("capture reclassified",
		zap.String("source_id", sourceID),
		zap.String("category", string(category)),
	)

	return &ReclassifyResult{
		Success:  true,
		SourceID: sourceID,
		Category: category,
		Name:     newName,
		Path:     path,
	}, nil
}

// mergeExtras appends the judgment's pass-through fields (everything except
// type and confidence) to meta in sorted order.
func mergeExtras(meta *vault.Metadata, judgment Judgment) {
	keys := make([]string, 0, len(judgment))
	for k := range judgment {
		if k == "type" || k == "confidence" || k == "body" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		meta.Set(k, judgment[k])
	}
}
