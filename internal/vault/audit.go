package vault

import "time"

// Audit entry statuses. "fixed" is only ever set by reclassify; the entry
// itself is never moved or deleted.
const (
	StatusFiled       = "filed"
	StatusNeedsReview = "needs_review"
	StatusFixed       = "fixed"
)

// ReviewPrefix keys the review placeholder record for a low-confidence
// capture: InboxLog/review_<source_id>.md.
const ReviewPrefix = "review_"

// AuditEntry describes one capture's disposition for the append-only inbox
// log. Exactly one is written per capture, keyed by source id.
type AuditEntry struct {
	SourceID        string
	OriginalText    string
	FiledTo         string // classifier category key, not the directory name
	DestinationName string
	DestinationFile string // vault-relative path, or "needs_review"
	Confidence      float64
	Status          string
}

// WriteAuditEntry appends a disposition record to the InboxLog. Returns the
// written path.
func (v *Vault) WriteAuditEntry(e AuditEntry) (string, error) {
	meta := NewMetadata(
		"type", "inbox_log",
		"original_text", e.OriginalText,
		"filed_to", e.FiledTo,
		"destination_name", e.DestinationName,
		"destination_file", e.DestinationFile,
		"confidence", e.Confidence,
		"status", e.Status,
		"created", v.now().Format(time.RFC3339),
	)
	return v.Write(InboxLog, e.SourceID, meta, "")
}

// AuditPath resolves the audit entry location for a source id.
func (v *Vault) AuditPath(sourceID string) string {
	return v.PathFor(InboxLog, sourceID)
}

// ReviewPath resolves the review placeholder location for a source id.
func (v *Vault) ReviewPath(sourceID string) string {
	return v.PathFor(InboxLog, ReviewPrefix+sourceID)
}
