package vault

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// EditInput names what to change about an existing entry. Zero-value fields
// leave the corresponding aspect alone.
type EditInput struct {
	SourceID        string
	NewName         string
	NewCategory     string // classifier key ("people", "project", ...)
	MetadataUpdates map[string]any
}

// EditResult reports where an edited entry ended up.
type EditResult struct {
	SourceID string   `json:"source_id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Path     string   `json:"file_path"`
}

// Edit updates an entry's name, category, or metadata without re-running
// classification. Metadata merges key by key; a changed category or name
// moves the record (write new location, then delete old). The audit trail is
// deliberately not touched — only reclassify maintains audit linkage.
func (v *Vault) Edit(in EditInput) (*EditResult, error) {
	unlock := v.locks.acquire(in.SourceID)
	defer unlock()

	entry, err := v.FindBySourceID(in.SourceID)
	if err != nil {
		return nil, err
	}

	rec := Record{Meta: entry.Meta.Clone(), Body: entry.Body}
	if in.MetadataUpdates != nil {
		rec.Meta.Merge(in.MetadataUpdates)
	}
	if in.NewName != "" {
		rec.Meta.Set("name", in.NewName)
	}

	targetCategory := editCategoryForKey(in.NewCategory, entry.Category)
	targetFilename := entry.Filename
	if in.NewName != "" {
		targetFilename = Sanitize(in.NewName)
	}

	var finalPath string
	if targetCategory != entry.Category || targetFilename != entry.Filename {
		// Move: write the merged record at the new location first, then
		// remove the old file. Not atomic; a crash in between leaves both
		// copies, resolvable by preferring the newer last_touched.
		finalPath, err = v.Write(targetCategory, targetFilename, rec.Meta, rec.Body)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(entry.Path); err != nil {
			return nil, eris.Wrapf(err, "vault: remove %s after move", entry.Path)
		}
		zap.L().Info("entry moved",
			zap.String("source_id", in.SourceID),
			zap.String("from", string(entry.Category)),
			zap.String("to", string(targetCategory)),
		)
	} else {
		finalPath, err = v.Write(targetCategory, targetFilename, rec.Meta, rec.Body)
		if err != nil {
			return nil, err
		}
	}

	name := rec.Meta.GetString("name")
	if name == "" {
		name = targetFilename
	}
	return &EditResult{
		SourceID: in.SourceID,
		Name:     name,
		Category: targetCategory,
		Path:     finalPath,
	}, nil
}

// editCategoryForKey resolves an edit's target category. Unlike capture
// routing there is no catch-all: a key that does not name a content category
// leaves the entry where it is, so a typo cannot move a record into InboxLog
// where source-id lookup would never find it again.
func editCategoryForKey(key string, current Category) Category {
	if c, ok := categoryByKey[key]; ok && c != InboxLog {
		return c
	}
	return current
}

// DeleteResult identifies what a delete removed.
type DeleteResult struct {
	SourceID string   `json:"source_id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// Delete removes the entry for a source id. The matching audit entry stays:
// the inbox log is append-only.
func (v *Vault) Delete(sourceID string) (*DeleteResult, error) {
	unlock := v.locks.acquire(sourceID)
	defer unlock()

	entry, err := v.FindBySourceID(sourceID)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(entry.Path); err != nil {
		return nil, eris.Wrapf(err, "vault: delete %s", entry.Path)
	}

	name := entry.Meta.GetString("name")
	if name == "" {
		name = entry.Filename
	}
	zap.L().Info("entry deleted",
		zap.String("source_id", sourceID),
		zap.String("category", string(entry.Category)),
	)
	return &DeleteResult{SourceID: sourceID, Name: name, Category: entry.Category}, nil
}
