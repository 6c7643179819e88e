// Package detector watches the lexical index for documents ingested after
// startup (C13), and matches them against pending unresolved queries so
// POST /retry_all can replay only the queries a new document might answer.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/brunobiangulo/hybridrag/internal/index"
)

// NewDocument is a newly-observed corpus document, carrying just enough to
// match it against unresolved-query hints without re-fetching the full text.
type NewDocument struct {
	ID       uint64
	Entities []string
	Places   []string
	Years    []int
	Preview  string
}

// DocumentLookup fetches the entity/place/year/text fields for a document
// id, used to build NewDocument records for freshly observed ids.
type DocumentLookup interface {
	Lookup(ctx context.Context, id uint64) (entities, places []string, years []int, text string, err error)
}

type snapshot struct {
	DocIDs    []uint64  `json:"doc_ids"`
	Timestamp time.Time `json:"timestamp"`
}

// Detector tracks the corpus's initial document-id set and reports newly
// ingested ids on demand.
type Detector struct {
	scroller   index.Scroller
	lookup     DocumentLookup
	statePath  string
	initialIDs map[uint64]struct{}
}

// New loads state from statePath if present, otherwise scrolls the full
// corpus via scroller and persists the snapshot (spec §4.13).
func New(ctx context.Context, scroller index.Scroller, lookup DocumentLookup, statePath string) (*Detector, error) {
	d := &Detector{scroller: scroller, lookup: lookup, statePath: statePath}

	if data, err := os.ReadFile(statePath); err == nil {
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("detector: parse snapshot: %w", err)
		}
		d.initialIDs = toSet(snap.DocIDs)
		return d, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("detector: read snapshot: %w", err)
	}

	ids, err := scroller.ScrollIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("detector: initial scroll: %w", err)
	}
	d.initialIDs = toSet(ids)
	if err := d.saveState(ids); err != nil {
		return nil, err
	}
	return d, nil
}

func toSet(ids []uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (d *Detector) saveState(ids []uint64) error {
	if dir := filepath.Dir(d.statePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("detector: create snapshot dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(snapshot{DocIDs: ids, Timestamp: time.Now()}, "", "  ")
	if err != nil {
		return fmt.Errorf("detector: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(d.statePath, data, 0o644); err != nil {
		return fmt.Errorf("detector: write snapshot: %w", err)
	}
	return nil
}

// GetNewDocuments scrolls the current corpus and returns the documents
// whose id was not present in the initial snapshot, enriched via lookup;
// ids whose lookup fails are left out.
func (d *Detector) GetNewDocuments(ctx context.Context) ([]NewDocument, error) {
	current, err := d.scroller.ScrollIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("detector: scroll: %w", err)
	}

	var newIDs []uint64
	for _, id := range current {
		if _, known := d.initialIDs[id]; !known {
			newIDs = append(newIDs, id)
		}
	}
	sort.Slice(newIDs, func(i, j int) bool { return newIDs[i] < newIDs[j] })

	docs := make([]NewDocument, 0, len(newIDs))
	for _, id := range newIDs {
		entities, places, years, text, err := d.lookup.Lookup(ctx, id)
		if err != nil {
			continue
		}
		preview := text
		if len(preview) > 200 {
			preview = preview[:200]
		}
		docs = append(docs, NewDocument{ID: id, Entities: entities, Places: places, Years: years, Preview: preview})
	}
	return docs, nil
}

// ResetInitialState recomputes the initial id set from the current corpus
// and overwrites the snapshot file.
func (d *Detector) ResetInitialState(ctx context.Context) error {
	ids, err := d.scroller.ScrollIDs(ctx)
	if err != nil {
		return fmt.Errorf("detector: scroll: %w", err)
	}
	d.initialIDs = toSet(ids)
	return d.saveState(ids)
}

// InitialDocumentCount reports the size of the snapshotted initial set, for
// GET /stats.
func (d *Detector) InitialDocumentCount() int {
	return len(d.initialIDs)
}

// QueryHints is the subset of a memory entry's hints needed for matching.
type QueryHints struct {
	Entities []string
	Places   []string
	Years    []int
}

// MatchQueryWithNewDocs reports whether any newDoc shares an entity, place,
// or year with hints, and which document ids matched (spec §4.13).
func MatchQueryWithNewDocs(hints QueryHints, newDocs []NewDocument) (bool, []uint64) {
	entitySet := toStringSet(hints.Entities)
	placeSet := toStringSet(hints.Places)
	yearSet := toIntSet(hints.Years)

	var matched []uint64
	for _, doc := range newDocs {
		if intersectsString(entitySet, doc.Entities) ||
			intersectsString(placeSet, doc.Places) ||
			intersectsInt(yearSet, doc.Years) {
			matched = append(matched, doc.ID)
		}
	}
	return len(matched) > 0, matched
}

func toStringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

func toIntSet(items []int) map[int]struct{} {
	set := make(map[int]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

func intersectsString(set map[string]struct{}, items []string) bool {
	for _, s := range items {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func intersectsInt(set map[int]struct{}, items []int) bool {
	for _, s := range items {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}
