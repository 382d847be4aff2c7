package watch

import (
	"sort"
	"strings"

	"github.com/tidings-space/core/internal/models"
)

// Recipient pairs an identity with the watch rows that caused it to match
// a firing. Before deduplication each pair holds a single watch; after it,
// all watches of one mailbox cluster.
type Recipient struct {
	Identity Identity
	Watches  []models.WatchModel
}

// resolveWatchers finds every active watch matching the firing and returns
// one pair per watch row, sorted by lowercased email descending — the
// order uniqueByEmail clusters on.
//
// Matching is per-predicate wildcard: an empty content type or a NULL
// subject on the watch matches anything; a filter row that exists with a
// different value disqualifies, a missing filter row matches. Watches of
// deleted or deactivated owners are not special-cased here: they are
// removed at deactivation time (DeleteForUser), so every stored active
// watch is assumed valid.
func (e *Engine) resolveWatchers(ev Event) ([]Recipient, error) {
	desc := ev.Descriptor()
	hashed, err := hashFilters(desc, ev.FilterValues())
	if err != nil {
		return nil, err
	}

	tx := e.db.Model(&models.WatchModel{}).
		Where("event_type = ?", desc.Kind).
		Where("is_active = ?", true).
		Where("content_type = '' OR content_type = ?", desc.ContentType)
	if sid := ev.SubjectID(); sid != nil {
		tx = tx.Where("subject_id IS NULL OR subject_id = ?", *sid)
	}
	for name, value := range hashed {
		tx = tx.Where(
			"NOT EXISTS (SELECT 1 FROM watch_filters wf WHERE wf.watch_id = watches.id AND wf.name = ? AND wf.value <> ?)",
			name, value,
		)
	}

	var watches []models.WatchModel
	if err := tx.Preload("User").Preload("Filters").Find(&watches).Error; err != nil {
		return nil, err
	}

	pairs := make([]Recipient, 0, len(watches))
	for i := range watches {
		w := watches[i]
		ident := Identity{Email: w.Email}
		if w.UserID != nil && w.User != nil {
			ident = Identity{User: w.User}
		}
		pairs = append(pairs, Recipient{Identity: ident, Watches: []models.WatchModel{w}})
	}
	sortByEmail(pairs)
	return pairs, nil
}

// sortByEmail orders pairs by lowercased address, descending. This is the
// clustering precondition of uniqueByEmail and the merge key of collate.
func sortByEmail(pairs []Recipient) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return strings.ToLower(pairs[i].Identity.Address()) > strings.ToLower(pairs[j].Identity.Address())
	})
}
