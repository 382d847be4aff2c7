package watch

import (
	"strings"

	"github.com/tidings-space/core/internal/models"
)

// uniqueByEmail collapses consecutive pairs sharing a mailbox down to one
// pair each, so a person watching through several watch rows (registered
// account plus anonymous subscriptions, or duplicates from racing notify
// calls) receives exactly one mail.
//
// Input must be clustered by case-insensitive address (sortByEmail). For
// each cluster one favorite identity is chosen — an authenticated identity
// with its own email beats anonymous ones, earliest seen wins ties — and
// all watch rows in the cluster are attached to it.
func uniqueByEmail(pairs []Recipient) []Recipient {
	out := make([]Recipient, 0, len(pairs))
	i := 0
	for i < len(pairs) {
		clusterAddr := pairs[i].Identity.Address()
		clusterKey := strings.ToLower(clusterAddr)

		favorite := pairs[i].Identity
		watches := append([]models.WatchModel(nil), pairs[i].Watches...)
		j := i + 1
		for ; j < len(pairs); j++ {
			if strings.ToLower(pairs[j].Identity.Address()) != clusterKey {
				break
			}
			cand := pairs[j].Identity
			if cand.Authenticated() && cand.HasEmail() &&
				(!favorite.Authenticated() || !favorite.HasEmail()) {
				favorite = cand
			}
			watches = append(watches, pairs[j].Watches...)
		}

		// Guarantee the favorite exposes a mailbox: a registered user
		// without an email is stood in for by an anonymous identity
		// carrying the cluster's address.
		if !favorite.HasEmail() {
			favorite = ForEmail(clusterAddr)
		}
		out = append(out, Recipient{Identity: favorite, Watches: watches})
		i = j
	}
	return out
}

// collate merges k pair slices, each already sorted by lowercased address
// descending, into one slice in the same order. Used by union firing to
// combine per-event watcher lists before re-deduplicating.
func collate(lists ...[]Recipient) []Recipient {
	idx := make([]int, len(lists))
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	out := make([]Recipient, 0, total)
	for len(out) < total {
		best := -1
		var bestKey string
		for k, l := range lists {
			if idx[k] >= len(l) {
				continue
			}
			key := strings.ToLower(l[idx[k]].Identity.Address())
			if best == -1 || key > bestKey {
				best = k
				bestKey = key
			}
		}
		out = append(out, lists[best][idx[best]])
		idx[best]++
	}
	return out
}
