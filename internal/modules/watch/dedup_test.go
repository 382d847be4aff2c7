package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidings-space/core/internal/models"
)

func anonPair(email string, watchIDs ...string) Recipient {
	watches := make([]models.WatchModel, 0, len(watchIDs))
	for _, id := range watchIDs {
		w := models.WatchModel{Email: email}
		w.ID = id
		watches = append(watches, w)
	}
	return Recipient{Identity: ForEmail(email), Watches: watches}
}

func userPair(u *models.UserModel, watchIDs ...string) Recipient {
	watches := make([]models.WatchModel, 0, len(watchIDs))
	for _, id := range watchIDs {
		w := models.WatchModel{UserID: &u.ID, User: u}
		w.ID = id
		watches = append(watches, w)
	}
	return Recipient{Identity: ForUser(u), Watches: watches}
}

func allWatchIDs(pairs []Recipient) []string {
	var ids []string
	for _, p := range pairs {
		for _, w := range p.Watches {
			ids = append(ids, w.ID)
		}
	}
	return ids
}

func TestUniqueByEmail_CollapsesCluster(t *testing.T) {
	t.Parallel()

	in := []Recipient{
		anonPair("zoe@example.com", "w1"),
		anonPair("ZOE@example.com", "w2"),
		anonPair("ann@example.com", "w3"),
	}
	out := uniqueByEmail(in)

	require.Len(t, out, 2)
	assert.Equal(t, "zoe@example.com", out[0].Identity.Address())
	assert.Len(t, out[0].Watches, 2)
	assert.Equal(t, "ann@example.com", out[1].Identity.Address())
}

func TestUniqueByEmail_IsFixedPoint(t *testing.T) {
	t.Parallel()

	in := []Recipient{
		anonPair("zoe@example.com", "w1"),
		anonPair("zoe@example.com", "w2"),
		anonPair("mia@example.com", "w3"),
		anonPair("ann@example.com", "w4"),
		anonPair("ann@example.com", "w5"),
	}
	once := uniqueByEmail(in)
	twice := uniqueByEmail(once)
	assert.Equal(t, once, twice)
}

func TestUniqueByEmail_KeepsEveryWatch(t *testing.T) {
	t.Parallel()

	in := []Recipient{
		anonPair("zoe@example.com", "w1"),
		anonPair("zoe@example.com", "w2"),
		anonPair("ann@example.com", "w3"),
	}
	out := uniqueByEmail(in)
	assert.ElementsMatch(t, []string{"w1", "w2", "w3"}, allWatchIDs(out))
}

func TestUniqueByEmail_RegisteredUserWins(t *testing.T) {
	t.Parallel()

	u := &models.UserModel{Username: "zoe", Email: "zoe@example.com"}
	u.ID = "user-1"

	in := []Recipient{
		anonPair("zoe@example.com", "w1"),
		userPair(u, "w2"),
		anonPair("Zoe@Example.com", "w3"),
	}
	out := uniqueByEmail(in)

	require.Len(t, out, 1)
	require.True(t, out[0].Identity.Authenticated())
	assert.Equal(t, "user-1", out[0].Identity.User.ID)
	assert.Len(t, out[0].Watches, 3)
}

func TestUniqueByEmail_UserWithoutEmailStoodInFor(t *testing.T) {
	t.Parallel()

	// A registered user with no address of their own cannot be mailed;
	// the cluster's anonymous address stands in.
	u := &models.UserModel{Username: "ghost"}
	u.ID = "user-2"
	in := []Recipient{
		{Identity: ForUser(u), Watches: []models.WatchModel{{UserID: &u.ID}}},
	}
	// The pair resolves to an empty address; with no address there is no
	// cluster mate to borrow from, and the favorite stays unmailable.
	out := uniqueByEmail(in)
	require.Len(t, out, 1)
	assert.Equal(t, "", out[0].Identity.Address())
}

func TestSortByEmail_DescendingCaseInsensitive(t *testing.T) {
	t.Parallel()

	pairs := []Recipient{
		anonPair("ann@example.com"),
		anonPair("ZOE@example.com"),
		anonPair("mia@example.com"),
	}
	sortByEmail(pairs)

	require.Len(t, pairs, 3)
	assert.Equal(t, "ZOE@example.com", pairs[0].Identity.Address())
	assert.Equal(t, "mia@example.com", pairs[1].Identity.Address())
	assert.Equal(t, "ann@example.com", pairs[2].Identity.Address())
}

func TestCollate_MergesSortedStreams(t *testing.T) {
	t.Parallel()

	a := []Recipient{
		anonPair("zoe@example.com", "a1"),
		anonPair("mia@example.com", "a2"),
	}
	b := []Recipient{
		anonPair("zoe@example.com", "b1"),
		anonPair("ann@example.com", "b2"),
	}
	out := collate(a, b)

	require.Len(t, out, 4)
	got := make([]string, 0, len(out))
	for _, p := range out {
		got = append(got, p.Identity.Address())
	}
	assert.Equal(t, []string{"zoe@example.com", "zoe@example.com", "mia@example.com", "ann@example.com"}, got)

	// Collate then dedup yields one pair per mailbox with every watch kept.
	deduped := uniqueByEmail(out)
	require.Len(t, deduped, 3)
	assert.ElementsMatch(t, []string{"a1", "a2", "b1", "b2"}, allWatchIDs(deduped))
}

func TestCollate_EmptyInputs(t *testing.T) {
	t.Parallel()

	assert.Empty(t, collate())
	assert.Empty(t, collate(nil, nil))

	only := []Recipient{anonPair("ann@example.com", "w1")}
	assert.Equal(t, only, collate(nil, only))
}
