package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMails_OneMailPerMailbox(t *testing.T) {
	t.Parallel()
	e, sender := newTestEngine(t)
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)
	ev := replyEvent("q1")

	_, err := e.Notify(ev, ForEmail("ann@example.com"), nil)
	require.NoError(t, err)
	_, err = e.Notify(ev, ForEmail("mia@example.com"), nil)
	require.NoError(t, err)

	report, err := e.SendMails([]Event{ev}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 2, report.Sent)
	assert.Empty(t, report.Failures)

	var got []string
	for _, m := range sender.messages() {
		got = append(got, m.To...)
	}
	assert.ElementsMatch(t, []string{"ann@example.com", "mia@example.com"}, got)
}

func TestSendMails_SharedMailboxGetsOneMail(t *testing.T) {
	t.Parallel()
	e, sender := newTestEngine(t)
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)
	ev := replyEvent("q1")

	u := createUser(t, e.db, "zoe", "zoe@example.com")
	_, err := e.Notify(ev, ForUser(u), nil)
	require.NoError(t, err)
	_, err = e.Notify(ev, ForEmail("ZOE@example.com"), nil)
	require.NoError(t, err)

	report, err := e.SendMails([]Event{ev}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Sent)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	// The registered account is the favorite, so its address is used.
	assert.Equal(t, []string{"zoe@example.com"}, msgs[0].To)
}

func TestSendMails_ExcludeDropsWholeCluster(t *testing.T) {
	t.Parallel()
	e, sender := newTestEngine(t)
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)
	ev := replyEvent("q1")

	u := createUser(t, e.db, "zoe", "zoe@example.com")
	_, err := e.Notify(ev, ForUser(u), nil)
	require.NoError(t, err)
	// Anonymous watch under the same address merges into the user's pair,
	// so excluding the user silences the address entirely.
	_, err = e.Notify(ev, ForEmail("zoe@example.com"), nil)
	require.NoError(t, err)
	_, err = e.Notify(ev, ForEmail("ann@example.com"), nil)
	require.NoError(t, err)

	report, err := e.SendMails([]Event{ev}, []string{u.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 1, report.Sent)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"ann@example.com"}, msgs[0].To)
}

func TestSendMails_EmptyExcludeIDRejected(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	_, err := e.SendMails([]Event{replyEvent("q1")}, []string{""})
	assert.ErrorIs(t, err, ErrUnsavedOwner)
}

func TestSendMails_UnionSendsOnce(t *testing.T) {
	t.Parallel()
	e, sender := newTestEngine(t)
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)

	reply := replyEvent("q1")
	solved := &testEvent{kind: "question:solved", ct: "question", subject: strPtr("q1")}

	// Ann watches both events; Mia only the reply.
	_, err := e.Notify(reply, ForEmail("ann@example.com"), nil)
	require.NoError(t, err)
	_, err = e.Notify(solved, ForEmail("ann@example.com"), nil)
	require.NoError(t, err)
	_, err = e.Notify(reply, ForEmail("mia@example.com"), nil)
	require.NoError(t, err)

	report, err := e.SendMails([]Event{reply, solved}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 2, report.Sent)

	var got []string
	for _, m := range sender.messages() {
		got = append(got, m.To...)
	}
	assert.ElementsMatch(t, []string{"ann@example.com", "mia@example.com"}, got)

	// The mail for Ann carries the watches of both events.
	for _, m := range sender.messages() {
		assert.Equal(t, "notification: question:reply", m.Subject, "union mail is built by the first event")
	}
}

func TestSendMails_InactiveWatchesIgnored(t *testing.T) {
	t.Parallel()
	e, sender := newTestEngine(t)
	ev := replyEvent("q1")

	// Default config: anonymous watches start inactive.
	_, err := e.Notify(ev, ForEmail("ann@example.com"), nil)
	require.NoError(t, err)
	sender.sent = nil // drop the activation mail

	report, err := e.SendMails([]Event{ev}, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Matched)
	assert.Empty(t, sender.messages())
}

func TestResolveWatchers_WildcardSemantics(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)

	// Subject-bound, subject-wildcard and content-wildcard watches.
	_, err := e.Notify(replyEvent("q1"), ForEmail("bound@example.com"), nil)
	require.NoError(t, err)
	_, err = e.Notify(&testEvent{kind: "question:reply", ct: "question"}, ForEmail("any-question@example.com"), nil)
	require.NoError(t, err)
	_, err = e.Notify(&testEvent{kind: "question:reply"}, ForEmail("any-content@example.com"), nil)
	require.NoError(t, err)

	pairs, err := e.resolveWatchers(replyEvent("q1"))
	require.NoError(t, err)
	assert.Len(t, pairs, 3, "exact subject matches all three")

	pairs, err = e.resolveWatchers(replyEvent("q2"))
	require.NoError(t, err)
	var got []string
	for _, p := range pairs {
		got = append(got, p.Identity.Address())
	}
	assert.ElementsMatch(t, []string{"any-question@example.com", "any-content@example.com"}, got)
}

func TestResolveWatchers_FilterSemantics(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)

	_, err := e.Notify(localeEvent(), ForEmail("en@example.com"), map[string]any{"locale": "en-US"})
	require.NoError(t, err)
	_, err = e.Notify(localeEvent(), ForEmail("de@example.com"), map[string]any{"locale": "de"})
	require.NoError(t, err)
	_, err = e.Notify(localeEvent(), ForEmail("all@example.com"), nil)
	require.NoError(t, err)

	firing := localeEvent()
	firing.values = map[string]any{"locale": "en-US"}
	pairs, err := e.resolveWatchers(firing)
	require.NoError(t, err)

	var got []string
	for _, p := range pairs {
		got = append(got, p.Identity.Address())
	}
	// A missing filter row is a wildcard; a mismatched one disqualifies.
	assert.ElementsMatch(t, []string{"en@example.com", "all@example.com"}, got)
}

func TestResolveWatchers_SortedDescending(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)
	ev := replyEvent("q1")

	for _, addr := range []string{"ann@example.com", "zoe@example.com", "mia@example.com"} {
		_, err := e.Notify(ev, ForEmail(addr), nil)
		require.NoError(t, err)
	}

	pairs, err := e.resolveWatchers(ev)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, "zoe@example.com", pairs[0].Identity.Address())
	assert.Equal(t, "mia@example.com", pairs[1].Identity.Address())
	assert.Equal(t, "ann@example.com", pairs[2].Identity.Address())
}

func TestFire_SynchronousWithoutQueue(t *testing.T) {
	t.Parallel()
	e, sender := newTestEngine(t)
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)
	ev := replyEvent("q1")

	_, err := e.Notify(ev, ForEmail("ann@example.com"), nil)
	require.NoError(t, err)

	// Delay requested but no queue configured: falls back to inline send.
	require.NoError(t, e.Fire(t.Context(), ev, FireOptions{Delay: true}))
	assert.Len(t, sender.messages(), 1)
}

func TestSendMails_TransportFailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, WithSender(failSender{}))
	e.cfg.Watch.ConfirmAnonymous = boolPtr(false)
	ev := replyEvent("q1")

	_, err := e.Notify(ev, ForEmail("ann@example.com"), nil)
	require.NoError(t, err)
	_, err = e.Notify(ev, ForEmail("mia@example.com"), nil)
	require.NoError(t, err)

	report, err := e.SendMails([]Event{ev}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Matched)
	assert.Zero(t, report.Sent)
	assert.Len(t, report.Failures, 2)
}
