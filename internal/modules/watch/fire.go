package watch

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// TaskTypeFireEvent is the queue task type for delayed firings.
const TaskTypeFireEvent = "event:fire"

// FireOptions controls one firing.
type FireOptions struct {
	// Exclude lists registered user ids that must not be notified, usually
	// the actor who caused the event. Exclusion is by user reference, never
	// by email: an anonymous watch sharing the actor's address still has
	// its pair dropped only when the favorite identity is the excluded user.
	Exclude []string
	// Delay hands the firing to the task queue instead of sending inline.
	Delay bool
}

// SendFailure records one message that could not be built or sent.
type SendFailure struct {
	Recipient string `json:"recipient"`
	Err       string `json:"error"`
}

// SendReport summarizes one fan-out. Individual transport errors never
// abort the remaining sends; they are collected here and logged.
type SendReport struct {
	Matched  int           `json:"matched"`
	Sent     int           `json:"sent"`
	Failures []SendFailure `json:"failures,omitempty"`
}

// firePayload crosses the queue boundary: event kinds plus their minimal
// reconstruction arguments and the excluded user ids. A single-event
// firing is a union of one.
type firePayload struct {
	Events  []eventPayload `json:"events"`
	Exclude []string       `json:"exclude,omitempty"`
}

type eventPayload struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Fire resolves watchers for the event and sends one mail per distinct
// mailbox. With Delay set and a queue configured, the firing is serialized
// and re-executed from scratch in the worker; nothing in-process survives
// the hand-off.
func (e *Engine) Fire(ctx context.Context, ev Event, opts FireOptions) error {
	return e.FireUnion(ctx, []Event{ev}, opts)
}

// FireUnion fires several events as one: an identity watching more than
// one of them still receives exactly one mail, built by the first event.
func (e *Engine) FireUnion(ctx context.Context, evs []Event, opts FireOptions) error {
	if len(evs) == 0 {
		return nil
	}
	if opts.Delay && e.queue != nil {
		payload := firePayload{Exclude: opts.Exclude}
		for _, ev := range evs {
			raw, err := ev.Payload()
			if err != nil {
				return fmt.Errorf("serialize event %q: %w", ev.Descriptor().Kind, err)
			}
			payload.Events = append(payload.Events, eventPayload{Kind: ev.Descriptor().Kind, Payload: raw})
		}
		_, err := e.queue.Enqueue(ctx, TaskTypeFireEvent, payload)
		return err
	}
	_, err := e.SendMails(evs, opts.Exclude)
	return err
}

// SendMails runs the synchronous fan-out path: resolve each event's
// watchers, collate the sorted streams, deduplicate by email, drop
// excluded users, then build and send one mail per remaining recipient.
func (e *Engine) SendMails(evs []Event, exclude []string) (SendReport, error) {
	if len(evs) == 0 {
		return SendReport{}, nil
	}

	lists := make([][]Recipient, 0, len(evs))
	for _, ev := range evs {
		pairs, err := e.resolveWatchers(ev)
		if err != nil {
			return SendReport{}, err
		}
		lists = append(lists, uniqueByEmail(pairs))
	}
	recipients := uniqueByEmail(collate(lists...))

	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		if id == "" {
			return SendReport{}, ErrUnsavedOwner
		}
		excluded[id] = true
	}

	primary := evs[0]
	report := SendReport{Matched: len(recipients)}
	for _, r := range recipients {
		if r.Identity.Authenticated() && excluded[r.Identity.User.ID] {
			continue
		}
		addr := r.Identity.Address()
		if addr == "" {
			continue
		}
		msg, err := primary.BuildMail(r.Identity, r.Watches)
		if err != nil {
			report.Failures = append(report.Failures, SendFailure{Recipient: addr, Err: err.Error()})
			continue
		}
		if err := e.sender.Send(msg); err != nil {
			e.log.Warn("notification send failed",
				zap.String("event", primary.Descriptor().Kind),
				zap.String("recipient", addr),
				zap.Error(err))
			report.Failures = append(report.Failures, SendFailure{Recipient: addr, Err: err.Error()})
			continue
		}
		report.Sent++
	}
	return report, nil
}

// RunFireTask executes a dequeued firing inside the worker, rebuilding
// events through the registry.
func (e *Engine) RunFireTask(registry *Registry, payload json.RawMessage) (SendReport, error) {
	var fp firePayload
	if err := json.Unmarshal(payload, &fp); err != nil {
		return SendReport{}, fmt.Errorf("decode fire payload: %w", err)
	}
	evs := make([]Event, 0, len(fp.Events))
	for _, ep := range fp.Events {
		ev, err := registry.Rebuild(ep.Kind, ep.Payload)
		if err != nil {
			return SendReport{}, err
		}
		evs = append(evs, ev)
	}
	return e.SendMails(evs, fp.Exclude)
}
