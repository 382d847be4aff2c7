package watch

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidings-space/core/internal/models"
	pkgmail "github.com/tidings-space/core/internal/pkg/mail"
)

// Descriptor declares an event kind: its watch scope and the filter names
// calls against it may use. A watch row matches an event when their kinds
// are equal and the watch's scope and filters do not contradict the firing.
type Descriptor struct {
	Kind        string
	ContentType string
	Description string // used in activation emails ("new replies to ...")
	FilterNames []string
}

func (d Descriptor) allowsFilter(name string) bool {
	for _, n := range d.FilterNames {
		if n == name {
			return true
		}
	}
	return false
}

// Event is a single occurrence to fan out. Concrete kinds live next to the
// content they describe (forum, kb) and are registered with a Registry so
// the queue worker can rebuild them from their serialized payload.
type Event interface {
	Descriptor() Descriptor
	// SubjectID narrows the firing to one content entity; nil means the
	// event is not subject-scoped.
	SubjectID() *string
	// FilterValues are the concrete filter values of this firing. Keys must
	// be declared in the Descriptor.
	FilterValues() map[string]any
	// BuildMail produces the one message sent to a matched recipient.
	BuildMail(recipient Identity, watches []models.WatchModel) (pkgmail.Message, error)
	// Payload serializes the minimal reconstruction arguments for the queue.
	Payload() (json.RawMessage, error)
}

// RebuildFunc reconstructs an event from its queue payload.
type RebuildFunc func(payload json.RawMessage) (Event, error)

// Registry maps event kinds to rebuild functions. It is built explicitly at
// process start and handed to the worker; there is no ambient global table.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]RebuildFunc
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]RebuildFunc)}
}

// Register adds a rebuild function for an event kind. Registering the same
// kind twice panics: it is a wiring bug, not a runtime condition.
func (r *Registry) Register(kind string, fn RebuildFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.builders[kind]; dup {
		panic(fmt.Sprintf("watch: event kind %q registered twice", kind))
	}
	r.builders[kind] = fn
}

// Rebuild reconstructs an event of the given kind from its payload.
func (r *Registry) Rebuild(kind string, payload json.RawMessage) (Event, error) {
	r.mu.RLock()
	fn, ok := r.builders[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	return fn(payload)
}
