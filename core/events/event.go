package events

// Event represents a structured state change emitted by the hub or the
// reserve pool.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. indexers, metrics
// recorders).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into the engines so event emission stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Tee fans every event out to all supplied emitters. Nil entries are skipped.
func Tee(emitters ...Emitter) Emitter {
	filtered := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return teeEmitter(filtered)
}

type teeEmitter []Emitter

func (t teeEmitter) Emit(evt Event) {
	for _, e := range t {
		e.Emit(evt)
	}
}
