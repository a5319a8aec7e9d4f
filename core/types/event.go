package types

// Event represents a typed record emitted during state transitions. Attributes
// carry settlement amounts and addresses in canonical string form so
// downstream consumers never need the engine packages to decode them.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
