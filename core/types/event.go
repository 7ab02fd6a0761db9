package types

// Event represents a typed event emitted during state transitions. Address is
// the contract that emitted it.
type Event struct {
	Type       string            `json:"type"`
	Address    Address           `json:"address"`
	Attributes map[string]string `json:"attributes"`
}

// EventType implements events.Event.
func (e Event) EventType() string {
	return e.Type
}
