package events

// Buffer journals the events of an in-flight transaction. Events only reach
// the downstream emitter once the transaction commits; a rollback truncates
// the journal to a checkpoint.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface by appending to the journal.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Checkpoint returns a marker for RevertTo.
func (b *Buffer) Checkpoint() int {
	return len(b.events)
}

// RevertTo drops every event recorded after the checkpoint.
func (b *Buffer) RevertTo(checkpoint int) {
	if checkpoint < 0 {
		checkpoint = 0
	}
	if checkpoint < len(b.events) {
		clear(b.events[checkpoint:])
		b.events = b.events[:checkpoint]
	}
}

// Events returns the journalled events in emission order.
func (b *Buffer) Events() []Event {
	return append([]Event(nil), b.events...)
}

// Flush forwards the journal to dst and empties it.
func (b *Buffer) Flush(dst Emitter) {
	if dst != nil {
		for _, evt := range b.events {
			dst.Emit(evt)
		}
	}
	b.Reset()
}

// Reset discards the journal.
func (b *Buffer) Reset() {
	clear(b.events)
	b.events = b.events[:0]
}
