package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testEvent string

func (e testEvent) EventType() string { return string(e) }

func TestBufferCheckpointAndFlush(t *testing.T) {
	var buf Buffer
	buf.Emit(testEvent("a"))
	cp := buf.Checkpoint()
	buf.Emit(testEvent("b"))
	buf.Emit(nil)
	buf.RevertTo(cp)
	buf.Emit(testEvent("c"))

	var got []string
	buf.Flush(EmitterFunc(func(evt Event) { got = append(got, evt.EventType()) }))
	require.Equal(t, []string{"a", "c"}, got)
	require.Empty(t, buf.Events())

	buf.Emit(testEvent("d"))
	buf.Flush(nil)
	require.Zero(t, buf.Checkpoint())
}
