package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferLoggerCaptures(t *testing.T) {
	buf := NewBufferLogger()

	buf.Debug("probing %s", "gpu01:22")
	buf.Info("round complete in %dms", 42)
	buf.Warn("host %s excluded", "bad:22")
	buf.Error("dial failed")

	require.Len(t, buf.Messages, 4)
	assert.Equal(t, "debug", buf.Messages[0].Level)
	assert.Equal(t, "probing gpu01:22", buf.Messages[0].Message)
	assert.Equal(t, "host bad:22 excluded", buf.Messages[2].Message)
}

func TestBufferLoggerHasLevel(t *testing.T) {
	buf := NewBufferLogger()
	assert.False(t, buf.HasLevel("error"))

	buf.Error("boom")
	assert.True(t, buf.HasLevel("error"))
	assert.False(t, buf.HasLevel("warn"))
}

func TestBufferLoggerClear(t *testing.T) {
	buf := NewBufferLogger()
	buf.Info("one")
	buf.Clear()
	assert.Empty(t, buf.Messages)
}

func TestNoopDiscards(t *testing.T) {
	l := Noop()
	// Must not panic or print; nothing observable to assert beyond that.
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("hello")

	require.Len(t, buf.Messages, 1)
	assert.Equal(t, "hello", buf.Messages[0].Message)
}
