package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrConfig, "config file missing", "Run 'gpuwatch init' to create one")

	assert.Equal(t, ErrConfig, err.Code)
	assert.Equal(t, "config file missing", err.Message)
	assert.Nil(t, err.Cause)
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrSSH, "Can't reach 'gpu01'", "Check the host is online")
	msg := err.Error()

	assert.True(t, strings.HasPrefix(msg, "✗ Can't reach 'gpu01'"))
	assert.Contains(t, msg, "Check the host is online")
}

func TestWrapIncludesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := Wrap(cause, "SSH handshake failed")

	assert.Equal(t, ErrSSH, err.Code)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestWrapWithCode(t *testing.T) {
	cause := fmt.Errorf("bad field count")
	err := WrapWithCode(cause, ErrParse, "Malformed nvidia-smi line", "")

	require.Equal(t, ErrParse, err.Code)
	assert.True(t, IsCode(err, ErrParse))
	assert.False(t, IsCode(err, ErrSSH))
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"nil error", nil, ErrConfig, false},
		{"plain error", fmt.Errorf("boom"), ErrConfig, false},
		{"matching code", New(ErrExec, "m", "s"), ErrExec, true},
		{"wrapped structured error", fmt.Errorf("outer: %w", New(ErrSSH, "m", "s")), ErrSSH, true},
		{"mismatched code", New(ErrExec, "m", "s"), ErrConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.err, tt.code))
		})
	}
}
