package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		log, cleanup, err := New("warn", format)
		require.NoError(t, err, format)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel), format)
		assert.True(t, log.Core().Enabled(zapcore.ErrorLevel), format)
		cleanup()
	}
}

func TestNew_Invalid(t *testing.T) {
	_, _, err := New("loud", "json")
	assert.Error(t, err)
	_, _, err = New("info", "xml")
	assert.Error(t, err)
}
