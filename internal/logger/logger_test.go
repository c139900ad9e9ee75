package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	local, err := New("betledger", "local")
	require.NoError(t, err)
	assert.True(t, local.Core().Enabled(zapcore.DebugLevel))

	prod, err := New("betledger", "prod")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))
}

func TestSender(t *testing.T) {
	fields := Sender(42, "command_stats")
	require.Len(t, fields, 2)
	assert.Equal(t, "user_id", fields[0].Key)
	assert.Equal(t, int64(42), fields[0].Integer)
	assert.Equal(t, "command_stats", fields[1].String)
}
