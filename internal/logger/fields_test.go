package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  path  ", Value: "  /api/profile/me  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	require.Len(t, fields, 1)
	assert.Equal(t, "path", fields[0].Key)
	assert.Equal(t, "/api/profile/me", fields[0].String)

	assert.Empty(t, StringFields())
}

func TestWithFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithFields(zap.New(core), zap.String("foo", "bar")).Info("test log")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "bar", entries[0].ContextMap()["foo"])

	fallback := WithFields(nil, zap.String("baz", "qux"))
	require.NotNil(t, fallback)
	assert.NotPanics(t, func() { fallback.Info("another log") })
}

func TestRequestFields(t *testing.T) {
	fields := RequestFields("GET", " /api/profile/skills ")
	require.Len(t, fields, 2)

	assert.Equal(t, FieldMethod, fields[0].Key)
	assert.Equal(t, "GET", fields[0].String)
	assert.Equal(t, FieldPath, fields[1].Key)
	assert.Equal(t, "/api/profile/skills", fields[1].String)

	assert.Empty(t, RequestFields("", ""))
}

func TestWithAccount(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	WithAccount(logger, "ada@example.com").Info("test log")
	WithAccount(logger, "  ").Info("anonymous log")

	entries := observed.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "ada@example.com", entries[0].ContextMap()[FieldEmail])
	assert.NotContains(t, entries[1].ContextMap(), FieldEmail)

	assert.NotPanics(t, func() { WithAccount(nil, "ada@example.com").Info("another log") })
}
