package logger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/catalogsync/pkg/logger"
)

func TestNew_ProductionWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "production", "")

	log.Debug("hidden")
	log.Info("synced", "count", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"synced"`)
	assert.Contains(t, out, `"count":3`)
}

func TestNew_LevelOverride(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "local", "warn")

	log.Info("quiet")
	log.Warn("loud")

	assert.False(t, strings.Contains(buf.String(), "quiet"))
	assert.True(t, strings.Contains(buf.String(), "loud"))
}

func TestWithCtx(t *testing.T) {
	assert.Same(t, logger.L, logger.WithCtx(context.Background()))

	custom := logger.Discard()
	ctx := logger.InjectLogger(context.Background(), custom)
	assert.Same(t, custom, logger.WithCtx(ctx))
}
