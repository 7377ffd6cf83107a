package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCacheLayout(t *testing.T) {
	assert.NoError(t, checkCacheLayout("none", "redis"))
	assert.NoError(t, checkCacheLayout("redis", "redis"))
	assert.NoError(t, checkCacheLayout("memory", "memory"))

	err := checkCacheLayout("memory", "redis")
	assert.ErrorContains(t, err, "QUEUE_DRIVER=memory")
}
