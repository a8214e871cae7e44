package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aliskhannn/thumbnail-proxy/internal/infra/kafka/producer"
)

func TestPrewarmQueue_NilProducerIsUntypedNil(t *testing.T) {
	var p *producer.Producer

	// assert.Nil also accepts typed nils, so compare the interface directly.
	assert.True(t, prewarmQueue(p) == nil)
	assert.True(t, prewarmQueue(&producer.Producer{}) != nil)
}
