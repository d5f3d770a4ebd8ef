package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendMessageFormatsKindAndMessage(t *testing.T) {
	err := Routing("highlight rule", errors.New("unknown layer id"))
	assert.Equal(t, "Backend error: routing: unknown layer id", BackendMessage(err))
}

func TestBackendMessageUnwrapsThroughFmtErrorf(t *testing.T) {
	base := Geometry("decode", errors.New("invalid ring"))
	wrapped := fmt.Errorf("query layer roads: %w", base)
	assert.Equal(t, "Backend error: geometry: invalid ring", BackendMessage(wrapped))
}

func TestBackendMessageDefaultsToResourceForUnclassified(t *testing.T) {
	assert.Equal(t, "Backend error: resource: disk full", BackendMessage(errors.New("disk full")))
}
