package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	base := errors.New("boom")

	t.Run("with field", func(t *testing.T) {
		err := NewValidationError("bus", "redis_addr", base)
		assert.Equal(t, "bus: field 'redis_addr': boom", err.Error())
		assert.ErrorIs(t, err, base)
	})

	t.Run("without field", func(t *testing.T) {
		err := NewValidationError("worker", "", base)
		assert.Equal(t, "worker: boom", err.Error())
	})
}

func TestLoadError(t *testing.T) {
	err := NewLoadError("metismedia.yaml", ErrConfigNotFound)
	assert.Contains(t, err.Error(), "metismedia.yaml")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}
