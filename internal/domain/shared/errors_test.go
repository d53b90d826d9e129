package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	missing := NewDomainError("NOT_FOUND", "journal record 42 not found")

	assert.ErrorIs(t, missing, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("load: %w", missing), ErrNotFound)
	assert.NotErrorIs(t, NewDomainError("REFERENCE_NOT_FOUND", "no unit kg"), ErrNotFound)
	assert.NotErrorIs(t, errors.New("NOT_FOUND"), ErrNotFound)

	var nilTarget *DomainError
	assert.False(t, missing.Is(nilTarget))
}
