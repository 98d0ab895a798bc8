package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "teamreg/pkg/domain-errors"
)

func TestParseEndpointClass(t *testing.T) {
	c, err := ParseEndpointClass("submit")
	require.NoError(t, err)
	assert.Equal(t, ClassSubmit, c)

	_, err = ParseEndpointClass("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseEndpointClass("write")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRateLimitKeyEscapesDelimiters(t *testing.T) {
	key := NewRateLimitKey(KeyPrefixIP, "::1", ClassLookup)
	assert.Equal(t, "ratelimit:ip:__1:lookup", key.String())
}

func TestDefaultLimitsCoverEveryClass(t *testing.T) {
	limits := DefaultLimits()
	for _, c := range []EndpointClass{ClassSubmit, ClassLookup, ClassAdmin} {
		l, ok := limits[c]
		require.True(t, ok, c)
		assert.Positive(t, l.Requests)
		assert.Positive(t, l.Window)
	}
}
