package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDKErrorMessageNamesEntity(t *testing.T) {
	err := NotFound("resolve_entity", "web99")
	assert.Contains(t, err.Error(), "resolve_entity")
	assert.Contains(t, err.Error(), "web99")
}

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "not found", err: NotFound("get_entity", "x"), sentinel: ErrNotFound},
		{name: "ambiguous", err: Ambiguous("resolve_entity", "portal"), sentinel: ErrAmbiguousDisplayName},
		{name: "invalid column", err: InvalidColumn("compile_fl", "bogus"), sentinel: ErrInvalidColumn},
		{name: "invalid condition", err: InvalidCondition("compile_fq", "like"), sentinel: ErrInvalidCondition},
		{name: "invalid sort direction", err: InvalidSortDirection("compile_sort", "up"), sentinel: ErrInvalidSortDirection},
		{name: "fetch failed", err: FetchFailed("fetch_entities", "boom"), sentinel: ErrFetchFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.err, tc.sentinel)
		})
	}
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryableError(FetchFailed("fetch_entities", "boom")))
	assert.False(t, IsRetryableError(NotFound("get_entity", "x")))
	assert.False(t, IsRetryableError(InvalidColumn("compile_fl", "x")))
	assert.False(t, IsRetryableError(stderrors.New("plain")))
}

func TestUnwrapExposesUnderlyingError(t *testing.T) {
	inner := stderrors.New("inner cause")
	err := NewSDKError(ErrorTypeAPI, "probe_entity", "41", inner)
	require.ErrorIs(t, err, inner)

	var sdkErr *SDKError
	require.True(t, stderrors.As(err, &sdkErr))
	assert.Equal(t, "41", sdkErr.Entity)
}
