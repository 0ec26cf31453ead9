package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiftError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("database is locked")

	// When: wrapping with SiftError
	siftErr := Wrap(ErrCodePersistence, originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, siftErr)
	assert.Equal(t, originalErr, errors.Unwrap(siftErr))
	assert.True(t, errors.Is(siftErr, originalErr))
}

func TestSiftError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "parse error",
			code:     ErrCodeMessageParse,
			message:  "message 7 failed normalization",
			expected: "[ERR_201_MESSAGE_PARSE] message 7 failed normalization",
		},
		{
			name:     "validation error",
			code:     ErrCodeDuplicateMember,
			message:  "identifier in two clusters",
			expected: "[ERR_403_DUPLICATE_MEMBER] identifier in two clusters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSiftError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeUnknownCluster, "cluster abc not found", nil)
	err2 := New(ErrCodeUnknownCluster, "cluster def not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestSiftError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeUnknownCluster, "cluster not found", nil)
	err2 := New(ErrCodeUnknownJob, "job not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestSiftError_WithDetail_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeDuplicateMember, "identifier in two clusters", nil)

	// When: adding details
	err.WithDetail("job_id", "job-1").WithDetail("identifier", "alice@co.com")

	// Then: details are retrievable
	assert.Equal(t, "job-1", err.Details["job_id"])
	assert.Equal(t, "alice@co.com", err.Details["identifier"])
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeMessageParse, CategoryParse},
		{ErrCodeRecognizerFailed, CategoryExtraction},
		{ErrCodeJobNotReady, CategoryValidation},
		{ErrCodePersistence, CategoryInternal},
		{"garbage", CategoryInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.category, categoryFromCode(tt.code), tt.code)
	}
}

func TestSeverityTaxonomy(t *testing.T) {
	// Parse and extraction errors are recoverable-by-design.
	assert.Equal(t, SeverityWarning, severityFromCode(ErrCodeMessageParse))
	assert.Equal(t, SeverityWarning, severityFromCode(ErrCodeRecognizerFailed))

	// Persistence failures abort the job.
	assert.Equal(t, SeverityFatal, severityFromCode(ErrCodePersistence))

	// Validation errors reject the request without touching state.
	assert.True(t, IsValidation(New(ErrCodeUnknownCluster, "no such cluster", nil)))
	assert.False(t, IsValidation(New(ErrCodeMessageParse, "bad message", nil)))
	assert.False(t, IsValidation(errors.New("plain")))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeJobNotReady, CodeOf(New(ErrCodeJobNotReady, "still running", nil)))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}
