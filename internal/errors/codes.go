// Package errors provides structured error handling for sarsift.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Message parse and IO errors
//   - 3XX: Extraction and collaborator errors
//   - 4XX: Validation errors (edit batches, search rules)
//   - 5XX: Internal and persistence errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryParse indicates message normalization and IO errors.
	CategoryParse Category = "PARSE"
	// CategoryExtraction indicates body-mention extraction and collaborator errors.
	CategoryExtraction Category = "EXTRACTION"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error, the job must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but processing can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Parse errors (200-299): per-message, recoverable by design.
	ErrCodeMessageParse   = "ERR_201_MESSAGE_PARSE"
	ErrCodeMessageEmpty   = "ERR_202_MESSAGE_EMPTY"
	ErrCodeSourceRead     = "ERR_203_SOURCE_READ"
	ErrCodeArtifactLocked = "ERR_204_ARTIFACT_LOCKED"

	// Extraction errors (300-399): per-message, recoverable by design.
	ErrCodeExtractorUnavailable = "ERR_301_EXTRACTOR_UNAVAILABLE"
	ErrCodeRecognizerFailed     = "ERR_302_RECOGNIZER_FAILED"

	// Validation errors (400-499): whole request rejected, state unchanged.
	ErrCodeUnknownJob        = "ERR_401_UNKNOWN_JOB"
	ErrCodeUnknownCluster    = "ERR_402_UNKNOWN_CLUSTER"
	ErrCodeDuplicateMember   = "ERR_403_DUPLICATE_MEMBER"
	ErrCodeUnknownIdentifier = "ERR_404_UNKNOWN_IDENTIFIER"
	ErrCodeEmptyRule         = "ERR_405_EMPTY_RULE"
	ErrCodeJobNotReady       = "ERR_406_JOB_NOT_READY"
	ErrCodeEmptyLabel        = "ERR_407_EMPTY_LABEL"
	ErrCodeEmptyCreate       = "ERR_408_EMPTY_CREATE"

	// Internal errors (500-599)
	ErrCodePersistence = "ERR_501_PERSISTENCE"
	ErrCodeInternal    = "ERR_502_INTERNAL"
)

// categoryFromCode derives the category from the numeric range in the code.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryParse
	case '3':
		return CategoryExtraction
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the category.
// Parse and extraction failures are recoverable per-message; persistence
// and internal failures are fatal to the job.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryParse, CategoryExtraction:
		return SeverityWarning
	case CategoryValidation:
		return SeverityError
	case CategoryInternal:
		return SeverityFatal
	default:
		return SeverityError
	}
}
