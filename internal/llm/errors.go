package llm

import (
	"errors"
	"strings"
)

// Sentinel errors for extraction service failures.
var (
	// ErrFatalAPI indicates a permanent API failure (billing, auth) that
	// retrying cannot fix. The pipeline aborts the run on this error.
	ErrFatalAPI = errors.New("fatal API error")

	// ErrMalformedOutput indicates the model returned output that could not
	// be parsed after retries. Treated as data-quality, never retried by
	// the pipeline.
	ErrMalformedOutput = errors.New("malformed extraction output")
)

// fatalPatterns are substrings of provider error messages that indicate a
// permanent failure. Rate limits are deliberately absent: they are
// transient and handled by stage-level backoff.
var fatalPatterns = []string{
	"credit balance",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range fatalPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// wrapFatalError wraps permanent API failures with ErrFatalAPI so callers
// can distinguish them with errors.Is. Non-fatal errors pass through.
func wrapFatalError(err error) error {
	if err == nil {
		return nil
	}
	if isFatalAPIError(err) {
		return errors.Join(ErrFatalAPI, err)
	}
	return err
}

// IsTransient reports whether an extraction error is worth retrying:
// timeouts, rate limits, and connection failures qualify; fatal API errors
// and malformed output do not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatalAPI) || errors.Is(err, ErrMalformedOutput) {
		return false
	}
	return true
}
