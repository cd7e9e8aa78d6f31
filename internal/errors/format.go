package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal output.
// Plain errors are reported as internal errors.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if !stderrors.As(err, &e) {
		e = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Message))
	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf("  Cause: %s\n", e.Cause.Error()))
	}
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", e.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", e.Code))

	return sb.String()
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var e *Error
	if !stderrors.As(err, &e) {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": e.Code,
		"message":    e.Message,
		"category":   string(e.Category),
		"severity":   string(e.Severity),
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	if e.Suggestion != "" {
		result["suggestion"] = e.Suggestion
	}
	for k, v := range e.Details {
		result["detail_"+k] = v
	}

	return result
}

// HTTPStatus maps an error to the status code the search server replies with.
func HTTPStatus(err error) int {
	switch GetCategory(err) {
	case CategoryValidation:
		return 400
	case CategoryIO:
		if GetCode(err) == ErrCodeIndexNotFound {
			return 404
		}
		return 500
	default:
		return 500
	}
}
