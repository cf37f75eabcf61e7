package config

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/multierr"
)

// Text codes attached to configuration errors.
const (
	CodeUnreadable = "CONFIG_UNREADABLE"
	CodeMalformed  = "CONFIG_MALFORMED"
	CodeInvalid    = "CONFIG_INVALID"
)

func unreadable(path string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, fmt.Sprintf("config: read %s: %v", path, err)).
		WithTextCode(CodeUnreadable).
		WithMetadata(map[string]any{"path": path})
}

func malformed(format string, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf("config: decode %s: %v", format, err)).
		WithTextCode(CodeMalformed).
		WithMetadata(map[string]any{"format": format})
}

func invalid(errs error) error {
	problems := make([]string, 0)
	for _, err := range multierr.Errors(errs) {
		problems = append(problems, err.Error())
	}
	msg := fmt.Sprintf("config: %d problem(s): %s", len(problems), strings.Join(problems, "; "))
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(CodeInvalid).
		WithMetadata(map[string]any{"problems": problems})
}

// Code returns the text code of a configuration error, or "" for other errors.
func Code(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ""
	}
	return rich.TextCode
}
