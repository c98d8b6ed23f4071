package oaserrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	t.Run("Error message with all fields", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := &ParseError{
			Path:    "/path/to/file.yaml",
			Line:    42,
			Message: "invalid syntax",
			Cause:   cause,
		}
		if err.Error() != "parse error in /path/to/file.yaml at line 42: invalid syntax: underlying error" {
			t.Errorf("unexpected error message: %s", err.Error())
		}
	})

	t.Run("Error message with minimal fields", func(t *testing.T) {
		err := &ParseError{}
		if err.Error() != "parse error" {
			t.Errorf("unexpected error message: %s", err.Error())
		}
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("underlying")
		err := &ParseError{Cause: cause}
		//nolint:errorlint // testing pointer identity
		if unwrapped := err.Unwrap(); unwrapped != cause {
			t.Error("Unwrap should return cause")
		}
	})
}

func TestReferenceError(t *testing.T) {
	t.Run("circular", func(t *testing.T) {
		err := &ReferenceError{Ref: "#/components/schemas/Node", IsCircular: true}
		assert.Equal(t, "circular reference: #/components/schemas/Node", err.Error())
		assert.ErrorIs(t, err, ErrReference)
		assert.ErrorIs(t, err, ErrCircularReference)
	})

	t.Run("not circular", func(t *testing.T) {
		err := &ReferenceError{Ref: "#/missing", Message: "not found"}
		assert.Equal(t, "reference error: #/missing: not found", err.Error())
		assert.NotErrorIs(t, err, ErrCircularReference)
	})
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Option: "x-roles", Value: 42, Message: "must be an array"}
	assert.Equal(t, "configuration error for x-roles (value: 42): must be an array", err.Error())
	assert.ErrorIs(t, err, ErrConfig)

	wrapped := fmt.Errorf("compile: %w", err)
	var cfgErr *ConfigError
	require.ErrorAs(t, wrapped, &cfgErr)
	assert.Equal(t, "x-roles", cfgErr.Option)
}

func TestResourceLimitError(t *testing.T) {
	err := &ResourceLimitError{ResourceType: "body_size", Limit: 10, Actual: 11}
	assert.Equal(t, "resource limit exceeded: body_size (limit: 10, actual: 11)", err.Error())
	assert.ErrorIs(t, err, ErrResourceLimit)
}

func TestHTTPError(t *testing.T) {
	err := NewHTTPError(http.StatusMethodNotAllowed, "Method DELETE not allowed")
	assert.Equal(t, "http 405: Method DELETE not allowed", err.Error())
	assert.ErrorIs(t, err, ErrHTTP)

	status, ok := StatusOf(fmt.Errorf("wrapped: %w", err))
	assert.True(t, ok)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestValidationError(t *testing.T) {
	t.Run("single issue", func(t *testing.T) {
		err := NewValidationError(Issue{
			Message:  `Missing required query parameter "limit"`,
			Location: &Location{In: "query", Name: "limit"},
		})
		assert.Equal(t, `Validation errors: Missing required query parameter "limit" (query limit)`, err.Error())
		assert.Equal(t, http.StatusBadRequest, err.StatusCode())
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("multiple issues", func(t *testing.T) {
		err := NewValidationError(Issue{Message: "a"}, Issue{Message: "b"})
		assert.Equal(t, "Validation errors (2 issues): a", err.Error())
	})

	t.Run("zero status defaults to 400", func(t *testing.T) {
		err := &ValidationError{}
		status, ok := StatusOf(err)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		ok     bool
	}{
		{"nil", nil, 0, false},
		{"plain", errors.New("boom"), 0, false},
		{"config", &ConfigError{}, 0, false},
		{"http", NewHTTPError(401, "nope"), 401, true},
		{"validation response", &ValidationError{Status: 500}, 500, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := StatusOf(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestLocationString(t *testing.T) {
	var nilLoc *Location
	assert.Equal(t, "", nilLoc.String())
	assert.Equal(t, "request body /name", (&Location{In: "request", Name: "body", Path: "/name"}).String())
}
