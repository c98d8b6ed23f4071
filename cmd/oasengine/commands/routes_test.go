package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRoutes_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := HandleRoutes([]string{"--format", "json", "--log-level", "error", writeContract(t, libraryContract)}, &buf)
	require.NoError(t, err)

	var routes []RouteInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &routes))
	require.Len(t, routes, 3)

	byID := make(map[string]RouteInfo, len(routes))
	for _, r := range routes {
		byID[r.OperationID] = r
	}
	assert.Equal(t, "GET", byID["listBooks"].Method)
	assert.Equal(t, []string{"query:author"}, byID["listBooks"].Parameters)
	assert.Equal(t, "/books/{isbn}", byID["getBook"].Path)
	assert.Equal(t, []string{"token"}, byID["addBook"].Security)
	assert.Equal(t, [][]string{{"librarian"}, {"admin"}}, byID["addBook"].Roles)
}

func TestHandleRoutes_MethodFilter(t *testing.T) {
	var buf bytes.Buffer
	err := HandleRoutes([]string{"--method", "post", "--format", "json", "--log-level", "error", writeContract(t, libraryContract)}, &buf)
	require.NoError(t, err)

	var routes []RouteInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "addBook", routes[0].OperationID)
}

func TestHandleRoutes_Text(t *testing.T) {
	var buf bytes.Buffer
	err := HandleRoutes([]string{"--log-level", "error", writeContract(t, libraryContract)}, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "METHOD"))

	var post string
	for _, l := range lines {
		if strings.HasPrefix(l, "POST") {
			post = l
		}
	}
	assert.Contains(t, post, "addBook")
	assert.Contains(t, post, "token")
	assert.Contains(t, post, "librarian|admin")
}

func TestHandleRoutes_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, HandleRoutes(nil, &buf))
	assert.Error(t, HandleRoutes([]string{"/nonexistent/library.yaml"}, &buf))
	assert.Error(t, HandleRoutes([]string{"--log-format", "xml", writeContract(t, libraryContract)}, &buf))
}

func TestFormatRoles(t *testing.T) {
	assert.Equal(t, "", formatRoles(nil))
	assert.Equal(t, "a+b|c", formatRoles([][]string{{"a", "b"}, {"c"}}))
}
