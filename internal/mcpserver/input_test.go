package mcpserver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zooContract is shared by the tool tests.
const zooContract = `openapi: 3.0.3
info:
  title: Zoo
  version: "1.0"
servers:
  - url: https://zoo.example.com/v1
paths:
  /animals:
    get:
      operationId: listAnimals
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
            maximum: 50
      responses:
        "200":
          description: ok
    post:
      operationId: addAnimal
      security:
        - keeper: []
      x-roles: [keeper]
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name:
                  type: string
      responses:
        "201":
          description: created
  /animals/{id}:
    get:
      operationId: getAnimal
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: integer
      responses:
        "200":
          description: ok
components:
  securitySchemes:
    keeper:
      type: apiKey
      in: header
      name: X-Keeper
`

func writeContract(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "zoo.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestContractInput_ResolveFile(t *testing.T) {
	engineCache.reset()
	eng, err := contractInput{File: writeContract(t, zooContract)}.resolve()
	require.NoError(t, err)
	assert.Len(t, eng.Operations(), 3)
	assert.Equal(t, "Zoo", eng.Document().OpenAPI.Info.Title)
}

func TestContractInput_ResolveContent(t *testing.T) {
	engineCache.reset()
	eng, err := contractInput{Content: zooContract}.resolve()
	require.NoError(t, err)
	assert.Equal(t, "content", eng.Document().SourcePath)
}

func TestContractInput_ResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   contractInput
		wantMsg string
	}{
		{"none provided", contractInput{}, "exactly one of file or content must be provided"},
		{"both provided", contractInput{File: "zoo.yaml", Content: "openapi: 3.0.3"}, "exactly one of file or content must be provided"},
		{"missing file", contractInput{File: "/nonexistent/zoo.yaml"}, ""},
		{"unsupported version", contractInput{Content: "openapi: 3.2.0\ninfo: {title: x, version: '1'}\npaths: {}\n"}, "3.2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engineCache.reset()
			_, err := tt.input.resolve()
			require.Error(t, err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestContractInput_InlineSizeLimit(t *testing.T) {
	engineCache.reset()
	saved := cfg.MaxInlineSize
	cfg.MaxInlineSize = 16
	t.Cleanup(func() { cfg.MaxInlineSize = saved })

	_, err := contractInput{Content: zooContract}.resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OASENGINE_MAX_INLINE_SIZE")
}

func TestEngineCache_HitOnSameFile(t *testing.T) {
	engineCache.reset()
	input := contractInput{File: writeContract(t, zooContract)}

	first, err := input.resolve()
	require.NoError(t, err)
	assert.Equal(t, 1, engineCache.size())

	second, err := input.resolve()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEngineCache_MissOnModifiedFile(t *testing.T) {
	engineCache.reset()
	p := writeContract(t, zooContract)
	input := contractInput{File: p}

	first, err := input.resolve()
	require.NoError(t, err)

	// Drop the last operation's path to change the compiled result.
	require.NoError(t, os.WriteFile(p, []byte(`openapi: 3.0.3
info:
  title: Zoo v2
  version: "2.0"
paths: {}
`), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(p, future, future))

	second, err := input.resolve()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "Zoo v2", second.Document().OpenAPI.Info.Title)
	assert.Empty(t, second.Operations())
}

func TestEngineCache_ContentHash(t *testing.T) {
	engineCache.reset()
	first, err := contractInput{Content: zooContract}.resolve()
	require.NoError(t, err)
	second, err := contractInput{Content: zooContract}.resolve()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEngineCache_Disabled(t *testing.T) {
	engineCache.reset()
	saved := cfg.CacheEnabled
	cfg.CacheEnabled = false
	t.Cleanup(func() { cfg.CacheEnabled = saved })

	first, err := contractInput{Content: zooContract}.resolve()
	require.NoError(t, err)
	second, err := contractInput{Content: zooContract}.resolve()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Zero(t, engineCache.size())
}

func TestEngineCache_LRUEviction(t *testing.T) {
	engineCache.reset()

	var firstKey string
	for i := range engineCache.maxSize + 1 {
		in := contractInput{Content: "openapi: 3.0.3\ninfo:\n  title: \"Zoo " + string(rune('A'+i)) + "\"\n  version: \"1.0\"\npaths: {}\n"}
		if i == 0 {
			firstKey = in.cacheKey()
		}
		_, err := in.resolve()
		require.NoError(t, err)
	}

	assert.Equal(t, engineCache.maxSize, engineCache.size())
	assert.Nil(t, engineCache.get(firstKey), "expected oldest entry to be evicted")
}

func TestEngineCache_Expiry(t *testing.T) {
	engineCache.reset()
	eng, err := contractInput{Content: zooContract}.resolve()
	require.NoError(t, err)

	engineCache.put("short", eng, -time.Second)
	assert.Nil(t, engineCache.get("short"))

	engineCache.put("stale", eng, -time.Second)
	engineCache.sweep()
	assert.Equal(t, 1, engineCache.size())
}
