// Package testutil provides test utilities and fixtures for unit tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasengine/parser"
)

// PetstoreYAML is a small contract exercising servers, path and query
// parameters, a JSON request body with a readOnly property, and an API key
// security scheme.
const PetstoreYAML = `openapi: "3.0.3"
info:
  title: Petstore
  version: "1.0.0"
servers:
  - url: /v1
x-controller: pets
components:
  securitySchemes:
    apiKey:
      type: apiKey
      in: header
      name: X-API-Key
  schemas:
    Pet:
      type: object
      required: [id, name]
      properties:
        id:
          type: integer
          format: int64
          readOnly: true
        name:
          type: string
        tag:
          type: string
paths:
  /pets:
    get:
      operationId: listPets
      parameters:
        - name: limit
          in: query
          required: true
          schema:
            type: integer
            format: int32
            maximum: 100
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Pet'
    post:
      operationId: createPet
      security:
        - apiKey: []
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Pet'
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
  /pets/{petId}:
    parameters:
      - name: petId
        in: path
        required: true
        schema:
          type: integer
    get:
      operationId: getPet
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
        "404":
          description: not found
`

// NewSimpleDocument returns the raw tree of a minimal OAS 3.0 contract with a
// single GET /pets operation.
func NewSimpleDocument() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "Test API",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/pets": map[string]any{
				"get": map[string]any{
					"operationId": "listPets",
					"responses": map[string]any{
						"200": map[string]any{"description": "ok"},
					},
				},
			},
		},
	}
}

// MustParse parses src or fails the test.
func MustParse(t testing.TB, src string) *parser.Document {
	t.Helper()
	doc, err := parser.ParseBytes([]byte(src))
	if err != nil {
		t.Fatalf("Failed to parse contract: %v", err)
	}
	return doc
}

// WriteTempYAML marshals a document to YAML and writes it to a temporary file.
// A string is written verbatim.
// The file is automatically cleaned up when the test completes (via t.TempDir).
func WriteTempYAML(t testing.TB, doc any) string {
	t.Helper()

	var data []byte
	if s, ok := doc.(string); ok {
		data = []byte(s)
	} else {
		var err error
		data, err = yaml.Marshal(doc)
		if err != nil {
			t.Fatalf("Failed to marshal document to YAML: %v", err)
		}
	}

	return writeTemp(t, "openapi.yaml", data)
}

// WriteTempJSON marshals a document to JSON and writes it to a temporary file.
// The file is automatically cleaned up when the test completes (via t.TempDir).
func WriteTempJSON(t testing.TB, doc any) string {
	t.Helper()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal document to JSON: %v", err)
	}

	return writeTemp(t, "openapi.json", data)
}

func writeTemp(t testing.TB, name string, data []byte) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		t.Fatalf("Failed to write temporary file: %v", err)
	}
	return tmpFile
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
