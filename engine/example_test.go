package engine_test

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"

	"github.com/goccy/go-json"

	"github.com/erraggy/oasengine/engine"
	"github.com/erraggy/oasengine/parser"
)

const greeterYAML = `openapi: "3.1.0"
info: {title: greeter, version: "1"}
paths:
  /hello/{name}:
    get:
      operationId: hello
      parameters:
        - name: name
          in: path
          required: true
          schema: {type: string, maxLength: 10}
      responses:
        "200":
          description: greeting
          content:
            text/plain:
              schema: {type: string}
`

func Example() {
	doc, err := parser.ParseBytes([]byte(greeterYAML))
	if err != nil {
		log.Fatal(err)
	}
	eng, err := engine.Compile(doc,
		engine.WithHandler("hello", engine.ValueHandler(func(ctx *engine.Context) (any, error) {
			return "Hello, " + ctx.Params.Path["name"].(string) + "!", nil
		})),
	)
	if err != nil {
		log.Fatal(err)
	}

	rec := httptest.NewRecorder()
	eng.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello/gopher", nil))
	body, _ := io.ReadAll(rec.Body)
	fmt.Println(rec.Code, string(body))

	rec = httptest.NewRecorder()
	eng.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello/averyverylongname", nil))
	var eb engine.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&eb); err != nil {
		log.Fatal(err)
	}
	fmt.Println(rec.Code, eb.Message)
	for _, issue := range eb.Errors {
		fmt.Printf("%s %s: %s\n", issue.Location.In, issue.Location.Name, issue.Message)
	}
	// Output:
	// 200 Hello, gopher!
	// 400 Validation errors
	// path name: string length 17 exceeds maximum 10
}

func ExampleEngine_Middleware() {
	doc, err := parser.ParseBytes([]byte(greeterYAML))
	if err != nil {
		log.Fatal(err)
	}
	eng, err := engine.Compile(doc,
		engine.WithHandler("hello", engine.ValueHandler(func(*engine.Context) (any, error) {
			return "hi", nil
		})),
	)
	if err != nil {
		log.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	handler := eng.Middleware(mux)

	for _, target := range []string{"/hello/you", "/health"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		fmt.Println(target, rec.Code, rec.Body.String())
	}
	// Output:
	// /hello/you 200 hi
	// /health 200 ok
}
