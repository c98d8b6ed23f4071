package mcpserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/oasengine/engine"
)

type listRoutesInput struct {
	Contract contractInput `json:"contract,omitempty" jsonschema:"The contract to compile"`
	Method   string        `json:"method,omitempty" jsonschema:"Only routes with this HTTP method"`
	Path     string        `json:"path,omitempty"   jsonschema:"Glob over path templates, e.g. /pets/*"`
	Offset   int           `json:"offset,omitempty" jsonschema:"Skip this many routes"`
	Limit    int           `json:"limit,omitempty"  jsonschema:"Maximum routes to return"`
}

type routeSummary struct {
	Method      string     `json:"method"`
	Path        string     `json:"path"`
	OperationID string     `json:"operation_id,omitempty"`
	Controller  string     `json:"controller,omitempty"`
	Security    []string   `json:"security,omitempty"`
	Roles       [][]string `json:"roles,omitempty"`
	Parameters  []string   `json:"parameters,omitempty"`
}

type listRoutesOutput struct {
	Total    int            `json:"total"`
	Returned int            `json:"returned"`
	Routes   []routeSummary `json:"routes,omitempty"`
}

func handleListRoutes(_ context.Context, _ *mcp.CallToolRequest, input listRoutesInput) (*mcp.CallToolResult, listRoutesOutput, error) {
	if err := validateGlobPattern(input.Path); err != nil {
		return errResult(err), listRoutesOutput{}, nil
	}
	eng, err := input.Contract.resolve()
	if err != nil {
		return errResult(err), listRoutesOutput{}, nil
	}

	ops := eng.Operations()
	matched := makeSlice[routeSummary](len(ops))
	for _, op := range ops {
		if input.Method != "" && !strings.EqualFold(op.Method, input.Method) {
			continue
		}
		if input.Path != "" {
			if ok, _ := path.Match(input.Path, op.Path); !ok {
				continue
			}
		}
		params := op.Parameters()
		if len(params) == 0 {
			params = nil
		}
		matched = append(matched, routeSummary{
			Method:      strings.ToUpper(op.Method),
			Path:        op.Path,
			OperationID: op.OperationID,
			Controller:  op.Controller,
			Security:    op.SecuritySchemes(),
			Roles:       op.Roles(),
			Parameters:  params,
		})
	}

	page := paginate(matched, input.Offset, input.Limit)
	return nil, listRoutesOutput{Total: len(matched), Returned: len(page), Routes: page}, nil
}

type resolveRouteInput struct {
	Contract contractInput `json:"contract,omitempty" jsonschema:"The contract to compile"`
	Method   string        `json:"method"           jsonschema:"HTTP method"`
	URL      string        `json:"url"              jsonschema:"Request URL or path, e.g. https://api.example.com/v1/pets/7"`
}

type resolveRouteOutput struct {
	Matched bool         `json:"matched"`
	Route   *routeOutput `json:"route,omitempty"`
	// Status is set when routing itself failed, e.g. 405.
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Allow   string `json:"allow,omitempty"`
}

func handleResolveRoute(ctx context.Context, _ *mcp.CallToolRequest, input resolveRouteInput) (*mcp.CallToolResult, resolveRouteOutput, error) {
	eng, err := input.Contract.resolve()
	if err != nil {
		return errResult(err), resolveRouteOutput{}, nil
	}
	req, err := buildRequest(ctx, input.Method, input.URL, nil, "")
	if err != nil {
		return errResult(err), resolveRouteOutput{}, nil
	}
	req = req.WithContext(withSimulation(req.Context(), simulation{RouteOnly: true}))

	res, err := eng.Run(req)
	if err != nil {
		return errResult(err), resolveRouteOutput{}, nil
	}
	if res == nil {
		return nil, resolveRouteOutput{Message: "no operation matches the request"}, nil
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return errResult(err), resolveRouteOutput{}, nil
	}
	if res.Status != http.StatusOK {
		var eb engine.ErrorBody
		_ = json.Unmarshal(data, &eb)
		return nil, resolveRouteOutput{Status: res.Status, Message: eb.Message, Allow: res.Header.Get("Allow")}, nil
	}
	var route routeOutput
	if err := json.Unmarshal(data, &route); err != nil {
		return errResult(err), resolveRouteOutput{}, nil
	}
	route.Method = strings.ToUpper(route.Method)
	return nil, resolveRouteOutput{Matched: true, Route: &route}, nil
}

type simulateInput struct {
	Contract contractInput     `json:"contract,omitempty" jsonschema:"The contract to compile"`
	Method   string            `json:"method"            jsonschema:"HTTP method"`
	URL      string            `json:"url"               jsonschema:"Request URL or path including the query string"`
	Headers  map[string]string `json:"headers,omitempty" jsonschema:"Request headers, including Content-Type and credentials"`
	Body     string            `json:"body,omitempty"    jsonschema:"Raw request body"`
	Roles    []string          `json:"roles,omitempty"   jsonschema:"Roles granted to any credential the request carries"`
	Scopes   []string          `json:"scopes,omitempty"  jsonschema:"Scopes granted to any credential the request carries"`
}

type simulateOutput struct {
	Handled bool              `json:"handled"`
	Status  int               `json:"status,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	// Body is the decoded JSON response: the echo of the decoded request on
	// success, the error body otherwise.
	Body any `json:"body,omitempty"`
}

func handleSimulateRequest(ctx context.Context, _ *mcp.CallToolRequest, input simulateInput) (*mcp.CallToolResult, simulateOutput, error) {
	eng, err := input.Contract.resolve()
	if err != nil {
		return errResult(err), simulateOutput{}, nil
	}
	req, err := buildRequest(ctx, input.Method, input.URL, input.Headers, input.Body)
	if err != nil {
		return errResult(err), simulateOutput{}, nil
	}
	req = req.WithContext(withSimulation(req.Context(), simulation{Roles: input.Roles, Scopes: input.Scopes}))

	res, err := eng.Run(req)
	if err != nil {
		return errResult(err), simulateOutput{}, nil
	}
	if res == nil {
		return nil, simulateOutput{}, nil
	}
	out := simulateOutput{Handled: true, Status: res.Status, Headers: make(map[string]string, len(res.Header))}
	for k := range res.Header {
		out.Headers[k] = strings.Join(res.Header.Values(k), ", ")
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return errResult(err), simulateOutput{}, nil
	}
	if len(data) > 0 {
		var v any
		if json.Unmarshal(data, &v) == nil {
			out.Body = v
		} else {
			out.Body = string(data)
		}
	}
	return nil, out, nil
}

func buildRequest(ctx context.Context, method, target string, headers map[string]string, body string) (*http.Request, error) {
	if method == "" {
		return nil, fmt.Errorf("method is required")
	}
	if target == "" {
		return nil, fmt.Errorf("url is required")
	}
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, rd)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}
	return req, nil
}
