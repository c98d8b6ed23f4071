package main

import (
	"fmt"
	"os"

	"github.com/erraggy/oasengine"
	"github.com/erraggy/oasengine/cmd/oasengine/commands"
)

var commandNames = []string{"check", "routes", "serve", "mcp", "version", "help"}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "version", "-v", "--version":
		fmt.Println(oasengine.BuildInfo())
	case "help", "-h", "--help":
		printUsage()
	case "check":
		err = commands.HandleCheck(os.Args[2:], os.Stdout)
	case "routes":
		err = commands.HandleRoutes(os.Args[2:], os.Stdout)
	case "serve":
		err = commands.HandleServe(os.Args[2:])
	case "mcp":
		err = commands.HandleMCP(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		if s := suggestCommand(command); s != "" {
			fmt.Fprintf(os.Stderr, "Did you mean '%s'?\n", s)
		}
		fmt.Fprintln(os.Stderr)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// suggestCommand returns the known command closest to input, or "" when
// none is within edit distance 2.
func suggestCommand(input string) string {
	best, bestDist := "", 3
	for _, name := range commandNames {
		if d := editDistance(input, name); d < bestDist {
			best, bestDist = name, d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func printUsage() {
	fmt.Println(`oasengine - OpenAPI contract engine

Usage:
  oasengine <command> [options]

Commands:
  check       Compile a contract and report errors
  routes      List the operations a contract routes
  serve       Serve a contract with echo handlers
  mcp         Run the MCP server over stdio
  version     Show version information
  help        Show this help message

Examples:
  oasengine check openapi.yaml
  oasengine routes --format json openapi.yaml
  oasengine serve --ignore-servers --metrics openapi.yaml

Run 'oasengine <command> --help' for more information on a command.`)
}
