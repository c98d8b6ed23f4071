package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erraggy/oasengine/internal/mcpserver"
)

// HandleMCP runs the MCP server over stdio until the client disconnects.
func HandleMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.Usage = func() {
		Writef(fs.Output(), "Usage: oasengine mcp\n\n")
		Writef(fs.Output(), "Run a Model Context Protocol server over stdio with the tools\n")
		Writef(fs.Output(), "list_routes, resolve_route and simulate_request.\n\n")
		Writef(fs.Output(), "Configure it with OASENGINE_* environment variables, for example\n")
		Writef(fs.Output(), "OASENGINE_CACHE_ENABLED=false or OASENGINE_MAX_BODY_SIZE=1048576.\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return fmt.Errorf("mcp command takes no arguments")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return mcpserver.Run(ctx)
}
