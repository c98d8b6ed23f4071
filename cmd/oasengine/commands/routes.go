package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/erraggy/oasengine/engine"
)

// RoutesFlags contains flags for the routes command
type RoutesFlags struct {
	Format string
	Method string
	Log    LogFlags
}

// RouteInfo describes one compiled operation.
type RouteInfo struct {
	Method      string     `json:"method"                 yaml:"method"`
	Path        string     `json:"path"                   yaml:"path"`
	OperationID string     `json:"operationId,omitempty"  yaml:"operationId,omitempty"`
	Controller  string     `json:"controller,omitempty"   yaml:"controller,omitempty"`
	Security    []string   `json:"security,omitempty"     yaml:"security,omitempty"`
	Roles       [][]string `json:"roles,omitempty"        yaml:"roles,omitempty"`
	Parameters  []string   `json:"parameters,omitempty"   yaml:"parameters,omitempty"`
}

// SetupRoutesFlags creates and configures a FlagSet for the routes command.
func SetupRoutesFlags() (*flag.FlagSet, *RoutesFlags) {
	fs := flag.NewFlagSet("routes", flag.ContinueOnError)
	flags := &RoutesFlags{Log: defaultLogFlags()}

	fs.StringVar(&flags.Format, "format", FormatText, "output format: text, json, or yaml")
	fs.StringVar(&flags.Method, "method", "", "only list operations with this HTTP method")
	fs.StringVar(&flags.Log.Format, "log-format", flags.Log.Format, "log format: text, json, or zap")
	fs.StringVar(&flags.Log.Level, "log-level", flags.Log.Level, "log level: debug, info, warn, or error")

	fs.Usage = func() {
		Writef(fs.Output(), "Usage: oasengine routes [flags] <file|->\n\n")
		Writef(fs.Output(), "List the operations the engine routes, in contract order.\n\n")
		Writef(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
		Writef(fs.Output(), "\nExamples:\n")
		Writef(fs.Output(), "  oasengine routes openapi.yaml\n")
		Writef(fs.Output(), "  oasengine routes --method post --format yaml openapi.yaml\n")
	}

	return fs, flags
}

// HandleRoutes executes the routes command
func HandleRoutes(args []string, w io.Writer) error {
	fs, flags := SetupRoutesFlags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("routes command requires exactly one file path or '-' for stdin")
	}
	if err := ValidateOutputFormat(flags.Format); err != nil {
		return err
	}
	logger, err := NewLogger(flags.Log, os.Stderr)
	if err != nil {
		return err
	}

	doc, err := loadDocument(fs.Arg(0), logger)
	if err != nil {
		return fmt.Errorf("parsing contract: %w", err)
	}
	eng, err := engine.Compile(doc, append(echoOptions(doc, grant{}), engine.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("compiling contract: %w", err)
	}

	routes := collectRoutes(eng, flags.Method)
	if flags.Format != FormatText {
		return OutputStructured(w, routes, flags.Format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	Writef(tw, "METHOD\tPATH\tOPERATION\tSECURITY\tROLES\n")
	for _, r := range routes {
		Writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Method, r.Path, dash(r.OperationID), dash(strings.Join(r.Security, ",")), dash(formatRoles(r.Roles)))
	}
	return tw.Flush()
}

func collectRoutes(eng *engine.Engine, method string) []RouteInfo {
	var out []RouteInfo
	for _, op := range eng.Operations() {
		if method != "" && !strings.EqualFold(op.Method, method) {
			continue
		}
		params := op.Parameters()
		if len(params) == 0 {
			params = nil
		}
		out = append(out, RouteInfo{
			Method:      strings.ToUpper(op.Method),
			Path:        op.Path,
			OperationID: op.OperationID,
			Controller:  op.Controller,
			Security:    op.SecuritySchemes(),
			Roles:       op.Roles(),
			Parameters:  params,
		})
	}
	return out
}

// formatRoles renders alternatives as "a+b|c".
func formatRoles(roles [][]string) string {
	alts := make([]string, len(roles))
	for i, r := range roles {
		alts[i] = strings.Join(r, "+")
	}
	return strings.Join(alts, "|")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
