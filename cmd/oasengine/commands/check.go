package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/erraggy/oasengine/engine"
)

// CheckFlags contains flags for the check command
type CheckFlags struct {
	Format        string
	Quiet         bool
	IgnoreServers bool
	Log           LogFlags
}

// CheckResult is the structured output of the check command.
type CheckResult struct {
	Contract   string `json:"contract"             yaml:"contract"`
	Version    string `json:"version,omitempty"    yaml:"version,omitempty"`
	Valid      bool   `json:"valid"                yaml:"valid"`
	Paths      int    `json:"paths"                yaml:"paths"`
	Operations int    `json:"operations"           yaml:"operations"`
	Secured    int    `json:"secured"              yaml:"secured"`
	Error      string `json:"error,omitempty"      yaml:"error,omitempty"`
}

// ErrCheckFailed is returned when the contract does not compile.
var ErrCheckFailed = errors.New("contract check failed")

// SetupCheckFlags creates and configures a FlagSet for the check command.
func SetupCheckFlags() (*flag.FlagSet, *CheckFlags) {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	flags := &CheckFlags{Log: defaultLogFlags()}

	fs.StringVar(&flags.Format, "format", FormatText, "output format: text, json, or yaml")
	fs.BoolVar(&flags.Quiet, "q", false, "quiet mode: only set the exit code")
	fs.BoolVar(&flags.Quiet, "quiet", false, "quiet mode: only set the exit code")
	fs.BoolVar(&flags.IgnoreServers, "ignore-servers", envBool("OASENGINE_IGNORE_SERVERS", false), "compile as if the contract declared no servers")
	fs.StringVar(&flags.Log.Format, "log-format", flags.Log.Format, "log format: text, json, or zap")
	fs.StringVar(&flags.Log.Level, "log-level", flags.Log.Level, "log level: debug, info, warn, or error")

	fs.Usage = func() {
		Writef(fs.Output(), "Usage: oasengine check [flags] <file|->\n\n")
		Writef(fs.Output(), "Compile an OpenAPI 3.0/3.1 contract into a request engine and report any errors.\n\n")
		Writef(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
		Writef(fs.Output(), "\nExamples:\n")
		Writef(fs.Output(), "  oasengine check openapi.yaml\n")
		Writef(fs.Output(), "  cat openapi.yaml | oasengine check -q -\n")
		Writef(fs.Output(), "  oasengine check --format json openapi.yaml | jq '.valid'\n")
		Writef(fs.Output(), "\nExit Codes:\n")
		Writef(fs.Output(), "  0    The contract compiled\n")
		Writef(fs.Output(), "  1    The contract failed to parse or compile\n")
	}

	return fs, flags
}

// HandleCheck executes the check command
func HandleCheck(args []string, w io.Writer) error {
	fs, flags := SetupCheckFlags()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("check command requires exactly one file path or '-' for stdin")
	}
	if err := ValidateOutputFormat(flags.Format); err != nil {
		return err
	}
	logger, err := NewLogger(flags.Log, os.Stderr)
	if err != nil {
		return err
	}

	specPath := fs.Arg(0)
	result := CheckResult{Contract: FormatSpecPath(specPath)}

	start := time.Now()
	doc, err := loadDocument(specPath, logger)
	var eng *engine.Engine
	if err == nil {
		result.Version = doc.Version
		result.Paths = len(doc.PathKeys())
		opts := append(echoOptions(doc, grant{}), engine.WithLogger(logger), engine.WithIgnoreServers(flags.IgnoreServers))
		eng, err = engine.Compile(doc, opts...)
	}
	elapsed := time.Since(start)

	if err != nil {
		result.Error = err.Error()
	} else {
		result.Valid = true
		for _, op := range eng.Operations() {
			result.Operations++
			if len(op.SecuritySchemes()) > 0 {
				result.Secured++
			}
		}
	}

	switch {
	case flags.Quiet:
	case flags.Format != FormatText:
		if oerr := OutputStructured(w, result, flags.Format); oerr != nil {
			return oerr
		}
	default:
		Writef(w, "OpenAPI Contract Check\n")
		Writef(w, "======================\n\n")
		if doc != nil {
			OutputSpecHeader(w, specPath, doc)
		}
		Writef(w, "Paths: %d\n", result.Paths)
		Writef(w, "Operations: %d (%d secured)\n", result.Operations, result.Secured)
		Writef(w, "Compile Time: %v\n\n", elapsed)
		if result.Valid {
			Writef(w, "✓ Contract compiled\n")
		} else {
			Writef(w, "✗ %s\n", result.Error)
		}
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}
	return nil
}
