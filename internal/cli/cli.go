package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/rendergraph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("rendergraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
rendergraph - Compiles and executes declarative render graphs.

Usage:
  rendergraph [options] [FRAME_PATH]

Arguments:
  FRAME_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	frameFlag := flagSet.String("frame", "", "Path to the frame description file or directory.")
	fFlag := flagSet.String("f", "", "Path to the frame description file or directory (shorthand).")
	framesFlag := flagSet.Int("frames", 1, "Number of frames to render.")
	workersFlag := flagSet.Int("workers", 0, "Concurrent pass recorders. 0 uses the description's threads setting.")
	budgetFlag := flagSet.Uint64("memory-budget", 0, "Transient memory budget in MiB. 0 keeps the description's setting.")
	aliasingFlag := flagSet.Bool("aliasing", false, "Let transient resources share memory.")
	validationFlag := flagSet.String("validation", "", "Validation policy: 'abort' or 'best-effort'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	telemetryFlag := flagSet.String("telemetry-url", "", "Socket.IO server that receives per-frame statistics.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *frameFlag != "" {
		path = *frameFlag
	} else if *fFlag != "" {
		path = *fFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Frame path determined.", "path", path)

	if path == "" {
		slog.Debug("No frame path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	// Only an explicit --aliasing overrides the description.
	var aliasing *bool
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "aliasing" {
			aliasing = aliasingFlag
		}
	})
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		FramePath:       path,
		Frames:          *framesFlag,
		Workers:         *workersFlag,
		MemoryBudget:    *budgetFlag << 20,
		Aliasing:        aliasing,
		Validation:      strings.ToLower(*validationFlag),
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		TelemetryURL:    *telemetryFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
