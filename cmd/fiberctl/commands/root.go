package commands

import (
	"os"

	"github.com/btcsuite/btclog/v2"
	"github.com/spf13/cobra"

	"github.com/strandrt/fibercore/internal/build"
	"github.com/strandrt/fibercore/internal/fiber"
	"github.com/strandrt/fibercore/internal/mailbox"
	"github.com/strandrt/fibercore/internal/system"
	"github.com/strandrt/fibercore/internal/vmctx"
)

var (
	// logLevel controls verbosity of every subsystem logger.
	logLevel string

	// logDir is where fiberctl writes its rotated log file. Empty
	// disables file logging (console only).
	logDir string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "fiberctl",
	Short: "Drive an in-process actor/fiber concurrency core",
	Long: `fiberctl spawns small actor systems on top of the fibercore
concurrency core and exercises its seed scenarios: ping/pong message
exchange, fiber join success/error, interrupting a blocked receive,
forbid_suspend enforcement, and a draining shutdown.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level for all subsystems: trace, debug, info, warn, error, off")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"Directory for rotated log files (default: console only)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(scenarioCmd)
}

// setupLogging wires the console (and, if requested, rotating file)
// btclog handlers into every package's UseLogger, the same fan-out
// build.HandlerSet exists for.
func setupLogging() error {
	level := parseLevel(logLevel)

	consoleHandler := btclog.NewDefaultHandler(os.Stdout)

	handlers := []btclog.Handler{consoleHandler}
	if logDir != "" {
		writer := build.NewRotatingLogWriter()
		cfg := build.DefaultLogRotatorConfig()
		cfg.LogDir = logDir
		if err := writer.InitLogRotator(cfg); err != nil {
			return err
		}
		handlers = append(handlers, btclog.NewDefaultHandler(writer))
	}

	set := build.NewHandlerSet(handlers...)
	set.SetLevel(level)

	logger := btclog.NewSLogger(set)

	fiber.UseLogger(logger)
	mailbox.UseLogger(logger)
	vmctx.UseLogger(logger)
	system.UseLogger(logger)

	return nil
}

// parseLevel maps a --log-level flag value onto a btclog.Level,
// falling back to Info for an unrecognised string.
func parseLevel(raw string) btclog.Level {
	switch raw {
	case "trace":
		return btclog.LevelTrace
	case "debug":
		return btclog.LevelDebug
	case "warn", "warning":
		return btclog.LevelWarn
	case "error":
		return btclog.LevelError
	case "critical":
		return btclog.LevelCritical
	case "off":
		return btclog.LevelOff
	default:
		return btclog.LevelInfo
	}
}
