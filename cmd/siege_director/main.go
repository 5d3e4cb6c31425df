// Command siege_director runs the siege director against the simulated host
// and inspects persisted siege history.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hordenight/siege/internal/config"
	"github.com/hordenight/siege/internal/logging"
	intOtel "github.com/hordenight/siege/internal/otel"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ExtensionName string = "siege_director"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the dispatcher, database and influx components.
	ZLogger zerolog.Logger

	// OTelPipeline exports slog records over OpenTelemetry when enabled.
	OTelPipeline *intOtel.Pipeline

	LogFilePath string
	LogFile     *os.File

	gelfWriter *gelf.Writer

	SessionStartTime time.Time = time.Now()
)

func init() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()
	ZLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  run       simulate the siege cycle for a number of game days
  history   print the persisted siege history of a world
  version   print the version

Run "%s <command> --help" for command flags.
`, ExtensionName, ExtensionName)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch strings.ToLower(os.Args[1]) {
	case "run":
		err = cmdRun(os.Args[2:])
	case "history":
		err = cmdHistory(os.Args[2:])
	case "version":
		fmt.Printf("%s %s (%s)\n", ExtensionName, CurrentVersion, BuildDate)
	case "-h", "--help", "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}

	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags every subcommand shares and binds them to
// their viper keys.
func commonFlags(fs *pflag.FlagSet) *string {
	configDir := fs.String("config", ".", "directory containing "+config.ConfigFileName)
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "", "directory for log files and status.json")
	fs.String("storage", "", "storage backend (memory, sqlite, postgres)")
	fs.String("sqlite-path", "", "sqlite database file")
	_ = viper.BindPFlag("logLevel", fs.Lookup("log-level"))
	_ = viper.BindPFlag("logsDir", fs.Lookup("logs-dir"))
	_ = viper.BindPFlag("storage.type", fs.Lookup("storage"))
	_ = viper.BindPFlag("storage.sqlite.path", fs.Lookup("sqlite-path"))
	return configDir
}

// setup loads configuration and builds the logging pipeline: a session log
// file, the optional otel bridge and the optional GELF handler.
func setup(configDir string) error {
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}
	level := viper.GetString("logLevel")
	ZLogger = ZLogger.Level(zerologLevel(level))

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	LogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	ZLogger = zerolog.New(LogFile).Level(zerologLevel(level)).With().Timestamp().Logger()

	otelCfg := config.GetOTelConfig()
	OTelPipeline, err = intOtel.NewPipeline(context.Background(), otelCfg, LogFile,
		intOtel.Instance{Version: CurrentVersion, Started: SessionStartTime})
	if err != nil {
		Logger.Error("Failed to initialize OTel pipeline", "error", err)
	} else if OTelPipeline != nil {
		Logger.Info("OTel pipeline initialized",
			"file", LogFilePath,
			"endpoint", otelCfg.Endpoint,
			"instance", OTelPipeline.InstanceID())
	}

	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		h, w, err := logging.NewGelfHandler(gl.Address, level)
		if err != nil {
			Logger.Error("Failed to initialize GELF handler", "address", gl.Address, "error", err)
		} else {
			w.Facility = ExtensionName
			gelfWriter = w
			extra = append(extra, h)
		}
	}

	SlogManager.SetContextProvider(logContext)
	SlogManager.Setup(LogFile, level, OTelPipeline.LoggerProvider(), extra...)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
	Logger.Info("Logging to file", "path", LogFilePath, "version", CurrentVersion)
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flushing logs:", err)
	}
	if err := OTelPipeline.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "otel shutdown:", err)
	}
	if gelfWriter != nil {
		gelfWriter.Close()
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func zerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func statusDir() string {
	return filepath.Clean(viper.GetString("logsDir"))
}
