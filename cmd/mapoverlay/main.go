// Command mapoverlay runs a map overlay session against a scripted world.
// Commands are read line by line from a script file or stdin, e.g.
//
//	:WORLD:SESSION: true
//	:WORLD:SPAWN: bear pmc -50 0 10 Bear
//	:MAP:LOAD: factory
//	:MAP:SHOW:
//	:TICK:
//	:MARKERS:EXPORT: markers.geojson
//
// Usage:
//
//	mapoverlay [run [script]]
//	mapoverlay import <dir>
//	mapoverlay list
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/dispatcher"
	"github.com/dynamicmaps/overlay/internal/host"
	"github.com/dynamicmaps/overlay/internal/influx"
	"github.com/dynamicmaps/overlay/internal/logging"
	"github.com/dynamicmaps/overlay/internal/mapdb"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	intOtel "github.com/dynamicmaps/overlay/internal/otel"
	"github.com/dynamicmaps/overlay/internal/provider"
	"github.com/dynamicmaps/overlay/internal/session"
	"github.com/dynamicmaps/overlay/internal/world"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const (
	ExtensionName = "mapoverlay"
	// ConfigDirEnv overrides the directory the config file is read from.
	ConfigDirEnv = "MAPOVERLAY_CONFIG_DIR"
)

var (
	// CurrentVersion is set at build time
	CurrentVersion string = "dev"

	SessionStartTime = time.Now()

	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	ZeroLogger   zerolog.Logger
	OTelProvider *intOtel.Provider
	LogFile      *os.File
	LogFilePath  string

	DBManager     *mapdb.Manager
	InfluxManager *influx.Manager
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	setupLogging()
	defer shutdown()

	cmd := "run"
	if len(args) > 0 {
		cmd = strings.ToLower(args[0])
		args = args[1:]
	}

	ctx := context.Background()
	switch cmd {
	case "run":
		script := io.Reader(os.Stdin)
		if len(args) > 0 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			script = f
		}
		return runSession(ctx, script, os.Stdout)
	case "import":
		if len(args) == 0 {
			return errors.New("import: missing definitions directory")
		}
		return importDefinitions(ctx, args[0])
	case "list":
		src, err := openSource()
		if err != nil {
			return err
		}
		ids, err := src.List(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// setupLogging loads the config and wires the log sinks: a file in logsDir,
// Graylog and OTel when enabled.
func setupLogging() {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	configDir := os.Getenv(ConfigDirEnv)
	if configDir == "" {
		configDir = "."
	}
	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs dir", "error", err, "path", logsDir)
	}
	LogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
		LogFile = nil
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		cfg := intOtel.Config{
			Enabled:      true,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		}
		if LogFile != nil {
			cfg.LogWriter = LogFile
		}
		OTelProvider, err = intOtel.New(cfg)
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address, ExtensionName)
		if err != nil {
			Logger.Error("Failed to set up Graylog", "error", err)
		} else {
			SlogManager.SetGraylog(w)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	level := config.GetString("logLevel")
	var logOut io.Writer
	if LogFile != nil {
		logOut = LogFile
	}
	SlogManager.Setup(logOut, level, otelLogProvider)
	Logger = SlogManager.Logger()

	zlOut := io.Writer(os.Stderr)
	if LogFile != nil {
		zlOut = LogFile
	}
	ZeroLogger = logging.NewZerolog(zlOut, level)
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if InfluxManager != nil {
		if err := InfluxManager.Close(); err != nil {
			Logger.Warn("Failed to close InfluxDB manager", "error", err)
		}
	}
	if DBManager != nil {
		if err := DBManager.Close(); err != nil {
			Logger.Warn("Failed to close database", "error", err)
		}
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

// openSource returns the configured definition source.
func openSource() (mapdef.Source, error) {
	defs := config.GetDefinitionsConfig()
	switch defs.Source {
	case "", "file":
		Logger.Info("Reading map definitions from files", "dir", defs.Dir)
		return mapdef.NewFileSource(defs.Dir), nil
	case "database":
		store, err := openStore()
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown definitions source %q", defs.Source)
	}
}

func openStore() (*mapdb.Store, error) {
	if DBManager == nil {
		DBManager = mapdb.NewManager(config.GetDatabaseConfig(), ZeroLogger.With().Str("component", "mapdb").Logger())
		if err := DBManager.Connect(); err != nil {
			return nil, err
		}
		if err := DBManager.Setup(); err != nil {
			return nil, err
		}
	}
	return mapdb.NewStore(DBManager.DB, DBManager.Logger), nil
}

func importDefinitions(ctx context.Context, dir string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	n, err := store.Import(ctx, mapdef.NewFileSource(dir))
	if err != nil {
		return err
	}
	fmt.Printf("imported %d map definitions\n", n)

	if DBManager.IsLocal {
		if path := config.GetDatabaseConfig().SqlitePath; path == "" {
			dump := filepath.Join(config.GetString("logsDir"), ExtensionName+".db")
			if err := DBManager.DumpToDisk(dump); err != nil {
				return err
			}
			fmt.Println("in-memory database written to", dump)
		}
	}
	return nil
}

func openSink(ctx context.Context) provider.PassSink {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}
	backup := filepath.Join(config.GetString("logsDir"), fmt.Sprintf("%s.%s.lp.gz", ExtensionName, SessionStartTime.Format("20060102_150405")))
	InfluxManager = influx.NewManager(cfg, logging.Sampled(ZeroLogger.With().Str("component", "influx").Logger()), backup)
	if err := InfluxManager.Connect(ctx); err != nil {
		Logger.Error("Failed to set up InfluxDB sink", "error", err)
		InfluxManager = nil
		return nil
	}
	return InfluxManager
}

func runSession(ctx context.Context, script io.Reader, out io.Writer) error {
	src, err := openSource()
	if err != nil {
		return err
	}

	w := world.NewMemory()
	opts := session.Options{
		Host:   host.NewRecorder(),
		World:  w,
		Source: src,
		Config: config.GetSnapshot(),
		Logger: Logger,
		Sink:   openSink(ctx),
	}
	if OTelProvider != nil {
		opts.Meter = OTelProvider.Meter(ExtensionName)
	}
	sess, err := session.New(opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	// records now carry the map state
	SlogManager.SetContextProvider(logging.ViewContext(sess.View()))
	var logOut io.Writer
	if LogFile != nil {
		logOut = LogFile
	}
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(logOut, config.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()

	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return err
	}
	defer d.Close()

	sess.Register(d)
	session.RegisterWorld(d, w)
	registerLifecycleHandlers(d)

	return runScript(d, script, out)
}

// registerLifecycleHandlers registers commands that are not about the map.
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return CurrentVersion, nil
	})

	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return LogFilePath, nil
	})

	// :LOG: level source message...
	d.Register(":LOG:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 3 {
			return nil, fmt.Errorf("%s: want level, source and message", e.Command)
		}
		SlogManager.WriteLog(e.Arg(1), strings.Join(e.Args[2:], " "), e.Arg(0))
		return "ok", nil
	})

	d.Register(":SLEEP:", func(e dispatcher.Event) (any, error) {
		dur, err := time.ParseDuration(e.Arg(0))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Command, err)
		}
		time.Sleep(dur)
		return "ok", nil
	})

	d.Register(":METRICS:", func(e dispatcher.Event) (any, error) {
		if OTelProvider == nil {
			return nil, errors.New("otel is disabled")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return OTelProvider.Collect(ctx)
	})

	d.Register(":FLUSH:", func(e dispatcher.Event) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if OTelProvider != nil {
			if err := OTelProvider.Flush(ctx); err != nil {
				return nil, err
			}
		}
		return "ok", SlogManager.Flush(ctx)
	})
}

// runScript dispatches every line of script and prints one reply line per
// command. Failed commands are reported and do not stop the script.
func runScript(d *dispatcher.Dispatcher, script io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(script)
	failed := 0
	for sc.Scan() {
		e, ok := dispatcher.ParseLine(sc.Text(), time.Now())
		if !ok {
			continue
		}
		res, err := d.Dispatch(e)
		if err != nil {
			failed++
			Logger.Warn("Command failed", "command", e.Command, "error", err)
			fmt.Fprintf(out, "%s error %s\n", e.Command, err)
			continue
		}
		reply, err := json.Marshal(res)
		if err != nil {
			reply = []byte(fmt.Sprintf("%q", fmt.Sprint(res)))
		}
		fmt.Fprintf(out, "%s %s\n", e.Command, reply)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	Logger.Info("Script finished", "failed", failed)
	return nil
}
