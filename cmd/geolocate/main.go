package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"geolocate/internal/domain"
	"geolocate/internal/infra/config"
	"geolocate/internal/infra/logger"
	"geolocate/internal/infra/tracer"
	"geolocate/internal/usecase/eventbus"
	"geolocate/internal/usecase/locate"
)

const defaultConfigPath = "./geolocate.yaml"

// errLocateFailed makes the locate command exit non-zero after an error event.
var errLocateFailed = errors.New("locate failed")

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	command := "run"
	if len(os.Args) >= 2 && !strings.HasPrefix(os.Args[1], "-") {
		command = os.Args[1]
	}
	flags := parseFlags(os.Args[1:])

	var err error
	switch command {
	case "run", "locate", "watch":
		err = runService(command, flags)
	case "doctor":
		err = runDoctor(flags)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'geolocate --help' for usage information.\n", command)
		os.Exit(1)
	}
	if err != nil {
		if !errors.Is(err, errLocateFailed) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		}
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`geolocate - device location events from a positioning bridge

USAGE:
    geolocate [COMMAND] [FLAGS]

COMMANDS:
    run         Start per config and print events until interrupted (default)
    locate      Request one position, print it and exit
    watch       Stream position updates until interrupted
    doctor      Check config and bridge connectivity

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./geolocate.yaml)
    --url URL          Bridge WebSocket URL, overrides provider.url

CONFIGURATION:
    Environment: GEOLOCATE_* variables override config

EXAMPLES:
    geolocate locate --url ws://192.168.1.20:8765/geolocation
    geolocate watch --config /etc/geolocate.yaml
    GEOLOCATE_HIGH_ACCURACY=true geolocate locate`)
}

// cliFlags holds flags shared by every command.
type cliFlags struct {
	ConfigPath string
	URL        string
}

// parseFlags extracts --config and --url from args.
func parseFlags(args []string) cliFlags {
	var flags cliFlags
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--config="):
			flags.ConfigPath = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--url" && i+1 < len(args):
			flags.URL = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--url="):
			flags.URL = strings.TrimPrefix(args[i], "--url=")
		}
	}
	if flags.ConfigPath == "" {
		flags.ConfigPath = os.Getenv("GEOLOCATE_CONFIG")
	}
	if flags.ConfigPath == "" {
		flags.ConfigPath = defaultConfigPath
	}
	return flags
}

// loadConfig loads the config file and applies command line overrides.
func loadConfig(flags cliFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, domain.WrapOp("loadConfig", fmt.Errorf("%w: %w", domain.ErrConfigLoad, err))
	}
	if flags.URL != "" {
		cfg.Provider.Type = "websocket"
		cfg.Provider.URL = flags.URL
		if err := config.Validate(cfg); err != nil {
			return nil, domain.WrapOp("loadConfig", fmt.Errorf("%w: %w", domain.ErrConfigLoad, err))
		}
	}
	return cfg, nil
}

// serviceConfig converts the file config into the service config and forces
// the init mode for the locate and watch commands.
func serviceConfig(cfg config.LocateConfig, command string) locate.Config {
	sc := locate.Config{
		LocateOnInit:     cfg.LocateOnInit,
		LocateOnInitMode: locate.Mode(cfg.LocateOnInitMode),
		PositionOptions: domain.PositionOptions{
			EnableHighAccuracy: cfg.PositionOptions.EnableHighAccuracy,
			TimeoutMillis:      cfg.PositionOptions.TimeoutMillis,
			MaxCacheAgeMillis:  cfg.PositionOptions.MaxCacheAgeMillis,
		},
	}
	switch command {
	case "locate":
		sc.LocateOnInit = true
		sc.LocateOnInitMode = locate.ModeLocate
	case "watch":
		sc.LocateOnInit = true
		sc.LocateOnInitMode = locate.ModeWatch
	}
	return sc
}

func runService(command string, flags cliFlags) error {
	// 1. Config
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Provider
	provider, closeProvider := buildProvider(ctx, cfg.Provider, log)
	defer closeProvider()

	// 4. Event bus and output
	bus := eventbus.New(log)
	defer bus.Close()

	printer := newEventPrinter(os.Stdout)
	bus.SubscribeAll(printer.handle)

	first := make(chan domain.Event, 1)
	if command == "locate" {
		bus.SubscribeAll(func(_ context.Context, e domain.Event) {
			select {
			case first <- e:
			default:
			}
		})
	}

	// 5. Service
	log.Info("starting", "command", command, "provider", provider.Name())
	svc := locate.New(ctx, serviceConfig(cfg.Locate, command), provider, bus, log)
	defer svc.Close()

	if command != "locate" {
		<-ctx.Done()
		log.Info("shutting down")
		return nil
	}

	select {
	case e := <-first:
		if e.Type == domain.EventError {
			return errLocateFailed
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
