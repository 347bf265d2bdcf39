package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"relloyd/bluepresence/config"
	"relloyd/bluepresence/driver"
	"relloyd/bluepresence/hub"
	"relloyd/bluepresence/led"
	"relloyd/bluepresence/models"
	"relloyd/bluepresence/presence"
	"relloyd/bluepresence/recovery"
	"relloyd/bluepresence/scanner"
	"relloyd/bluepresence/status"
	"relloyd/bluepresence/web"
)

// Functionality:
//   INPUT
//     Scanner   - l2ping every registered device MAC each interval
//   DOES STUFF
//     Tracker   - debounce detections into present/away with a timeout
//     Monitor   - reset the Bluetooth adapter after a run of failing scans
//     Notifier  - publish device, group and event facts to Home Assistant (REST and/or MQTT)
//     Web       - /health, /devices, /metrics and a status page

type cleanupFunc func() error

func handleDelayedStart(logger *zap.SugaredLogger, appConfig *config.AppConfig) {
	if appConfig.DelayStart && !appConfig.DebugConfig.DebugEnabled { // if we should delay startup, and we're not in debug mode...
		delay := time.Second * 30
		logger.Infof("Delaying startup for %v", delay)
		time.Sleep(delay)
	}
}

func handleDebugging(logger *zap.SugaredLogger, appCfg *config.DebugConfig) {
	if appCfg.DebugEnabled {
		tc := time.After(appCfg.DebugTime) // sleep to help debugger connections
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT)
		logger.Info("Waiting for debug time or CTRL-C signal...")
		select {
		case <-tc:
			logger.Info("Debug time is up; continuing...")
		case <-sigs:
			logger.Info("Signal received, continuing...")
		}
		signal.Stop(sigs)
	}
}

func recoverFunc(logger *zap.Logger) {
	if r := recover(); r != nil {
		logger.Error("Recovered from panic",
			zap.Any("message", r),
			zap.String("stack", string(debug.Stack())),
		)
	}
}

// newNotifier builds the REST notifier, the MQTT notifier or both behind a Fanout.
func newNotifier(ctx context.Context, logger *zap.SugaredLogger, appCfg *config.AppConfig) (models.Notifier, []cleanupFunc, error) {
	var notifiers hub.Fanout
	var cleanups []cleanupFunc

	if appCfg.HubConfig.URL == "" && appCfg.HubConfig.Discover {
		u, err := hub.Discover(ctx, logger, appCfg.HubConfig.DiscoverTimeout)
		if err != nil && !appCfg.MQTTConfig.Enabled {
			return nil, nil, fmt.Errorf("failed to discover Home Assistant: %w", err)
		} else if err != nil {
			logger.Warnf("Home Assistant discovery failed, publishing to MQTT only: %v", err)
		}
		appCfg.HubConfig.URL = u
	}
	if appCfg.HubConfig.URL != "" {
		notifiers = append(notifiers, hub.NewHomeAssistant(logger, &appCfg.HubConfig))
		logger.Infof("Publishing to Home Assistant at %v", appCfg.HubConfig.URL)
	}
	if appCfg.MQTTConfig.Enabled {
		m, err := hub.NewMQTT(logger, &appCfg.MQTTConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to setup MQTT notifier: %w", err)
		}
		notifiers = append(notifiers, m)
		cleanups = append(cleanups, m.Close)
		logger.Infof("Publishing to MQTT broker %v", appCfg.MQTTConfig.Broker)
	}

	if len(notifiers) == 1 {
		return notifiers[0], cleanups, nil
	}
	return notifiers, cleanups, nil
}

// newIndicator prefers a GPIO LED when a line is configured and falls back to the board LED.
func newIndicator(logger *zap.SugaredLogger, appCfg *config.AppConfig) (driver.Indicator, []cleanupFunc) {
	if appCfg.LEDGPIOLine >= 0 {
		g, err := led.NewGPIOIndicator(logger, appCfg.LEDGPIOChip, appCfg.LEDGPIOLine)
		if err == nil {
			return g, []cleanupFunc{g.Close}
		}
		logger.Warnf("GPIO LED unavailable, falling back to board LED: %v", err)
	}
	return led.NewIndicator(logger, appCfg.LEDName), nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup logger.
	logger := config.MustGetLogger()
	defer func(logger *zap.SugaredLogger) {
		_ = logger.Sync()
	}(logger)

	logger.Infof("Build version %v", config.BuildVersion)

	// Recovery.
	defer recoverFunc(logger.Desugar())

	// Cleanup functions.
	var cleanupFuncs []cleanupFunc

	handleDelayedStart(logger, &config.AppCfg)
	handleDebugging(logger, &config.AppCfg.DebugConfig)

	if err := config.AppCfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Device registry.
	registry, err := config.LoadRegistry(logger, &config.AppCfg)
	if err != nil {
		logger.Fatalf("Failed to load devices: %v", err)
	}
	logger.Infof("Tracking %v devices: %v", len(registry), registry.Names())

	// Scanner.
	l2ping, err := scanner.NewL2Ping(logger, &config.AppCfg.ScanConfig)
	if err != nil {
		logger.Fatalf("Failed to setup scanner: %v", err)
	}

	// Notifier.
	notifier, notifierCleanups, err := newNotifier(ctx, logger, &config.AppCfg)
	if err != nil {
		logger.Fatal(err)
	}

	// Status LED.
	indicator, indicatorCleanups := newIndicator(logger, &config.AppCfg)

	// Status for the web server.
	st := status.NewTracker(time.Now(), registry.Names())

	d, err := driver.New(logger, driver.Params{
		Scanner:          l2ping,
		Tracker:          presence.NewTracker(logger, registry, config.AppCfg.PresenceConfig.Timeout),
		Monitor:          recovery.NewMonitor(config.AppCfg.RecoveryConfig.FailureThreshold),
		Recovery:         recovery.NewAction(logger, &config.AppCfg.RecoveryConfig),
		Notifier:         notifier,
		Status:           st,
		Indicator:        indicator,
		Interval:         config.AppCfg.ScanConfig.Interval,
		FailureThreshold: config.AppCfg.RecoveryConfig.FailureThreshold,
		RecoveryTimeout:  config.AppCfg.RecoveryConfig.Timeout,
		ShutdownTimeout:  config.AppCfg.HubConfig.Timeout * time.Duration(len(registry)+4),
	})
	if err != nil {
		logger.Fatalf("Failed to setup driver: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Web server start.
	if config.AppCfg.WebConfig.WebEnabled {
		s := web.NewServer(logger, st, &config.AppCfg.WebConfig)
		g.Go(func() error {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("web server: %w", err)
			}
			logger.Info("Web server quit")
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelSrv()
			if err := s.Shutdown(ctxSrv); err != nil {
				return fmt.Errorf("error shutting down web server: %w", err)
			}
			return nil
		})
		logger.Infof("Web server started on %v", s.Addr)
	}

	// Driver loop. It publishes everybody away once gctx is cancelled.
	g.Go(func() error {
		defer recoverFunc(logger.Desugar())
		d.Run(gctx)
		return nil
	})

	// Notifiers and LEDs close after the final publish.
	cleanupFuncs = append(cleanupFuncs, notifierCleanups...)
	cleanupFuncs = append(cleanupFuncs, indicatorCleanups...)

	// Capture SIGINT and SIGTERM to shut down gracefully.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
		logger.Info("Signal received, shutting down...")
	case <-gctx.Done():
		logger.Error("A worker failed, shutting down...")
	}
	cancel()

	failure := false
	if err := g.Wait(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
		failure = true
	}

	// Clean up and exit.
	for _, f := range cleanupFuncs {
		if err := f(); err != nil {
			logger.Errorf("Error during cleanup: %v", err)
			failure = true
		}
	}
	if failure {
		os.Exit(1)
	}
}
