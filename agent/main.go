package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"tracker-guard/agent/internal/config"
	"tracker-guard/agent/internal/initialize"
	"tracker-guard/agent/internal/logger"
)

func main() {
	var (
		cfgPath  = flag.String("config", config.DefaultPath, "Path to configuration file")
		watchDir = flag.String("watch", "", "Directory of saved pages to observe")
		noBus    = flag.Bool("no-bus", false, "Do not start the local message bus")
	)
	flag.Parse()

	cfgVals := config.Init(*cfgPath)
	if err := logger.Init(cfgVals.LogPath, cfgVals.LogLevel); err != nil {
		logger.Error("Cannot open log file:", err)
	}

	app, err := initialize.Build(cfgVals)
	if err != nil {
		logger.Error("Agent initialization failed:", err)
		os.Exit(1)
	}
	if !*noBus {
		if err := app.Signer.Check(); err != nil {
			logger.Errorf("Refusing to start message bus: %v (set agent.bus.secret or pass -no-bus)", err)
			_ = app.Close()
			os.Exit(1)
		}
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warnf("Close storage: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.Watch(func(c config.AppConfig) {
		logger.SetLevel(c.LogLevel)
		app.Observer.SetTrackers(c.Trackers)
		logger.Infof("Config reloaded, %d trackers", len(app.Observer.Trackers()))
	})

	coordDone := make(chan struct{})
	go func() {
		defer close(coordDone)
		if err := app.Coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("Coordinator exited: %v", err)
		}
	}()

	if err := app.Start(ctx); err != nil {
		// Not fatal: the flag is persisted and the next toggle or start retries.
		logger.Errorf("Lifecycle start failed: %v", err)
	}

	go app.Coordinator.RunDailyReset(ctx)

	if !*noBus {
		go func() {
			if err := app.Server.Serve(ctx, cfgVals.BusListen); err != nil {
				logger.Errorf("Message bus stopped: %v", err)
			}
		}()
	}

	if *watchDir != "" {
		go func() {
			if err := app.Observer.Watch(ctx, []string{*watchDir}, nil); err != nil {
				logger.Errorf("Page watch stopped: %v", err)
			}
		}()
	}

	logger.Info("Agent running")
	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
	app.Observer.Wait()
	<-coordDone
}
