package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/icodeforyou/ews-go/config"
	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/hours"
	"github.com/icodeforyou/ews-go/logging"
	"github.com/icodeforyou/ews-go/metrics"
	"github.com/icodeforyou/ews-go/mqttpub"
	"github.com/icodeforyou/ews-go/task"
	"github.com/icodeforyou/ews-go/www"
	"golang.org/x/sync/errgroup"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		}
	}()

	if Version != "?.?.?" {
		ews.Version = Version
	}

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		exitWithError(slog.Default(), fmt.Errorf("failed to load config: %w", err))
	}

	if err := hours.SetDisplayTimezone(cnfg.Display.GetTimezone()); err != nil {
		exitWithError(slog.Default(), fmt.Errorf("failed to set display timezone: %w", err))
	}

	logger, closeLog := logging.New(os.Stdout, cnfg.Logging.GetConsoleLevel(), cnfg.Logging.FileOptions())
	defer closeLog()
	slog.SetDefault(logger)
	logger.Debug("ews-watch is starting...", slog.String("version", ews.Version))

	if err := run(cnfg, logger); err != nil {
		closeLog()
		exitWithError(logger, err)
	}
	logger.Info("ews-watch is shutting down...")
}

func run(cnfg *config.AppConfig, logger *slog.Logger) error {
	if cnfg.Ews.ApiKey == "" {
		return errors.New("no api key configured, set ews.api_key or EWS_API_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ews.New(cnfg.Ews.ApiKey, cnfg.ClientOptions()...)
	defer client.Close()

	if !ews.Authenticate(ctx, cnfg.Ews.ApiKey, cnfg.ClientOptions()...) {
		logger.Warn("api key was not accepted, prices will not update until it is")
	}

	config.Watch(func(c *config.AppConfig) {
		if c.Ews.ApiKey == "" || c.Ews.ApiKey == cnfg.Ews.ApiKey {
			return
		}
		reauthCtx, cancel := context.WithTimeout(ctx, ews.DefaultTimeout)
		defer cancel()
		if client.Reauth(reauthCtx, c.Ews.ApiKey) {
			cnfg.Ews.ApiKey = c.Ews.ApiKey
		}
	})

	var publisher task.PricePublisher
	if isDevMode() {
		logger.Info("dev mode, skipping mqtt connection")
	} else if cnfg.Mqtt.Enabled() {
		mq := mqttpub.New(
			cnfg.Mqtt.Host,
			cnfg.Mqtt.Port,
			cnfg.Mqtt.Username,
			cnfg.Mqtt.Password,
			cnfg.Mqtt.GetClientId(),
			cnfg.Mqtt.GetTopic())
		if err := mq.Connect(); err != nil {
			return fmt.Errorf("mqtt connection error: %w", err)
		}
		defer mq.Disconnect()
		publisher = mq
	} else {
		logger.Info("no mqtt host configured, prices will not be published")
	}

	m := metrics.New()
	tasks := task.NewTasks(client, publisher, m, cnfg)
	if err := tasks.Run(); err != nil {
		return err
	}
	defer tasks.Stop()
	tasks.PublishTask()

	g, ctx := errgroup.WithContext(ctx)

	if cnfg.Api.Address != "" {
		server := www.NewServer(client, m, cnfg.Api)
		g.Go(func() error {
			if err := server.Run(ctx); err != nil {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	} else {
		logger.Info("no api address configured, status server disabled")
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("main context done")
		return nil
	})

	return g.Wait()
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	logger.Error("application shutting down with error", slog.Any("error", err))
	os.Exit(1)
}
