package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/0xb10c/block-alert/src/config"
	"github.com/0xb10c/block-alert/src/daemon"
	"github.com/0xb10c/block-alert/src/events"
	"github.com/0xb10c/block-alert/src/logging"
	"github.com/0xb10c/block-alert/src/metrics"
	"github.com/0xb10c/block-alert/src/nbxplorer"
	"github.com/0xb10c/block-alert/src/ntfy"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], config.DefaultEnvFile)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			return 0
		}
		logrus.WithError(err).Error("Invalid configuration")
		return 1
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		logrus.WithError(err).Error("Could not set up logging")
		return 1
	}
	defer logger.Close()

	log := logger.Service("Main")
	log.Info("Starting Block-Alert")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	bus := events.NewBus()
	nbxLog := logger.Service(nbxplorer.ServiceName)
	connector := nbxplorer.NewService(cfg.NBXplorer(nbxLog, m), bus, nbxLog)
	dispatcher := ntfy.NewService(cfg.Ntfy(m), bus, logger.Service(ntfy.ServiceName))
	d := daemon.NewBlockAlertDaemon(bus, connector, dispatcher, logger.Service(daemon.ServiceName))

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		s := <-c
		d.Stop(signalName(s) + " received")

		s = <-c
		log.Warnf("%s received again, exiting without cleanup", signalName(s))
		os.Exit(1)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return d.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		server := metrics.NewServer(cfg.MetricsAddr, reg)
		log.Infof("Serving metrics on %s", cfg.MetricsAddr)

		g.Go(func() error {
			return errors.Wrap(server.Serve(), "metrics server")
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancelShutdown()
			return server.Shutdown(shutdownCtx)
		})
	}

	errRun := g.Wait()
	if errRun != nil {
		log.WithError(errRun).Error("Error during operation, shutting down")
	}

	errClose := d.Close()
	if errClose != nil {
		log.WithError(errClose).Error("Error during shutdown")
	}

	if errRun != nil || errClose != nil {
		return 1
	}
	log.Info("Block-Alert stopped")
	return 0
}

func signalName(s os.Signal) string {
	if s == os.Interrupt {
		return "SIGINT"
	}
	return "SIGTERM"
}
