// ulogsim exercises the full logging stack: it configures the process
// root from defaults, a config file, and ULOG_ environment variables,
// then runs a small HTTP server and a set of mock clients whose
// traffic generates a continuous log stream.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/chtc/chtc-ulog/adapters"
	"github.com/chtc/chtc-ulog/config"
	"github.com/chtc/chtc-ulog/ulog"

	// Make the stackdriver handler kind selectable from configuration.
	_ "github.com/chtc/chtc-ulog/ulog/stackdriver"
)

func main() {
	configFile := flag.String("config", "", "config file overriding the built-in defaults")
	numClients := flag.Int("clients", 3, "number of mock clients to run")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile, &config.Config{Progname: "ulogsim"})
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := ulog.SetupConfig(cfg); err != nil {
		slog.Error("Failed to set up logging", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := ulog.Logger()
	log.Info("Logging configured",
		slog.String("level", cfg.LogLevel),
		slog.Any("handlers", cfg.Handlers),
	)

	if err := loadSimConfig(); err != nil {
		log.Error("Failed to load simulator configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Legacy logrus output follows the configured handlers too
	adapters.RedirectLogrus(ulog.Default())
	logrus.WithField("bridge", "logrus").Info("Routing logrus through the configured handlers")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HealthCheck.Enabled {
		monitor, err := ulog.StartMonitor(ctx, cfg.Progname, cfg.HealthCheck, log)
		if err != nil {
			log.Error("Failed to start the log pipeline monitor", slog.String("error", err.Error()))
		} else {
			defer monitor.Stop()
		}
	}

	portChan := make(chan int, 1)
	srvDone := make(chan struct{})
	go func() {
		defer close(srvDone)
		RunServer(ctx, portChan)
	}()

	port, ok := <-portChan
	if !ok {
		os.Exit(1)
	}

	var wg sync.WaitGroup
	StartMockClients(ctx, *numClients, port, &wg)

	<-ctx.Done()
	log.Info("Shutting down log simulator")
	wg.Wait()
	<-srvDone
	if err := ulog.Default().Close(); err != nil {
		slog.Error("Failed to close handlers", slog.String("error", err.Error()))
	}
}
