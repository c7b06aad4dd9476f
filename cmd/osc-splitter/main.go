package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vigliensoni/OSC-output-parser/internal/bridge"
	"github.com/vigliensoni/OSC-output-parser/internal/config"
	"github.com/vigliensoni/OSC-output-parser/internal/forward"
	"github.com/vigliensoni/OSC-output-parser/internal/metrics"
	"github.com/vigliensoni/OSC-output-parser/internal/server"
	"github.com/vigliensoni/OSC-output-parser/internal/tap"
)

const (
	serviceName    = "osc-splitter"
	serviceVersion = "1.0.0"
)

func main() {
	// Parse command line flags. Flags override file and environment values.
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	listenHost := flag.String("listen-host", "0.0.0.0", "Address to listen on for bundled messages")
	listenPort := flag.Int("listen-port", 12000, "UDP port to listen on")
	targetHost := flag.String("target-host", "127.0.0.1", "Host to send indexed messages to")
	targetPort := flag.Int("target-port", 12001, "UDP port to send indexed messages to")
	inputAddress := flag.String("input-address", "/wek/outputs", "OSC address of the bundled input message")
	outputPrefix := flag.String("output-prefix", "/parsed/output-", "OSC address prefix for indexed output messages")
	quiet := flag.Bool("quiet", false, "Log only warnings and errors, suppressing per-message output")
	flag.Parse()

	// Load configuration (defaults, then file, then environment)
	cfg, err := config.LoadSplitter(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Apply only the flags that were set explicitly
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen-host":
			cfg.Listen.Host = *listenHost
		case "listen-port":
			cfg.Listen.Port = *listenPort
		case "target-host":
			cfg.Target.Host = *targetHost
		case "target-port":
			cfg.Target.Port = *targetPort
		case "input-address":
			cfg.InputAddress = *inputAddress
		case "output-prefix":
			cfg.OutputPrefix = *outputPrefix
		case "quiet":
			if *quiet {
				cfg.Logging.Level = "warn"
			}
		}
	})

	// Validate the merged configuration before touching any socket
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("listen", cfg.Listen.Addr()),
		slog.String("target", cfg.Target.Addr()),
		slog.String("input_address", cfg.InputAddress),
		slog.String("output_prefix", cfg.OutputPrefix),
		slog.Int("workers", cfg.Server.Workers),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Open the sending socket towards the reassembler side
	client, err := forward.NewUDPClient(cfg.Target.Host, cfg.Target.Port)
	if err != nil {
		logger.Error("Failed to create UDP client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Optionally mirror outbound messages to an MQTT tap
	sender := forward.Sender(client)
	var tapPublisher *tap.Publisher
	if cfg.Tap.Enabled {
		tapPublisher = tap.NewPublisher(cfg.Tap, logger, appMetrics)
		if err := tapPublisher.Connect(); err != nil {
			logger.Error("Failed to connect MQTT tap", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sender = forward.MultiSender{client, tapPublisher}
	}

	// Initialize the splitter
	splitter := bridge.NewSplitter(cfg.InputAddress, cfg.OutputPrefix, sender, logger, appMetrics)

	// Initialize UDP server and route the bundled address to the splitter
	udpServer := server.NewUDPServer(cfg.Listen.Addr(), &cfg.Server, logger, appMetrics)
	udpServer.Route(cfg.InputAddress, splitter)

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.Monitoring.Enabled {
		components := server.Components{
			UDPServer: udpServer,
			Client:    client,
			Splitter:  splitter,
			Tap:       tapPublisher,
		}
		httpServer = server.NewHTTPServer(cfg.Monitoring.Addr(), serviceName, cfg.Sanitized(), components, logger, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", cfg.Monitoring.Addr()),
		)
	}

	// Start UDP server
	if err := udpServer.Start(); err != nil {
		logger.Error("Failed to start UDP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", cfg.Listen.Addr()),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop UDP server (stop accepting new packets)
	if err := udpServer.Stop(); err != nil {
		logger.Error("Error stopping UDP server", slog.String("error", err.Error()))
	}

	// Close the tap and the sending socket
	if tapPublisher != nil {
		tapPublisher.Close()
	}
	if err := client.Close(); err != nil {
		logger.Error("Error closing UDP client", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := splitter.GetStats()
	logger.Info("Final splitter statistics",
		slog.Uint64("messages_handled", stats.MessagesHandled),
		slog.Uint64("values_fanned_out", stats.ValuesFannedOut),
		slog.Uint64("messages_dropped", stats.MessagesDropped),
		slog.Uint64("send_failures", stats.SendFailures),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
