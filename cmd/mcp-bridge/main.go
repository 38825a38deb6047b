// Command mcp-bridge runs the MCP HTTP transport bridge standalone,
// wired to an in-process echo backend. It exists so the bridge is a
// runnable program, not just a library; a real deployment would link
// mcp.Listener against an actual MCP method-dispatch backend instead
// of mcp.EchoBackend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcpbridge/httpbridge/internal/config"
	"github.com/mcpbridge/httpbridge/internal/logging"
	"github.com/mcpbridge/httpbridge/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a JSON or YAML config file")
	bindAddress := flag.String("bind", "", "override bind_address from config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *bindAddress != "" {
		cfg.BindAddress = *bindAddress
	}

	logger := logging.New(cfg.LogFormat, cfg.LogLevel)

	var listener *mcp.Listener
	backend := &mcp.EchoBackend{Logger: logger}
	listener = mcp.NewListener(backend, mcp.Options{
		BindAddress:          cfg.BindAddress,
		SSEKeepaliveInterval: cfg.SSEKeepaliveInterval,
		PendingQueueMax:      cfg.PendingQueueMax,
		WriteHighWaterBytes:  cfg.WriteHighWaterBytes,
		Logger:               logger,
	})
	backend.Sender = listener

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("mcp-bridge listening", "bind_address", cfg.BindAddress)
	return listener.Serve(ctx)
}
