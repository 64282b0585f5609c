// Command furrowd runs the furrow daemon as a standalone foreground process.
//
// It is the systemd-friendly entrypoint; `furrow start` spawns the same
// runtime through the hidden `furrow daemon` subcommand instead.
package main

import (
	"context"
	"flag"
	"log"

	"furrow/internal/config"
	"furrow/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	socketPath := flag.String("socket", "", "IPC socket path override")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:   *logLevel,
		SocketPath: *socketPath,
	}); err != nil {
		log.Fatalf("furrowd: %v", err)
	}
}
