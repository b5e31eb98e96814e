// Command romamd runs a single Romam link-state routing daemon process.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/puyanguvic/romam/config"
	"github.com/puyanguvic/romam/daemon"
	"github.com/puyanguvic/romam/rib"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: romamd --config <path> [--dry-run]")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var configPath string
	var dryRun bool

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				usage()
				return 2
			}
			i++
			configPath = args[i]
		case "--dry-run":
			dryRun = true
		default:
			usage()
			return 2
		}
	}
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "missing --config")
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("romamd: %v", err)
		return 2
	}

	logger := log.New(os.Stderr, "romamd: ", log.LstdFlags)

	var installer rib.ForwardingInstaller
	if dryRun || runtime.GOOS != "linux" {
		installer = &rib.LogInstaller{Logger: logger}
	} else {
		installer = rib.NewLinuxInstaller(daemon.DefaultRouteProtocol)
	}

	d, err := daemon.New(cfg, installer, logger)
	if err != nil {
		logger.Printf("startup failed: %v", err)
		return 1
	}
	defer d.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Printf("router id %s, interfaces %v", d.RouterID(), cfg.Interfaces)

	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Printf("fatal: %v", err)
		return 1
	}

	return 0
}
