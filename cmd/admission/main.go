// Command admission starts the request admission service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admission/internal/admission/app"
	"admission/internal/admission/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	printOnly := false
	if len(args) > 0 && args[0] == "print_config" {
		printOnly = true
		args = args[1:]
	}

	cfg, err := config.Load(config.LoadOptions{Args: args, Environ: os.Environ()})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if printOnly {
		if err := config.PrintConfig(os.Stdout, cfg); err != nil {
			log.Fatalf("failed to print config: %v", err)
		}
		return
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}
	if err := application.Start(ctx); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout+5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("failed to shutdown application: %v", err)
	}
}
