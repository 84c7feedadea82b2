package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pinrelay/internal/cli"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		log.WithError(err).Error("pinrelay failed")
		stop()
		os.Exit(1)
	}
}
