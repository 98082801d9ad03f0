package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"

	"github.com/jfs415/ip2asn2cc/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		log.Fatal("ip2cc terminated", "error", err)
	}
}
