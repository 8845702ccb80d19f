package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/aussiebroadwan/hms/internal/hms/app"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("hms: ")

	cfg := app.LoadConfig()

	application, err := app.New(cfg, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	err = application.Run(context.Background(), os.Args[1:])
	_ = application.Shutdown()

	switch {
	case err == nil:
	case errors.Is(err, app.ErrUsage):
		log.Print(err)
		os.Exit(2)
	default:
		log.Fatal(err)
	}
}
