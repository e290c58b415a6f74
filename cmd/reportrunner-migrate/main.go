package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/reportrunner/reportrunner/internal/config"
	"github.com/reportrunner/reportrunner/internal/migrations"
	"github.com/reportrunner/reportrunner/internal/warehouse"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	cfg, err := config.LoadFromEnv("reportrunner-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := warehouse.Open(ctx, warehouse.Config{
		Driver: cfg.Warehouse.Driver,
		DSN:    cfg.Warehouse.DSN,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warehouse open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		applied, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", applied)
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}
