package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/helpdesk-billing/pkg/config"
	"github.com/angelmondragon/helpdesk-billing/pkg/db"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	"github.com/angelmondragon/helpdesk-billing/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up              apply pending migrations
  down            roll back the latest migration
  status          list migrations and whether they are applied
  version         print the current database version
  to <version>    migrate up or down to version (YYYYMMDDHHMMSS)
  create <name>   write a new empty migration into -dir
  validate        check migration names and goose sections
`

func main() {
	dir := flag.String("dir", "", "migrations directory (default: migrations embedded in the binary)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg := args[0], ""
	if len(args) > 1 {
		arg = args[1]
	}

	// offline commands never touch config or the database
	switch command {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, arg, time.Now())
		exitOn(err, "create migration")
		fmt.Println("created", path)
		return
	case "validate":
		exitOn(migrate.ValidateFS(migrate.Source(*dir)), "validate migrations")
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(err, "load config")

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"command": command,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(err, "connect database")
	defer dbClient.Close()

	if cfg.DB.IsSQLite() {
		if command != "up" {
			exitOn(fmt.Errorf("sqlite databases only support up"), command)
		}
		exitOn(db.ApplySQLiteSchema(ctx, dbClient.DB()), "apply sqlite schema")
		logg.Info(ctx, "sqlite schema applied")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	exitOn(err, "sql handle")
	runner, err := migrate.NewRunner(sqlDB, migrate.Source(*dir))
	exitOn(err, "migration runner")

	var results []migrate.Applied
	switch command {
	case "up":
		results, err = runner.Up(ctx)
	case "down":
		results, err = runner.Down(ctx)
	case "to":
		version, parseErr := strconv.ParseInt(arg, 10, 64)
		exitOn(parseErr, "parse target version")
		results, err = runner.To(ctx, version)
	case "version":
		version, err := runner.Version(ctx)
		exitOn(err, "version")
		fmt.Println(version)
		return
	case "status":
		states, err := runner.Status(ctx)
		exitOn(err, "status")
		for _, state := range states {
			mark := "pending"
			if state.Applied {
				mark = "applied"
			}
			fmt.Printf("%-8s %d %s\n", mark, state.Version, state.Path)
		}
		return
	default:
		flag.Usage()
		os.Exit(2)
	}
	report(ctx, logg, results, err)
}

func report(ctx context.Context, logg *logger.Logger, results []migrate.Applied, err error) {
	for _, result := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":   result.Version,
			"direction": result.Direction,
			"path":      result.Path,
		}), "migration applied")
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "count", len(results)), "migrations complete")
}

func exitOn(err error, step string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
