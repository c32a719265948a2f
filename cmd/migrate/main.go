package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/db"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/migrate"
)

const usage = `usage: migrate -cmd <command> [flags]

commands:
  up        apply every pending migration
  down      roll back the newest migration
  to        migrate up or down to -version
  status    list migrations and when they were applied
  version   print the current schema version
  create    write a new migration named -name into -dir
  validate  check migration files for naming and goose annotations
`

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command (see -h)")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name for create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for to")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*cmd, *dir, *name, *version); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func run(cmd, dir, name, version string) error {
	source := migrate.Embedded()
	if dir != "" {
		source = os.DirFS(dir)
	}

	// create and validate work on files only
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("-name is required")
		}
		target := dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.Create(target, name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.Validate(source); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    cmd,
		"driver": cfg.DB.Driver,
	})

	runner, closeDB, err := openRunner(ctx, cfg, logg, source)
	if err != nil {
		logg.Error(ctx, "migration runner unavailable", err)
		return err
	}
	defer closeDB()

	switch cmd {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "to":
		target, err := migrate.ParseVersion(version)
		if err != nil {
			return err
		}
		return runner.To(ctx, target)
	case "status":
		return runner.Status(ctx, os.Stdout)
	case "version":
		current, err := runner.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(current)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openRunner(ctx context.Context, cfg *config.Config, logg *logger.Logger, source fs.FS) (*migrate.Runner, func(), error) {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = client.Close() }

	sqlDB, err := client.SQL()
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	dialect, err := migrate.DialectFor(cfg.DB.Driver)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	runner, err := migrate.NewRunner(sqlDB, dialect, source, logg)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return runner, closeDB, nil
}
