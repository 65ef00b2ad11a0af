package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/davkeeper/internal/admin"
	"github.com/dmitrijs2005/davkeeper/internal/cryptox"
	"github.com/dmitrijs2005/davkeeper/internal/logging"
	"github.com/dmitrijs2005/davkeeper/internal/server/config"
	"github.com/dmitrijs2005/davkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/davkeeper/internal/server/services"
	"github.com/dmitrijs2005/davkeeper/internal/server/storage"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, admin.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	global, command := admin.SplitArgs(args)

	cfg, err := config.Load(global)
	if err != nil {
		return err
	}
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return err
	}

	backend, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}

	dir := services.NewUserDirectory(db, rm, backend, cryptox.NewArgon2Hasher(), cfg, logger)
	return admin.NewApp(dir, os.Stdin, os.Stdout, int(os.Stdin.Fd())).Run(ctx, command)
}
