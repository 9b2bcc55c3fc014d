// Command seed creates the administrator account and demo data. It reads
// the same configuration as the server; -admin-password and -demo-password
// (or SEED_ADMIN_PASSWORD and SEED_DEMO_PASSWORD) skip the prompts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/dbx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/flagx"
	"github.com/dmitrijs2005/bigdatakeeper/internal/logging"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/config"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "seed failed:", err)
		os.Exit(1)
	}
}

func run() error {
	environ := config.OSEnviron()
	opts := seed.DefaultOptions()

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	adminPassword := fs.String("admin-password", environ["SEED_ADMIN_PASSWORD"], "administrator password")
	demoPassword := fs.String("demo-password", environ["SEED_DEMO_PASSWORD"], "demo user password")
	noDemo := fs.Bool("no-demo", false, "skip the demo user and folders")
	fs.StringVar(&opts.Admin.Email, "admin-email", opts.Admin.Email, "administrator email")
	fs.IntVar(&opts.Cost, "cost", opts.Cost, "bcrypt cost")

	own := []string{"-admin-password", "-demo-password", "-no-demo", "-admin-email", "-cost"}
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], own)); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(os.Args[1:], environ)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	if opts.Admin.Password, err = seed.ResolvePassword(*adminPassword, os.Stdout, "Admin password"); err != nil {
		return err
	}
	if *noDemo {
		opts.Demo = seed.Account{}
	} else if opts.Demo.Password, err = seed.ResolvePassword(*demoPassword, os.Stdout, "Demo user password"); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := repomanager.OpenDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	res, err := seed.NewSeeder(dbx.NewSQLTransactor(db), rm, logger).Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Seed completed: %d users, %d folders created\n", len(res.Users), len(res.Folders))
	return nil
}
