package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalog-site/internal/devbackend"
	"github.com/ziadkadry99/catalog-site/internal/progress"
	"github.com/ziadkadry99/catalog-site/internal/server"
)

var (
	devPort  int
	devReset bool
)

var devbackendCmd = &cobra.Command{
	Use:   "devbackend",
	Short: "Run a seeded catalog backend for local development",
	Long: `Starts a SQLite-backed implementation of the catalog API: categories,
manufacturers, products with filters and pagination, autocomplete, jobs,
contact submissions and a token-protected admin namespace. Files in the
uploads directory are served at the origin root.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dc := cfg.DevBackend
		if devPort != 0 {
			dc.Port = devPort
		}

		database, err := openDatabase(dc.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		seed := devbackend.DefaultSeed()
		if dc.SeedFile != "" {
			if seed, err = devbackend.LoadSeed(dc.SeedFile); err != nil {
				return err
			}
		}
		repo := devbackend.NewRepository(database, seed)

		// A fresh in-memory database always needs the seed.
		if devReset || database.Path() == ":memory:" {
			if err := repo.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("seeding: %w", err)
			}
		}

		srv := server.New(server.Config{Port: dc.Port, AllowAll: true, Name: "devbackend"})
		devbackend.RegisterRoutes(srv.Timed(), repo, devbackend.RoutesConfig{
			AdminToken:    dc.AdminToken,
			SessionCookie: cfg.Auth.SessionCookie,
			UploadsDir:    dc.UploadsDir,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "devbackend starting on port %d (database %s)\n", dc.Port, database.Path())
		if dc.AdminToken == "" {
			fmt.Fprintln(os.Stderr, "  admin routes disabled: set dev_backend.admin_token to enable them")
		}
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var devImportCmd = &cobra.Command{
	Use:   "import <seed.yaml>",
	Short: "Upsert records from a seed file into the development database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DevBackend.Database == "" {
			return fmt.Errorf("dev_backend.database is empty: importing into an in-memory database has no effect")
		}
		seed, err := devbackend.LoadSeed(args[0])
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg.DevBackend.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		repo := devbackend.NewRepository(database, devbackend.DefaultSeed())
		if err := repo.Import(cmd.Context(), seed, progress.NewReporter("Importing")); err != nil {
			return err
		}
		fmt.Printf("Imported %d records into %s\n", seed.Len(), database.Path())
		return nil
	},
}

func init() {
	devbackendCmd.Flags().IntVar(&devPort, "port", 0, "Port to listen on (overrides dev_backend.port)")
	devbackendCmd.Flags().BoolVar(&devReset, "reset", false, "Replace the database contents with the seed before starting")
	devbackendCmd.AddCommand(devImportCmd)
	rootCmd.AddCommand(devbackendCmd)
}
