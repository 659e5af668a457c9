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

	"github.com/ziadkadry99/catalog-site/internal/config"
	"github.com/ziadkadry99/catalog-site/internal/proxy"
	"github.com/ziadkadry99/catalog-site/internal/server"
)

var (
	servePort   int
	serveOrigin string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy server in front of the backend API",
	Long: `Starts an HTTP server that mounts one request forwarder per configured
proxy. Each forwarder relays GET, HEAD, POST, PUT, PATCH and DELETE requests
to the backend origin under its namespace, injecting the session cookie as a
bearer token and passing JSON and binary responses back to the caller.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if serveOrigin != "" {
			cfg.Backend.Origin = serveOrigin
		}

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAll,
		})
		if err := mountProxies(srv, cfg); err != nil {
			return err
		}

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "catalogsite %s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Backend: %s\n", cfg.Backend.Origin)
		for _, p := range cfg.Proxies {
			fmt.Fprintf(os.Stderr, "  %s -> %s/%s\n", p.Prefix, cfg.Backend.Origin, p.Namespace)
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// mountProxies creates a forwarder for every configured proxy instance.
func mountProxies(srv *server.Server, cfg *config.Config) error {
	client := proxy.NewClient(cfg.Backend.HeaderTimeout)
	for _, p := range cfg.Proxies {
		auth, err := proxy.ParseStrategies(p.Strategies, cfg.Auth.SessionCookie)
		if err != nil {
			return fmt.Errorf("proxy %s: %w", p.Prefix, err)
		}
		fwd, err := proxy.New(proxy.Config{
			Origin:    cfg.Backend.Origin,
			Namespace: p.Namespace,
			Rules:     p.Rules,
			Auth:      auth,
			Client:    client,
		})
		if err != nil {
			return fmt.Errorf("proxy %s: %w", p.Prefix, err)
		}
		srv.Mount(p.Prefix, fwd.Routes())
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().StringVar(&serveOrigin, "origin", "", "Backend origin (overrides backend.origin)")
	rootCmd.AddCommand(serveCmd)
}
