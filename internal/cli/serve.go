package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/tracksync/internal/app"
	"github.com/cesargomez89/tracksync/internal/httpapi"
)

const shutdownTimeout = 30 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for starting and watching runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}

		log, closeLog, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closeLog()

		svc := newServices(log)
		defer svc.Close()

		runs := app.NewRuns(svc.syncer, log)
		h := httpapi.NewHandler(runs, svc.session, log)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           httpapi.NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("Server listening", "addr", srv.Addr, "output_root", cfg.OutputRoot)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", "error", err)
		}
		if err := runs.Shutdown(shutdownCtx); err != nil {
			log.Error("Runs did not stop in time", "error", err)
		}

		log.Info("Server exiting")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
