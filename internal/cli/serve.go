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

	"taskshare/internal/auth"
	"taskshare/internal/httpapi"
	"taskshare/internal/service"
)

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the invitation sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if err := cfg.RequireSecret(); err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error("close db", "err", err)
				}
			}()
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := service.NewScheduler(time.Local, log)
			if _, err := scheduler.ScheduleInvitationSweep(a.directory, cfg.InvitationSweepAt, cfg.InvitationSweepInterval); err != nil {
				return err
			}
			scheduler.Start()
			defer scheduler.Stop()

			handler := httpapi.NewHandler(httpapi.Deps{
				Authz:      a.resolver,
				Categories: a.categories,
				Lists:      a.lists,
				Tasks:      a.tasks,
				Directory:  a.directory,
				Users:      a.users,
				Tokens:     tokens,
				DB:         sqlDB,
				Log:        log,
			})
			srv := &http.Server{Addr: cfg.Addr, Handler: handler,
				ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
				WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}

			errCh := make(chan error, 1)
			go func() {
				log.Info("listening", "addr", cfg.Addr, "driver", a.db.Dialector.Name())
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			log.Info("shutdown complete")
			return nil
		},
	}
}
