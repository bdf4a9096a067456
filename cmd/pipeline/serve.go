package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"paper-relay/internal/api"
	"paper-relay/internal/pipeline"
)

var (
	serveAddr     string
	serveSchedule string
	digestDays    int
)

func init() {
	ServeCommand.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	ServeCommand.Flags().StringVar(&serveSchedule, "schedule", "", `cron spec for the daily run, e.g. "0 9 * * *" (default from config)`)
	DigestCommand.Flags().IntVar(&digestDays, "days", 1, "include evaluations clipped in the last N days")

	RootCmd.AddCommand(&ServeCommand)
	RootCmd.AddCommand(&DigestCommand)
}

var ServeCommand = cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveSchedule != "" {
			cfg.Schedule.Spec = serveSchedule
		}

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Schedule.Spec != "" {
			sender, err := pipeline.NewEmailSenderFromConfig(cfg.Email)
			if err != nil {
				return err
			}
			sched, err := pipeline.NewScheduler(cfg.Schedule.Spec, func(ctx context.Context, date string) error {
				_, err := p.RunDaily(ctx, date, sender)
				return err
			})
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
		}

		if cfg.Env == "prod" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.NewServer(p, logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("shutdown")
			}
		}()

		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var DigestCommand = cobra.Command{
	Use:   "digest",
	Short: "Email the evaluations clipped to Notion",
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := pipeline.NewNotionClipper(cfg.Notion.Token, cfg.Notion.DatabaseID)
		if err != nil {
			return err
		}
		if nc.DatabaseID() == "" {
			if err := nc.CreateDatabase(cmd.Context(), cfg.Notion.PageID); err != nil {
				return err
			}
		}
		sender, err := pipeline.NewEmailSender(cfg.Email.From, cfg.Email.Password, cfg.Email.To)
		if err != nil {
			return err
		}

		since := time.Now().AddDate(0, 0, -digestDays)
		n, err := pipeline.SendDigestFromNotion(cmd.Context(), nc, sender, since)
		if err != nil {
			return err
		}
		logger.Infof("digest sent with %d evaluations", n)
		return nil
	},
}
