package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/access-realty/directlist/internal/api"
	"github.com/access-realty/directlist/internal/attribution"
	"github.com/access-realty/directlist/internal/brand"
	"github.com/access-realty/directlist/internal/crm"
	"github.com/access-realty/directlist/internal/lead"
	"github.com/access-realty/directlist/internal/parcel"
	"github.com/access-realty/directlist/pkg/parcelapi"
	"github.com/access-realty/directlist/pkg/slack"
	"github.com/access-realty/directlist/pkg/stripe"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the marketing API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		tracker := attribution.NewTracker(st)

		var notifier slack.Client
		if cfg.Slack.WebhookURL != "" {
			notifier = slack.NewClient(cfg.Slack.WebhookURL)
		}

		var leadOpts []lead.Option
		if notifier != nil {
			leadOpts = append(leadOpts, lead.WithNotifier(notifier))
		}
		if cfg.CRM.Token != "" && cfg.CRM.LeadDB != "" {
			syncer := crm.NewNotionSyncer(crm.NewClient(cfg.CRM.Token), cfg.CRM.LeadDB)
			leadOpts = append(leadOpts, lead.WithCRM(syncer))
		}
		leads := lead.NewService(st, tracker, leadOpts...)

		var serverOpts []api.Option
		if notifier != nil {
			serverOpts = append(serverOpts, api.WithNotifier(notifier))
		}
		if cfg.Stripe.SecretKey != "" {
			serverOpts = append(serverOpts, api.WithPayments(stripe.NewClient(cfg.Stripe.SecretKey)))
		}
		var remote parcelapi.Client
		if cfg.Parcel.BaseURL != "" && cfg.Parcel.APIKey != "" {
			remote = parcelapi.NewClient(cfg.Parcel.BaseURL, cfg.Parcel.APIKey)
		}
		serverOpts = append(serverOpts, api.WithResolver(parcel.NewResolver(st, remote)))

		server := api.NewServer(api.Config{
			AllowedOrigins:     cfg.Server.AllowedOrigins,
			CookieDomain:       cfg.Server.CookieDomain,
			CookieSecure:       cfg.Server.CookieSecure,
			CalendlySigningKey: cfg.Calendly.WebhookSecret,
			Checkout: api.CheckoutConfig{
				Prices:     cfg.Stripe.Prices,
				SuccessURL: cfg.Stripe.SuccessURL,
				CancelURL:  cfg.Stripe.CancelURL,
			},
			Brand: brand.Config{
				PrimaryHost:   cfg.Brands.PrimaryHost,
				SecondaryHost: cfg.Brands.SecondaryHost,
				RoutePrefix:   cfg.Brands.RoutePrefix,
			},
		}, st, tracker, leads, serverOpts...)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Handler(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("driver", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
