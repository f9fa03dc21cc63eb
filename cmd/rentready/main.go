package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lego3072/rentready-ai/internal/account"
	"github.com/lego3072/rentready-ai/internal/billing"
	"github.com/lego3072/rentready-ai/internal/config"
	"github.com/lego3072/rentready-ai/internal/email"
	"github.com/lego3072/rentready-ai/internal/entitlement"
	"github.com/lego3072/rentready-ai/internal/logging"
	"github.com/lego3072/rentready-ai/internal/pdf"
	"github.com/lego3072/rentready-ai/internal/report"
	"github.com/lego3072/rentready-ai/internal/server"
	"github.com/lego3072/rentready-ai/internal/store"
	"github.com/lego3072/rentready-ai/internal/vision"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "rentready",
	Short:   "RentReady - AI property condition reports",
	Long:    `RentReady generates landlord/tenant property condition reports from room photos, with per-report and subscription billing.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("RentReady %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

var hashpwCmd = &cobra.Command{
	Use:   "hashpw <password>",
	Short: "Hash a password for manual account fixes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := account.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(hashpwCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	// Baseline logger for early startup logs; re-initialized once config loads.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "rentready",
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "rentready",
	})

	log.Info().Str("version", Version).Msg("Starting RentReady server")

	st, err := store.Open(cfg.StoreDir())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	ledger := entitlement.NewLedger(st)

	if cfg.AnthropicAPIKey == "" {
		log.Warn().Msg("ANTHROPIC_API_KEY not set, room analysis will degrade to placeholders")
	}
	analyzer := vision.NewAnthropicAnalyzer(cfg.AnthropicAPIKey, cfg.VisionModels, 2*time.Minute)

	var sender email.Sender
	if cfg.ResendAPIKey != "" {
		sender = email.NewResendSender(cfg.ResendAPIKey)
	} else {
		log.Warn().Msg("RESEND_API_KEY not set, emails will be logged instead of sent")
		sender = email.NewLogSender(nil)
	}

	reports := report.New(
		st, ledger, analyzer,
		pdf.NewRenderer(cfg.ReportsDir()),
		sender, cfg.EmailFrom,
		cfg.UploadsDir(), cfg.ReportsDir(),
		cfg.BaseURL,
	)

	var proLookup account.ProLookup
	if cfg.StripeAPIKey != "" {
		proLookup = account.ProLookup(billing.NewProLookup(cfg.StripeAPIKey))
	}

	reconciler := billing.NewReconciler(st)
	deps := &server.Deps{
		Config:   cfg,
		Reports:  reports,
		Accounts: account.NewService(st, proLookup),
		Webhook:  billing.NewWebhookHandler(cfg.StripeWebhookSecret, reconciler),
		Version:  Version,
	}
	if cfg.BillingConfigured() {
		deps.Checkout = billing.NewCheckout(cfg)
		deps.Verifier = billing.NewVerifier(cfg.StripeAPIKey, reconciler)
	} else {
		log.Warn().Msg("Stripe not configured, checkout and purchase verification are disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go report.NewJanitor(st).Run(ctx)

	if err := server.Run(ctx, cfg, server.NewRouter(deps)); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
