package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/walletledger/internal/settlement"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagListenAddr        = "listen-addr"
	flagMetricsAddr       = "metrics-addr"
	flagDatabaseURL       = "database-url"
	flagStoreDriver       = "store-driver"
	flagSettlement        = "settlement"
	flagNIPBaseURL        = "nip-base-url"
	flagNIPOrgCode        = "nip-org-code"
	flagNIPSecret         = "nip-secret"
	flagNIPChannel        = "nip-channel"
	flagSandboxLatency    = "sandbox-latency"
	flagRetryAttempts     = "retry-attempts"
	flagRetryBackoff      = "retry-backoff"
	flagSettleTimeout     = "settlement-timeout"
	flagEvents            = "events"
	flagKafkaBrokers      = "kafka-brokers"
	flagKafkaTopic        = "kafka-topic"
	flagRedisAddr         = "redis-addr"
	flagRewardsStream     = "rewards-stream"
	flagReconcileInterval = "reconcile-interval"
	flagReconcileAge      = "reconcile-age"
	flagReconcileBatch    = "reconcile-batch"
	flagFees              = "fees"
	flagBcryptCost        = "bcrypt-cost"
	envPrefix             = "WALLETD"

	defaultDatabaseURL    = "sqlite:///tmp/walletledger.db"
	defaultGRPCListenAddr = ":7000"
	defaultMetricsAddr    = ":7001"
	defaultRetryAttempts  = 3

	storeDriverGorm = "gorm"
	storeDriverPgx  = "pgx"

	settlementSandbox = "sandbox"
	settlementNIP     = "nip"

	eventsLog   = "log"
	eventsKafka = "kafka"

	feesNone = "none"
	feesNIP  = "nip"
)

type runtimeConfig struct {
	ListenAddr        string
	MetricsAddr       string
	DatabaseURL       string
	StoreDriver       string
	Settlement        string
	NIP               settlement.NIPConfig
	SandboxLatency    time.Duration
	Retry             settlement.RetryConfig
	SettlementTimeout time.Duration
	Events            string
	KafkaBrokers      []string
	KafkaTopic        string
	RedisAddr         string
	RewardsStream     string
	ReconcileInterval time.Duration
	ReconcileAge      time.Duration
	ReconcileBatch    int
	Fees              string
	BcryptCost        int
}

func main() {
	_ = godotenv.Load()
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "walletd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	serve := func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg)
	}
	loader := func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd, cfg)
	}

	cmd := &cobra.Command{
		Use:           "walletd",
		Short:         "Wallet ledger gRPC server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE:       loader,
		RunE:          serve,
	}
	registerFlags(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:     "serve",
		Short:   "Serve the transfer gRPC API, metrics and the reconciler",
		PreRunE: loader,
		RunE:    serve,
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "reconcile",
		Short:   "Run one reconciliation pass over stale pending transfers",
		PreRunE: loader,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runReconcile(ctx, cfg)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "migrate",
		Short:   "Create or update the ledger schema",
		PreRunE: loader,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cfg)
		},
	})
	return cmd
}

func registerFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String(flagListenAddr, defaultGRPCListenAddr, "gRPC listen address")
	flags.String(flagMetricsAddr, defaultMetricsAddr, "Prometheus metrics listen address (empty disables)")
	flags.String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL connection string or sqlite path")
	flags.String(flagStoreDriver, storeDriverGorm, "store implementation: gorm or pgx")
	flags.String(flagSettlement, settlementSandbox, "settlement leg: sandbox or nip")
	flags.String(flagNIPBaseURL, "", "NIP gateway base URL")
	flags.String(flagNIPOrgCode, "", "NIP originator institution code")
	flags.String(flagNIPSecret, "", "NIP request signing secret")
	flags.String(flagNIPChannel, "", "NIP channel code")
	flags.Duration(flagSandboxLatency, 0, "artificial sandbox settlement latency")
	flags.Int(flagRetryAttempts, defaultRetryAttempts, "settlement attempts on transport errors")
	flags.Duration(flagRetryBackoff, 200*time.Millisecond, "initial settlement retry backoff")
	flags.Duration(flagSettleTimeout, 30*time.Second, "settlement call timeout")
	flags.String(flagEvents, eventsLog, "event notifier: log or kafka")
	flags.String(flagKafkaBrokers, "", "comma-separated Kafka brokers")
	flags.String(flagKafkaTopic, "walletledger.transfers", "Kafka topic for transfer events")
	flags.String(flagRedisAddr, "", "Redis address for the rewards stream (empty disables)")
	flags.String(flagRewardsStream, "", "Redis stream receiving reward grants")
	flags.Duration(flagReconcileInterval, time.Minute, "reconciler tick interval (0 disables)")
	flags.Duration(flagReconcileAge, 2*time.Minute, "minimum age of a pending transfer before reconciliation")
	flags.Int(flagReconcileBatch, 100, "pending transfers examined per pass")
	flags.String(flagFees, feesNIP, "fee schedule: nip or none")
	flags.Int(flagBcryptCost, 10, "bcrypt cost for transaction secrets")
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.MetricsAddr = strings.TrimSpace(v.GetString(flagMetricsAddr))
	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(v.GetString(flagStoreDriver)))
	cfg.Settlement = strings.ToLower(strings.TrimSpace(v.GetString(flagSettlement)))
	cfg.NIP = settlement.NIPConfig{
		BaseURL:          strings.TrimSpace(v.GetString(flagNIPBaseURL)),
		OrganizationCode: strings.TrimSpace(v.GetString(flagNIPOrgCode)),
		SecretKey:        v.GetString(flagNIPSecret),
		ChannelCode:      strings.TrimSpace(v.GetString(flagNIPChannel)),
	}
	cfg.SandboxLatency = v.GetDuration(flagSandboxLatency)
	cfg.Retry = settlement.RetryConfig{
		Attempts: v.GetInt(flagRetryAttempts),
		Backoff:  v.GetDuration(flagRetryBackoff),
	}
	cfg.SettlementTimeout = v.GetDuration(flagSettleTimeout)
	cfg.Events = strings.ToLower(strings.TrimSpace(v.GetString(flagEvents)))
	cfg.KafkaBrokers = splitList(v.GetString(flagKafkaBrokers))
	cfg.KafkaTopic = strings.TrimSpace(v.GetString(flagKafkaTopic))
	cfg.RedisAddr = strings.TrimSpace(v.GetString(flagRedisAddr))
	cfg.RewardsStream = strings.TrimSpace(v.GetString(flagRewardsStream))
	cfg.ReconcileInterval = v.GetDuration(flagReconcileInterval)
	cfg.ReconcileAge = v.GetDuration(flagReconcileAge)
	cfg.ReconcileBatch = v.GetInt(flagReconcileBatch)
	cfg.Fees = strings.ToLower(strings.TrimSpace(v.GetString(flagFees)))
	cfg.BcryptCost = v.GetInt(flagBcryptCost)

	return cfg.validate()
}

func (cfg *runtimeConfig) validate() error {
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultGRPCListenAddr
	}
	switch cfg.StoreDriver {
	case storeDriverGorm:
	case storeDriverPgx:
		if !isPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("%s=%s requires a postgres database url", flagStoreDriver, storeDriverPgx)
		}
	default:
		return fmt.Errorf("unsupported %s %q", flagStoreDriver, cfg.StoreDriver)
	}
	switch cfg.Settlement {
	case settlementSandbox:
	case settlementNIP:
		if cfg.NIP.BaseURL == "" || cfg.NIP.OrganizationCode == "" || cfg.NIP.SecretKey == "" {
			return fmt.Errorf("%s, %s and %s are required for nip settlement", flagNIPBaseURL, flagNIPOrgCode, flagNIPSecret)
		}
	default:
		return fmt.Errorf("unsupported %s %q", flagSettlement, cfg.Settlement)
	}
	switch cfg.Events {
	case eventsLog:
	case eventsKafka:
		if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopic == "" {
			return fmt.Errorf("%s and %s are required for kafka events", flagKafkaBrokers, flagKafkaTopic)
		}
	default:
		return fmt.Errorf("unsupported %s %q", flagEvents, cfg.Events)
	}
	switch cfg.Fees {
	case feesNone, feesNIP:
	default:
		return fmt.Errorf("unsupported %s %q", flagFees, cfg.Fees)
	}
	if cfg.ReconcileInterval < 0 || cfg.ReconcileAge < 0 {
		return fmt.Errorf("%s and %s must not be negative", flagReconcileInterval, flagReconcileAge)
	}
	if cfg.ReconcileBatch <= 0 {
		return fmt.Errorf("%s must be positive", flagReconcileBatch)
	}
	if cfg.SettlementTimeout <= 0 {
		return fmt.Errorf("%s must be positive", flagSettleTimeout)
	}
	if cfg.Retry.Attempts < 0 {
		return fmt.Errorf("%s must not be negative", flagRetryAttempts)
	}
	// The reconciler must never query a transfer whose submission may still be in flight.
	if window := cfg.settlementWindow(); cfg.ReconcileAge <= window {
		return fmt.Errorf("%s %s must exceed %s x %s (%s)", flagReconcileAge, cfg.ReconcileAge, flagSettleTimeout, flagRetryAttempts, window)
	}
	return nil
}

func (cfg *runtimeConfig) settlementWindow() time.Duration {
	attempts := cfg.Retry.Attempts
	if attempts == 0 {
		attempts = defaultRetryAttempts
	}
	return cfg.SettlementTimeout * time.Duration(attempts)
}

func splitList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
