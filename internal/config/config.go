package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress  string
	DatabaseURI string
	JWTSecret   string
	TokenTTL    time.Duration

	// Daraja merchant settings.
	MpesaBaseURL        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortCode      string
	MpesaPasskey        string
	MpesaCallbackURL    string
	ProviderTimeout     time.Duration

	// Stuck-payment reconciliation sweep.
	PaymentSweepInterval time.Duration
	PaymentSweepAge      time.Duration
	MaxSweepBatch        int
	WorkerPoolSize       int

	ShutdownTimeout time.Duration
}

const (
	defaultRunAddress           = ":8080"
	defaultJWTSecret            = "change-me-in-production"
	defaultTokenTTL             = 24 * time.Hour
	defaultMpesaBaseURL         = "https://sandbox.safaricom.co.ke"
	defaultProviderTimeout      = 10 * time.Second
	defaultPaymentSweepInterval = time.Minute
	defaultPaymentSweepAge      = 3 * time.Minute
	defaultMaxSweepBatch        = 32
	defaultWorkerPoolSize       = 4
	defaultShutdownTimeout      = 10 * time.Second
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:           getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:          getString(lookup, "DATABASE_URI", ""),
		JWTSecret:            getString(lookup, "JWT_SECRET", defaultJWTSecret),
		TokenTTL:             getDuration(lookup, "AUTH_TOKEN_TTL", defaultTokenTTL),
		MpesaBaseURL:         getString(lookup, "MPESA_BASE_URL", defaultMpesaBaseURL),
		MpesaConsumerKey:     getString(lookup, "MPESA_CONSUMER_KEY", ""),
		MpesaConsumerSecret:  getString(lookup, "MPESA_CONSUMER_SECRET", ""),
		MpesaShortCode:       getString(lookup, "MPESA_SHORTCODE", ""),
		MpesaPasskey:         getString(lookup, "MPESA_PASSKEY", ""),
		MpesaCallbackURL:     getString(lookup, "MPESA_CALLBACK_URL", ""),
		ProviderTimeout:      getDuration(lookup, "PROVIDER_TIMEOUT", defaultProviderTimeout),
		PaymentSweepInterval: getDuration(lookup, "PAYMENT_SWEEP_INTERVAL", defaultPaymentSweepInterval),
		PaymentSweepAge:      getDuration(lookup, "PAYMENT_SWEEP_AGE", defaultPaymentSweepAge),
		MaxSweepBatch:        getInt(lookup, "SWEEP_BATCH_SIZE", defaultMaxSweepBatch),
		WorkerPoolSize:       getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		ShutdownTimeout:      getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	fs := flag.NewFlagSet("marketplace", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		providerTimeoutStr = cfg.ProviderTimeout.String()
		sweepIntervalStr   = cfg.PaymentSweepInterval.String()
		sweepAgeStr        = cfg.PaymentSweepAge.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.MpesaBaseURL, "m", cfg.MpesaBaseURL, "Daraja API base URL")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "Secret for signing auth tokens")
	fs.StringVar(&providerTimeoutStr, "provider-timeout", providerTimeoutStr, "Timeout for outbound Daraja calls")
	fs.StringVar(&sweepIntervalStr, "sweep-interval", sweepIntervalStr, "Interval between stuck-payment sweeps")
	fs.StringVar(&sweepAgeStr, "sweep-age", sweepAgeStr, "Age after which an awaiting payment is swept")
	fs.IntVar(&cfg.MaxSweepBatch, "sweep-batch", cfg.MaxSweepBatch, "Maximum payments per sweep batch")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent sweep workers")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.ProviderTimeout, err = time.ParseDuration(providerTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid provider timeout: %w", err)
	}

	if cfg.PaymentSweepInterval, err = time.ParseDuration(sweepIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}

	if cfg.PaymentSweepAge, err = time.ParseDuration(sweepAgeStr); err != nil {
		return nil, fmt.Errorf("invalid sweep age: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if secretFile, ok := lookup("JWT_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt secret file: %w", err)
		}
		cfg.JWTSecret = string(content)
	}

	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}

	if cfg.PaymentSweepInterval <= 0 {
		cfg.PaymentSweepInterval = defaultPaymentSweepInterval
	}

	if cfg.PaymentSweepAge <= 0 {
		cfg.PaymentSweepAge = defaultPaymentSweepAge
	}

	if cfg.MaxSweepBatch <= 0 {
		cfg.MaxSweepBatch = defaultMaxSweepBatch
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.MpesaConsumerKey == "" || cfg.MpesaConsumerSecret == "" {
		return nil, fmt.Errorf("mpesa consumer credentials must be provided")
	}

	if cfg.MpesaShortCode == "" || cfg.MpesaPasskey == "" {
		return nil, fmt.Errorf("mpesa shortcode and passkey must be provided")
	}

	if cfg.MpesaCallbackURL == "" {
		return nil, fmt.Errorf("mpesa callback URL must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
