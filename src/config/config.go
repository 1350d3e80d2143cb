// Package config loads block-alert's settings from flags, the environment
// and an optional .env file.
package config

import (
	"math"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xb10c/block-alert/src/httpauth"
	"github.com/0xb10c/block-alert/src/metrics"
	"github.com/0xb10c/block-alert/src/nbxplorer"
	"github.com/0xb10c/block-alert/src/ntfy"
	"github.com/0xb10c/block-alert/src/xpub"
)

// DefaultEnvFile is read from the working directory when present.
const DefaultEnvFile = ".env"

// MaxBalanceReportIntervalMS is the largest interval a time.Duration holds.
const MaxBalanceReportIntervalMS = math.MaxInt64 / int64(time.Millisecond)

// Config holds every setting. Flags take precedence over environment
// variables, which take precedence over the .env file.
type Config struct {
	NBXplorerURL            string `long:"nbxplorer-url" env:"NBXPLORER_URL" description:"NBXplorer base URL"`
	CryptoCode              string `long:"crypto-code" env:"CRYPTO_CODE" default:"BTC" description:"NBXplorer crypto code"`
	ExtendedPubKey          string `long:"extended-pubkey" env:"EXTENDED_PUBKEY" description:"Derivation scheme to watch, e.g. xpub... or xpub...-[legacy]"`
	BalanceReportIntervalMS int64  `long:"balance-report-interval-ms" env:"BALANCE_REPORT_INTERVAL_MS" description:"Milliseconds between balance reports"`
	NBXplorerCookiePath     string `long:"nbxplorer-cookie-path" env:"NBXPLORER_COOKIE_PATH" description:"NBXplorer .cookie file with user:password"`

	NtfyURL       string `long:"ntfy-url" env:"NTFY_URL" description:"ntfy server URL"`
	NtfyTopic     string `long:"ntfy-topic" env:"NTFY_TOPIC" description:"ntfy topic to publish to"`
	NtfyUser      string `long:"ntfy-user" env:"NTFY_USER" description:"ntfy username"`
	NtfyPassword  string `long:"ntfy-password" env:"NTFY_PASSWORD" description:"ntfy password"`
	ExplorerTxURL string `long:"explorer-tx-url" env:"EXPLORER_TX_URL" default:"https://mempool.space/tx/" description:"Block explorer URL the txid is appended to"`

	LogLevel    string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"error, warn, info or debug"`
	LogFile     string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this rotating file"`
	MetricsAddr string `long:"metrics-addr" env:"METRICS_ADDR" description:"Serve /metrics and /healthz on this address"`
}

// LoadEnvFile sets the variables of an .env file that are not already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not load %s", path)
	}
	return nil
}

// Load reads envFile, parses args and validates the result. A help request
// is returned as a *flags.Error of type flags.ErrHelp.
func Load(args []string, envFile string) (*Config, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errors.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings, URLs, the interval and the derivation
// scheme.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"NBXPLORER_URL", c.NBXplorerURL},
		{"EXTENDED_PUBKEY", c.ExtendedPubKey},
		{"NTFY_URL", c.NtfyURL},
		{"NTFY_TOPIC", c.NtfyTopic},
		{"CRYPTO_CODE", c.CryptoCode},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.Errorf("environment variable %s is not defined", r.name)
		}
	}

	if err := ValidateURL("NBXPLORER_URL", c.NBXplorerURL); err != nil {
		return err
	}
	if err := ValidateURL("NTFY_URL", c.NtfyURL); err != nil {
		return err
	}
	if err := ValidateURL("EXPLORER_TX_URL", c.ExplorerTxURL); err != nil {
		return err
	}

	if c.BalanceReportIntervalMS <= 0 {
		return errors.Errorf("BALANCE_REPORT_INTERVAL_MS must be a positive integer, got %d",
			c.BalanceReportIntervalMS)
	}
	if c.BalanceReportIntervalMS > MaxBalanceReportIntervalMS {
		return errors.Errorf("BALANCE_REPORT_INTERVAL_MS must be at most %d, got %d",
			MaxBalanceReportIntervalMS, c.BalanceReportIntervalMS)
	}

	if _, err := xpub.ParseDerivationScheme(c.ExtendedPubKey); err != nil {
		return errors.Wrap(err, "invalid EXTENDED_PUBKEY")
	}
	return nil
}

// ValidateURL checks that raw is an absolute http or https URL. name
// prefixes the error.
func ValidateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", name)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return nil
}

// BalanceReportInterval is BalanceReportIntervalMS as a duration.
func (c *Config) BalanceReportInterval() time.Duration {
	return time.Duration(c.BalanceReportIntervalMS) * time.Millisecond
}

// NBXplorerCredentials reads the cookie file if one is configured. An
// unusable cookie is logged and the connector runs without auth.
func (c *Config) NBXplorerCredentials(log logrus.FieldLogger) fn.Option[httpauth.Credentials] {
	if c.NBXplorerCookiePath == "" {
		return fn.None[httpauth.Credentials]()
	}

	creds, err := httpauth.FromCookieFile(c.NBXplorerCookiePath)
	if err != nil {
		log.WithError(err).Error("Failed to parse NBXplorer cookie")
		return fn.None[httpauth.Credentials]()
	}
	return fn.Some(creds)
}

// NtfyCredentials returns credentials when both NTFY_USER and NTFY_PASSWORD
// are set.
func (c *Config) NtfyCredentials() fn.Option[httpauth.Credentials] {
	return httpauth.New(c.NtfyUser, c.NtfyPassword)
}

// NBXplorer returns the wallet connector configuration.
func (c *Config) NBXplorer(log logrus.FieldLogger, m *metrics.Metrics) nbxplorer.Config {
	return nbxplorer.Config{
		URL:                   c.NBXplorerURL,
		CryptoCode:            c.CryptoCode,
		ExtendedPubKey:        c.ExtendedPubKey,
		BalanceReportInterval: c.BalanceReportInterval(),
		Credentials:           c.NBXplorerCredentials(log),
		Metrics:               m,
	}
}

// Ntfy returns the notification dispatcher configuration.
func (c *Config) Ntfy(m *metrics.Metrics) ntfy.Config {
	return ntfy.Config{
		URL:           c.NtfyURL,
		Topic:         c.NtfyTopic,
		Credentials:   c.NtfyCredentials(),
		ExplorerTxURL: c.ExplorerTxURL,
		Metrics:       m,
	}
}
