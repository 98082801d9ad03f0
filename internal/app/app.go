package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"

	"github.com/jfs415/ip2asn2cc"
	"github.com/jfs415/ip2asn2cc/internal/app/version"
	"github.com/jfs415/ip2asn2cc/internal/config"
	"github.com/jfs415/ip2asn2cc/internal/database"
	"github.com/jfs415/ip2asn2cc/internal/geolite"
	"github.com/jfs415/ip2asn2cc/internal/rir"
	"github.com/jfs415/ip2asn2cc/internal/status"
	"github.com/jfs415/ip2asn2cc/internal/support"
)

var (
	ErrNoQueries   = errors.New("no addresses or ASNs given")
	ErrNoCountries = errors.New("no countries configured; use -countries or IP2CC_COUNTRIES")
)

// Run builds a Checker from the settings and flags in args and prints one
// "query country match" line per query to out.
func Run(ctx context.Context, args []string, out io.Writer) error {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found. Falling back to system environment variables.")
	}

	fs := flag.NewFlagSet("ip2cc", flag.ContinueOnError)
	fs.SetOutput(out)
	countriesFlag := fs.String("countries", "", "Comma separated country codes, e.g. US,CA")
	policyFlag := fs.String("policy", "", "Filter policy: include or exclude")
	compareFlag := fs.Bool("compare", false, "Append the GeoLite2 country of every address")
	settingsFlag := fs.String("settings", config.SettingsPath(), "Path to the settings file")
	versionFlag := fs.Bool("version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *versionFlag {
		info := version.Get()
		_, err := fmt.Fprintf(out, "ip2cc %s (built %s)\n", info.BuildVersion, info.BuiltAt)
		return err
	}

	cfg, err := config.ReadSettings(*settingsFlag)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	log.SetLevel(cfg.Level())

	if *countriesFlag != "" {
		cfg.Countries = support.SplitList(*countriesFlag)
	}
	if *policyFlag != "" {
		cfg.FilterPolicy = *policyFlag
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	if len(cfg.Countries) == 0 {
		return ErrNoCountries
	}

	queries := fs.Args()
	if len(queries) == 0 {
		return ErrNoQueries
	}

	opts, cleanup, err := checkerOptions(ctx, cfg, policy)
	if err != nil {
		return err
	}
	defer cleanup()

	checker, err := ip2asn2cc.New(ctx, cfg.Countries, opts...)
	if err != nil {
		return fmt.Errorf("failed to build country index: %w", err)
	}

	var reader *geolite.Reader
	if *compareFlag {
		reader, err = geolite.Open(cfg.GeoLite.CountryDB)
		if err != nil {
			log.Warn("GeoLite comparison disabled", "error", err)
		} else {
			defer reader.Close()
		}
	}

	for _, query := range queries {
		if _, err := fmt.Fprintln(out, answer(checker, reader, query)); err != nil {
			return err
		}
	}
	return nil
}

func checkerOptions(ctx context.Context, cfg config.Config, policy ip2asn2cc.FilterPolicy) ([]ip2asn2cc.Option, func(), error) {
	client, err := rir.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure proxy: %w", err)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	opts := []ip2asn2cc.Option{
		ip2asn2cc.WithFilterPolicy(policy),
		ip2asn2cc.WithLoopback(cfg.IncludeIPv4Loopback, cfg.IncludeIPv6Loopback),
		ip2asn2cc.WithHTTPClient(client),
		ip2asn2cc.WithWorkers(cfg.WorkerCount()),
		ip2asn2cc.WithFetchTimeout(cfg.FetchTimeoutDuration()),
		ip2asn2cc.WithParseTimeout(cfg.ParseTimeoutDuration()),
		ip2asn2cc.WithTempDir(cfg.TempDir),
		ip2asn2cc.WithUserAgent(userAgent),
	}
	if len(cfg.Sources) > 0 {
		opts = append(opts, ip2asn2cc.WithSources(cfg.Sources...))
	}

	cleanup := func() {}

	if cfg.Database.DSN != "" {
		if _, err := database.SetupDB(database.WithDialector(postgres.Open(cfg.Database.DSN))); err != nil {
			log.Warn("Ingestion audit log disabled", "error", err)
		} else {
			opts = append(opts, ip2asn2cc.WithReporter(database.IngestionReporter))
		}
	}

	if cfg.Status.RedisURL != "" {
		redisClient, err := support.GetRedisClient(ctx, cfg.Status.RedisURL)
		if err != nil {
			log.Warn("Status publication disabled", "error", err)
		} else {
			opts = append(opts, ip2asn2cc.WithReporter(status.Reporter(redisClient, cfg.Status.Key, cfg.StatusTTL())))
			cleanup = func() {
				if err := support.CloseRedisClient(); err != nil {
					log.Warn("error closing redis client", "error", err)
				}
			}
		}
	}

	return opts, cleanup, nil
}

func answer(checker *ip2asn2cc.Checker, reader *geolite.Reader, query string) string {
	if asn, ok := asnQuery(query); ok {
		return fmt.Sprintf("%s - %t", query, checker.IsAsnMatch(asn))
	}

	line := fmt.Sprintf("%s %s %t", query, checker.CountryCode(query), checker.IsCountryMatch(query))
	if reader != nil {
		code, found := reader.CountryCode(query)
		if !found {
			code = ip2asn2cc.Unknown
		}
		line += " geolite=" + code
	}
	return line
}

// asnQuery reports whether query names an ASN, either as bare digits or with
// an AS prefix, and returns the digits.
func asnQuery(query string) (string, bool) {
	digits := query
	if len(digits) > 2 && strings.EqualFold(digits[:2], "AS") {
		digits = digits[2:]
	}
	if digits == "" {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return digits, true
}
