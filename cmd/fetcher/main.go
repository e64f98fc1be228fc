package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"price-fetcher/internal/adapter/cache"
	"price-fetcher/internal/adapter/repository"
	"price-fetcher/internal/config"
	"price-fetcher/internal/domain/ports"
	"price-fetcher/internal/metrics"
	"price-fetcher/internal/render"
	"price-fetcher/internal/service"
	"price-fetcher/pkg/logger"
	"price-fetcher/pkg/utils"
)

const usageText = `Usage: fetcher <command> [flags]

Commands:
  series   Fetch a series of beancount price listings for commodities
  usage    Print the provider api usage stats

Run 'fetcher <command> -h' for command flags.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("no command specified")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.Log.Level)

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "series":
		return runSeries(ctx, args[1:], cfg, log, appMetrics)
	case "usage":
		return runUsage(ctx, args[1:], cfg, log, appMetrics)
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func runSeries(ctx context.Context, args []string, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) error {
	flags := flag.NewFlagSet("series", flag.ExitOnError)
	appID := flags.String("app-id", cfg.Provider.AppID, "openexchangerates.org app ID")
	startStr := flags.String("start", "", "start date in format YYYY-mm-dd (required)")
	endStr := flags.String("end", "", "end date in format YYYY-mm-dd (required)")
	base := flags.String("base", "", "commodity to use as the reference in the price listing (required)")
	commoditiesStr := flags.String("commodities", "", "comma-separated commodities to request rates for (required)")
	parallelism := flags.Int("parallel-requests", 2, "number of parallel network requests to use")
	rounding := flags.Int("rounding", -1, "number of decimal places to round to (-1 for none)")
	descending := flags.Bool("desc", false, "order the listings in descending order by date")
	noQuotaCheck := flags.Bool("no-quota-check", false, "skip the quota pre-flight check (saves one request)")
	cachePath := flags.String("cache-file", cfg.Cache.Path, "path of the cache snapshot file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *appID == "" {
		return fmt.Errorf("an app ID is required (flag -app-id or env PROVIDER_APP_ID)")
	}
	if *startStr == "" || *endStr == "" {
		return fmt.Errorf("both -start and -end are required")
	}
	start, err := utils.ParseDate(*startStr)
	if err != nil {
		return fmt.Errorf("unable to parse start date: %w", err)
	}
	end, err := utils.ParseDate(*endStr)
	if err != nil {
		return fmt.Errorf("unable to parse end date: %w", err)
	}
	if *base == "" {
		return fmt.Errorf("a base commodity is required")
	}
	commodities := splitCommodities(*commoditiesStr)
	if len(commodities) == 0 {
		return fmt.Errorf("at least one commodity is required")
	}

	rateCache, err := openCache(cfg, *cachePath, log, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := rateCache.Close(); err != nil {
			log.Error("Failed to close cache", "error", err)
		}
	}()

	source := repository.NewOpenExchangeAPI(cfg.Provider.BaseURL, *appID, cfg.Provider.Timeout, log, m)
	fetcher := service.NewSeriesService(source, rateCache, log)

	series, err := fetcher.FetchSeries(ctx, service.SeriesRequest{
		Start:          start,
		End:            end,
		Symbols:        requestSymbols(commodities, *base),
		Parallelism:    *parallelism,
		SkipQuotaCheck: *noQuotaCheck,
	})
	if err != nil {
		return err
	}

	opts := render.Options{
		Base:        *base,
		Commodities: commodities,
		Descending:  *descending,
	}
	if *rounding >= 0 {
		places := int32(*rounding)
		opts.Rounding = &places
	}

	lines, err := render.PriceLines(series, opts)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func runUsage(ctx context.Context, args []string, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) error {
	flags := flag.NewFlagSet("usage", flag.ExitOnError)
	appID := flags.String("app-id", cfg.Provider.AppID, "openexchangerates.org app ID")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *appID == "" {
		return fmt.Errorf("an app ID is required (flag -app-id or env PROVIDER_APP_ID)")
	}

	source := repository.NewOpenExchangeAPI(cfg.Provider.BaseURL, *appID, cfg.Provider.Timeout, log, m)
	usage, err := source.FetchUsage(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("status:             %s\n", usage.Status)
	fmt.Printf("plan:               %s (%s)\n", usage.PlanName, usage.PlanQuota)
	fmt.Printf("requests:           %d\n", usage.Requests)
	fmt.Printf("requests quota:     %d\n", usage.RequestsQuota)
	fmt.Printf("requests remaining: %d\n", usage.RequestsRemaining)
	fmt.Printf("days elapsed:       %d\n", usage.DaysElapsed)
	fmt.Printf("days remaining:     %d\n", usage.DaysRemaining)
	fmt.Printf("daily average:      %d\n", usage.DailyAverage)
	return nil
}

// openCache picks the configured cache backend. A corrupt file snapshot is
// reported and the run continues with a cold cache; the broken file will be
// overwritten by the first successful flush.
func openCache(cfg *config.Config, path string, log *logger.Logger, m *metrics.Metrics) (ports.RateCache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, log, m)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
		}
		return redisCache, nil
	case "file":
		fileCache, err := cache.Open(path, log, m)
		if err != nil {
			log.Warn("Cache snapshot unusable, starting cold", "path", path, "error", err)
			return cache.New(path, log, m)
		}
		return fileCache, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

func serveMetrics(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info("Serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("Metrics server error", "error", err)
	}
}

func splitCommodities(list string) []string {
	var commodities []string
	for _, commodity := range strings.Split(list, ",") {
		commodity = strings.TrimSpace(commodity)
		if commodity != "" {
			commodities = append(commodities, commodity)
		}
	}
	return commodities
}

// requestSymbols is the symbol set sent to the provider: the requested
// commodities plus the base, deduplicated.
func requestSymbols(commodities []string, base string) []string {
	seen := make(map[string]bool, len(commodities)+1)
	var symbols []string
	for _, symbol := range append(append([]string{}, commodities...), base) {
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}
