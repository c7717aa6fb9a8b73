package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Azmorus/GPTScreener/internal/analysis/indicators"
	"github.com/Azmorus/GPTScreener/internal/analysis/patterns"
	"github.com/Azmorus/GPTScreener/internal/config"
	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
	"github.com/Azmorus/GPTScreener/internal/logging"
	"github.com/Azmorus/GPTScreener/internal/metrics"
	"github.com/Azmorus/GPTScreener/internal/models"
	"github.com/Azmorus/GPTScreener/internal/resilience"
	"github.com/Azmorus/GPTScreener/internal/screener"
	"github.com/Azmorus/GPTScreener/internal/source"
	"github.com/Azmorus/GPTScreener/internal/source/twelvedata"
	"github.com/Azmorus/GPTScreener/internal/store"
)

// App holds the application dependencies. Stores, sources and the redis
// client are opened on first use so commands that only read flags never
// touch the network or the database.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	store  store.CandleStore
	twelve *twelvedata.Source
	redis  *source.RedisKV
	facade *source.Facade
}

func newApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}
}

// newLogger maps the logging section of the configuration onto a logger.
func newLogger(cfg config.LoggingConfig, debug bool) zerolog.Logger {
	lc := logging.LogConfig{
		Level:      cfg.Level,
		Console:    true,
		File:       cfg.File,
		FilePath:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	if debug {
		lc.Level = "debug"
	}
	return logging.NewLoggerWithConfig(lc)
}

// Store opens the candle database.
func (a *App) Store() (store.CandleStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabaseError, err)
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	a.store = s
	return s, nil
}

// TwelveData returns the Twelve Data source. It fails when no API key is set.
func (a *App) TwelveData() (*twelvedata.Source, error) {
	if a.twelve != nil {
		return a.twelve, nil
	}
	key := a.Config.Credentials.TwelveData.APIKey
	if key == "" {
		return nil, fmt.Errorf("%w: twelvedata api key not set (credentials.toml or TWELVE_API_KEY)", apperrors.ErrConfigInvalid)
	}
	client := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:         key,
		BaseURL:        a.Config.Source.BaseURL,
		RequestTimeout: a.Config.Source.RequestTimeout,
		RequestsPerMin: a.Config.Source.RequestsPerMin,
		Logger:         a.Logger,
	})
	a.twelve = twelvedata.NewSource(client, a.interval(), a.Config.Source.OutputSize)
	return a.twelve, nil
}

func (a *App) interval() models.Timeframe {
	return models.Timeframe(a.Config.Source.Interval)
}

// sourceFor builds the named provider with its breaker and cache layers.
func (a *App) sourceFor(name string) (source.Source, error) {
	var src source.Source
	switch name {
	case config.SourceTwelveData:
		td, err := a.TwelveData()
		if err != nil {
			return nil, err
		}
		src = td
	case config.SourceSQLite:
		s, err := a.Store()
		if err != nil {
			return nil, err
		}
		return source.NewStoreSource(s, a.interval(), a.Config.Store.Limit), nil
	default:
		return nil, fmt.Errorf("%w: unknown source %q", apperrors.ErrConfigInvalid, name)
	}

	if a.Config.Resilience.BreakerEnabled {
		src = source.WithBreaker(src, a.newBreaker(name))
	}
	if a.Config.Cache.Enabled {
		src = source.NewCachedSource(src, a.cacheKV(), a.Config.Cache.TTL, a.Logger)
	}
	return src, nil
}

func (a *App) newBreaker(name string) *resilience.CircuitBreaker {
	cbConfig := resilience.DefaultConfig()
	if a.Config.Resilience.FailureThreshold > 0 {
		cbConfig.FailureThreshold = a.Config.Resilience.FailureThreshold
	}
	if a.Config.Resilience.Cooldown > 0 {
		cbConfig.Cooldown = a.Config.Resilience.Cooldown
	}

	cb := resilience.NewCircuitBreaker(name, cbConfig)
	cb.OnStateChange = func(name string, from, to resilience.CircuitState) {
		a.Metrics.SetBreakerState(name, string(to))
		a.Logger.Warn().
			Str("breaker", name).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Circuit breaker state changed")
	}
	a.Metrics.SetBreakerState(name, string(cb.State()))
	return cb
}

func (a *App) cacheKV() *source.RedisKV {
	if a.redis == nil {
		a.redis = source.NewRedisKV(source.RedisOptions{
			Address:  a.Config.Cache.Address,
			Password: a.Config.Cache.Password,
			DB:       a.Config.Cache.DB,
		})
	}
	return a.redis
}

// Facade returns the acquisition front door over the configured sources.
// When the primary cannot be built and a fallback can, the fallback serves
// alone.
func (a *App) Facade() (*source.Facade, error) {
	if a.facade != nil {
		return a.facade, nil
	}

	var fallback source.Source
	if name := a.Config.Source.Fallback; name != "" {
		src, err := a.sourceFor(name)
		if err != nil {
			a.Logger.Warn().Err(err).Str("source", name).Msg("Fallback source unavailable")
		} else {
			fallback = src
		}
	}

	primary, err := a.sourceFor(a.Config.Source.Primary)
	if err != nil {
		if fallback == nil {
			return nil, fmt.Errorf("primary source: %w", err)
		}
		a.Logger.Warn().Err(err).
			Str("source", a.Config.Source.Primary).
			Str("fallback", fallback.Name()).
			Msg("Primary source unavailable, serving from fallback")
		primary, fallback = fallback, nil
	}

	opts := []source.Option{
		source.WithRetryDelay(a.Config.Resilience.RetryDelay),
		source.WithObserver(a.observeFetch),
	}
	if fallback != nil {
		opts = append(opts, source.WithFallback(fallback))
	}

	a.facade = source.NewFacade(primary, opts...)
	return a.facade, nil
}

func (a *App) observeFetch(src, symbol string, count int, elapsed time.Duration, err error) {
	a.Metrics.ObserveFetch(src, elapsed, err)
	logging.LogFetch(a.Logger, src, symbol, count, elapsed, err)
}

// Trend returns the trend estimator named by method, or the configured one
// when method is empty.
func (a *App) Trend(method string) (indicators.TrendFunc, indicators.TrendMethod, error) {
	if method == "" {
		method = a.Config.Detector.TrendMethod
	}
	m, err := indicators.ParseTrendMethod(method)
	if err != nil {
		return nil, "", apperrors.NewValidationError("trend", method, err.Error())
	}
	return indicators.TrendFor(m), m, nil
}

// Service builds a screening service. withFetcher controls whether the
// configured sources are opened.
func (a *App) Service(trendMethod string, withFetcher bool) (*screener.Service, error) {
	trend, _, err := a.Trend(trendMethod)
	if err != nil {
		return nil, err
	}
	detector := patterns.NewDetector(patterns.DefaultRegistry(trend))

	var fetcher screener.Fetcher
	if withFetcher {
		f, err := a.Facade()
		if err != nil {
			return nil, err
		}
		fetcher = f
	}
	return screener.NewService(fetcher, detector, a.Metrics, a.Logger), nil
}

// Close releases opened resources and flushes the metrics textfile.
func (a *App) Close() error {
	if a.Config == nil {
		return nil
	}
	var firstErr error
	if a.Config.Metrics.Enabled && a.Config.Metrics.Textfile != "" {
		if err := a.Metrics.WriteTextfile(a.Config.Metrics.Textfile); err != nil {
			a.Logger.Warn().Err(err).Str("path", a.Config.Metrics.Textfile).Msg("Failed to write metrics")
			firstErr = err
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.redis = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.store = nil
	}
	return firstErr
}
