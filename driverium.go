// Package driverium resolves, downloads, and caches the ChromeDriver
// binary matching an installed Chrome version.
//
// # Usage
//
//	d, err := driverium.New(driverium.Config{
//	    Version:     "120.0.6099.109",
//	    DownloadDir: "/opt/drivers",
//	})
//	if err != nil {
//	    return err
//	}
//	path, err := d.GetDriver(ctx)
//
// The extracted driver and a small metadata record live in
// <DownloadDir>/chromedriver-<platform>/. Repeated calls for the same
// version return the cached path without touching the network; requesting
// a different version invalidates the cache and provisions a fresh driver.
//
// Reading the installed browser's version from the host is deliberately
// outside this package: callers pass the version explicitly or supply a
// VersionFunc backed by their own detection.
package driverium

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/driverium/driverium/internal/archive"
	"github.com/driverium/driverium/internal/cache"
	"github.com/driverium/driverium/internal/catalog"
	"github.com/driverium/driverium/internal/fetch"
	"github.com/driverium/driverium/internal/lockfile"
	"github.com/driverium/driverium/internal/platform"
	"github.com/driverium/driverium/internal/resolve"
	"github.com/driverium/driverium/internal/version"
)

// Sentinel errors surfaced by GetDriver, re-exported for errors.Is checks.
var (
	// ErrMalformedVersion indicates the requested version string could not
	// be parsed. Surfaced by New.
	ErrMalformedVersion = version.ErrMalformedVersion
	// ErrNoDriverFound indicates no catalog or legacy match exists for the
	// requested version and platform.
	ErrNoDriverFound = resolve.ErrNoDriverFound
	// ErrTransfer indicates a network or HTTP failure. The whole GetDriver
	// call may be retried by the caller.
	ErrTransfer = fetch.ErrTransfer
	// ErrNoExecutableInArchive indicates the downloaded archive held no
	// driver executable.
	ErrNoExecutableInArchive = archive.ErrNoExecutableInArchive
	// ErrLockHeld indicates a concurrent provisioning run holds the driver
	// directory lock.
	ErrLockHeld = lockfile.ErrLockHeld
)

// Config holds configuration for a Driverium instance.
type Config struct {
	// Version is the dotted browser version to provision a driver for.
	// Required unless VersionFunc is set.
	Version string
	// VersionFunc supplies the browser version from an external detector
	// when Version is empty.
	VersionFunc func() (string, error)
	// DownloadDir is where driver directories are created.
	// Defaults to the current working directory.
	DownloadDir string
	// Progress enables chunked downloads with progress reporting.
	Progress bool
	// ProgressFunc overrides the default progress sink (a log line per
	// whole percent). Only used when Progress is true.
	ProgressFunc func(done, total int64)
	// Logger receives structured events. Defaults to a no-op logger.
	Logger *zerolog.Logger
	// HTTPClient overrides the HTTP client used for all requests.
	HTTPClient *http.Client
	// CatalogURL overrides the modern catalog endpoint (tests).
	CatalogURL string
	// LegacyBaseURL overrides the legacy download base (tests).
	LegacyBaseURL string
	// Detector overrides host platform detection (tests).
	Detector platform.Detector
}

// Driverium provisions ChromeDriver binaries. Construct with New; a zero
// Driverium is not usable.
type Driverium struct {
	spec        version.Spec
	downloadDir string
	progress    bool
	progressFn  fetch.ProgressFunc
	logger      zerolog.Logger
	info        *platform.Info
	fetcher     *fetch.Fetcher
	resolver    *resolve.Resolver
	extractor   *archive.Extractor
	store       *cache.Store
}

// New creates a Driverium for one browser version on the current host.
// The platform token is derived once here and fixed for the instance's
// lifetime.
func New(config Config) (*Driverium, error) {
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	versionString := config.Version
	if versionString == "" && config.VersionFunc != nil {
		var err error
		versionString, err = config.VersionFunc()
		if err != nil {
			return nil, fmt.Errorf("detect browser version: %w", err)
		}
	}

	spec, err := version.Parse(versionString)
	if err != nil {
		return nil, err
	}

	downloadDir := config.DownloadDir
	if downloadDir == "" {
		downloadDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	detector := config.Detector
	if detector == nil {
		detector = platform.NewDetector()
	}
	info, err := detector.Detect(context.Background())
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	fetcher := fetch.NewFetcher(config.HTTPClient, logger)

	catalogClient, err := catalog.NewClient(catalog.Config{
		Fetcher:       fetcher,
		CatalogURL:    config.CatalogURL,
		LegacyBaseURL: config.LegacyBaseURL,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create catalog client: %w", err)
	}

	resolver, err := resolve.NewResolver(catalogClient, logger)
	if err != nil {
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	progressFn := fetch.ProgressFunc(config.ProgressFunc)
	if config.Progress && progressFn == nil {
		progressFn = logProgress(logger)
	}

	logger.Debug().
		Str("version", spec.String()).
		Str("platform", info.Token()).
		Str("download_dir", downloadDir).
		Msg("driverium configured")

	return &Driverium{
		spec:        spec,
		downloadDir: downloadDir,
		progress:    config.Progress,
		progressFn:  progressFn,
		logger:      logger,
		info:        info,
		fetcher:     fetcher,
		resolver:    resolver,
		extractor:   archive.NewExtractor(),
		store:       cache.NewStore(),
	}, nil
}

// DriverDir returns the per-platform directory holding the cached driver
// and its metadata record.
func (d *Driverium) DriverDir() string {
	return filepath.Join(d.downloadDir, "chromedriver-"+d.info.Token())
}

// GetDriver returns the path to a driver executable matching the configured
// version, downloading and extracting it if the cache does not already hold
// one. The driver directory is locked for the whole call, so concurrent
// invocations on the same directory fail fast with ErrLockHeld instead of
// racing on the cache.
func (d *Driverium) GetDriver(ctx context.Context) (string, error) {
	driverDir := d.DriverDir()

	lock, err := lockfile.Acquire(driverDir)
	if err != nil {
		return "", err
	}
	defer lock.Release()

	record, err := d.store.Load(driverDir)
	if err != nil {
		if !errors.Is(err, cache.ErrCorruptCache) {
			return "", err
		}
		// Unparseable record: treat the cache as absent and overwrite it
		// after the fresh download.
		d.logger.Warn().Str("dir", driverDir).Msg("cache record corrupt, re-provisioning")
		record = nil
	}

	if record != nil {
		if record.Version == d.spec.String() {
			d.logger.Debug().Str("path", record.Path).Msg("cache hit")
			return record.Path, nil
		}
		d.logger.Info().
			Str("cached", record.Version).
			Str("requested", d.spec.String()).
			Msg("cached driver version mismatch, invalidating")
		if err := d.store.Invalidate(driverDir, record); err != nil {
			return "", err
		}
	}

	url, err := d.resolver.DownloadURL(ctx, d.spec, d.info)
	if err != nil {
		return "", err
	}

	var archiveBytes []byte
	if d.progress {
		archiveBytes, err = d.fetcher.FetchProgress(ctx, url, d.progressFn)
	} else {
		archiveBytes, err = d.fetcher.Fetch(ctx, url)
	}
	if err != nil {
		return "", err
	}

	driverPath, err := d.extractor.Extract(archiveBytes, d.downloadDir, d.info)
	if err != nil {
		return "", err
	}

	if err := d.store.Save(driverDir, &cache.Record{
		Version: d.spec.String(),
		Path:    driverPath,
	}); err != nil {
		return "", err
	}

	d.logger.Info().Str("path", driverPath).Msg("driver provisioned")
	return driverPath, nil
}

// logProgress reports download progress to the logger, at most once per
// whole percent when the total is known.
func logProgress(logger zerolog.Logger) fetch.ProgressFunc {
	lastPercent := -1
	return func(done, total int64) {
		if total <= 0 {
			return
		}
		percent := int(done * 100 / total)
		if percent == lastPercent {
			return
		}
		lastPercent = percent
		logger.Info().
			Int64("done", done).
			Int64("total", total).
			Int("percent", percent).
			Msg("driver download")
	}
}
