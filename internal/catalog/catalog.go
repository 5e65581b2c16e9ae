// Package catalog accesses the remote ChromeDriver version catalogs.
//
// Two protocol eras exist. The modern Chrome-for-Testing catalog is a single
// JSON document listing every known-good version with per-platform download
// URLs. The legacy scheme publishes a plain-text LATEST_RELEASE pointer per
// version prefix and serves archives from a fixed URL pattern.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/driverium/driverium/internal/fetch"
	"github.com/driverium/driverium/internal/version"
)

const (
	// DefaultCatalogURL is the modern known-good-versions catalog.
	DefaultCatalogURL = "https://googlechromelabs.github.io/chrome-for-testing/known-good-versions-with-downloads.json"
	// DefaultLegacyBaseURL serves pre-113 driver archives.
	DefaultLegacyBaseURL = "https://chromedriver.storage.googleapis.com"

	// DriverArtifact is the downloads key identifying the driver binary.
	DriverArtifact = "chromedriver"
)

// Download is one per-platform download location within a catalog entry.
type Download struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Entry is one version row of the modern catalog.
type Entry struct {
	Version   version.Spec
	Downloads map[string][]Download
}

// HasDriver reports whether the entry publishes a driver binary download.
// Catalog rows for browser-only releases carry no chromedriver key.
func (e Entry) HasDriver() bool {
	_, ok := e.Downloads[DriverArtifact]
	return ok
}

// DriverURL returns the driver download URL for the given platform token,
// or false when the entry has no download for that platform.
func (e Entry) DriverURL(platformToken string) (string, bool) {
	for _, d := range e.Downloads[DriverArtifact] {
		if d.Platform == platformToken {
			return d.URL, true
		}
	}
	return "", false
}

// Config holds configuration for the catalog client.
type Config struct {
	// Fetcher retrieves catalog bytes. Required.
	Fetcher *fetch.Fetcher
	// CatalogURL overrides the modern catalog endpoint (tests).
	CatalogURL string
	// LegacyBaseURL overrides the legacy download base (tests).
	LegacyBaseURL string
	// Logger receives debug events. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// Client fetches and decodes the remote catalogs.
type Client struct {
	fetcher       *fetch.Fetcher
	catalogURL    string
	legacyBaseURL string
	logger        zerolog.Logger
}

// NewClient creates a catalog client.
func NewClient(config Config) (*Client, error) {
	if config.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	catalogURL := config.CatalogURL
	if catalogURL == "" {
		catalogURL = DefaultCatalogURL
	}
	legacyBaseURL := config.LegacyBaseURL
	if legacyBaseURL == "" {
		legacyBaseURL = DefaultLegacyBaseURL
	}

	return &Client{
		fetcher:       config.Fetcher,
		catalogURL:    catalogURL,
		legacyBaseURL: strings.TrimRight(legacyBaseURL, "/"),
		logger:        config.Logger,
	}, nil
}

// wire types for the modern catalog JSON.
type catalogDocument struct {
	Versions []catalogVersion `json:"versions"`
}

type catalogVersion struct {
	Version   string                `json:"version"`
	Downloads map[string][]Download `json:"downloads"`
}

// KnownGoodVersions fetches the modern catalog and returns its entries
// newest-first. The remote document is ordered ascending by release time;
// resolution wants the most recent match, so the list is reversed here.
// Rows whose version string fails to parse are skipped.
func (c *Client) KnownGoodVersions(ctx context.Context) ([]Entry, error) {
	body, err := c.fetcher.Fetch(ctx, c.catalogURL)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}

	var doc catalogDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	entries := make([]Entry, 0, len(doc.Versions))
	for i := len(doc.Versions) - 1; i >= 0; i-- {
		row := doc.Versions[i]
		spec, err := version.Parse(row.Version)
		if err != nil {
			c.logger.Warn().Str("version", row.Version).Msg("skipping unparseable catalog row")
			continue
		}
		entries = append(entries, Entry{Version: spec, Downloads: row.Downloads})
	}

	c.logger.Debug().Int("entries", len(entries)).Msg("fetched version catalog")
	return entries, nil
}

// LatestRelease resolves a version prefix (e.g. "91.0.4472") to the concrete
// release identifier published by the legacy pointer resource.
func (c *Client) LatestRelease(ctx context.Context, prefix string) (string, error) {
	url := fmt.Sprintf("%s/LATEST_RELEASE_%s", c.legacyBaseURL, prefix)
	body, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch latest release pointer: %w", err)
	}

	release := strings.TrimSpace(string(body))
	if release == "" {
		return "", fmt.Errorf("empty release pointer for prefix %s", prefix)
	}

	c.logger.Debug().Str("prefix", prefix).Str("release", release).Msg("resolved legacy release")
	return release, nil
}

// DriverArchiveURL builds the fixed-pattern legacy archive URL for a
// release identifier and platform token.
func (c *Client) DriverArchiveURL(release, platformToken string) string {
	return fmt.Sprintf("%s/%s/chromedriver_%s.zip", c.legacyBaseURL, release, platformToken)
}

// ArchiveExists probes whether a legacy archive URL is actually served.
func (c *Client) ArchiveExists(ctx context.Context, url string) (bool, error) {
	return c.fetcher.Exists(ctx, url)
}
