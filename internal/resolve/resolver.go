// Package resolve turns a requested browser version and platform into the
// definitive driver download URL.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/driverium/driverium/internal/catalog"
	"github.com/driverium/driverium/internal/platform"
	"github.com/driverium/driverium/internal/version"
)

// modernEraMajor is the first major version published through the
// Chrome-for-Testing catalog. Older versions use the legacy scheme.
const modernEraMajor = 113

// ErrNoDriverFound indicates no catalog or legacy match exists for the
// requested version and platform. Not retryable; the caller must supply a
// different version.
var ErrNoDriverFound = errors.New("no driver found")

// Resolver selects the protocol era and performs the narrowing match.
type Resolver struct {
	catalog *catalog.Client
	logger  zerolog.Logger
}

// NewResolver creates a resolver backed by the given catalog client.
func NewResolver(catalogClient *catalog.Client, logger zerolog.Logger) (*Resolver, error) {
	if catalogClient == nil {
		return nil, fmt.Errorf("catalog client is required")
	}
	return &Resolver{catalog: catalogClient, logger: logger}, nil
}

// DownloadURL resolves the driver download URL for the requested version on
// the given platform.
func (r *Resolver) DownloadURL(ctx context.Context, spec version.Spec, info *platform.Info) (string, error) {
	if spec.Major() >= modernEraMajor {
		return r.modernURL(ctx, spec, info.Token())
	}
	return r.legacyURL(ctx, spec, info)
}

// modernURL performs the narrowing match against the modern catalog.
//
// Starting from the full newest-first entry list, each version component of
// the request filters the candidate set in turn. An empty filter result
// stops the narrowing and keeps the candidates from the previous component,
// so a request like "120" still resolves when only fully-qualified 120.x.y.z
// entries exist. Entries without a driver download are discarded at the
// major-component step.
func (r *Resolver) modernURL(ctx context.Context, spec version.Spec, platformToken string) (string, error) {
	entries, err := r.catalog.KnownGoodVersions(ctx)
	if err != nil {
		return "", err
	}

	candidates := entries
	var matched []catalog.Entry
	for i := 0; i < spec.Len(); i++ {
		var filtered []catalog.Entry
		for _, entry := range candidates {
			if !entry.Version.EqualsUpTo(spec, i) {
				continue
			}
			if i == 0 && !entry.HasDriver() {
				continue
			}
			filtered = append(filtered, entry)
		}

		if len(filtered) == 0 {
			break
		}
		matched = filtered
		candidates = filtered
	}

	if len(matched) == 0 {
		return "", fmt.Errorf("%w: version %s", ErrNoDriverFound, spec)
	}

	for _, entry := range matched {
		if url, ok := entry.DriverURL(platformToken); ok {
			r.logger.Info().
				Str("requested", spec.String()).
				Str("resolved", entry.Version.String()).
				Str("platform", platformToken).
				Msg("resolved driver version")
			return url, nil
		}
	}

	return "", fmt.Errorf("%w: version %s has no download for platform %s", ErrNoDriverFound, spec, platformToken)
}

// legacyURL resolves pre-113 versions through the LATEST_RELEASE pointer and
// the fixed archive URL pattern. When the platform-suffixed archive is not
// served, the un-suffixed host identifier is tried as a secondary URL before
// giving up.
func (r *Resolver) legacyURL(ctx context.Context, spec version.Spec, info *platform.Info) (string, error) {
	prefixLen := spec.Len() - 1
	if prefixLen == 0 {
		prefixLen = 1
	}
	prefix := spec.Prefix(prefixLen)

	release, err := r.catalog.LatestRelease(ctx, prefix)
	if err != nil {
		return "", err
	}

	primary := r.catalog.DriverArchiveURL(release, info.Token())
	ok, err := r.catalog.ArchiveExists(ctx, primary)
	if err != nil {
		return "", err
	}
	if ok {
		r.logger.Info().Str("release", release).Str("url", primary).Msg("resolved legacy driver")
		return primary, nil
	}

	fallback := r.catalog.DriverArchiveURL(release, info.HostIdentifier())
	ok, err = r.catalog.ArchiveExists(ctx, fallback)
	if err != nil {
		return "", err
	}
	if ok {
		r.logger.Info().Str("release", release).Str("url", fallback).Msg("resolved legacy driver via fallback token")
		return fallback, nil
	}

	return "", fmt.Errorf("%w: release %s for platform %s", ErrNoDriverFound, release, info.Token())
}
