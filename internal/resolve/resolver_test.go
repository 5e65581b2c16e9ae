package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driverium/driverium/internal/catalog"
	"github.com/driverium/driverium/internal/fetch"
	"github.com/driverium/driverium/internal/platform"
	"github.com/driverium/driverium/internal/version"
)

func linuxInfo() *platform.Info {
	return &platform.Info{OS: "linux", Arch: "amd64"}
}

func mustParse(t *testing.T, s string) version.Spec {
	t.Helper()
	spec, err := version.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return spec
}

// catalogRow builds one modern catalog row with a chromedriver download for
// the given platforms. Ascending order in the document is the remote format.
func catalogRow(version string, platforms ...string) string {
	downloads := ""
	for i, p := range platforms {
		if i > 0 {
			downloads += ","
		}
		downloads += fmt.Sprintf(`{"platform": %q, "url": "https://example.com/%s/%s"}`, p, version, p)
	}
	if len(platforms) == 0 {
		return fmt.Sprintf(`{"version": %q, "downloads": {"chrome": []}}`, version)
	}
	return fmt.Sprintf(`{"version": %q, "downloads": {"chromedriver": [%s]}}`, version, downloads)
}

func newTestResolver(t *testing.T, serverURL string) *Resolver {
	t.Helper()

	client, err := catalog.NewClient(catalog.Config{
		Fetcher:       fetch.NewFetcher(nil, zerolog.Nop()),
		CatalogURL:    serverURL + "/catalog.json",
		LegacyBaseURL: serverURL,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resolver, err := NewResolver(client, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return resolver
}

func serveCatalog(t *testing.T, rows ...string) *httptest.Server {
	t.Helper()

	doc := `{"versions": [`
	for i, row := range rows {
		if i > 0 {
			doc += ","
		}
		doc += row
	}
	doc += `]}`

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/catalog.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if _, err := w.Write([]byte(doc)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
}

func TestModernNarrowingMatch(t *testing.T) {
	tests := []struct {
		name      string
		rows      []string
		requested string
		wantURL   string
		wantErr   bool
	}{
		{
			name: "exact_match",
			rows: []string{
				catalogRow("120.0.6099.109", "linux64"),
				catalogRow("120.0.6099.200", "linux64"),
			},
			requested: "120.0.6099.109",
			wantURL:   "https://example.com/120.0.6099.109/linux64",
		},
		{
			name: "partial_precision_keeps_previous_candidates",
			rows: []string{
				catalogRow("120.0.6099.200", "linux64"),
			},
			requested: "120.0.6099.109",
			wantURL:   "https://example.com/120.0.6099.200/linux64",
		},
		{
			name: "short_request_matches_qualified_entries",
			rows: []string{
				catalogRow("119.0.6045.105", "linux64"),
				catalogRow("120.0.6099.109", "linux64"),
			},
			requested: "120",
			wantURL:   "https://example.com/120.0.6099.109/linux64",
		},
		{
			name: "newest_candidate_wins",
			rows: []string{
				catalogRow("120.0.6000.1", "linux64"),
				catalogRow("120.0.6099.200", "linux64"),
			},
			requested: "120.0.7777.1",
			wantURL:   "https://example.com/120.0.6099.200/linux64",
		},
		{
			name: "browser_only_rows_filtered",
			rows: []string{
				catalogRow("120.0.6099.109"),
			},
			requested: "120.0.6099.109",
			wantErr:   true,
		},
		{
			name: "no_major_match",
			rows: []string{
				catalogRow("119.0.6045.105", "linux64"),
			},
			requested: "121.0.6167.85",
			wantErr:   true,
		},
		{
			name: "platform_mismatch_is_not_silent",
			rows: []string{
				catalogRow("120.0.6099.109", "win64"),
			},
			requested: "120.0.6099.109",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveCatalog(t, tt.rows...)
			defer server.Close()

			resolver := newTestResolver(t, server.URL)
			url, err := resolver.DownloadURL(context.Background(), mustParse(t, tt.requested), linuxInfo())

			if tt.wantErr {
				if !errors.Is(err, ErrNoDriverFound) {
					t.Fatalf("expected ErrNoDriverFound, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("DownloadURL: %v", err)
			}
			if url != tt.wantURL {
				t.Errorf("url = %q, want %q", url, tt.wantURL)
			}
		})
	}
}

func TestLegacyResolution(t *testing.T) {
	var pointerPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/LATEST_RELEASE_91.0.4472":
			pointerPath = r.URL.Path
			if _, err := w.Write([]byte("91.0.4472.101\n")); err != nil {
				t.Errorf("write response: %v", err)
			}
		case "/91.0.4472.101/chromedriver_linux64.zip":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	resolver := newTestResolver(t, server.URL)
	url, err := resolver.DownloadURL(context.Background(), mustParse(t, "91.0.4472.101"), linuxInfo())
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}

	if pointerPath != "/LATEST_RELEASE_91.0.4472" {
		t.Errorf("pointer fetched with path %q, want prefix truncated to 91.0.4472", pointerPath)
	}
	want := server.URL + "/91.0.4472.101/chromedriver_linux64.zip"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

func TestLegacyFallbackToken(t *testing.T) {
	var probed []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/LATEST_RELEASE_91.0.4472":
			if _, err := w.Write([]byte("91.0.4472.101")); err != nil {
				t.Errorf("write response: %v", err)
			}
		case "/91.0.4472.101/chromedriver_linux64.zip":
			probed = append(probed, "linux64")
			w.WriteHeader(http.StatusNotFound)
		case "/91.0.4472.101/chromedriver_linux.zip":
			probed = append(probed, "linux")
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	resolver := newTestResolver(t, server.URL)
	url, err := resolver.DownloadURL(context.Background(), mustParse(t, "91.0.4472.101"), linuxInfo())
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}

	if len(probed) != 2 || probed[0] != "linux64" || probed[1] != "linux" {
		t.Errorf("probe order = %v, want [linux64 linux]", probed)
	}
	want := server.URL + "/91.0.4472.101/chromedriver_linux.zip"
	if url != want {
		t.Errorf("url = %q, want fallback URL %q", url, want)
	}
}

func TestLegacyBothArchivesMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/LATEST_RELEASE_91.0.4472" {
			if _, err := w.Write([]byte("91.0.4472.101")); err != nil {
				t.Errorf("write response: %v", err)
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := newTestResolver(t, server.URL)
	_, err := resolver.DownloadURL(context.Background(), mustParse(t, "91.0.4472.101"), linuxInfo())
	if !errors.Is(err, ErrNoDriverFound) {
		t.Fatalf("expected ErrNoDriverFound, got %v", err)
	}
}

func TestEraSelection(t *testing.T) {
	// A 113 request must hit the modern catalog, not the legacy pointer.
	var legacyHit bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/catalog.json" {
			doc := `{"versions": [` + catalogRow("113.0.5672.63", "linux64") + `]}`
			if _, err := w.Write([]byte(doc)); err != nil {
				t.Errorf("write response: %v", err)
			}
			return
		}
		legacyHit = true
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := newTestResolver(t, server.URL)
	if _, err := resolver.DownloadURL(context.Background(), mustParse(t, "113.0.5672.63"), linuxInfo()); err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if legacyHit {
		t.Error("major 113 must use the modern catalog")
	}
}
