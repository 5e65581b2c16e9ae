// Package platform derives the platform token used by the ChromeDriver
// download catalogs from the host OS.
//
// It uses gopsutil for Linux distribution detail (useful for diagnostics)
// and provides graceful fallback behavior when detection fails: the token
// itself only needs the base OS identifier.
package platform

import (
	"context"
	"strings"
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // GOARCH, e.g. "amd64", "arm64"
	Platform string // distro ID (Linux only, e.g. "ubuntu", "arch")
	Version  string // distro version (Linux only, e.g. "22.04")
}

// hostIdentifiers maps Go OS names to the short host identifiers the
// ChromeDriver download URLs were historically built from.
var hostIdentifiers = map[string]string{
	"linux":   "linux",
	"darwin":  "darwin",
	"windows": "win32",
}

// HostIdentifier returns the un-suffixed host identifier, e.g. "win32" or
// "linux". This is the last-resort token the legacy download scheme falls
// back to when the 64-bit archive does not exist.
func (i *Info) HostIdentifier() string {
	if ident, ok := hostIdentifiers[i.OS]; ok {
		return ident
	}
	return i.OS
}

// Token returns the platform token used in catalog download entries: the
// host identifier reduced to alphabetic characters, suffixed with "64".
// Produces "linux64", "win64", "darwin64".
func (i *Info) Token() string {
	ident := i.HostIdentifier()
	var b strings.Builder
	for _, r := range ident {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String() + "64"
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
