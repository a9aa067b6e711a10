package types

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is an OS/architecture pair named the way release assets are
type Platform struct {
	OS   string `json:"os" yaml:"os"`
	Arch string `json:"arch" yaml:"arch"`
}

var supportedPlatforms = []Platform{
	{OS: "macos", Arch: "aarch64"},
	{OS: "macos", Arch: "x86_64"},
	{OS: "linux", Arch: "x86_64"},
	{OS: "linux", Arch: "aarch64"},
	{OS: "windows", Arch: "x86_64"},
}

// DetectPlatform returns the platform of the running binary
func DetectPlatform() (Platform, error) {
	return PlatformFor(runtime.GOOS, runtime.GOARCH)
}

// PlatformFor maps Go's GOOS/GOARCH names to a supported release platform
func PlatformFor(goos, goarch string) (Platform, error) {
	var p Platform
	switch goos {
	case "darwin":
		p.OS = "macos"
	default:
		p.OS = goos
	}
	switch goarch {
	case "amd64":
		p.Arch = "x86_64"
	case "arm64":
		p.Arch = "aarch64"
	default:
		p.Arch = goarch
	}

	for _, s := range supportedPlatforms {
		if s == p {
			return p, nil
		}
	}

	names := make([]string, 0, len(supportedPlatforms))
	for _, s := range supportedPlatforms {
		names = append(names, s.String())
	}
	return Platform{}, fmt.Errorf("%w: %s-%s (supported: %s)",
		ErrPlatformUnsupported, goos, goarch, strings.Join(names, ", "))
}

// String returns the asset suffix, e.g. "linux-x86_64"
func (p Platform) String() string {
	return p.OS + "-" + p.Arch
}

// ArchiveExtension is the archive format published for this platform
func (p Platform) ArchiveExtension() string {
	if p.OS == "windows" {
		return "zip"
	}
	return "tar.gz"
}

// ExecutableName appends the platform's executable suffix
func (p Platform) ExecutableName(name string) string {
	if p.OS == "windows" {
		return name + ".exe"
	}
	return name
}
