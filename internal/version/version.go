// Package version exposes the build-time version string.
package version

// version is injected via -ldflags at build time.
var version = "v0.0.0"

// Value returns the version the binary was built with.
func Value() string {
	return version
}
