// Package version exposes the build version of Forge Armory.
package version

// version is set at build time via -ldflags.
var version = "dev"

// GetVersion returns the current version of Forge Armory.
func GetVersion() string {
	return version
}
