// Package version provides build version information for dreamflow
// binaries.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/skillsenselab/dreamflow/version.Version=1.0.0"
package version
