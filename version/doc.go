// Package version reports the scriptkit build.
//
// Values are stamped at link time, falling back to the module build info:
//
//	go build -ldflags "-X github.com/kbukum/scriptkit/version.Version=1.0.0" ./cmd/scriptkit
package version
