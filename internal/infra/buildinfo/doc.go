// Package buildinfo exposes build information injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/fieldstore-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Values not injected fall back to the module build info recorded by the
// Go toolchain.
package buildinfo
