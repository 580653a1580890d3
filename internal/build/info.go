// Package build holds version metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/joestump/joe-marks/internal/build.Version=v1.2.0 \
//	  -X github.com/joestump/joe-marks/internal/build.Commit=$(git rev-parse --short HEAD)"
package build

var (
	Version = "dev"
	Commit  = "unknown"
	Branch  = "unknown"
)
