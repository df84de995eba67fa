// Package version exposes build metadata stamped in with -ldflags:
//
//	-X chatgate/internal/version.Version=v1.2.0
//	-X chatgate/internal/version.GitCommit=$(git rev-parse --short HEAD)
//	-X chatgate/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)
package version

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info is the build metadata plus per-process identity.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

// GetInfo returns the process's Info. InstanceID is generated once.
var GetInfo = sync.OnceValue(func() Info {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return Info{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		InstanceID: uuid.NewString(),
		Hostname:   host,
	}
})

func (i Info) String() string {
	return fmt.Sprintf("chatgate %s (commit %s, built %s)", i.Version, i.GitCommit, i.BuildDate)
}

// LogAttrs returns the key/value pairs attached to every log record.
func (i Info) LogAttrs() []any {
	return []any{
		"version", i.Version,
		"git_commit", i.GitCommit,
		"build_date", i.BuildDate,
	}
}
