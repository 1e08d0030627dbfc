// Package version хранит сведения о сборке crm-server.
package version

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

// Заполняются через -ldflags "-X .../internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build — версия, commit и время сборки бинарника.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает сведения о сборке. Если -ldflags не заданы, commit и
// время берутся из VCS-меток, которые go build записывает в бинарник.
func Current() Build {
	return fromBuildInfo(Build{Version: version, Commit: commit, Date: date}, debug.ReadBuildInfo)
}

func fromBuildInfo(b Build, read func() (*debug.BuildInfo, bool)) Build {
	info, ok := read()
	if !ok {
		return b
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && b.Commit == "unknown":
			b.Commit = s.Value
		case s.Key == "vcs.time" && b.Date == "unknown":
			b.Date = s.Value
		}
	}
	return b
}

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}

// Fields возвращает сведения о сборке для стартовой записи лога.
func (b Build) Fields() log.Fields {
	return log.Fields{
		"version": b.Version,
		"commit":  b.Commit,
		"built":   b.Date,
	}
}
