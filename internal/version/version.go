// Package version хранит сведения о сборке, проставляемые через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/orderpipe/internal/version.version=1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	version = "1.0.0"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает текущую сборку сервиса.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Current возвращает сведения о сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date, GoVersion: runtime.Version()}
}

// GetVersion — версия, которую отдают health-эндпоинты и трейсинг.
func GetVersion() string { return version }

func (b Build) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", b.Version, b.Commit, b.Date, b.GoVersion)
}
