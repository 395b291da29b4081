package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/fusionlab/fusionlab/internal/fusion"
)

var (
	versionMu    sync.RWMutex
	appVersion   = "dev"
	appCommit    = "unknown"
	appBuildDate = "unknown"
	appIdentity  *appidentity.Identity
)

// SetVersionInfo records build metadata reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	appVersion, appCommit, appBuildDate = version, commit, buildDate
}

// SetAppIdentity records the identity whose binary name /version reports.
func SetAppIdentity(identity *appidentity.Identity) {
	versionMu.Lock()
	defer versionMu.Unlock()
	appIdentity = identity
}

type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Capabilities []string    `json:"capabilities"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler serves GET /version.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	versionMu.RLock()
	name := binaryName(appIdentity)
	app := AppInfo{
		Name:      name,
		Version:   appVersion,
		Commit:    appCommit,
		BuildDate: appBuildDate,
		GoVersion: runtime.Version(),
	}
	versionMu.RUnlock()

	capabilities := make([]string, 0, len(fusion.Capabilities))
	for _, c := range fusion.Capabilities {
		capabilities = append(capabilities, string(c))
	}

	deps := crucible.GetVersion()
	writeJSON(w, http.StatusOK, VersionResponse{
		App:          app,
		Capabilities: capabilities,
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}

func binaryName(identity *appidentity.Identity) string {
	if identity != nil && identity.BinaryName != "" {
		return identity.BinaryName
	}
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "unknown"
}
