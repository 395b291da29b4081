package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/fusionlab/fusionlab/internal/assets/appidentity"
)

const (
	fallbackBinary    = "fusionlab"
	fallbackEnvPrefix = "FUSIONLAB_"
)

func init() {
	// Best-effort. An explicit identity path (FULMEN_APP_IDENTITY_PATH) still wins;
	// the embedded copy only covers standalone binaries.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get resolves the application identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// GetOrFallback resolves the identity, returning a built-in one when discovery fails.
func GetOrFallback(ctx context.Context) *appidentity.Identity {
	identity, err := appidentity.Get(ctx)
	if err == nil && identity != nil {
		return identity
	}
	return Fallback()
}

// Fallback returns the compiled-in identity.
func Fallback() *appidentity.Identity {
	return &appidentity.Identity{
		Vendor:      fallbackBinary,
		BinaryName:  fallbackBinary,
		ConfigName:  fallbackBinary,
		EnvPrefix:   fallbackEnvPrefix,
		Description: "Fusion generator backend",
	}
}
