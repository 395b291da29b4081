package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	errwrap "github.com/fusionlab/fusionlab/internal/errors"
	"github.com/fusionlab/fusionlab/internal/observability"
	"github.com/fusionlab/fusionlab/internal/ratelimit"
	"github.com/fusionlab/fusionlab/internal/server/handlers"
)

// pinger is satisfied by the limiter backends that hold a connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// registerHealthChecks adds the checks shared by the serve probes and the
// health command. The telemetry check only makes sense in server mode.
func registerHealthChecks(hm *handlers.HealthManager, c *components, identity *appidentity.Identity, withTelemetry bool) {
	hm.RegisterChecker("app_identity", identityHealthChecker{identity: identity})

	hm.RegisterChecker("ailink_credential", handlers.HealthCheckFunc(func(ctx context.Context) error {
		if !c.client.Configured() {
			return errwrap.NewConfigInvalidError("generation credential is not configured")
		}
		return nil
	}))

	hm.RegisterChecker("fusion_counter", handlers.HealthCheckFunc(c.counter.Check))

	if p, ok := c.limiter.(pinger); ok {
		hm.RegisterChecker("rate_limiter", handlers.HealthCheckFunc(p.Ping))
	} else if c.store != nil && backend(c.cfg) == ratelimit.BackendLibsql {
		hm.RegisterChecker("rate_limiter", handlers.HealthCheckFunc(c.store.Ping))
	}

	if withTelemetry {
		hm.RegisterChecker("telemetry", handlers.HealthCheckFunc(func(ctx context.Context) error {
			if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
				return errwrap.NewInternalError("telemetry system not initialized")
			}
			return nil
		}))
	}
}

// identityHealthChecker validates app identity metadata.
type identityHealthChecker struct {
	identity *appidentity.Identity
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.identity == nil:
		return errwrap.NewConfigInvalidError("app identity not loaded")
	case i.identity.BinaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.identity.EnvPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.identity.ConfigName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}
