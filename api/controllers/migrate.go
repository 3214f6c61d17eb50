package controllers

import (
	"database/sql"
	"net/http"

	"github.com/spenzahq/webhook-relay/api/responses"
	"github.com/spenzahq/webhook-relay/pkg/config"
	pkgerrors "github.com/spenzahq/webhook-relay/pkg/errors"
	"github.com/spenzahq/webhook-relay/pkg/logger"
	"github.com/spenzahq/webhook-relay/pkg/migrate"
)

// MigrateDeps carries what the migration endpoints need.
type MigrateDeps struct {
	DB     *sql.DB
	Driver string
	Dir    string
}

func (d MigrateDeps) dir() string {
	if d.Dir != "" {
		return d.Dir
	}
	return migrate.DefaultDir
}

// MigrateDeploy applies all pending migrations.
func MigrateDeploy(deps MigrateDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if deps.DB == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "database unavailable"))
			return
		}
		if err := migrate.Run(ctx, deps.DB, deps.Driver, deps.dir(), "up"); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply migrations"))
			return
		}

		version, err := migrate.Version(deps.DB, deps.Driver)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read migration version"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"applied": true, "version": version})
	}
}

// MigrateStatus reports the current migration version.
func MigrateStatus(deps MigrateDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if deps.DB == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "database unavailable"))
			return
		}
		version, err := migrate.Version(deps.DB, deps.Driver)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read migration version"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"driver": driverName(deps.Driver), "version": version})
	}
}

func driverName(driver string) string {
	if driver == "" {
		return config.DriverPostgres
	}
	return driver
}
