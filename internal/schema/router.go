// Package schema routes pooled database connections to tenant schemas.
//
// Every tenant owns one Postgres schema; the master schema holds the
// platform registry and cross-tenant projections. A checkout pins one
// connection from the pool, points its search_path at the tenant's schema,
// and guarantees the search_path is reset to the master (neutral) schema
// before the connection goes back to the pool. A connection whose reset
// fails is discarded, never pooled.
package schema

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/jeebendu/ch-clinic-admin-sub000/internal/tenantctx"
	"github.com/jeebendu/ch-clinic-admin-sub000/pkg/config"
	appmetrics "github.com/jeebendu/ch-clinic-admin-sub000/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Router hands out tenant-scoped database handles backed by the shared pool.
type Router struct {
	db      *gorm.DB
	tenancy *config.TenancyConfig
	log     *zap.Logger
}

// ScopedDB is a database handle pinned to one pooled connection whose
// search_path points at a single tenant schema. It must be released.
type ScopedDB struct {
	ClientID string
	Schema   string
	DB       *gorm.DB

	conn   *sql.Conn
	router *Router
}

// NewRouter creates a schema router over an initialized GORM pool
func NewRouter(db *gorm.DB, tenancy *config.TenancyConfig, log *zap.Logger) *Router {
	return &Router{db: db, tenancy: tenancy, log: log}
}

// SchemaFor maps a clientID to its schema name. The master clientID maps to
// the master schema itself; every other tenant gets the configured prefix.
func (r *Router) SchemaFor(clientID string) string {
	if clientID == r.tenancy.DefaultTenant || clientID == "master" {
		return r.tenancy.MasterSchema
	}
	return r.tenancy.TenantSchemaPrefix + clientID
}

// Acquire checks a connection out of the pool scoped to the tenant currently
// held by the context. The tenant is read per checkout, never cached across
// checkouts.
func (r *Router) Acquire(ctx context.Context) (*ScopedDB, error) {
	clientID, err := tenantctx.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}

	schemaName := r.SchemaFor(clientID)
	if err := ValidateSchemaName(schemaName); err != nil {
		r.log.Warn("rejected tenant schema name",
			zap.String("client_id", clientID),
			zap.String("schema", schemaName))
		return nil, err
	}

	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, fmt.Errorf("schema router: pool unavailable: %w", err)
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema router: checkout failed: %w", err)
	}

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %q", schemaName)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("schema router: switch to %q failed: %w", schemaName, err)
	}

	scopedGorm, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("schema router: session open failed: %w", err)
	}

	return &ScopedDB{
		ClientID: clientID,
		Schema:   schemaName,
		DB:       scopedGorm,
		conn:     conn,
		router:   r,
	}, nil
}

// Release resets the connection to the neutral schema and returns it to the
// pool. If the reset fails the connection is poisoned so the pool discards
// it; returning a mis-scoped connection is never an option.
func (s *ScopedDB) Release(ctx context.Context) {
	if s.conn == nil {
		return
	}

	reset := fmt.Sprintf("SET search_path TO %q", s.router.tenancy.MasterSchema)
	if _, err := s.conn.ExecContext(ctx, reset); err != nil {
		s.router.log.Error("schema reset failed, discarding connection",
			zap.String("client_id", s.ClientID),
			zap.String("schema", s.Schema),
			zap.Error(err))
		appmetrics.ConnectionDiscardCounter.Inc()

		// Marking the driver connection bad makes the pool drop it on Close.
		_ = s.conn.Raw(func(driverConn interface{}) error {
			return driver.ErrBadConn
		})
	}

	_ = s.conn.Close()
	s.conn = nil
}

// WithTenant acquires a handle for the tenant in ctx, runs fn against it,
// and releases the handle whatever fn does.
func (r *Router) WithTenant(ctx context.Context, fn func(db *gorm.DB) error) error {
	scoped, err := r.Acquire(ctx)
	if err != nil {
		return err
	}
	defer scoped.Release(ctx)

	return fn(scoped.DB)
}
