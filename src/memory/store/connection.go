package store

import (
	"context"
	"fmt"
	"strings"

	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

// QueryExecutor is the transactional query-execution capability the store
// depends on. ReadQuery and WriteQuery each run inside their own transaction;
// Execute runs a bare statement (schema DDL). Every call returns ordered row
// maps keyed by column name. Implementations must release any per-call
// resources on every exit path.
type QueryExecutor interface {
	ReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	WriteQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Execute(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Close(ctx context.Context) error
}

// Connection adapts the Neo4j driver to QueryExecutor. Each call opens one
// session against the pooled driver and closes it before returning.
type Connection struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ QueryExecutor = (*Connection)(nil)

// Open connects to Neo4j with bounded pool settings and verifies
// connectivity before handing the connection out.
func Open(ctx context.Context, cfg Config) (*Connection, error) {
	if cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4jconfig.Config) {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
			c.ConnectionAcquisitionTimeout = cfg.ConnectionAcquisitionTimeout
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return &Connection{driver: driver, database: cfg.Database}, nil
}

// ReadQuery runs cypher inside a read transaction.
func (c *Connection) ReadQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: c.database})
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runAndCollect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return rows.([]map[string]any), nil
}

// WriteQuery runs cypher inside a write transaction.
func (c *Connection) WriteQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: c.database})
	defer session.Close(ctx)

	rows, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runAndCollect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return rows.([]map[string]any), nil
}

// Execute runs a bare statement outside an explicit transaction, for schema
// DDL that cannot run inside one.
func (c *Connection) Execute(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: c.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, classifyError(err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	return recordsToRows(records), nil
}

// Close releases the underlying driver and its pool.
func (c *Connection) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

type cypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error)
}

func runAndCollect(ctx context.Context, tx cypherRunner, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return recordsToRows(records), nil
}

func recordsToRows(records []*neo4j.Record) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for _, key := range record.Keys {
			value, _ := record.Get(key)
			row[key] = flattenValue(value)
		}
		rows = append(rows, row)
	}
	return rows
}

// flattenValue reduces driver entity types to plain property maps. A
// relationship's structural label travels under the "type" key so the codec
// can recover it.
func flattenValue(v any) any {
	switch t := v.(type) {
	case neo4j.Node:
		return t.Props
	case neo4j.Relationship:
		props := make(map[string]any, len(t.Props)+1)
		for k, val := range t.Props {
			props[k] = val
		}
		props["type"] = t.Type
		return props
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = flattenValue(item)
		}
		return out
	}
	return v
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if neo4j.IsConnectivityError(err) {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "pool") || strings.Contains(msg, "acquisition") {
			return fmt.Errorf("%w: %v", ErrPoolExhausted, err)
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return err
}
