package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// The store reaches Neo4j through a narrow session surface so query logic
// stays testable without a live database.

// CypherResult iterates the records of one query.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherRunner executes a single Cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is one unit of conversation with the database.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener hands out sessions. The production opener wraps the Neo4j
// driver; tests substitute a tracking fake.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o driverOpener) OpenSession(ctx context.Context) CypherSession {
	return driverSession{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := s.sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s driverSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(managedRunner{tx: tx})
	})
}

func (s driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

// managedRunner adapts a managed transaction to the runner interface; the
// driver's Run return type differs from the session's.
type managedRunner struct {
	tx neo4j.ManagedTransaction
}

func (r managedRunner) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := r.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res, nil
}
