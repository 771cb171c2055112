package shardroute

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	pg_query "github.com/pganalyze/pg_query_go/v5"
	"github.com/xwb1989/sqlparser"
	"golang.org/x/sync/singleflight"
)

// Statement is a parsed SQL statement. Statements returned by a parser are
// shared through its cache and must not be modified.
type Statement interface {
	Engine() DatabaseEngine
	SQL() string
}

// PostgresStatement wraps a pg_query parse tree.
type PostgresStatement struct {
	sql  string
	tree *pg_query.ParseResult
}

func (s *PostgresStatement) Engine() DatabaseEngine { return EnginePostgreSQL }
func (s *PostgresStatement) SQL() string            { return s.sql }

// Tree returns the underlying parse result.
func (s *PostgresStatement) Tree() *pg_query.ParseResult { return s.tree }

// MySQLStatement wraps a sqlparser statement.
type MySQLStatement struct {
	sql  string
	stmt sqlparser.Statement
}

func (s *MySQLStatement) Engine() DatabaseEngine { return EngineMySQL }
func (s *MySQLStatement) SQL() string            { return s.sql }

// AST returns the underlying statement.
func (s *MySQLStatement) AST() sqlparser.Statement { return s.stmt }

// SQLParserEngine parses SQL text. With useCache the engine may return a
// statement parsed earlier for identical text.
type SQLParserEngine interface {
	Parse(sql string, useCache bool) (Statement, error)
}

// ParserEngine parses one dialect and caches statements by SQL text.
type ParserEngine struct {
	engine DatabaseEngine
	cache  *expirable.LRU[string, Statement]
	group  singleflight.Group
}

var _ SQLParserEngine = (*ParserEngine)(nil)

// NewParserEngine creates a parser for engine. A disabled cache config makes
// every call parse afresh.
func NewParserEngine(engine DatabaseEngine, cacheConfig ParseCacheConfig) (*ParserEngine, error) {
	if engine != EnginePostgreSQL && engine != EngineMySQL {
		return nil, errors.Wrapf(ErrUnsupportedEngine, "engine %s", engine)
	}
	p := &ParserEngine{engine: engine}
	if cacheConfig.Enabled && cacheConfig.Size > 0 {
		p.cache = expirable.NewLRU[string, Statement](cacheConfig.Size, nil, cacheConfig.TTL)
	}
	return p, nil
}

func (p *ParserEngine) Engine() DatabaseEngine {
	return p.engine
}

// Parse returns the statement for sql. Concurrent cache misses on the same
// text share a single parse.
func (p *ParserEngine) Parse(sql string, useCache bool) (Statement, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, errors.Wrap(ErrSyntax, "empty statement")
	}
	if !useCache || p.cache == nil {
		return p.parse(sql)
	}

	engineLabel := p.engine.String()
	if stmt, ok := p.cache.Get(sql); ok {
		ParseCacheHits.WithLabelValues(engineLabel).Inc()
		return stmt, nil
	}
	ParseCacheMisses.WithLabelValues(engineLabel).Inc()

	v, err, _ := p.group.Do(sql, func() (any, error) {
		stmt, err := p.parse(sql)
		if err != nil {
			return nil, err
		}
		p.cache.Add(sql, stmt)
		return stmt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Statement), nil
}

// CacheLen returns the number of cached statements.
func (p *ParserEngine) CacheLen() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

// Purge drops every cached statement.
func (p *ParserEngine) Purge() {
	if p.cache != nil {
		p.cache.Purge()
	}
}

func (p *ParserEngine) parse(sql string) (Statement, error) {
	var (
		stmt Statement
		err  error
	)
	switch p.engine {
	case EngineMySQL:
		stmt, err = parseMySQL(sql)
	default:
		stmt, err = parsePostgres(sql)
	}
	if err != nil {
		ParseFailures.WithLabelValues(p.engine.String()).Inc()
		traceLog("failed to parse %q: %v", sql, err)
		return nil, err
	}
	return stmt, nil
}

func parsePostgres(sql string) (Statement, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "pg_query"), ErrSyntax)
	}
	if len(tree.Stmts) == 0 {
		return nil, errors.Wrap(ErrSyntax, "no statements found")
	}
	return &PostgresStatement{sql: sql, tree: tree}, nil
}

func parseMySQL(sql string) (Statement, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "sqlparser"), ErrSyntax)
	}
	return &MySQLStatement{sql: sql, stmt: stmt}, nil
}
