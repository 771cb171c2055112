package shardroute

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// IgnoreRoutingStoreKey can be set on a gorm statement to pass it through
// without route resolution:
//
//	db.Set(shardroute.IgnoreRoutingStoreKey, true).Find(&orders)
const IgnoreRoutingStoreKey = "shardroute_ignore"

// RouteResult is the outcome of resolving one statement.
type RouteResult struct {
	SQL        string
	Conditions []ShardingCondition
	Err        error
}

// Broadcast reports whether the statement has to reach every shard.
func (r RouteResult) Broadcast() bool {
	return r.Err == nil && len(r.Conditions) == 0
}

// RouteObserver receives the route of every statement executed through a
// RouteConnPool.
type RouteObserver func(ctx context.Context, result RouteResult)

// ShardRoute is a gorm plugin that resolves the sharding conditions of the
// statements a connection executes. Statements are never rewritten.
type ShardRoute struct {
	*gorm.DB
	config     *Config
	clock      Clock
	parser     *ParserEngine
	conditions *ConditionEngine
	observers  []RouteObserver
	routes     sync.Map

	mutex sync.RWMutex
}

// Register creates the plugin. A nil config uses the global configuration.
//
//	db.Use(shardroute.Register(config).OnRoute(func(ctx context.Context, r shardroute.RouteResult) {
//		...
//	}))
func Register(config *Config) *ShardRoute {
	if config == nil {
		config = GetConfig()
	}
	return &ShardRoute{config: config}
}

// WithClock overrides the clock used to evaluate now(). It takes effect
// immediately when the plugin is already registered.
func (s *ShardRoute) WithClock(clock Clock) *ShardRoute {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.clock = clock
	if s.conditions != nil {
		s.conditions = NewConditionEngine(NewResolver(clock), s.config.Tables)
	}
	return s
}

// OnRoute adds an observer for resolved routes.
func (s *ShardRoute) OnRoute(observer RouteObserver) *ShardRoute {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.observers = append(s.observers, observer)
	return s
}

// Name plugin name for Gorm plugin interface
func (s *ShardRoute) Name() string {
	return "gorm:shardroute"
}

// Initialize implement for Gorm plugin interface
func (s *ShardRoute) Initialize(db *gorm.DB) error {
	s.DB = db

	engine := ParseEngine(s.config.Engine)
	if detected := DetectEngine(db); detected != EngineUnknown {
		engine = detected
	}
	if engine == EngineUnknown {
		return errors.Wrapf(ErrUnsupportedEngine, "dialector %s", db.Dialector.Name())
	}

	parser, err := NewParserEngine(engine, s.config.ParseCache)
	if err != nil {
		return err
	}
	s.parser = parser

	if s.clock == nil {
		if s.config.Clock == ClockDatabase {
			s.clock = NewDatabaseClock(db)
		} else {
			s.clock = SystemClock{}
		}
	}
	s.mutex.Lock()
	s.conditions = NewConditionEngine(NewResolver(s.clock), s.config.Tables)
	s.mutex.Unlock()

	s.registerCallbacks(db)
	infoLog("shardroute initialized for %s with %d sharded tables", engine, len(s.config.Tables))
	return nil
}

func (s *ShardRoute) registerCallbacks(db *gorm.DB) {
	s.Callback().Create().Before("*").Register("gorm:shardroute", s.switchConn)
	s.Callback().Query().Before("*").Register("gorm:shardroute", s.switchConn)
	s.Callback().Update().Before("*").Register("gorm:shardroute", s.switchConn)
	s.Callback().Delete().Before("*").Register("gorm:shardroute", s.switchConn)
	s.Callback().Row().Before("*").Register("gorm:shardroute", s.switchConn)
	s.Callback().Raw().Before("*").Register("gorm:shardroute", s.switchConn)
}

func (s *ShardRoute) switchConn(db *gorm.DB) {
	if _, ok := db.Get(IgnoreRoutingStoreKey); ok {
		return
	}
	if db.Statement.ConnPool == nil {
		return
	}
	if _, ok := db.Statement.ConnPool.(*RouteConnPool); ok {
		return
	}
	db.Statement.ConnPool = &RouteConnPool{router: s, ConnPool: db.Statement.ConnPool}
}

// Route resolves the sharding conditions of query. An empty condition list
// with a nil error means the statement reaches every shard.
func (s *ShardRoute) Route(query string, args ...interface{}) ([]ShardingCondition, error) {
	if s.parser == nil {
		return nil, errors.New("shardroute: plugin is not initialized")
	}
	stmt, err := s.parser.Parse(query, true)
	if err != nil {
		return nil, err
	}
	return s.conditionEngine().CreateShardingConditions(stmt, args)
}

func (s *ShardRoute) conditionEngine() *ConditionEngine {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.conditions
}

// LastRoute returns the route of the most recent statement.
func (s *ShardRoute) LastRoute() (RouteResult, bool) {
	if result, ok := s.routes.Load("last_route"); ok {
		return result.(RouteResult), true
	}
	return RouteResult{}, false
}

// Parser returns the parse boundary used by the plugin.
func (s *ShardRoute) Parser() *ParserEngine {
	return s.parser
}

func (s *ShardRoute) observe(ctx context.Context, query string, args []interface{}) {
	if routingSkipped(ctx) {
		return
	}

	var conditions []ShardingCondition
	stmt, err := s.parser.Parse(query, true)
	if err != nil && isUtilityKeyword(query) {
		traceLog("skip routing of unparsed utility statement %q", query)
		return
	}
	if err == nil {
		if isSystemStatement(stmt) {
			traceLog("skip routing of system statement %q", query)
			return
		}
		conditions, err = s.conditionEngine().CreateShardingConditions(stmt, args)
	}

	result := RouteResult{SQL: query, Conditions: conditions, Err: err}
	switch {
	case errors.Is(err, ErrUnsupportedStatement):
		traceLog("no route for %q: %v", query, err)
	case err != nil:
		debugLog("cannot route %q: %v", query, err)
	}
	s.routes.Store("last_route", result)

	s.mutex.RLock()
	observers := s.observers
	s.mutex.RUnlock()
	for _, observer := range observers {
		observer(ctx, result)
	}
}

var utilityKeywords = []string{"CREATE", "ALTER", "DROP", "TRUNCATE", "RENAME", "GRANT", "REVOKE", "SET", "SHOW", "ANALYZE", "VACUUM"}

// isUtilityKeyword reports whether the first word of query starts a DDL or
// session statement.
func isUtilityKeyword(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	return lo.ContainsBy(utilityKeywords, func(keyword string) bool {
		return strings.EqualFold(fields[0], keyword)
	})
}
