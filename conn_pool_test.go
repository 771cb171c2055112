package shardroute

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errFakePool = errors.New("fake pool: no database")

// fakeConnPool records statements instead of talking to a database. Queries
// fail so no *sql.Rows has to be produced.
type fakeConnPool struct {
	mu      sync.Mutex
	queries []string
}

func (p *fakeConnPool) record(query string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
}

func (p *fakeConnPool) Queries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queries...)
}

func (p *fakeConnPool) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return nil, errFakePool
}

func (p *fakeConnPool) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	p.record(query)
	return driver.RowsAffected(1), nil
}

func (p *fakeConnPool) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	p.record(query)
	return nil, errFakePool
}

func (p *fakeConnPool) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	p.record(query)
	return nil
}

type Order struct {
	ID     int64
	UserID int64
	Status string
}

type routeRecorder struct {
	mu      sync.Mutex
	results []RouteResult
}

func (r *routeRecorder) observe(_ context.Context, result RouteResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *routeRecorder) Results() []RouteResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RouteResult(nil), r.results...)
}

func openFakeDB(t *testing.T, engine DatabaseEngine, pool *fakeConnPool) *gorm.DB {
	t.Helper()
	var dialector gorm.Dialector
	switch engine {
	case EngineMySQL:
		dialector = mysql.New(mysql.Config{Conn: pool, SkipInitializeWithVersion: true})
	default:
		dialector = postgres.New(postgres.Config{Conn: pool})
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func testRouteConfig() *Config {
	config := DefaultConfig()
	config.Tables = map[string]TableRule{
		"orders": {ShardingColumns: []string{"user_id"}},
	}
	return config
}

func setupRouting(t *testing.T, engine DatabaseEngine, config *Config) (*gorm.DB, *ShardRoute, *routeRecorder, *fakeConnPool) {
	t.Helper()
	pool := &fakeConnPool{}
	db := openFakeDB(t, engine, pool)
	recorder := &routeRecorder{}
	plugin := Register(config).OnRoute(recorder.observe)
	require.NoError(t, db.Use(plugin))
	return db, plugin, recorder, pool
}

func TestRouteConnPoolObservesQueries(t *testing.T) {
	for _, engine := range []DatabaseEngine{EnginePostgreSQL, EngineMySQL} {
		t.Run(engine.String(), func(t *testing.T) {
			db, plugin, recorder, pool := setupRouting(t, engine, testRouteConfig())
			assert.Equal(t, engine, plugin.Parser().Engine())

			var orders []Order
			err := db.Where("user_id = ?", 5).Find(&orders).Error
			assert.ErrorIs(t, err, errFakePool)

			results := recorder.Results()
			require.Len(t, results, 1)
			require.NoError(t, results[0].Err)
			require.Len(t, results[0].Conditions, 1)
			assert.Equal(t, []int64{5}, listValues[int64](t, results[0].Conditions[0], ordersUserID))
			assert.False(t, results[0].Broadcast())

			// the statement reaches the wrapped pool unchanged
			require.Len(t, pool.Queries(), 1)
			assert.Equal(t, results[0].SQL, pool.Queries()[0])

			last, ok := plugin.LastRoute()
			require.True(t, ok)
			assert.Equal(t, results[0].SQL, last.SQL)
		})
	}
}

func TestRouteConnPoolExec(t *testing.T) {
	db, _, recorder, _ := setupRouting(t, EnginePostgreSQL, testRouteConfig())

	err := db.Exec("UPDATE orders SET status = ? WHERE user_id IN ?", "paid", []int{1, 2}).Error
	require.NoError(t, err)

	err = db.Model(&Order{}).Where("status = ?", "new").Update("status", "paid").Error
	require.NoError(t, err)

	results := recorder.Results()
	require.Len(t, results, 2)
	require.Len(t, results[0].Conditions, 1)
	assert.Equal(t, []int64{1, 2}, listValues[int64](t, results[0].Conditions[0], ordersUserID))
	assert.True(t, results[1].Broadcast())
}

func TestRouteConnPoolUnsupportedStatement(t *testing.T) {
	db, _, recorder, _ := setupRouting(t, EnginePostgreSQL, testRouteConfig())

	_ = db.Create(&Order{UserID: 1, Status: "new"}).Error

	results := recorder.Results()
	require.Len(t, results, 1)
	assert.True(t, errors.Is(results[0].Err, ErrUnsupportedStatement))
	assert.False(t, results[0].Broadcast())
}

func TestRouteConnPoolSkipsRouting(t *testing.T) {
	db, _, recorder, pool := setupRouting(t, EnginePostgreSQL, testRouteConfig())

	var orders []Order
	_ = db.WithContext(WithoutRouting(context.Background())).Where("user_id = ?", 1).Find(&orders).Error
	_ = db.Set(IgnoreRoutingStoreKey, true).Where("user_id = ?", 1).Find(&orders).Error
	_ = db.Exec("CREATE TABLE orders_1 (id bigint)").Error
	_ = db.Raw("SELECT * FROM information_schema.tables WHERE table_name = ?", "orders").Scan(&orders).Error

	assert.Empty(t, recorder.Results())
	assert.Len(t, pool.Queries(), 4)
}

func TestRouteConnPoolDatabaseClock(t *testing.T) {
	config := testRouteConfig()
	config.Clock = ClockDatabase
	config.Tables["events"] = TableRule{ShardingColumns: []string{"created_at"}}
	db, plugin, recorder, pool := setupRouting(t, EnginePostgreSQL, config)

	before := time.Now()
	_ = db.Exec("DELETE FROM events WHERE created_at = now()").Error

	// the clock query itself is not routed
	results := recorder.Results()
	require.Len(t, results, 1)
	require.Len(t, results[0].Conditions, 1)
	values := listValues[time.Time](t, results[0].Conditions[0], eventsCreatedAt)
	require.Len(t, values, 1)
	assert.False(t, values[0].Before(before))

	assert.Contains(t, pool.Queries(), "SELECT CURRENT_TIMESTAMP")
	assert.IsType(t, &DatabaseClock{}, plugin.clock)
}

func TestShardRouteWithClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	config := testRouteConfig()
	config.Tables["events"] = TableRule{ShardingColumns: []string{"created_at"}}

	pool := &fakeConnPool{}
	db := openFakeDB(t, EngineMySQL, pool)
	plugin := Register(config).WithClock(fixedClock(now))
	require.NoError(t, db.Use(plugin))

	conditions, err := plugin.Route("SELECT * FROM events WHERE created_at = NOW()")
	require.NoError(t, err)
	require.Len(t, conditions, 1)
	assert.Equal(t, []time.Time{now}, listValues[time.Time](t, conditions[0], eventsCreatedAt))
}

func TestShardRouteNotInitialized(t *testing.T) {
	_, err := Register(testRouteConfig()).Route("SELECT 1")
	assert.Error(t, err)

	_, ok := Register(nil).LastRoute()
	assert.False(t, ok)
}

func TestRouteConnPoolConcurrentQueries(t *testing.T) {
	db, _, recorder, _ := setupRouting(t, EnginePostgreSQL, testRouteConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var orders []Order
			_ = db.Where("user_id = ?", i).Find(&orders).Error
		}(i)
	}
	wg.Wait()

	results := recorder.Results()
	require.Len(t, results, 20)
	for _, result := range results {
		assert.NoError(t, result.Err)
		assert.Len(t, result.Conditions, 1)
	}
}

func TestIsSystemStatement(t *testing.T) {
	tests := []struct {
		engine DatabaseEngine
		sql    string
		system bool
	}{
		{EnginePostgreSQL, "select * from pg_catalog.pg_tables", true},
		{EnginePostgreSQL, "SELECT * FROM information_schema.tables WHERE table_name = 'orders'", true},
		{EnginePostgreSQL, "CREATE INDEX idx ON orders (user_id)", true},
		{EnginePostgreSQL, "ALTER TABLE orders ADD COLUMN note text", true},
		{EnginePostgreSQL, "SET search_path TO public", true},
		{EnginePostgreSQL, "SELECT * FROM orders", false},
		{EnginePostgreSQL, "SELECT * FROM orders WHERE note = 'alter table' AND user_id = 3", false},
		{EnginePostgreSQL, "INSERT INTO orders (user_id) VALUES (1)", false},
		{EngineMySQL, "SELECT * FROM information_schema.schemata", true},
		{EngineMySQL, "DROP TABLE orders_1", true},
		{EngineMySQL, "SELECT * FROM orders WHERE note = 'create table pg_catalog'", false},
		{EngineMySQL, "DELETE FROM orders WHERE user_id = 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.engine.String()+" "+tt.sql, func(t *testing.T) {
			parser, err := NewParserEngine(tt.engine, testCacheConfig)
			require.NoError(t, err)
			stmt, err := parser.Parse(tt.sql, false)
			require.NoError(t, err)
			assert.Equal(t, tt.system, isSystemStatement(stmt))
		})
	}
}

func TestIsUtilityKeyword(t *testing.T) {
	assert.True(t, isUtilityKeyword("  create table orders_1 (id bigint)"))
	assert.True(t, isUtilityKeyword("TRUNCATE orders"))
	assert.False(t, isUtilityKeyword("SELECT 'create'"))
	assert.False(t, isUtilityKeyword(""))
}

func TestRouteConnPoolRoutesStatementsMentioningDDL(t *testing.T) {
	db, _, recorder, _ := setupRouting(t, EnginePostgreSQL, testRouteConfig())

	err := db.Exec("UPDATE orders SET status = 'alter table' WHERE user_id = ?", 3).Error
	require.NoError(t, err)

	results := recorder.Results()
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Conditions, 1)
	assert.Equal(t, []int64{3}, listValues[int64](t, results[0].Conditions[0], ordersUserID))
}

func TestShardRouteWithClockAfterRegistration(t *testing.T) {
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	config := testRouteConfig()
	config.Tables["events"] = TableRule{ShardingColumns: []string{"created_at"}}

	db := openFakeDB(t, EnginePostgreSQL, &fakeConnPool{})
	plugin := Register(config).WithClock(fixedClock(first))
	require.NoError(t, db.Use(plugin))

	conditions, err := plugin.Route("SELECT * FROM events WHERE created_at = now()")
	require.NoError(t, err)
	require.Len(t, conditions, 1)
	assert.Equal(t, []time.Time{first}, listValues[time.Time](t, conditions[0], eventsCreatedAt))

	plugin.WithClock(fixedClock(second))
	conditions, err = plugin.Route("SELECT * FROM events WHERE created_at = now()")
	require.NoError(t, err)
	require.Len(t, conditions, 1)
	assert.Equal(t, []time.Time{second}, listValues[time.Time](t, conditions[0], eventsCreatedAt))
}
