package shardroute

import (
	"time"

	"gorm.io/gorm"
)

// Clock supplies the value of now() at resolution time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// DatabaseClock reads the current timestamp from the database so that now()
// resolves to the same instant the shards will see. It falls back to the
// system clock when the database cannot answer.
type DatabaseClock struct {
	db       *gorm.DB
	engine   DatabaseEngine
	fallback Clock
}

// NewDatabaseClock creates a clock backed by db.
func NewDatabaseClock(db *gorm.DB) *DatabaseClock {
	return &DatabaseClock{
		db:       db,
		engine:   DetectEngine(db),
		fallback: SystemClock{},
	}
}

// currentTimestampSQL returns the query that selects the server time.
func currentTimestampSQL(engine DatabaseEngine) string {
	switch engine {
	case EngineMySQL:
		return "SELECT NOW(6)"
	default:
		return "SELECT CURRENT_TIMESTAMP"
	}
}

func (c *DatabaseClock) Now() time.Time {
	var now time.Time
	db := c.db.Set(IgnoreRoutingStoreKey, true)
	if err := db.Raw(currentTimestampSQL(c.engine)).Scan(&now).Error; err != nil {
		errorLog("database clock failed, using system time: %v", err)
		return c.fallback.Now()
	}
	if now.IsZero() {
		debugLog("database clock returned no timestamp, using system time")
		return c.fallback.Now()
	}
	return now
}
