package shardroute

import (
	"strings"

	"gorm.io/gorm"
)

type DatabaseEngine int

const (
	EngineUnknown DatabaseEngine = iota
	EnginePostgreSQL
	EngineMySQL
)

func (e DatabaseEngine) String() string {
	switch e {
	case EnginePostgreSQL:
		return "postgres"
	case EngineMySQL:
		return "mysql"
	default:
		return "unknown"
	}
}

// ParseEngine maps a dialect name such as "postgres" or "mysql" to an engine.
func ParseEngine(name string) DatabaseEngine {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return EnginePostgreSQL
	case "mysql", "mariadb":
		return EngineMySQL
	default:
		return EngineUnknown
	}
}

// DetectEngine reads the engine from the dialector of a gorm connection.
func DetectEngine(db *gorm.DB) DatabaseEngine {
	if db == nil || db.Dialector == nil {
		return EngineUnknown
	}
	return ParseEngine(db.Dialector.Name())
}
