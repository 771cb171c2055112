package shardroute

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// maxConditionGroups caps the OR-of-AND expansion of a WHERE clause. Past it
// the clause is treated as unconstrained.
const maxConditionGroups = 1024

// predicateGroups is a WHERE clause in disjunctive normal form: the outer
// slice is OR-ed, each inner slice is AND-ed.
type predicateGroups [][]Predicate

// unconstrained is a clause that matches every row.
func unconstrained() predicateGroups {
	return predicateGroups{{}}
}

func andGroups(left, right predicateGroups) predicateGroups {
	if len(left)*len(right) > maxConditionGroups {
		traceLog("condition expansion exceeds %d groups, treating as unconstrained", maxConditionGroups)
		return unconstrained()
	}
	result := make(predicateGroups, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			group := make([]Predicate, 0, len(l)+len(r))
			group = append(group, l...)
			group = append(group, r...)
			result = append(result, group)
		}
	}
	return result
}

func orGroups(branches ...predicateGroups) predicateGroups {
	var result predicateGroups
	for _, branch := range branches {
		result = append(result, branch...)
	}
	if len(result) == 0 {
		return unconstrained()
	}
	if len(result) > maxConditionGroups {
		traceLog("condition expansion exceeds %d groups, treating as unconstrained", maxConditionGroups)
		return unconstrained()
	}
	return result
}

// whereClause is what the dialect extractors hand to the condition engine.
type whereClause struct {
	tables  []string
	aliases map[string]string
	groups  predicateGroups

	// catalog is set when the statement reads a system schema.
	catalog bool
}

var catalogSchemas = []string{"information_schema", "pg_catalog", "mysql", "performance_schema", "sys"}

func (w *whereClause) addSchema(schema string) {
	if schema != "" && lo.Contains(catalogSchemas, strings.ToLower(schema)) {
		w.catalog = true
	}
}

func newWhereClause() *whereClause {
	return &whereClause{aliases: map[string]string{}, groups: unconstrained()}
}

func (w *whereClause) addTable(name, alias string) {
	if name == "" {
		return
	}
	if !lo.Contains(w.tables, name) {
		w.tables = append(w.tables, name)
	}
	if alias != "" {
		w.aliases[alias] = name
	} else {
		w.aliases[name] = name
	}
}

// resolveTable maps an alias to its table. Unknown qualifiers are kept.
func (w *whereClause) resolveTable(qualifier string) string {
	if table, ok := w.aliases[qualifier]; ok {
		return table
	}
	return qualifier
}

// union merges the clause of another SELECT arm. The arms are OR-ed.
func (w *whereClause) union(other *whereClause) {
	for _, table := range other.tables {
		if !lo.Contains(w.tables, table) {
			w.tables = append(w.tables, table)
		}
	}
	for alias, table := range other.aliases {
		w.aliases[alias] = table
	}
	w.catalog = w.catalog || other.catalog
	w.groups = orGroups(w.groups, other.groups)
}

// ShardingCondition is one AND-group of a WHERE clause resolved into route
// values, one per sharding column.
type ShardingCondition struct {
	RouteValues []RouteValue

	// AlwaysFalse is set when two predicates on one column cannot both hold.
	AlwaysFalse bool
}

// RouteValue returns the route value for column, if the group constrains it.
func (c ShardingCondition) RouteValue(column Column) (RouteValue, bool) {
	return lo.Find(c.RouteValues, func(v RouteValue) bool {
		return v.Column() == column
	})
}

// ConditionEngine turns parsed statements into sharding conditions.
type ConditionEngine struct {
	resolver *Resolver
	rules    map[string]TableRule
}

// NewConditionEngine creates an engine that resolves predicates on the
// sharding columns listed in rules.
func NewConditionEngine(resolver *Resolver, rules map[string]TableRule) *ConditionEngine {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &ConditionEngine{resolver: resolver, rules: rules}
}

// CreateShardingConditions returns the OR-ed sharding conditions of stmt.
// An empty result means the statement cannot be pruned and has to reach
// every shard.
func (e *ConditionEngine) CreateShardingConditions(stmt Statement, parameters []any) ([]ShardingCondition, error) {
	where, err := extractWhereClause(stmt)
	if err != nil {
		return nil, err
	}

	conditions := make([]ShardingCondition, 0, len(where.groups))
	for _, group := range where.groups {
		condition := e.createShardingCondition(group, where, parameters)
		if !condition.AlwaysFalse && len(condition.RouteValues) == 0 {
			RouteOutcomes.WithLabelValues(OutcomeBroadcast).Inc()
			return nil, nil
		}
		conditions = append(conditions, condition)
	}

	if lo.EveryBy(conditions, func(c ShardingCondition) bool { return c.AlwaysFalse }) {
		RouteOutcomes.WithLabelValues(OutcomeAlwaysFalse).Inc()
	} else {
		RouteOutcomes.WithLabelValues(OutcomePruned).Inc()
	}
	return conditions, nil
}

func (e *ConditionEngine) createShardingCondition(group []Predicate, where *whereClause, parameters []any) ShardingCondition {
	var condition ShardingCondition
	for _, predicate := range group {
		column, ok := e.shardingColumn(predicate.Column, where.tables)
		if !ok {
			continue
		}
		routeValue, ok := e.resolver.Generate(predicate.RightValue, column, parameters)
		if !ok {
			continue
		}

		index := lo.IndexOf(lo.Map(condition.RouteValues, func(v RouteValue, _ int) Column {
			return v.Column()
		}), column)
		if index < 0 {
			condition.RouteValues = append(condition.RouteValues, routeValue)
			continue
		}

		merged, ok, err := condition.RouteValues[index].Intersect(routeValue)
		if err != nil {
			// Values of different types on one column; keep the first constraint.
			debugLog("cannot merge route values of %s: %v", column, err)
			continue
		}
		if !ok {
			condition.AlwaysFalse = true
			condition.RouteValues = nil
			return condition
		}
		condition.RouteValues[index] = merged
	}
	return condition
}

// shardingColumn resolves the owner table of column and reports whether it is
// a configured sharding column. The result carries the configured spelling of
// both names.
func (e *ConditionEngine) shardingColumn(column Column, tables []string) (Column, bool) {
	if column.TableName != "" {
		table, rule, ok := e.rule(column.TableName)
		if !ok {
			return Column{}, false
		}
		name, ok := rule.column(column.Name)
		if !ok {
			return Column{}, false
		}
		return NewColumn(name, table), true
	}
	for _, candidate := range tables {
		table, rule, ok := e.rule(candidate)
		if !ok {
			continue
		}
		if name, ok := rule.column(column.Name); ok {
			return NewColumn(name, table), true
		}
	}
	return Column{}, false
}

func (e *ConditionEngine) rule(table string) (string, TableRule, bool) {
	if rule, ok := e.rules[table]; ok {
		return table, rule, true
	}
	for name, rule := range e.rules {
		if strings.EqualFold(name, table) {
			return name, rule, true
		}
	}
	return "", TableRule{}, false
}

// column returns the configured sharding column matching name.
func (r TableRule) column(name string) (string, bool) {
	return lo.Find(r.ShardingColumns, func(column string) bool {
		return strings.EqualFold(column, name)
	})
}

func extractWhereClause(stmt Statement) (*whereClause, error) {
	switch s := stmt.(type) {
	case *PostgresStatement:
		return extractPostgresWhere(s)
	case *MySQLStatement:
		return extractMySQLWhere(s)
	case nil:
		return nil, errors.Wrap(ErrUnsupportedStatement, "nil statement")
	}
	return nil, errors.Wrapf(ErrUnsupportedStatement, "statement type %T", stmt)
}

// isSystemStatement reports DDL, session and other utility statements, and
// queries over the system catalogs. They are never routed.
func isSystemStatement(stmt Statement) bool {
	switch s := stmt.(type) {
	case *PostgresStatement:
		return isPostgresSystemStatement(s)
	case *MySQLStatement:
		return isMySQLSystemStatement(s)
	}
	return false
}

// mirrorOperator returns the operator that holds when the operands of a
// comparison are swapped.
func mirrorOperator(operator string) string {
	switch operator {
	case "<":
		return ">"
	case ">":
		return "<"
	case "<=":
		return ">="
	case ">=":
		return "<="
	}
	return operator
}
