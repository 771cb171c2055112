package shardroute

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xwb1989/sqlparser"
)

// extractMySQLWhere collects the tables and the WHERE predicates of a MySQL
// statement.
func extractMySQLWhere(stmt *MySQLStatement) (*whereClause, error) {
	switch s := stmt.stmt.(type) {
	case sqlparser.SelectStatement:
		return extractMySQLSelect(s)
	case *sqlparser.Update:
		return extractMySQLTables(s.TableExprs, s.Where), nil
	case *sqlparser.Delete:
		return extractMySQLTables(s.TableExprs, s.Where), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedStatement, "%T", stmt.stmt)
}

func isMySQLSystemStatement(stmt *MySQLStatement) bool {
	switch stmt.stmt.(type) {
	case *sqlparser.Insert:
		return false
	case sqlparser.SelectStatement, *sqlparser.Update, *sqlparser.Delete:
		where, err := extractMySQLWhere(stmt)
		return err == nil && where.catalog
	}
	return true
}

func extractMySQLSelect(stmt sqlparser.SelectStatement) (*whereClause, error) {
	switch s := stmt.(type) {
	case *sqlparser.Select:
		return extractMySQLTables(s.From, s.Where), nil
	case *sqlparser.ParenSelect:
		return extractMySQLSelect(s.Select)
	case *sqlparser.Union:
		where, err := extractMySQLSelect(s.Left)
		if err != nil {
			return nil, err
		}
		right, err := extractMySQLSelect(s.Right)
		if err != nil {
			return nil, err
		}
		where.union(right)
		return where, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedStatement, "%T", stmt)
}

func extractMySQLTables(tableExprs sqlparser.TableExprs, whereExpr *sqlparser.Where) *whereClause {
	where := newWhereClause()
	var conditions []sqlparser.Expr
	if whereExpr != nil {
		conditions = append(conditions, whereExpr.Expr)
	}
	for _, tableExpr := range tableExprs {
		conditions = append(conditions, collectMySQLTableExpr(where, tableExpr)...)
	}
	where.groups = mysqlConjunction(where, conditions)
	return where
}

// collectMySQLTableExpr registers the tables of a FROM item and returns the
// ON conditions of its inner joins.
func collectMySQLTableExpr(where *whereClause, tableExpr sqlparser.TableExpr) []sqlparser.Expr {
	switch t := tableExpr.(type) {
	case *sqlparser.AliasedTableExpr:
		if name, ok := t.Expr.(sqlparser.TableName); ok {
			where.addTable(name.Name.String(), t.As.String())
			where.addSchema(name.Qualifier.String())
		}
	case *sqlparser.ParenTableExpr:
		var conditions []sqlparser.Expr
		for _, expr := range t.Exprs {
			conditions = append(conditions, collectMySQLTableExpr(where, expr)...)
		}
		return conditions
	case *sqlparser.JoinTableExpr:
		var conditions []sqlparser.Expr
		if (t.Join == sqlparser.JoinStr || t.Join == sqlparser.StraightJoinStr) && t.Condition.On != nil {
			conditions = append(conditions, t.Condition.On)
		}
		conditions = append(conditions, collectMySQLTableExpr(where, t.LeftExpr)...)
		conditions = append(conditions, collectMySQLTableExpr(where, t.RightExpr)...)
		return conditions
	}
	return nil
}

func mysqlConjunction(where *whereClause, conditions []sqlparser.Expr) predicateGroups {
	groups := unconstrained()
	for _, condition := range conditions {
		if condition == nil {
			continue
		}
		groups = andGroups(groups, mysqlCondition(where, condition))
	}
	return groups
}

func mysqlCondition(where *whereClause, expr sqlparser.Expr) predicateGroups {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		return mysqlConjunction(where, []sqlparser.Expr{e.Left, e.Right})
	case *sqlparser.OrExpr:
		return orGroups(mysqlCondition(where, e.Left), mysqlCondition(where, e.Right))
	case *sqlparser.ParenExpr:
		return mysqlCondition(where, e.Expr)
	case *sqlparser.ComparisonExpr:
		if predicate, ok := mysqlComparison(where, e); ok {
			return predicateGroups{{predicate}}
		}
	case *sqlparser.RangeCond:
		column, ok := mysqlColumn(where, e.Left)
		if ok && e.Operator == sqlparser.BetweenStr {
			return predicateGroups{{{
				Column:     column,
				RightValue: BetweenRightValue{Between: mysqlExpression(e.From), And: mysqlExpression(e.To)},
			}}}
		}
	}
	return unconstrained()
}

func mysqlComparison(where *whereClause, expr *sqlparser.ComparisonExpr) (Predicate, bool) {
	switch expr.Operator {
	case sqlparser.InStr:
		column, ok := mysqlColumn(where, expr.Left)
		tuple, isTuple := expr.Right.(sqlparser.ValTuple)
		if !ok || !isTuple {
			return Predicate{}, false
		}
		expressions := make([]Expression, 0, len(tuple))
		for _, item := range tuple {
			expressions = append(expressions, mysqlExpression(item))
		}
		return Predicate{Column: column, RightValue: InRightValue{Expressions: expressions}}, true
	case sqlparser.NotInStr:
		return Predicate{}, false
	}

	leftColumn, leftIsColumn := mysqlColumn(where, expr.Left)
	rightColumn, rightIsColumn := mysqlColumn(where, expr.Right)
	switch {
	case leftIsColumn && !rightIsColumn:
		return Predicate{
			Column:     leftColumn,
			RightValue: CompareRightValue{Operator: expr.Operator, Expression: mysqlExpression(expr.Right)},
		}, true
	case rightIsColumn && !leftIsColumn:
		return Predicate{
			Column:     rightColumn,
			RightValue: CompareRightValue{Operator: mirrorOperator(expr.Operator), Expression: mysqlExpression(expr.Left)},
		}, true
	}
	return Predicate{}, false
}

func mysqlColumn(where *whereClause, expr sqlparser.Expr) (Column, bool) {
	colName, ok := expr.(*sqlparser.ColName)
	if !ok {
		return Column{}, false
	}
	qualifier := colName.Qualifier.Name.String()
	if qualifier != "" {
		qualifier = where.resolveTable(qualifier)
	}
	return NewColumn(colName.Name.String(), qualifier), true
}

// mysqlExpression converts a right-hand side node. The parser has no
// positions, so every expression spans 0..0. Positional markers are
// rewritten by the parser to :v1, :v2 and map to parameters 0, 1.
func mysqlExpression(expr sqlparser.Expr) Expression {
	switch e := expr.(type) {
	case *sqlparser.SQLVal:
		if e.Type == sqlparser.ValArg {
			if index, ok := positionalArgIndex(string(e.Val)); ok {
				return NewParameterMarkerExpression(0, 0, index)
			}
			return NewComplexExpression(0, 0, string(e.Val))
		}
		if value, ok := mysqlLiteral(e); ok {
			return NewLiteralExpression(0, 0, value)
		}
	case sqlparser.BoolVal:
		return NewLiteralExpression(0, 0, bool(e))
	case *sqlparser.ParenExpr:
		return mysqlExpression(e.Expr)
	case *sqlparser.UnaryExpr:
		if e.Operator == sqlparser.UMinusStr {
			if val, ok := e.Expr.(*sqlparser.SQLVal); ok && val.Type == sqlparser.FloatVal {
				if f, err := strconv.ParseFloat(string(val.Val), 64); err == nil {
					return NewLiteralExpression(0, 0, -f)
				}
			}
		}
	}
	return NewComplexExpression(0, 0, sqlparser.String(expr))
}

func mysqlLiteral(val *sqlparser.SQLVal) (any, bool) {
	text := string(val.Val)
	switch val.Type {
	case sqlparser.StrVal:
		return text, true
	case sqlparser.IntVal:
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, true
		}
		if u, err := strconv.ParseUint(text, 10, 64); err == nil {
			return u, true
		}
	case sqlparser.FloatVal:
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f, true
		}
	}
	return nil, false
}

func positionalArgIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, ":v") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, ":v"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}
