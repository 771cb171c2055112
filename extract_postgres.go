package shardroute

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	pg_query "github.com/pganalyze/pg_query_go/v5"
	"github.com/spf13/cast"
)

// extractPostgresWhere collects the tables and the WHERE predicates of the
// first statement in a PostgreSQL parse tree.
func extractPostgresWhere(stmt *PostgresStatement) (*whereClause, error) {
	node := stmt.tree.Stmts[0].Stmt
	if node == nil {
		return nil, errors.Wrap(ErrUnsupportedStatement, "empty statement")
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return extractPostgresSelect(n.SelectStmt), nil
	case *pg_query.Node_UpdateStmt:
		where := newWhereClause()
		addPostgresRangeVar(where, n.UpdateStmt.Relation)
		conditions := []*pg_query.Node{n.UpdateStmt.WhereClause}
		for _, fromItem := range n.UpdateStmt.FromClause {
			conditions = append(conditions, collectPostgresFromItem(where, fromItem)...)
		}
		where.groups = postgresConjunction(where, conditions)
		return where, nil
	case *pg_query.Node_DeleteStmt:
		where := newWhereClause()
		addPostgresRangeVar(where, n.DeleteStmt.Relation)
		conditions := []*pg_query.Node{n.DeleteStmt.WhereClause}
		for _, fromItem := range n.DeleteStmt.UsingClause {
			conditions = append(conditions, collectPostgresFromItem(where, fromItem)...)
		}
		where.groups = postgresConjunction(where, conditions)
		return where, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedStatement, "%T", node.Node)
}

func isPostgresSystemStatement(stmt *PostgresStatement) bool {
	node := stmt.tree.Stmts[0].Stmt
	if node == nil {
		return false
	}
	switch node.Node.(type) {
	case *pg_query.Node_InsertStmt:
		return false
	case *pg_query.Node_SelectStmt, *pg_query.Node_UpdateStmt, *pg_query.Node_DeleteStmt:
		where, err := extractPostgresWhere(stmt)
		return err == nil && where.catalog
	}
	return true
}

func extractPostgresSelect(selectStmt *pg_query.SelectStmt) *whereClause {
	if selectStmt.Larg != nil && selectStmt.Rarg != nil {
		where := extractPostgresSelect(selectStmt.Larg)
		where.union(extractPostgresSelect(selectStmt.Rarg))
		return where
	}

	where := newWhereClause()
	conditions := []*pg_query.Node{selectStmt.WhereClause}
	for _, fromItem := range selectStmt.FromClause {
		conditions = append(conditions, collectPostgresFromItem(where, fromItem)...)
	}
	where.groups = postgresConjunction(where, conditions)
	return where
}

func addPostgresRangeVar(where *whereClause, rangeVar *pg_query.RangeVar) {
	if rangeVar == nil {
		return
	}
	alias := ""
	if rangeVar.Alias != nil {
		alias = rangeVar.Alias.Aliasname
	}
	where.addTable(rangeVar.Relname, alias)
	where.addSchema(rangeVar.Schemaname)
}

// collectPostgresFromItem registers the tables of a FROM item and returns the
// ON conditions of its inner joins.
func collectPostgresFromItem(where *whereClause, node *pg_query.Node) []*pg_query.Node {
	if node == nil {
		return nil
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		addPostgresRangeVar(where, n.RangeVar)
	case *pg_query.Node_JoinExpr:
		var conditions []*pg_query.Node
		if n.JoinExpr.Jointype == pg_query.JoinType_JOIN_INNER && n.JoinExpr.Quals != nil {
			conditions = append(conditions, n.JoinExpr.Quals)
		}
		conditions = append(conditions, collectPostgresFromItem(where, n.JoinExpr.Larg)...)
		conditions = append(conditions, collectPostgresFromItem(where, n.JoinExpr.Rarg)...)
		return conditions
	}
	return nil
}

func postgresConjunction(where *whereClause, conditions []*pg_query.Node) predicateGroups {
	groups := unconstrained()
	for _, condition := range conditions {
		if condition == nil {
			continue
		}
		groups = andGroups(groups, postgresCondition(where, condition))
	}
	return groups
}

func postgresCondition(where *whereClause, node *pg_query.Node) predicateGroups {
	switch n := node.Node.(type) {
	case *pg_query.Node_BoolExpr:
		switch n.BoolExpr.Boolop {
		case pg_query.BoolExprType_AND_EXPR:
			return postgresConjunction(where, n.BoolExpr.Args)
		case pg_query.BoolExprType_OR_EXPR:
			branches := make([]predicateGroups, 0, len(n.BoolExpr.Args))
			for _, arg := range n.BoolExpr.Args {
				branches = append(branches, postgresCondition(where, arg))
			}
			return orGroups(branches...)
		}
	case *pg_query.Node_AExpr:
		if predicate, ok := postgresPredicate(where, n.AExpr); ok {
			return predicateGroups{{predicate}}
		}
	}
	return unconstrained()
}

func postgresPredicate(where *whereClause, expr *pg_query.A_Expr) (Predicate, bool) {
	if expr.Lexpr == nil || expr.Rexpr == nil {
		return Predicate{}, false
	}
	operator := postgresOperatorName(expr)

	switch expr.Kind {
	case pg_query.A_Expr_Kind_AEXPR_OP:
		leftColumn, leftIsColumn := postgresColumn(where, expr.Lexpr)
		rightColumn, rightIsColumn := postgresColumn(where, expr.Rexpr)
		switch {
		case leftIsColumn && !rightIsColumn:
			return Predicate{
				Column:     leftColumn,
				RightValue: CompareRightValue{Operator: operator, Expression: postgresExpression(expr.Rexpr)},
			}, true
		case rightIsColumn && !leftIsColumn:
			return Predicate{
				Column:     rightColumn,
				RightValue: CompareRightValue{Operator: mirrorOperator(operator), Expression: postgresExpression(expr.Lexpr)},
			}, true
		}

	case pg_query.A_Expr_Kind_AEXPR_IN:
		column, ok := postgresColumn(where, expr.Lexpr)
		list, isList := expr.Rexpr.Node.(*pg_query.Node_List)
		if !ok || !isList || operator != "=" {
			return Predicate{}, false
		}
		expressions := make([]Expression, 0, len(list.List.Items))
		for _, item := range list.List.Items {
			expressions = append(expressions, postgresExpression(item))
		}
		return Predicate{Column: column, RightValue: InRightValue{Expressions: expressions}}, true

	case pg_query.A_Expr_Kind_AEXPR_BETWEEN:
		column, ok := postgresColumn(where, expr.Lexpr)
		list, isList := expr.Rexpr.Node.(*pg_query.Node_List)
		if !ok || !isList || len(list.List.Items) != 2 {
			return Predicate{}, false
		}
		return Predicate{
			Column: column,
			RightValue: BetweenRightValue{
				Between: postgresExpression(list.List.Items[0]),
				And:     postgresExpression(list.List.Items[1]),
			},
		}, true
	}
	return Predicate{}, false
}

func postgresOperatorName(expr *pg_query.A_Expr) string {
	if len(expr.Name) == 0 {
		return ""
	}
	if name, ok := expr.Name[len(expr.Name)-1].Node.(*pg_query.Node_String_); ok {
		return name.String_.Sval
	}
	return ""
}

// postgresColumn reads a column reference, resolving its qualifier through
// the table aliases.
func postgresColumn(where *whereClause, node *pg_query.Node) (Column, bool) {
	colRef, ok := node.Node.(*pg_query.Node_ColumnRef)
	if !ok {
		return Column{}, false
	}
	var parts []string
	for _, field := range colRef.ColumnRef.Fields {
		stringNode, ok := field.Node.(*pg_query.Node_String_)
		if !ok {
			// a.* and friends
			return Column{}, false
		}
		parts = append(parts, stringNode.String_.Sval)
	}
	switch len(parts) {
	case 0:
		return Column{}, false
	case 1:
		return NewColumn(parts[0], ""), true
	default:
		return NewColumn(parts[len(parts)-1], where.resolveTable(parts[len(parts)-2])), true
	}
}

// postgresExpression converts a right-hand side node. Constants become
// literals, $n becomes parameter n-1 and anything else keeps its SQL text.
func postgresExpression(node *pg_query.Node) Expression {
	switch n := node.Node.(type) {
	case *pg_query.Node_AConst:
		start := int(n.AConst.Location)
		if n.AConst.Isnull {
			return NewComplexExpression(start, start+3, "NULL")
		}
		value, err := extractValueFromAConst(n.AConst)
		if err != nil {
			debugLog("cannot read constant at %d: %v", start, err)
			return NewComplexExpression(start, start, "")
		}
		return NewLiteralExpression(start, start+len(cast.ToString(value))-1, value)
	case *pg_query.Node_ParamRef:
		start := int(n.ParamRef.Location)
		number := int(n.ParamRef.Number)
		return NewParameterMarkerExpression(start, start+len(strconv.Itoa(number)), number-1)
	case *pg_query.Node_TypeCast:
		if n.TypeCast.Arg != nil {
			return postgresExpression(n.TypeCast.Arg)
		}
	case *pg_query.Node_FuncCall:
		start := int(n.FuncCall.Location)
		text := postgresFuncCallText(n.FuncCall)
		return NewComplexExpression(start, start+len(text)-1, text)
	}
	text := deparseExpression(node)
	return NewComplexExpression(0, len(text)-1, text)
}

func extractValueFromAConst(aConst *pg_query.A_Const) (any, error) {
	switch val := aConst.Val.(type) {
	case *pg_query.A_Const_Ival:
		if val.Ival != nil {
			return int64(val.Ival.Ival), nil
		}
	case *pg_query.A_Const_Sval:
		if val.Sval != nil {
			return val.Sval.Sval, nil
		}
	case *pg_query.A_Const_Fval:
		// integers beyond int32 arrive as Fval
		if val.Fval != nil {
			if i, err := strconv.ParseInt(val.Fval.Fval, 10, 64); err == nil {
				return i, nil
			}
			if u, err := strconv.ParseUint(val.Fval.Fval, 10, 64); err == nil {
				return u, nil
			}
			f, err := strconv.ParseFloat(val.Fval.Fval, 64)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
	case *pg_query.A_Const_Boolval:
		if val.Boolval != nil {
			return val.Boolval.Boolval, nil
		}
	case *pg_query.A_Const_Bsval:
		if val.Bsval != nil {
			return val.Bsval.Bsval, nil
		}
	default:
		return nil, errors.Newf("unsupported constant type: %T", val)
	}
	return nil, errors.New("value is nil in A_Const")
}

// postgresFuncCallText renders argument-less calls directly and deparses the rest.
func postgresFuncCallText(funcCall *pg_query.FuncCall) string {
	if len(funcCall.Args) > 0 || funcCall.AggStar {
		return deparseExpression(&pg_query.Node{Node: &pg_query.Node_FuncCall{FuncCall: funcCall}})
	}
	var names []string
	for _, name := range funcCall.Funcname {
		if s, ok := name.Node.(*pg_query.Node_String_); ok {
			names = append(names, s.String_.Sval)
		}
	}
	return strings.Join(names, ".") + "()"
}

// deparseExpression renders an expression node back to SQL by deparsing a
// SELECT that projects it.
func deparseExpression(node *pg_query.Node) string {
	tree := &pg_query.ParseResult{
		Stmts: []*pg_query.RawStmt{{
			Stmt: &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: &pg_query.SelectStmt{
				TargetList: []*pg_query.Node{{
					Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: node}},
				}},
				Op:          pg_query.SetOperation_SETOP_NONE,
				LimitOption: pg_query.LimitOption_LIMIT_OPTION_DEFAULT,
			}}},
		}},
	}
	sql, err := pg_query.Deparse(tree)
	if err != nil {
		debugLog("cannot deparse expression: %v", err)
		return ""
	}
	return strings.TrimPrefix(sql, "SELECT ")
}
