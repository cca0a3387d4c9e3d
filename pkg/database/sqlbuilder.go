package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Now renders the database clock so created_at/updated_at never depend on the caller's.
func Now() any {
	return sqlbuilder.Raw("NOW()")
}

// UpsertBuilder is a postgres INSERT with an ON CONFLICT ... DO UPDATE clause.
type UpsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewUpsertBuilder(table string, cols ...string) *UpsertBuilder {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table).Cols(cols...)
	return &UpsertBuilder{ib}
}

// OnConflict targets the unique key in conflict and overwrites replace from the proposed row.
// updated_at is always bumped. Call it before Returning so the clauses land in order.
func (b *UpsertBuilder) OnConflict(conflict []string, replace ...string) *UpsertBuilder {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	assignments := make([]string, 0, len(replace)+1)
	for _, col := range replace {
		assignments = append(assignments, ub.Assign(col, sqlbuilder.Raw("EXCLUDED."+col)))
	}
	assignments = append(assignments, ub.Assign("updated_at", Now()))
	ub.Set(assignments...)

	b.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE %s", strings.Join(conflict, ", "), b.Var(ub)))
	return b
}

// Struct maps a db-tagged model onto postgres-flavored select builders.
type Struct struct {
	*sqlbuilder.Struct
}

func NewStruct(v any) *Struct {
	return &Struct{sqlbuilder.NewStruct(v).For(sqlbuilder.PostgreSQL)}
}
