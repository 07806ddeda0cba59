package storage

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jytian/gasops/internal/core/domain"
)

// Repository is the one generic data-access implementation shared by every
// entity. T is the entity row, C the creation input and U the update input;
// columns are derived from their db tags. Update inputs use pointer fields
// so that nil means "leave unchanged".
//
// Timestamps are owned by the schema (DEFAULT CURRENT_TIMESTAMP), so inputs
// never carry them.
type Repository[T any, C any, U any] struct {
	db     sqlx.ExtContext
	table  string
	entity string
}

func NewRepository[T any, C any, U any](db sqlx.ExtContext, table, entity string) *Repository[T, C, U] {
	return &Repository[T, C, U]{db: db, table: table, entity: entity}
}

// WithTx returns a transaction-scoped variant of the repository.
func (r *Repository[T, C, U]) WithTx(tx *sqlx.Tx) *Repository[T, C, U] {
	return &Repository[T, C, U]{db: tx, table: r.table, entity: r.entity}
}

func (r *Repository[T, C, U]) FindByID(ctx context.Context, id string) (*T, error) {
	var row T
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = ?", r.table)
	err := sqlx.GetContext(ctx, r.db, &row, query, id)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, domain.ClassifyStoreError(r.entity, err)
	}
	return &row, nil
}

func (r *Repository[T, C, U]) FindByIDOrFail(ctx context.Context, id string) (*T, error) {
	row, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.NewNotFound(r.entity, id)
	}
	return row, nil
}

func (r *Repository[T, C, U]) FindOne(ctx context.Context, conds ...Condition) (*T, error) {
	where, args, err := buildWhere(conds)
	if err != nil {
		return nil, err
	}

	var row T
	query := fmt.Sprintf("SELECT * FROM %s%s LIMIT 1", r.table, where)
	err = sqlx.GetContext(ctx, r.db, &row, query, args...)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, domain.ClassifyStoreError(r.entity, err)
	}
	return &row, nil
}

func (r *Repository[T, C, U]) FindMany(ctx context.Context, conds []Condition, order Ordering) ([]T, error) {
	where, args, err := buildWhere(conds)
	if err != nil {
		return nil, err
	}
	orderBy, err := order.compile()
	if err != nil {
		return nil, err
	}

	rows := []T{}
	query := fmt.Sprintf("SELECT * FROM %s%s%s", r.table, where, orderBy)
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, domain.ClassifyStoreError(r.entity, err)
	}
	return rows, nil
}

func (r *Repository[T, C, U]) FindPaginated(ctx context.Context, conds []Condition, order Ordering, pg Pagination) (*Page[T], error) {
	pg = pg.normalize()

	total, err := r.Count(ctx, conds...)
	if err != nil {
		return nil, err
	}

	where, args, err := buildWhere(conds)
	if err != nil {
		return nil, err
	}
	orderBy, err := order.compile()
	if err != nil {
		return nil, err
	}

	rows := []T{}
	query := fmt.Sprintf("SELECT * FROM %s%s%s LIMIT ? OFFSET ?", r.table, where, orderBy)
	args = append(args, pg.PageSize, pg.offset())
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, domain.ClassifyStoreError(r.entity, err)
	}

	return newPage(rows, total, pg), nil
}

// Create inserts the input under a fresh uuid and returns the stored row.
func (r *Repository[T, C, U]) Create(ctx context.Context, input C) (*T, error) {
	cols, vals := insertColumns(input)
	id := uuid.NewString()
	cols = append([]string{"id"}, cols...)
	vals = append([]any{id}, vals...)

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		r.table,
		strings.Join(cols, ", "),
		placeholders(len(cols)),
	)
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return nil, domain.ClassifyStoreError(r.entity, err)
	}

	return r.FindByIDOrFail(ctx, id)
}

// CreateMany bulk-inserts with INSERT IGNORE so duplicates are skipped, and
// returns the number of rows actually inserted.
func (r *Repository[T, C, U]) CreateMany(ctx context.Context, inputs []C) (int64, error) {
	if len(inputs) == 0 {
		return 0, nil
	}

	cols, _ := insertColumns(inputs[0])
	cols = append([]string{"id"}, cols...)
	rowPlaceholder := "(" + placeholders(len(cols)) + ")"

	var args []any
	valueRows := make([]string, 0, len(inputs))
	for _, input := range inputs {
		_, vals := insertColumns(input)
		args = append(args, uuid.NewString())
		args = append(args, vals...)
		valueRows = append(valueRows, rowPlaceholder)
	}

	query := fmt.Sprintf(
		"INSERT IGNORE INTO %s (%s) VALUES %s",
		r.table,
		strings.Join(cols, ", "),
		strings.Join(valueRows, ", "),
	)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, domain.ClassifyStoreError(r.entity, err)
	}
	count, _ := res.RowsAffected()
	return count, nil
}

// Update applies the non-nil fields of input to one row. NotFound if the
// row is missing.
func (r *Repository[T, C, U]) Update(ctx context.Context, id string, input U) (*T, error) {
	if _, err := r.FindByIDOrFail(ctx, id); err != nil {
		return nil, err
	}

	set, args, err := updateSet(input)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", r.table, set)
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, domain.ClassifyStoreError(r.entity, err)
	}

	return r.FindByIDOrFail(ctx, id)
}

func (r *Repository[T, C, U]) UpdateMany(ctx context.Context, conds []Condition, input U) (int64, error) {
	set, args, err := updateSet(input)
	if err != nil {
		return 0, err
	}
	where, whereArgs, err := buildWhere(conds)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s%s", r.table, set, where)
	res, err := r.db.ExecContext(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return 0, domain.ClassifyStoreError(r.entity, err)
	}
	count, _ := res.RowsAffected()
	return count, nil
}

// Delete removes one row and returns it. NotFound if missing.
func (r *Repository[T, C, U]) Delete(ctx context.Context, id string) (*T, error) {
	row, err := r.FindByIDOrFail(ctx, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.table)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return nil, domain.ClassifyStoreError(r.entity, err)
	}
	return row, nil
}

func (r *Repository[T, C, U]) DeleteMany(ctx context.Context, conds ...Condition) (int64, error) {
	where, args, err := buildWhere(conds)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s%s", r.table, where)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, domain.ClassifyStoreError(r.entity, err)
	}
	count, _ := res.RowsAffected()
	return count, nil
}

func (r *Repository[T, C, U]) Count(ctx context.Context, conds ...Condition) (int, error) {
	where, args, err := buildWhere(conds)
	if err != nil {
		return 0, err
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.table, where)
	if err := sqlx.GetContext(ctx, r.db, &count, query, args...); err != nil {
		return 0, domain.ClassifyStoreError(r.entity, err)
	}
	return count, nil
}

func (r *Repository[T, C, U]) Exists(ctx context.Context, id string) (bool, error) {
	count, err := r.Count(ctx, Eq("id", id))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---- column derivation ----

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// insertColumns lists the db-tagged columns of v with their values, in
// field order. Nil pointers insert as NULL.
func insertColumns(v any) ([]string, []any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	rt := rv.Type()

	var cols []string
	var vals []any
	for i := 0; i < rt.NumField(); i++ {
		tag := rt.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
		vals = append(vals, rv.Field(i).Interface())
	}
	return cols, vals
}

// updateSet builds the SET clause from the non-nil pointer fields of v.
func updateSet(v any) (string, []any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	rt := rv.Type()

	var assignments []string
	var args []any
	for i := 0; i < rt.NumField(); i++ {
		tag := rt.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		assignments = append(assignments, tag+" = ?")
		args = append(args, fv.Interface())
	}

	if len(assignments) == 0 {
		return "", nil, domain.NewValidation("input", "no fields to update")
	}
	return strings.Join(assignments, ", "), args, nil
}
