package databank

import (
	"context"
	"fmt"
	"strings"

	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// Filter narrows an export query. Fields are ignored on tables that lack
// the corresponding column.
type Filter struct {
	Nickname   string // substring match, case-insensitive
	SourceType string
	From       string // collection_time lower bound
	To         string // collection_time upper bound
}

// Page is one window of rows in identity-key order
type Page struct {
	Columns []string
	Labels  []string
	Rows    [][]any
	LastKey []any
}

// SheetName returns the export sheet title for a record kind
func SheetName(kind models.Kind) string {
	return tableSpecs[kind].sheet
}

// Rows reads one page of a table in identity-key order, resuming after the
// given key. The connection lease spans a single page, so exports never
// block the write path.
func (b *DataBank) Rows(ctx context.Context, kind models.Kind, filter *Filter, after []any, limit int) (*Page, error) {
	spec, ok := tableSpecs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	if limit <= 0 {
		limit = 500
	}

	cols := spec.exportColumns()
	var (
		where []string
		args  []any
	)

	if len(after) > 0 {
		if len(after) != len(spec.keyCols) {
			return nil, fmt.Errorf("cursor has %d values, identity key has %d", len(after), len(spec.keyCols))
		}
		placeholders := make([]string, len(after))
		for i, v := range after {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		where = append(where, fmt.Sprintf("(%s) > (%s)",
			strings.Join(spec.keyCols, ", "), strings.Join(placeholders, ", ")))
	}

	if filter != nil {
		if filter.Nickname != "" && spec.hasColumn("nickname") {
			args = append(args, "%"+filter.Nickname+"%")
			where = append(where, fmt.Sprintf("nickname ILIKE $%d", len(args)))
		}
		if filter.SourceType != "" && spec.hasColumn("source_type") {
			args = append(args, filter.SourceType)
			where = append(where, fmt.Sprintf("source_type = $%d", len(args)))
		}
		if filter.From != "" && spec.hasColumn("collection_time") {
			args = append(args, filter.From)
			where = append(where, fmt.Sprintf("collection_time >= $%d", len(args)))
		}
		if filter.To != "" && spec.hasColumn("collection_time") {
			args = append(args, filter.To)
			where = append(where, fmt.Sprintf("collection_time <= $%d", len(args)))
		}
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), spec.table)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY %s LIMIT $%d", strings.Join(spec.keyCols, ", "), len(args))

	conn, err := b.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", spec.table, classify(err))
	}
	defer rows.Close()

	page := &Page{Columns: cols, Labels: spec.exportLabels()}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", spec.table, classify(err))
		}
		page.Rows = append(page.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", spec.table, classify(err))
	}

	if n := len(page.Rows); n > 0 {
		last := page.Rows[n-1]
		page.LastKey = append([]any{}, last[:len(spec.keyCols)]...)
	}
	return page, nil
}
