// internal/ingest/table_source.go
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"gorm.io/gorm"
)

// TableSource источник строк из таблицы-выгрузки в базе данных
type TableSource struct {
	db    *gorm.DB
	table string
}

func NewTableSource(db *gorm.DB, table string) *TableSource {
	return &TableSource{db: db, table: table}
}

func (s *TableSource) Name() string {
	return "table:" + s.table
}

func (s *TableSource) Rows(ctx context.Context) (iter.Seq2[Row, error], error) {
	rows, err := s.db.WithContext(ctx).Table(s.table).Rows()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("read columns of %s: %w", s.table, err)
	}

	return func(yield func(Row, error) bool) {
		defer rows.Close()

		values := make([]sql.NullString, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}

		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				if !yield(nil, &MalformedRowError{Err: err}) {
					return
				}
				continue
			}
			row := make(Row, len(columns))
			for i, col := range columns {
				// NULL считается отсутствующей колонкой
				if values[i].Valid {
					row[col] = strings.TrimSpace(values[i].String)
				}
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}, nil
}
