package sqldb

import (
	"database/sql"
	"fmt"
)

// scanRows drains rows into a slice of column-name-keyed maps, converting
// driver []byte values (the common shape for TEXT/VARCHAR/DECIMAL columns
// under database/sql) into strings so JSON-encoding a cached result never
// trips over raw bytes. Grounded on the generic row-to-map scanning idiom
// used by the teacher's raw-SQL CLI command.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	records := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return records, nil
}
