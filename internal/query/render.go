package query

import (
	"bytes"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// renderTSV renders a result set as tab-separated values: one header
// line of column names followed by one line per row. The view seeder
// depends on the header line being first.
func renderTSV(rows *sql.Rows) ([]byte, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for i, column := range columns {
		if i > 0 {
			buf.WriteByte('\t')
		}
		buf.WriteString(column)
	}
	buf.WriteByte('\n')

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		for i, value := range values {
			if i > 0 {
				buf.WriteByte('\t')
			}
			buf.WriteString(formatValue(value))
		}
		buf.WriteByte('\n')
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// renderJSON concatenates the single-column chunks a FOR JSON query
// returns into one document. The server splits long documents across
// rows; the byte stream is the concatenation in row order.
func renderJSON(rows *sql.Rows) ([]byte, error) {
	var buf bytes.Buffer
	for rows.Next() {
		var chunk sql.NullString
		if err := rows.Scan(&chunk); err != nil {
			return nil, err
		}
		if chunk.Valid {
			buf.WriteString(chunk.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// formatValue renders a scanned column value as text.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return v.Format("2006-01-02 15:04:05.000")
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
