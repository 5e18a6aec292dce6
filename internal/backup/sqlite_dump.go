package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DumpSQLite produces a textual SQL dump of every table in the SQLite
// database at path, grounded on original_source's inspect_db.py schema-walk
// (enumerate sqlite_master, then read back every row per table). The output
// contains CREATE TABLE and INSERT INTO statements sufficient for the
// restoration self-test (§4.4.2) to recognize it as a DATABASE dump.
func DumpSQLite(ctx context.Context, path string) ([]byte, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT name, sql FROM sqlite_master WHERE type='table' AND sql IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	defer rows.Close()

	var tables []string
	var buf bytes.Buffer
	for rows.Next() {
		var name, createSQL string
		if err := rows.Scan(&name, &createSQL); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDumpFailed, err)
		}
		tables = append(tables, name)
		buf.WriteString(createSQL)
		buf.WriteString(";\n")
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}

	for _, table := range tables {
		if err := dumpTableRows(ctx, db, table, &buf); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func dumpTableRows(ctx context.Context, db *sql.DB, table string, buf *bytes.Buffer) error {
	// table comes from sqlite_master, not caller input, so interpolation here
	// is not a user-controlled injection surface.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}

	values := make([]any, len(cols))
	pointers := make([]any, len(cols))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return fmt.Errorf("%w: %v", ErrDumpFailed, err)
		}
		literals := make([]string, len(values))
		for i, v := range values {
			literals[i] = sqlLiteral(v)
		}
		fmt.Fprintf(buf, "INSERT INTO %s VALUES (%s);\n", table, strings.Join(literals, ", "))
	}
	return rows.Err()
}

func sqlLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}
