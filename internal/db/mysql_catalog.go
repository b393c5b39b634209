package db

import (
	"context"
	"fmt"
)

// MySQLCatalog reads table definitions from a MySQL database
type MySQLCatalog struct {
	client     *SQLClient
	schemaName string
}

// NewMySQLCatalog creates a MySQL catalog reader
func NewMySQLCatalog(client *SQLClient, schemaName string) *MySQLCatalog {
	return &MySQLCatalog{
		client:     client,
		schemaName: schemaName,
	}
}

// Close closes the underlying connection
func (c *MySQLCatalog) Close(context.Context) error {
	return c.client.Close()
}

// ReadTables reads the specified tables.
// If tables is empty, reads all base tables in the schema.
func (c *MySQLCatalog) ReadTables(ctx context.Context, tables []string) ([]Table, error) {
	tableNames, err := c.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	out := make([]Table, 0, len(tableNames))
	for _, tableName := range tableNames {
		table, err := c.readTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", tableName, err)
		}
		out = append(out, *table)
	}
	return out, nil
}

func (c *MySQLCatalog) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := c.client.GetDB().QueryContext(ctx, query, c.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func (c *MySQLCatalog) readTable(ctx context.Context, tableName string) (*Table, error) {
	table := &Table{Name: tableName}

	query := `SELECT COALESCE(table_comment, '') FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`
	if err := c.client.GetDB().QueryRowContext(ctx, query, c.schemaName, tableName).Scan(&table.Comment); err != nil {
		return nil, fmt.Errorf("failed to read table comment: %w", err)
	}

	columns, err := c.readColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	pk, err := c.readPrimaryKey(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key: %w", err)
	}

	refs, err := c.readForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}

	markKeys(columns, pk, refs)
	table.Columns = columns
	return table, nil
}

func (c *MySQLCatalog) readColumns(ctx context.Context, tableName string) ([]Column, error) {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			CASE WHEN EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
					AND tc.table_name = kcu.table_name
				WHERE tc.table_schema = ?
					AND tc.table_name = ?
					AND tc.constraint_type = 'UNIQUE'
					AND kcu.column_name = c.column_name
			) THEN true ELSE false END AS is_unique,
			COALESCE(c.column_comment, '')
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := c.client.GetDB().QueryContext(ctx, query, c.schemaName, tableName, c.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.IsUnique, &col.Comment); err != nil {
			return nil, err
		}

		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (c *MySQLCatalog) readPrimaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	rows, err := c.client.GetDB().QueryContext(ctx, query, c.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}

	return pk, rows.Err()
}

func (c *MySQLCatalog) readForeignKeys(ctx context.Context, tableName string) (map[string][2]string, error) {
	query := `
		SELECT
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.ordinal_position
	`

	rows, err := c.client.GetDB().QueryContext(ctx, query, c.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[string][2]string)
	for rows.Next() {
		var column, targetTable, targetColumn string
		if err := rows.Scan(&column, &targetTable, &targetColumn); err != nil {
			return nil, err
		}
		if _, seen := refs[column]; !seen {
			refs[column] = [2]string{targetTable, targetColumn}
		}
	}

	return refs, rows.Err()
}
