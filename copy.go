package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
)

// dryRunSampleRows is how many rows per table a dry run renders.
const dryRunSampleRows = 5

// copyEngine copies table rows from the source to the target in batches.
// Each batch is one atomic bulk write; a failed batch is rolled back and its
// rows are retried one at a time so a single bad row never loses its
// neighbours.
type copyEngine struct {
	src       *sql.DB
	dst       *sql.DB // nil in dry-run mode
	dialect   targetDialect
	batchSize int
	dryRun    bool
	out       io.Writer
}

func newCopyEngine(src, dst *sql.DB, d targetDialect, batchSize int, dryRun bool, out io.Writer) *copyEngine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &copyEngine{src: src, dst: dst, dialect: d, batchSize: batchSize, dryRun: dryRun, out: out}
}

// insertStatement builds the parameterized INSERT for a table. Columns keep
// source order.
func (e *copyEngine) insertStatement(table string, cols []string) string {
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = e.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.dialect.QuoteIdent(table), quotedColumnList(e.dialect, cols), strings.Join(marks, ", "))
}

// sourceSelect reads every column through a unary plus. The expression has
// no declared type, so the driver hands back stored values untouched instead
// of parsing DATE/DATETIME/TIMESTAMP text into time.Time.
func sourceSelect(table string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "+" + sqliteQuoteIdent(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), sqliteQuoteIdent(table))
}

// copyTable copies every row of table. The returned error is a source read
// failure; target-side failures are recorded in the report.
func (e *copyEngine) copyTable(ctx context.Context, table string, cols []string) (CopyReport, error) {
	rep := CopyReport{Table: table}
	if len(cols) == 0 {
		return rep, nil
	}
	insert := e.insertStatement(table, cols)

	query := sourceSelect(table, cols)
	if e.dryRun {
		query += fmt.Sprintf(" LIMIT %d", dryRunSampleRows)
	}
	rows, err := e.src.QueryContext(ctx, query)
	if err != nil {
		return rep, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	batch := make([][]any, 0, e.batchSize)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return rep, fmt.Errorf("scan %s: %w", table, err)
		}

		if e.dryRun {
			fmt.Fprintf(e.out, "-- DRY RUN INSERT: %s (%s)\n", insert, renderValues(vals))
			rep.Sampled++
			continue
		}

		batch = append(batch, vals)
		if len(batch) == e.batchSize {
			e.flush(ctx, insert, cols, batch, &rep)
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return rep, fmt.Errorf("read %s: %w", table, err)
	}
	if len(batch) > 0 {
		e.flush(ctx, insert, cols, batch, &rep)
	}
	return rep, nil
}

// flush writes one batch and accounts for every row in it.
func (e *copyEngine) flush(ctx context.Context, insert string, cols []string, batch [][]any, rep *CopyReport) {
	base := rep.RowsAttempted
	rep.RowsAttempted += int64(len(batch))

	err := e.dialect.BulkInsert(ctx, e.dst, rep.Table, cols, batch)
	if err == nil {
		rep.RowsCommitted += int64(len(batch))
		return
	}
	log.Printf("    WARN: %s: batch of %d rows at row %d failed, retrying row by row: %s",
		rep.Table, len(batch), base, e.dialect.ErrorText(err))

	for i, row := range batch {
		if _, err := e.dst.ExecContext(ctx, insert, row...); err != nil {
			rep.FailedRows = append(rep.FailedRows, FailedRow{
				RowIndex: base + int64(i),
				Error:    e.dialect.ErrorText(err),
			})
			continue
		}
		rep.RowsCommitted++
	}
}

// maxBindParams is the placeholder limit of one statement on both targets.
const maxBindParams = 65535

// multiRowInsert builds INSERT INTO t (cols) VALUES (...), (...) for n rows.
func multiRowInsert(d targetDialect, table string, cols []string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.QuoteIdent(table), quotedColumnList(d, cols))
	p := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			p++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// insertRows writes rows inside one transaction using multi-row INSERT
// statements, split so no statement exceeds maxBindParams.
func insertRows(ctx context.Context, db *sql.DB, d targetDialect, table string, cols []string, rows [][]any) error {
	chunk := max(1, maxBindParams/len(cols))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for start := 0; start < len(rows); start += chunk {
		part := rows[start:min(start+chunk, len(rows))]
		args := make([]any, 0, len(part)*len(cols))
		for _, row := range part {
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, multiRowInsert(d, table, cols, len(part)), args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// renderValues formats a row as a SQL literal list for dry-run output.
func renderValues(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = renderValue(v)
	}
	return strings.Join(parts, ", ")
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "X'" + hex.EncodeToString(x) + "'"
	case string:
		return sqlStringLiteral(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(x)
	}
}
