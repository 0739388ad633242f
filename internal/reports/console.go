package reports

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"student-support-center/internal/db"

	"github.com/rs/zerolog/log"
)

// CheckSelect rejects anything other than a single statement whose leading
// keyword is SELECT, compared case-insensitively.
func CheckSelect(stmt string) error {
	s := strings.TrimSpace(stmt)
	word := strings.ToUpper(leadingWord(s))
	if word != "SELECT" {
		return ErrNotSelect
	}
	if i := strings.Index(s, ";"); i >= 0 && strings.TrimSpace(strings.TrimRight(s[i:], "; \t\r\n")) != "" {
		return fmt.Errorf("%w: multiple statements", ErrNotSelect)
	}
	return nil
}

func leadingWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

// Console runs an ad hoc query. Statements that fail CheckSelect are never
// sent to the database. Accepted statements run on a read-only session:
// SQLite's query_only pragma, or a read-only transaction on PostgreSQL.
func (e *Engine) Console(ctx context.Context, stmt string) *Result {
	stmt = strings.TrimSpace(stmt)
	res := &Result{Title: "SQL console"}
	if stmt == "" {
		return res
	}
	if err := CheckSelect(stmt); err != nil {
		log.Warn().Str("query", stmt).Msg("console rejected non-select statement")
		res.Error = err.Error()
		return res
	}
	stmt = strings.TrimRight(stmt, "; \t\r\n")

	var (
		t   *Table
		err error
	)
	switch e.db.Dialect {
	case db.SQLite:
		t, err = e.sqliteReadOnly(ctx, stmt)
	default:
		t, err = e.postgresReadOnly(ctx, stmt)
	}
	if err != nil {
		log.Info().Err(err).Msg("console query failed")
		res.Error = fmt.Sprintf("SQL error: %v", err)
		return res
	}
	res.Table = *t
	return res
}

func (e *Engine) sqliteReadOnly(ctx context.Context, stmt string) (*Table, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, err
	}
	defer func() {
		if _, err := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF"); err != nil {
			log.Error().Err(err).Msg("failed to reset query_only")
		}
	}()
	return e.table(ctx, conn, stmt)
}

func (e *Engine) postgresReadOnly(ctx context.Context, stmt string) (*Table, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	return e.table(ctx, tx, stmt)
}
