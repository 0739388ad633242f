// Package reports runs the canned analytical reports and the read-only SQL
// console. Both hand back plain row sets; query failures are reported in the
// result, never returned as errors to the caller.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"student-support-center/internal/db"
	"student-support-center/internal/query"

	"github.com/rs/zerolog/log"
)

// ErrNotSelect is the console rejection for anything but a single SELECT.
var ErrNotSelect = errors.New("only SELECT queries are allowed (read-only)")

// Table is a rendered row set.
type Table struct {
	Title   string     `json:"title,omitempty"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Result is the outcome of a report or console run. Error is set instead of
// rows when the id is unknown or the query failed.
type Result struct {
	ID          int    `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
	Table
	Extra *Table `json:"extra,omitempty"`
	Error string `json:"error,omitempty"`
}

// Engine runs reports against one database.
type Engine struct {
	db *db.DB
}

func New(d *db.DB) *Engine {
	return &Engine{db: d}
}

// Run executes report id. keyword is only used by keyword reports; an empty
// keyword yields an empty result rather than matching everything.
func (e *Engine) Run(ctx context.Context, id int, keyword string) *Result {
	def, ok := Lookup(id)
	if !ok {
		return &Result{ID: id, Error: fmt.Sprintf("Unknown report id: %d", id)}
	}

	res := &Result{ID: def.ID, Title: def.Title, Description: def.Description}
	var args []any
	if def.Keyword {
		res.Keyword = strings.TrimSpace(keyword)
		if res.Keyword == "" {
			return res
		}
		args = append(args, query.LikePattern(res.Keyword))
	}

	t, err := e.table(ctx, e.db, def.sql, args...)
	if err != nil {
		log.Error().Err(err).Int("report_id", id).Msg("report query failed")
		res.Error = fmt.Sprintf("SQL error while running report %d: %v", id, err)
		return res
	}
	res.Table = *t

	if def.extra != nil {
		extra, err := e.table(ctx, e.db, def.extra.sql)
		if err != nil {
			log.Error().Err(err).Int("report_id", id).Msg("report extra query failed")
			res.Error = fmt.Sprintf("SQL error while running report %d: %v", id, err)
			return res
		}
		extra.Title = def.extra.title
		res.Extra = extra
	}
	return res
}

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (e *Engine) table(ctx context.Context, q rowQuerier, stmt string, args ...any) (*Table, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	headers, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &Table{Headers: headers, Rows: [][]string{}}
	for rows.Next() {
		values := make([]any, len(headers))
		ptrs := make([]any, len(headers))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = Cell(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

// Cell renders one scanned value for display. NULL renders empty.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
