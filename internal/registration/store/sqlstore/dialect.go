package sqlstore

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/ncruces/go-sqlite3"
)

const pgUniqueViolation = "23505"

// Dialect captures the differences between the SQL backends. Queries are
// written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name              string
	numbered          bool
	bindTime          func(time.Time) any
	isUniqueViolation func(error) bool
}

// Postgres works with both the pgx stdlib driver and lib/pq.
var Postgres = Dialect{
	Name:     "postgres",
	numbered: true,
	bindTime: func(t time.Time) any { return t.UTC() },
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return pgErr.Code == pgUniqueViolation
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return string(pqErr.Code) == pgUniqueViolation
		}
		return false
	},
}

// SQLite stores timestamps as Unix microseconds.
var SQLite = Dialect{
	Name:     "sqlite",
	bindTime: func(t time.Time) any { return t.UTC().UnixMicro() },
	isUniqueViolation: func(err error) bool {
		var sqErr *sqlite3.Error
		if errors.As(err, &sqErr) {
			return sqErr.ExtendedCode() == sqlite3.CONSTRAINT_UNIQUE
		}
		return false
	},
}

func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dbTime scans either native timestamps or Unix microseconds.
type dbTime struct{ t *time.Time }

func (d dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d.t = v.UTC()
	case int64:
		*d.t = time.UnixMicro(v).UTC()
	case nil:
		*d.t = time.Time{}
	default:
		return errors.New("unsupported timestamp type")
	}
	return nil
}
