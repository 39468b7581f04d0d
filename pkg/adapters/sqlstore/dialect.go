package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour and database/sql driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect accepts the names used in configuration.
func ParseDialect(s string) (Dialect, bool) {
	switch strings.ToLower(s) {
	case "sqlite", "sqlite3":
		return SQLite, true
	case "postgres", "postgresql", "pgx":
		return Postgres, true
	}
	return "", false
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) dir() string {
	return string(d)
}

// rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
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
