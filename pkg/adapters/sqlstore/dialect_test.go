package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialect_Rebind(t *testing.T) {
	q := `UPDATE work_items SET state = ? WHERE type = ? AND state = ?`
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, `UPDATE work_items SET state = $1 WHERE type = $2 AND state = $3`, Postgres.rebind(q))
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
		ok   bool
	}{
		{"sqlite", SQLite, true},
		{"SQLite3", SQLite, true},
		{"postgres", Postgres, true},
		{"pgx", Postgres, true},
		{"mysql", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDialect(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
