package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/foodstats/internal/plan"
)

func TestCheckAdhocAccepts(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"plain select", "SELECT * FROM providers"},
		{"mixed case table", "select Name from Providers"},
		{"join", "SELECT p.Name FROM providers p JOIN food_listings f ON p.Provider_ID = f.Provider_ID"},
		{"comma join", "SELECT COUNT(*) FROM providers, receivers"},
		{"comma after on", "SELECT 1 FROM claims c JOIN food_listings f ON c.Food_ID = f.Food_ID, receivers r"},
		{"quoted names", `SELECT "Name" FROM "providers"`},
		{"no from", "SELECT 1"},
		{"trailing semicolon", "SELECT * FROM claims;"},
		{"words inside strings", "SELECT 'drop table claims; delete' AS note FROM claims"},
		{"cte", "WITH done AS (SELECT * FROM claims WHERE Status = 'Completed') SELECT COUNT(*) FROM done"},
		{"cte with columns", "WITH t(n) AS (SELECT 1) SELECT n FROM t"},
		{"derived table", "SELECT x.Status FROM (SELECT Status FROM claims) x"},
		{"subquery in where", "SELECT Name FROM providers WHERE Provider_ID IN (SELECT Provider_ID FROM food_listings)"},
		{"line comment", "SELECT 1 -- count\nFROM claims"},
		{"block comment", "SELECT /* all */ * FROM claims"},
		{"name starting like a catalog", "SELECT 1 AS system_total FROM claims"},
		{"parenthesized join", "SELECT * FROM (providers p JOIN food_listings f ON p.Provider_ID = f.Provider_ID)"},
		{"values list", "SELECT * FROM (VALUES (1), (2)) v"},
		{"chained ctes", "WITH a AS (SELECT * FROM claims), b AS (SELECT * FROM a) SELECT * FROM b"},
		{"materialized cte", "WITH d AS MATERIALIZED (SELECT * FROM claims) SELECT * FROM d"},
		{"recursive cte", "WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i + 1 FROM n WHERE i < 3) SELECT i FROM n"},
		{"window clause", "SELECT Name, ROW_NUMBER() OVER w FROM providers WINDOW w AS (ORDER BY Name)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, CheckAdhoc(tt.query))
		})
	}
}

func TestCheckAdhocRejects(t *testing.T) {
	tests := []struct {
		name  string
		query string
		pos   int
	}{
		{"empty", "   ", 0},
		{"delete", "DELETE FROM claims", 0},
		{"second statement", "SELECT 1; DROP TABLE claims", 8},
		{"unknown table", "SELECT * FROM users", 14},
		{"unknown table after comma", "SELECT * FROM claims, users", 22},
		{"unknown joined table", "SELECT * FROM claims c JOIN users u ON 1=1", 28},
		{"sqlite catalog", "SELECT * FROM sqlite_master", 14},
		{"postgres catalog", "SELECT * FROM pg_catalog.pg_tables", 14},
		{"information schema", "SELECT * FROM information_schema.tables", 14},
		{"qualified name", "SELECT * FROM main.claims", 14},
		{"table function", "SELECT * FROM generate_series(1, 10)", 14},
		{"write in cte", "WITH x AS (DELETE FROM claims RETURNING *) SELECT * FROM x", 11},
		{"select into", "SELECT * INTO backup FROM claims", 9},
		{"file function", "SELECT load_extension('evil')", 7},
		{"executable comment", "SELECT /*! 1 */ 1", 7},
		{"backslash in string", "SELECT 'a\\b'", 9},
		{"dash comment without space", "SELECT 1 --1", 9},
		{"unterminated string", "SELECT 'abc", 7},
		{"missing table", "SELECT * FROM", 13},
		{"parenthesized table", "SELECT * FROM (secrets)", 15},
		{"parenthesized join", "SELECT token FROM (secrets CROSS JOIN providers)", 19},
		{"nested parentheses", "SELECT * FROM ((providers JOIN secrets ON 1 = 1))", 31},
		{"window named like a table", "SELECT token FROM providers, secrets WINDOW secrets AS (ORDER BY 1)", 29},
		{"cte outside its scope", "SELECT * FROM (WITH secrets AS (SELECT 1) SELECT * FROM secrets) x, secrets", 68},
		{"cte body naming itself", "WITH secrets AS (SELECT * FROM secrets) SELECT * FROM secrets", 31},
		{"straight join", "SELECT * FROM providers STRAIGHT_JOIN secrets", 38},
		{"table statement", "SELECT (TABLE secrets)", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAdhoc(tt.query)
			require.Error(t, err)
			assert.True(t, errors.Is(err, plan.ErrSyntax))

			var syntaxErr *plan.SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, tt.pos, syntaxErr.Pos, syntaxErr.Msg)
		})
	}
}

func TestCheckAdhocLength(t *testing.T) {
	query := "SELECT 1 FROM claims WHERE 1 = 1"
	for len(query) <= maxAdhocLen {
		query += " AND 1 = 1"
	}
	assert.ErrorIs(t, CheckAdhoc(query), plan.ErrSyntax)
}
