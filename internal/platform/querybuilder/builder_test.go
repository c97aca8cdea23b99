package querybuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	query, args, err := Select("code", "version", "document").
		From("games").
		Where(Eq("code", "ABC123")).
		ForUpdate().
		ToSQL()
	require.NoError(t, err)

	assert.Equal(t, "SELECT code, version, document FROM games WHERE code = $1 FOR UPDATE", query)
	assert.Equal(t, []any{"ABC123"}, args)
}

func TestInsertModel(t *testing.T) {
	row := struct {
		Code    string `db:"code"`
		Version int64  `db:"version"`
		Skipped string `db:"-"`
		Plain   string
		hidden  string
	}{Code: "ABC123", Version: 1, hidden: "x"}

	query, args, err := InsertModel("games", row, "ON CONFLICT DO NOTHING")
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO games (code, version) VALUES ($1, $2) ON CONFLICT DO NOTHING", query)
	assert.Equal(t, []any{"ABC123", int64(1)}, args)
}

func TestInsertModel_RejectsNonStruct(t *testing.T) {
	_, _, err := InsertModel("games", 42, "")
	require.Error(t, err)

	var nilRow *struct{}
	_, _, err = InsertModel("games", nilRow, "")
	require.Error(t, err)
}

func TestUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	query, args, err := Update("games").
		Set("document", []byte("{}")).
		SetExpr("version", "version + ?", 1).
		Set("updated_at", now).
		Where(Eq("code", "ABC123"), Expr("version = ?", int64(4))).
		ToSQL()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE games SET document = $1, version = version + $2, updated_at = $3 WHERE code = $4 AND version = $5", query)
	assert.Equal(t, []any{[]byte("{}"), 1, now, "ABC123", int64(4)}, args)
}

func TestDeleteFrom(t *testing.T) {
	query, args, err := DeleteFrom("games").Where(Eq("code", "ABC123")).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM games WHERE code = $1", query)
	assert.Equal(t, []any{"ABC123"}, args)

	_, _, err = DeleteFrom("games").ToSQL()
	require.Error(t, err)
}
