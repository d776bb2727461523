package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhereNumbersPlaceholders(t *testing.T) {
	w := &Where{}
	assert.Equal(t, "TRUE", w.SQL())

	w.Add("tenant_id = ?", int64(7))
	w.Add("(code ILIKE ? OR name ILIKE ?)", "%a%", "%a%")
	w.Add("balance < -credit_limit")

	assert.Equal(t, "tenant_id = $1 AND (code ILIKE $2 OR name ILIKE $3) AND balance < -credit_limit", w.SQL())
	assert.Equal(t, []any{int64(7), "%a%", "%a%"}, w.Args())
	assert.Equal(t, "$4", w.Next(1))
}
