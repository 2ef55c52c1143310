package pgschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_DeclaresRepositoryTables(t *testing.T) {
	for _, table := range []string{"book", "account", "account_purchase"} {
		assert.Contains(t, Schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, Schema, "ON account (lower(email))")
}
