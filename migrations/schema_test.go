package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The repository names every column explicitly in its queries, so a column
// missing from the DDL only surfaces as an undefined-column error at
// runtime. Pin the declared columns of each queried table here.
func TestInitialSchemaDeclaresQueriedColumns(t *testing.T) {
	raw, err := fs.ReadFile(FS, "0001_initial_schema.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	tables := map[string][]string{
		"patients":            {"id", "name", "email", "phone", "created_at", "updated_at"},
		"doctors":             {"id", "name", "specialty", "department", "created_at", "updated_at"},
		"doctor_availability": {"id", "doctor_id", "weekday", "start_minute", "end_minute", "is_active"},
		"rooms":               {"id", "room_number", "room_type", "floor", "capacity", "is_available"},
		"appointments": {
			"id", "patient_id", "doctor_id", "scheduled_at", "preferred_date",
			"status", "reason", "notes", "room_id", "assigned_by", "created_at", "updated_at",
		},
		"time_slots":    {"id", "doctor_id", "start_at", "end_at", "is_booked", "appointment_id", "created_at"},
		"notifications": {"id", "user_id", "message", "kind", "is_read", "created_at"},
	}

	for table, columns := range tables {
		start := strings.Index(schema, "CREATE TABLE "+table+" (")
		require.NotEqual(t, -1, start, "table %s is not created", table)
		end := strings.Index(schema[start:], ");")
		require.NotEqual(t, -1, end, "table %s is not terminated", table)
		ddl := schema[start : start+end]

		for _, col := range columns {
			assert.Contains(t, ddl, "\n    "+col+" ", "table %s does not declare column %s", table, col)
		}
	}
}
