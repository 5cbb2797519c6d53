//go:build integration

// Package testdb provides helpers for tests that run against a real
// PostgreSQL database.
//
// Tests are skipped unless CADENCE_TEST_DATABASE_URL or DATABASE_URL is
// set. The schema is migrated once per connection with the embedded goose
// migrations.
//
// Store-level tests run inside WithTx, which rolls back when the test ends,
// so they may run in parallel:
//
//	func TestDefinitionStore(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDB(t)
//
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        defs := postgres.NewPostgresDefinitionStore(tx, nil)
//	        // ...
//	    })
//	}
//
// Tests that need committed data, such as concurrent scanners claiming the
// same rows, call Reset instead and must not run in parallel with each other.
package testdb
