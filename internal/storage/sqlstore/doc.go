// Package sqlstore stores counter rows and alarms in PostgreSQL.
//
// It is the "postgres" storage driver. Tables are created by Migrate;
// every statement is a single-row upsert or lookup so no explicit
// transactions are needed.
package sqlstore
