// Package pg wires PostgreSQL connectivity for the billing engine: pgxpool
// connection setup with retry, health probes, goose migrations, and error
// helpers for translating pgx/pgconn failures into application decisions
// (not-found, duplicate key, foreign key violation).
package pg
