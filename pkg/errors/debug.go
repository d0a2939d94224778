package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Report is a loggable breakdown of an error chain.
type Report struct {
	TopMessage string
	Code       Code
	Chain      []string

	PGCode       string
	PGConstraint string
	PGTable      string
	PGDetail     string
}

// Describe walks the cause chain and pulls Postgres diagnostics when the
// chain carries a driver error (pgx or lib/pq).
func Describe(err error) Report {
	if err == nil {
		return Report{}
	}

	r := Report{TopMessage: err.Error()}
	if te := As(err); te != nil {
		r.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		r.Chain = append(r.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		r.PGCode = pgxErr.Code
		r.PGConstraint = pgxErr.ConstraintName
		r.PGTable = pgxErr.TableName
		r.PGDetail = pgxErr.Detail
		return r
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		r.PGCode = string(pqErr.Code)
		r.PGConstraint = pqErr.Constraint
		r.PGTable = pqErr.Table
		r.PGDetail = pqErr.Detail
	}
	return r
}

// Fields flattens the report into log fields, skipping empty Postgres values.
func (r Report) Fields() map[string]any {
	fields := map[string]any{
		"error":       r.TopMessage,
		"error_chain": r.Chain,
	}
	if r.Code != "" {
		fields["error_code"] = r.Code
	}
	for k, v := range map[string]string{
		"pg_code":       r.PGCode,
		"pg_constraint": r.PGConstraint,
		"pg_table":      r.PGTable,
		"pg_detail":     r.PGDetail,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
