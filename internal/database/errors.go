package database

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"studiobook/internal/apperr"
	"studiobook/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = models.ErrNotFound

// Postgres SQLSTATE codes that mean the write lost against a constraint.
var pgConflictCodes = map[pq.ErrorCode]bool{
	"23505": true, // unique_violation
	"23P01": true, // exclusion_violation
	"23P02": true,
}

const pgForeignKeyViolation pq.ErrorCode = "23503"

// Classify maps a driver error to a domain failure. Uniqueness and overlap
// violations become conflicts, foreign-key violations become validation
// failures and everything else is internal.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pgConflictCodes[pqErr.Code]:
			return conflictFor(pqErr.Constraint + " " + pqErr.Message)
		case pqErr.Code == pgForeignKeyViolation:
			return foreignKeyFailure(pqErr.Constraint)
		}
		return apperr.Internal(apperr.CodeInternal, "failed to save reservation", err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintTrigger:
			return conflictFor(liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return foreignKeyFailure("")
		}
		return apperr.Internal(apperr.CodeInternal, "failed to save reservation", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Internal(apperr.CodeInternal, "store timed out", err)
	}
	return apperr.Internal(apperr.CodeInternal, "failed to save reservation", err)
}

// classifyAssignment reports any constraint hit on an assignment row as an
// equipment conflict.
func classifyAssignment(err error, equipmentIDs []string) error {
	classified := Classify(err)
	if apperr.IsKind(classified, apperr.KindConflict) {
		return apperr.Conflict("equipment overlaps existing reservations", map[string]any{
			"resource":     "equipment",
			"equipmentIds": equipmentIDs,
		})
	}
	return classified
}

func conflictFor(text string) error {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "staff"):
		return apperr.Conflict("staff overlaps an existing reservation", map[string]any{"resource": "staff"})
	case strings.Contains(text, "equipment"):
		return apperr.Conflict("equipment overlaps existing reservations", map[string]any{"resource": "equipment"})
	case strings.Contains(text, "room"):
		return apperr.Conflict("room overlaps an existing reservation", map[string]any{"resource": "room"})
	}
	return apperr.Conflict("reservation overlaps an existing record", nil)
}

func foreignKeyFailure(constraint string) error {
	issue := apperr.Issue{Path: "(root)", Message: "referenced record does not exist"}
	if constraint != "" {
		issue.Message += " (" + constraint + ")"
	}
	return apperr.Validation(apperr.CodeValidationFailed, issue)
}
