package storage

import (
	"strconv"
	"strings"

	"awful/internal/domain"
)

// Owner columns. Exactly one of them is non-null on every row.
const (
	ColumnSite    = "for_site"
	ColumnUser    = "user_id"
	ColumnPost    = "post_id"
	ColumnTerm    = "term_id"
	ColumnComment = "comment_id"
)

var ownerColumns = map[domain.OwnerKind]string{
	domain.OwnerSite:    ColumnSite,
	domain.OwnerUser:    ColumnUser,
	domain.OwnerPost:    ColumnPost,
	domain.OwnerTerm:    ColumnTerm,
	domain.OwnerComment: ColumnComment,
}

// OwnerColumn returns the discriminator column of kind.
func OwnerColumn(kind domain.OwnerKind) string {
	return ownerColumns[kind]
}

func kindOfColumn(column string) (domain.OwnerKind, bool) {
	for kind, col := range ownerColumns {
		if col == column {
			return kind, true
		}
	}
	return 0, false
}

// ColumnPredicate renders "column = v" or "column IN (...)". Column names
// cannot be bound as parameters, so the allow-list is what keeps arbitrary
// identifiers out of the statement; values are rendered as integers.
func ColumnPredicate(d Dialect, column string, values []uint64) (string, error) {
	kind, ok := kindOfColumn(column)
	if !ok {
		return "", &domain.DisallowedColumnError{Column: column}
	}
	if len(values) == 0 {
		return "", &domain.EmptyQueryError{Kind: kind}
	}
	// Each tenant has its own table, so the site flag alone selects the
	// tenant's site blocks.
	if kind == domain.OwnerSite {
		return column + " = " + d.Bool(true), nil
	}
	if len(values) == 1 {
		return column + " = " + strconv.FormatUint(values[0], 10), nil
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return column + " IN (" + strings.Join(parts, ",") + ")", nil
}

// QuerySQL renders the WHERE predicate of q.
func QuerySQL(d Dialect, q domain.Query) (string, error) {
	column, ok := ownerColumns[q.Kind]
	if !ok {
		return "", &domain.DisallowedColumnError{Column: q.Kind.String()}
	}
	return ColumnPredicate(d, column, q.IDs)
}

// OwnerSQL renders the predicate selecting exactly one owner's blocks.
func OwnerSQL(d Dialect, owner domain.OwnerID) (string, error) {
	return QuerySQL(d, owner.Query())
}
