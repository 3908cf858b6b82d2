// Package query provides the common limit/offset/order parameters accepted by list endpoints.
package query

import (
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const MaxResultsDefault = 100

// Filter provides a structure for common query parameters.
type Filter struct {
	Offset  uint64 `json:"offset,omitempty" schema:"offset" url:"offset,omitempty"`
	Limit   uint64 `json:"limit,omitempty" schema:"limit" url:"limit,omitempty"`
	Desc    bool   `json:"desc,omitempty" schema:"desc" url:"desc,omitempty"`
	OrderBy string `json:"order_by,omitempty" schema:"order_by" url:"order_by,omitempty"`
}

// ApplySafeOrder is used to ensure that a user requested column is valid. This
// is used to prevent potential injection attacks as there is no parameterized
// order by value.
func (qf Filter) ApplySafeOrder(builder sq.SelectBuilder, validColumns map[string][]string, fallback string) sq.SelectBuilder {
	orderBy := strings.ToLower(qf.OrderBy)
	column := ""

	for prefix, columns := range validColumns {
		if slices.Contains(columns, orderBy) {
			column = prefix + orderBy

			break
		}
	}

	if column == "" {
		column = fallback
	}

	if qf.Desc {
		return builder.OrderBy(column + " DESC")
	}

	return builder.OrderBy(column + " ASC")
}

func (qf Filter) ApplyLimitOffsetDefault(builder sq.SelectBuilder) sq.SelectBuilder {
	return qf.ApplyLimitOffset(builder, MaxResultsDefault)
}

func (qf Filter) ApplyLimitOffset(builder sq.SelectBuilder, maxLimit uint64) sq.SelectBuilder {
	if qf.Limit == 0 || qf.Limit > maxLimit {
		qf.Limit = maxLimit
	}

	builder = builder.Limit(qf.Limit)

	if qf.Offset > 0 {
		builder = builder.Offset(qf.Offset)
	}

	return builder
}
