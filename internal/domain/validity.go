package domain

import (
	"time"

	sq "github.com/Masterminds/squirrel"
)

// State is the derived standing of a temporal record. It is never stored.
type State string

const (
	Active      State = "ACTIVE"
	Expired     State = "EXPIRED"
	Invalidated State = "INVALIDATED"
)

const day = time.Hour * 24

// Days converts a count of days into a duration.
func Days(days int) time.Duration {
	return time.Duration(days) * day
}

// Now returns the current time at the resolution postgres stores timestamps with, so values
// round trip unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Validity is the issue_time, expiration_time, valid skeleton shared by grants, whitelist bans,
// player bans and donations.
type Validity struct {
	IssueTime      time.Time `json:"issue_time"`
	ExpirationTime time.Time `json:"expiration_time"`
	Valid          bool      `json:"valid"`
}

// NewValidity creates a valid record starting at now and lasting for duration.
func NewValidity(now time.Time, duration time.Duration) Validity {
	return Validity{
		IssueTime:      now,
		ExpirationTime: now.Add(duration),
		Valid:          true,
	}
}

// IsActive reports valid AND expiration_time > now.
func (v Validity) IsActive(now time.Time) bool {
	return v.Valid && v.ExpirationTime.After(now)
}

func (v Validity) State(now time.Time) State {
	switch {
	case !v.Valid:
		return Invalidated
	case v.ExpirationTime.After(now):
		return Active
	default:
		return Expired
	}
}

// ActiveClause is the storage side of IsActive. Prefix is the table alias including the
// trailing dot, or empty.
func ActiveClause(prefix string, now time.Time) sq.And {
	return sq.And{
		sq.Eq{prefix + "valid": true},
		sq.Gt{prefix + "expiration_time": now},
	}
}
