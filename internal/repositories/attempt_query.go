package repositories

import (
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const loginAttemptColumns = `id, user_id, email, username, ip_address, user_agent, success, failure_reason, created_at`

// attemptQuery accumulates a WHERE clause for the login_attempts table.
// placeholder renders the n-th bind parameter for the target dialect and
// timeArg converts timestamps into the column's storage representation.
type attemptQuery struct {
	placeholder func(n int) string
	timeArg     func(t time.Time) interface{}
	conds       []string
	args        []interface{}
}

func (q *attemptQuery) bind(v interface{}) string {
	q.args = append(q.args, v)
	return q.placeholder(len(q.args))
}

func (q *attemptQuery) where(filter models.AttemptFilter) error {
	if filter.SuccessOnly && filter.FailedOnly {
		return fmt.Errorf("%w: success_only and failed_only are mutually exclusive", models.ErrBadRequest)
	}

	if filter.IdentifierValue != "" {
		switch filter.IdentifierType {
		case models.IdentifierEmail:
			q.conds = append(q.conds, "email = "+q.bind(filter.IdentifierValue))
		case models.IdentifierUsername:
			q.conds = append(q.conds, "username = "+q.bind(filter.IdentifierValue))
		case models.IdentifierIP:
			q.conds = append(q.conds, "ip_address = "+q.bind(filter.IdentifierValue))
		case models.IdentifierAny, "":
			q.conds = append(q.conds, fmt.Sprintf("(email = %s OR username = %s OR ip_address = %s)",
				q.bind(filter.IdentifierValue), q.bind(filter.IdentifierValue), q.bind(filter.IdentifierValue)))
		default:
			return fmt.Errorf("%w: unknown identifier type %q", models.ErrBadRequest, filter.IdentifierType)
		}
	}

	if filter.IPAddress != "" {
		q.conds = append(q.conds, "ip_address = "+q.bind(filter.IPAddress))
	}
	if filter.Since != nil {
		q.conds = append(q.conds, "created_at >= "+q.bind(q.timeArg(*filter.Since)))
	}
	if filter.Until != nil {
		q.conds = append(q.conds, "created_at < "+q.bind(q.timeArg(*filter.Until)))
	}
	if filter.SuccessOnly {
		q.conds = append(q.conds, "success = "+q.bind(true))
	}
	if filter.FailedOnly {
		q.conds = append(q.conds, "success = "+q.bind(false))
	}

	return nil
}

func (q *attemptQuery) clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

// selectSQL returns the paged row query; it must be built after countSQL
// because it appends the LIMIT/OFFSET bind parameters.
func (q *attemptQuery) selectSQL(page models.Page) string {
	query := "SELECT " + loginAttemptColumns + " FROM login_attempts" + q.clause() +
		" ORDER BY created_at DESC, id DESC"
	if page.Limit > 0 {
		offset := page.Offset
		if offset < 0 {
			offset = 0
		}
		query += " LIMIT " + q.bind(page.Limit) + " OFFSET " + q.bind(offset)
	}
	return query
}

func (q *attemptQuery) countSQL() string {
	return "SELECT COUNT(*) FROM login_attempts" + q.clause()
}

const attemptStatsSQL = `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0),
		COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
		COUNT(DISTINCT ip_address)
	FROM login_attempts
	WHERE created_at >= %s
`
