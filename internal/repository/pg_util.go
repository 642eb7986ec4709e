package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// rowScanner *sql.Row 与 *sql.Rows 的公共接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

// floatArg *float64 → SQL 参数（nil 写 NULL）
func floatArg(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func timeArg(p *time.Time) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func stringArg(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
