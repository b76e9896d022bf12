package repository

import (
	"database/sql"
	"fmt"
	"time"

	"lobbyist/internal/model"
)

// Timestamps are stored as unix microseconds. The filters below are the SQL
// rendition of model.ValidMandatory and model.ValidOptional and must stay in
// step with them.

func validMandatory(alias string, param string) string {
	return fmt.Sprintf("(%[1]s.create_ts <= %[2]s AND %[2]s <= %[1]s.expire_ts)", alias, param)
}

func validOptional(alias string, param string) string {
	return fmt.Sprintf("(%[1]s.create_ts <= %[2]s AND (%[1]s.expire_ts IS NULL OR %[2]s <= %[1]s.expire_ts))", alias, param)
}

func toMicros(t time.Time) int64 {
	return model.Timestamp(t).UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMicros(*t), Valid: true}
}

func fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicros(v.Int64)
	return &t
}
