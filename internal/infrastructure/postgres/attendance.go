package postgres

import (
	"context"

	"github.com/paincake00/geoclock/internal/entity"
)

// Attendance Repository

// AppendRecord добавляет запись посещаемости. Записи не изменяются и не удаляются.
func (r *PostgresRepo) AppendRecord(ctx context.Context, rec *entity.AttendanceRecord) error {
	sql := `INSERT INTO attendance_records
			(id, user_id, user_name, type, recorded_at, latitude, longitude, accuracy, shift_date, shift_duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.Pool.Exec(ctx, sql,
		rec.ID, rec.UserID, rec.UserName, rec.Type, rec.Timestamp,
		rec.Location.Lat, rec.Location.Lng, rec.Accuracy, rec.Date, rec.ShiftDuration,
	)
	return err
}

// ListRecords последние записи пользователя, новые первыми.
func (r *PostgresRepo) ListRecords(ctx context.Context, userID string, limit int) ([]*entity.AttendanceRecord, error) {
	sql := `SELECT id::text, user_id, user_name, type, recorded_at, latitude, longitude, accuracy, shift_date, shift_duration_ms
			FROM attendance_records WHERE user_id = $1 ORDER BY recorded_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, sql, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*entity.AttendanceRecord{}
	for rows.Next() {
		var rec entity.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.UserName, &rec.Type, &rec.Timestamp,
			&rec.Location.Lat, &rec.Location.Lng, &rec.Accuracy, &rec.Date, &rec.ShiftDuration); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountRecordsOnDate число записей пользователя за календарный день.
func (r *PostgresRepo) CountRecordsOnDate(ctx context.Context, userID, date string) (int, error) {
	sql := `SELECT COUNT(*) FROM attendance_records WHERE user_id = $1 AND shift_date = $2`
	var n int
	err := r.Pool.QueryRow(ctx, sql, userID, date).Scan(&n)
	return n, err
}
