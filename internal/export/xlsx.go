package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/paincake00/geoclock/internal/attendance"
	"github.com/paincake00/geoclock/internal/entity"
)

// SheetName лист с историей посещаемости.
const SheetName = "Attendance"

// ContentType MIME-тип книги XLSX.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []interface{}{"Date", "Type", "Time", "Latitude", "Longitude", "Accuracy (m)", "Duration", "Record ID"}

// WriteAttendance пишет записи в книгу XLSX. Время выводится в часовом поясе loc.
func WriteAttendance(w io.Writer, records []*entity.AttendanceRecord, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return err
	}

	for i, r := range records {
		duration := ""
		if r.ShiftDuration != nil {
			duration = attendance.FormatDuration(*r.ShiftDuration)
		}
		row := []interface{}{
			r.Date,
			r.Type,
			r.Timestamp.In(loc).Format("15:04:05"),
			r.Location.Lat,
			r.Location.Lng,
			r.Accuracy,
			duration,
			r.ID,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "H", 14); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
