package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Названия смен, которые видит пользователь.
const (
	MorningShift = "Morning Shift"
	EveningShift = "Evening Shift"
	OutsideShift = "Outside Shift Hours"
)

// Window интервал смены в формате HH:MM, обе границы включаются.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Schedule расписание утренней и вечерней смен.
type Schedule struct {
	Morning Window `json:"morning"`
	Evening Window `json:"evening"`
}

// Default расписание по умолчанию: 08:00–12:00 и 13:00–17:00.
func Default() Schedule {
	return Schedule{
		Morning: Window{Start: "08:00", End: "12:00"},
		Evening: Window{Start: "13:00", End: "17:00"},
	}
}

var ErrInvalidClock = errors.New("time must be in HH:MM format")

// Validate проверяет формат всех границ.
func (s Schedule) Validate() error {
	for _, v := range []string{s.Morning.Start, s.Morning.End, s.Evening.Start, s.Evening.End} {
		if _, err := time.Parse("15:04", v); err != nil || len(v) != 5 {
			return fmt.Errorf("%w: %q", ErrInvalidClock, v)
		}
	}
	return nil
}

func (w Window) includes(clock string) bool {
	return clock >= w.Start && clock <= w.End
}

// Classify определяет смену по локальному времени now.
// Сравнение строк HH:MM лексикографическое, утренняя смена проверяется первой.
func (s Schedule) Classify(now time.Time) string {
	clock := now.Format("15:04")
	switch {
	case s.Morning.includes(clock):
		return MorningShift
	case s.Evening.includes(clock):
		return EveningShift
	default:
		return OutsideShift
	}
}

// Greeting приветствие для дашборда по часу now.
func Greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning"
	case h < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
