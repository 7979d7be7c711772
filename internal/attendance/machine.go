package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/logger"
)

// DateLayout формат календарной даты смены и записи.
const DateLayout = "2006-01-02"

// State состояние машины посещаемости.
type State string

const (
	ClockedOut State = "CLOCKED_OUT"
	ClockedIn  State = "CLOCKED_IN"
)

// RecordStore долговременный журнал записей посещаемости, только добавление.
type RecordStore interface {
	AppendRecord(ctx context.Context, r *entity.AttendanceRecord) error
}

// ShiftStore хранилище маркера открытой смены по пользователю.
// GetShift возвращает nil, nil если маркера нет.
type ShiftStore interface {
	GetShift(ctx context.Context, userID string) (*entity.Shift, error)
	SetShift(ctx context.Context, s *entity.Shift) error
	DeleteShift(ctx context.Context, userID string) error
}

// Machine машина состояний посещаемости одного пользователя.
// Переходы сериализуются мьютексом: проверка условий и действие выполняются атомарно.
type Machine struct {
	mu      sync.Mutex
	user    entity.User
	records RecordStore
	shifts  ShiftStore
	log     logger.Logger
	now     func() time.Time
	loc     *time.Location
	newID   func() string
	shift   *entity.Shift
	commit  func(*entity.AttendanceRecord)
}

// Option настройка машины.
type Option func(*Machine)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLocation часовой пояс, в котором считается календарная дата.
func WithLocation(loc *time.Location) Option {
	return func(m *Machine) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithLogger журнал для некритичных сбоев маркера смены.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithIDGenerator подменяет генератор идентификаторов записей.
func WithIDGenerator(gen func() string) Option {
	return func(m *Machine) { m.newID = gen }
}

// WithCommitHook fn получает каждую сохранённую запись под мьютексом машины, в порядке переходов.
// fn не должна надолго блокироваться.
func WithCommitHook(fn func(*entity.AttendanceRecord)) Option {
	return func(m *Machine) { m.commit = fn }
}

// NewMachine создаёт машину в состоянии CLOCKED_OUT. Для восстановления смены вызовите Restore.
func NewMachine(user entity.User, records RecordStore, shifts ShiftStore, opts ...Option) *Machine {
	m := &Machine{
		user:    user,
		records: records,
		shifts:  shifts,
		log:     logger.Discard(),
		now:     time.Now,
		loc:     time.Local,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) today() string {
	return m.now().In(m.loc).Format(DateLayout)
}

// expireLocked сбрасывает смену прошлого дня. Вызывается под мьютексом.
func (m *Machine) expireLocked() {
	if m.shift != nil && m.shift.Date != m.today() {
		m.shift = nil
	}
}

// Restore читает маркер смены. Смена за сегодня возобновляется, иначе маркер удаляется.
func (m *Machine) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	shift, err := m.shifts.GetShift(ctx, m.user.ID)
	if err != nil {
		return entity.NewStorageError("get shift", err)
	}
	if shift == nil {
		m.shift = nil
		return nil
	}
	if shift.Date == m.today() {
		m.shift = shift
		return nil
	}

	m.shift = nil
	if err := m.shifts.DeleteShift(ctx, m.user.ID); err != nil {
		m.log.Warn("failed to discard stale shift marker", err, m.user)
	}
	return nil
}

// State текущее состояние с учётом смены дня.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	if m.shift != nil {
		return ClockedIn
	}
	return ClockedOut
}

// CurrentShift копия открытой смены или nil.
func (m *Machine) CurrentShift() *entity.Shift {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()
	if m.shift == nil {
		return nil
	}
	s := *m.shift
	return &s
}

// User владелец машины.
func (m *Machine) User() entity.User {
	return m.user
}

// checkLocation общие условия для обоих переходов: есть показание и оно внутри рабочей зоны.
// Пустой список геозон ограничений не накладывает.
func checkLocation(sample *entity.LocationSample, fences []*entity.Geofence) error {
	if sample == nil {
		return entity.ErrLocationUnavailable
	}
	if len(fences) > 0 && !entity.InsideAny(sample.Coordinate(), fences) {
		return entity.ErrOutsideGeofence
	}
	return nil
}

func (m *Machine) newRecord(typ string, sample *entity.LocationSample, now time.Time) *entity.AttendanceRecord {
	return &entity.AttendanceRecord{
		ID:        m.newID(),
		UserID:    m.user.ID,
		UserName:  m.user.Name,
		Type:      typ,
		Timestamp: now,
		Location:  sample.Coordinate(),
		Accuracy:  sample.Accuracy,
		Date:      now.In(m.loc).Format(DateLayout),
	}
}

// TimeIn открывает смену. Запись добавляется до изменения состояния:
// при сбое хранилища машина остаётся в CLOCKED_OUT.
func (m *Machine) TimeIn(ctx context.Context, sample *entity.LocationSample, fences []*entity.Geofence) (*entity.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkLocation(sample, fences); err != nil {
		return nil, err
	}
	m.expireLocked()
	if m.shift != nil {
		return nil, entity.ErrAlreadyClockedIn
	}

	record := m.newRecord(entity.RecordTimeIn, sample, m.now())
	if err := m.records.AppendRecord(ctx, record); err != nil {
		return nil, entity.NewStorageError("append time-in", err)
	}

	shift := entity.ShiftFromRecord(record)
	if err := m.shifts.SetShift(ctx, shift); err != nil {
		// Запись уже в журнале, маркер лишь ускоряет восстановление.
		m.log.Error("failed to persist shift marker", err, m.user)
	}
	m.shift = shift
	m.committed(record)
	return record, nil
}

// TimeOut закрывает смену и фиксирует её длительность в миллисекундах.
func (m *Machine) TimeOut(ctx context.Context, sample *entity.LocationSample, fences []*entity.Geofence) (*entity.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkLocation(sample, fences); err != nil {
		return nil, err
	}
	m.expireLocked()
	if m.shift == nil {
		return nil, entity.ErrNotClockedIn
	}

	now := m.now()
	record := m.newRecord(entity.RecordTimeOut, sample, now)
	duration := now.Sub(m.shift.Timestamp).Milliseconds()
	record.ShiftDuration = &duration

	if err := m.records.AppendRecord(ctx, record); err != nil {
		return nil, entity.NewStorageError("append time-out", err)
	}

	if err := m.shifts.DeleteShift(ctx, m.user.ID); err != nil {
		m.log.Error("failed to clear shift marker", err, m.user)
	}
	m.shift = nil
	m.committed(record)
	return record, nil
}

func (m *Machine) committed(r *entity.AttendanceRecord) {
	if m.commit != nil {
		m.commit(r)
	}
}

// FormatDuration форматирует миллисекунды как "Xh Ym".
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / int64(time.Hour/time.Millisecond)
	minutes := (ms % int64(time.Hour/time.Millisecond)) / int64(time.Minute/time.Millisecond)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
