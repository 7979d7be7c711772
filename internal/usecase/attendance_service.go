package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/paincake00/geoclock/internal/attendance"
	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/logger"
	"github.com/paincake00/geoclock/internal/schedule"
)

// AttendanceQueue имя очереди событий посещаемости.
const AttendanceQueue = "attendance_events"

// AttendanceStatus сводка для дашборда стажёра.
type AttendanceStatus struct {
	State        attendance.State `json:"state"`
	CurrentShift *entity.Shift    `json:"current_shift,omitempty"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	Elapsed      string           `json:"elapsed"`
	TodayRecords int              `json:"today_records"`
	ShiftType    string           `json:"shift_type"`
	Greeting     string           `json:"greeting"`
}

// AttendanceService управляет машинами посещаемости пользователей.
type AttendanceService struct {
	Records   AttendanceRepository
	Shifts    ShiftStore
	Geofences *GeofenceService
	Tracking  *TrackingService
	Queue     QueueRepository
	QueueName string
	Schedule  schedule.Schedule
	Location  *time.Location
	Log       logger.Logger

	now      func() time.Time
	mu       sync.Mutex
	machines map[string]*attendance.Machine

	pubMu   sync.Mutex
	events  chan queuedEvent
	closed  bool
	pending sync.WaitGroup
}

// publishBuffer сколько событий ждут отправки, прежде чем переходы начнут ждать очередь.
const publishBuffer = 256

type queuedEvent struct {
	recordID string
	event    entity.AttendanceEvent
}

// NewAttendanceService создает сервис посещаемости. tracking может быть nil: тогда образец обязателен в запросе.
func NewAttendanceService(
	records AttendanceRepository,
	shifts ShiftStore,
	gs *GeofenceService,
	ts *TrackingService,
	q QueueRepository,
	sched schedule.Schedule,
	loc *time.Location,
	l logger.Logger,
) *AttendanceService {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{
		Records:   records,
		Shifts:    shifts,
		Geofences: gs,
		Tracking:  ts,
		Queue:     q,
		QueueName: AttendanceQueue,
		Schedule:  sched,
		Location:  loc,
		Log:       l,
		now:       time.Now,
		machines:  make(map[string]*attendance.Machine),
	}
}

// SetClock подменяет часы сервиса, трекинга и новых машин.
func (s *AttendanceService) SetClock(now func() time.Time) {
	s.now = now
	if s.Tracking != nil {
		s.Tracking.SetClock(now)
	}
}

// machine возвращает машину пользователя, при первом обращении восстанавливая смену.
// Restore ходит в хранилище без s.mu; если две горутины восстановили машину одновременно,
// в карту попадает первая.
func (s *AttendanceService) machine(ctx context.Context, u entity.User) (*attendance.Machine, error) {
	s.mu.Lock()
	m, ok := s.machines[u.ID]
	s.mu.Unlock()
	if ok {
		return m, nil
	}

	m = attendance.NewMachine(u, s.Records, s.Shifts,
		attendance.WithClock(s.now),
		attendance.WithLocation(s.Location),
		attendance.WithLogger(s.Log),
		attendance.WithCommitHook(s.publish),
	)
	if err := m.Restore(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.machines[u.ID]; ok {
		return existing, nil
	}
	s.machines[u.ID] = m
	return m, nil
}

// resolveSample образец из запроса или, если его нет, от трекера.
// Образец из запроса без времени считается снятым сейчас; устаревший отклоняется.
func (s *AttendanceService) resolveSample(ctx context.Context, u entity.User, sample *entity.LocationSample) (*entity.LocationSample, error) {
	if sample != nil {
		if sample.Timestamp.IsZero() {
			stamped := *sample
			stamped.Timestamp = s.now()
			sample = &stamped
		}
		if s.Tracking != nil {
			if err := s.Tracking.CheckFresh(sample); err != nil {
				return nil, err
			}
		}
		return sample, nil
	}
	if s.Tracking == nil {
		return nil, entity.ErrLocationUnavailable
	}
	return s.Tracking.Locate(ctx, u)
}

type transition func(*attendance.Machine, context.Context, *entity.LocationSample, []*entity.Geofence) (*entity.AttendanceRecord, error)

func (s *AttendanceService) apply(ctx context.Context, u entity.User, sample *entity.LocationSample, do transition) (*entity.AttendanceRecord, error) {
	m, err := s.machine(ctx, u)
	if err != nil {
		return nil, err
	}
	sample, err = s.resolveSample(ctx, u, sample)
	if err != nil {
		return nil, err
	}
	fences, err := s.Geofences.Active(ctx)
	if err != nil {
		return nil, err
	}

	return do(m, ctx, sample, fences)
}

// TimeIn отметка прихода.
func (s *AttendanceService) TimeIn(ctx context.Context, u entity.User, sample *entity.LocationSample) (*entity.AttendanceRecord, error) {
	return s.apply(ctx, u, sample, (*attendance.Machine).TimeIn)
}

// TimeOut отметка ухода.
func (s *AttendanceService) TimeOut(ctx context.Context, u entity.User, sample *entity.LocationSample) (*entity.AttendanceRecord, error) {
	return s.apply(ctx, u, sample, (*attendance.Machine).TimeOut)
}

// publish ставит событие в очередь отправки. Вызывается машиной под её мьютексом.
// Одна горутина отправляет события по порядку на контексте, не связанном с HTTP-запросом.
func (s *AttendanceService) publish(record *entity.AttendanceRecord) {
	if s.Queue == nil {
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if s.closed {
		s.Log.Warn("attendance event dropped after shutdown", map[string]interface{}{"record_id": record.ID})
		return
	}
	if s.events == nil {
		s.events = make(chan queuedEvent, publishBuffer)
		go s.runPublisher(s.events)
	}
	s.pending.Add(1)
	s.events <- queuedEvent{recordID: record.ID, event: entity.EventFromRecord(record)}
}

func (s *AttendanceService) runPublisher(events <-chan queuedEvent) {
	for e := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.Queue.Enqueue(ctx, s.QueueName, e.event); err != nil {
			s.Log.Error("failed to enqueue attendance event", err, map[string]interface{}{"record_id": e.recordID})
		}
		cancel()
		s.pending.Done()
	}
}

// Wait дожидается отправки поставленных в очередь событий.
func (s *AttendanceService) Wait() {
	s.pending.Wait()
}

// Close отправляет оставшиеся события и останавливает горутину отправки.
// Переходы после Close сохраняются, но события по ним не публикуются.
func (s *AttendanceService) Close() {
	s.pubMu.Lock()
	if !s.closed {
		s.closed = true
		if s.events != nil {
			close(s.events)
		}
	}
	s.pubMu.Unlock()
	s.pending.Wait()
}

// Status текущее состояние пользователя.
func (s *AttendanceService) Status(ctx context.Context, u entity.User) (*AttendanceStatus, error) {
	m, err := s.machine(ctx, u)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := now.In(s.Location).Format(attendance.DateLayout)
	count, err := s.Records.CountRecordsOnDate(ctx, u.ID, today)
	if err != nil {
		return nil, entity.NewStorageError("count records", err)
	}

	local := now.In(s.Location)
	st := &AttendanceStatus{
		State:        m.State(),
		CurrentShift: m.CurrentShift(),
		TodayRecords: count,
		ShiftType:    s.Schedule.Classify(local),
		Greeting:     schedule.Greeting(local),
	}
	if st.CurrentShift != nil {
		st.ElapsedMs = now.Sub(st.CurrentShift.Timestamp).Milliseconds()
	}
	st.Elapsed = attendance.FormatDuration(st.ElapsedMs)
	return st, nil
}

// History записи пользователя, новые первыми.
func (s *AttendanceService) History(ctx context.Context, u entity.User, limit int) ([]*entity.AttendanceRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	records, err := s.Records.ListRecords(ctx, u.ID, limit)
	if err != nil {
		return nil, entity.NewStorageError("list records", err)
	}
	return records, nil
}

// CurrentShiftType классификация текущего момента по расписанию.
func (s *AttendanceService) CurrentShiftType() string {
	return s.Schedule.Classify(s.now().In(s.Location))
}
