package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
	"github.com/paincake00/geoclock/internal/logger"
)

// DefaultGeofenceName основа имён, предлагаемых новой геозоне.
const DefaultGeofenceName = "Geofence"

// GeofenceService отвечает за бизнес-логику управления геозонами.
type GeofenceService struct {
	Repo  GeofenceRepository
	Cache GeofenceCache
	Log   logger.Logger

	mu        sync.Mutex
	listeners []func(ctx context.Context, fences []*entity.Geofence)
}

// NewGeofenceService создает новый экземпляр сервиса геозон.
func NewGeofenceService(r GeofenceRepository, c GeofenceCache, l logger.Logger) *GeofenceService {
	return &GeofenceService{Repo: r, Cache: c, Log: l}
}

// OnChange регистрирует обработчик, получающий актуальный набор геозон после каждого изменения.
func (s *GeofenceService) OnChange(fn func(ctx context.Context, fences []*entity.Geofence)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// changed сбрасывает кеш и уведомляет подписчиков.
func (s *GeofenceService) changed(ctx context.Context) {
	if err := s.Cache.InvalidateGeofences(ctx); err != nil {
		s.Log.Warn("failed to invalidate geofence cache", err)
	}

	s.mu.Lock()
	listeners := append([]func(context.Context, []*entity.Geofence){}, s.listeners...)
	s.mu.Unlock()
	if len(listeners) == 0 {
		return
	}

	fences, err := s.Active(ctx)
	if err != nil {
		s.Log.Error("failed to reload geofences after change", err)
		return
	}
	for _, fn := range listeners {
		fn(ctx, fences)
	}
}

func storageErr(op string, err error) error {
	if errors.Is(err, entity.ErrNotFound) {
		return err
	}
	return entity.NewStorageError(op, err)
}

func requireSupervisor(u entity.User) error {
	if !u.IsSupervisor() {
		return fmt.Errorf("%w: only supervisors manage geofences", entity.ErrForbidden)
	}
	return nil
}

func validateShape(shape geo.Shape) error {
	if err := geo.Validate(shape); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidGeofence, err)
	}
	return nil
}

// Create сохраняет новую геозону. Пустое имя заменяется предложенным.
func (s *GeofenceService) Create(ctx context.Context, owner entity.User, g *entity.Geofence) error {
	if err := requireSupervisor(owner); err != nil {
		return err
	}
	if err := validateShape(g.Shape); err != nil {
		return err
	}

	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		name, err := s.SuggestName(ctx, owner)
		if err != nil {
			return err
		}
		g.Name = name
	}
	g.CreatedBy = owner.ID

	if err := s.Repo.Create(ctx, g); err != nil {
		return storageErr("create geofence", err)
	}
	s.changed(ctx)
	return nil
}

// GetByID возвращает геозону по ID.
func (s *GeofenceService) GetByID(ctx context.Context, id string) (*entity.Geofence, error) {
	g, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get geofence", err)
	}
	return g, nil
}

// owned загружает геозону и проверяет, что её создал owner.
func (s *GeofenceService) owned(ctx context.Context, owner entity.User, id string) (*entity.Geofence, error) {
	if err := requireSupervisor(owner); err != nil {
		return nil, err
	}
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.CreatedBy != owner.ID {
		return nil, fmt.Errorf("%w: geofence belongs to another supervisor", entity.ErrForbidden)
	}
	return g, nil
}

// UpdateGeometry заменяет геометрию. Идентичность и тип формы сохраняются.
func (s *GeofenceService) UpdateGeometry(ctx context.Context, owner entity.User, id string, shape geo.Shape) (*entity.Geofence, error) {
	g, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if shape == nil || shape.Kind() != g.Shape.Kind() {
		return nil, entity.ErrShapeChanged
	}
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	if err := s.Repo.UpdateShape(ctx, id, shape); err != nil {
		return nil, storageErr("update geofence", err)
	}
	g.Shape = shape
	s.changed(ctx)
	return g, nil
}

// Rename меняет имя геозоны. Совпадение имён допускается.
func (s *GeofenceService) Rename(ctx context.Context, owner entity.User, id, name string) (*entity.Geofence, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", entity.ErrInvalidGeofence)
	}
	g, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.Rename(ctx, id, name); err != nil {
		return nil, storageErr("rename geofence", err)
	}
	g.Name = name
	s.changed(ctx)
	return g, nil
}

// Delete удаляет геозону владельца.
func (s *GeofenceService) Delete(ctx context.Context, owner entity.User, id string) error {
	if _, err := s.owned(ctx, owner, id); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return storageErr("delete geofence", err)
	}
	s.changed(ctx)
	return nil
}

// ListForUser руководитель видит свои геозоны, стажёр видит все.
func (s *GeofenceService) ListForUser(ctx context.Context, u entity.User) ([]*entity.Geofence, error) {
	var (
		fences []*entity.Geofence
		err    error
	)
	if u.IsSupervisor() {
		fences, err = s.Repo.ListByOwner(ctx, u.ID)
	} else {
		fences, err = s.Active(ctx)
	}
	if err != nil {
		return nil, storageErr("list geofences", err)
	}
	return fences, nil
}

// Active все геозоны, ограничивающие отметки. Сначала кеш, потом БД.
func (s *GeofenceService) Active(ctx context.Context) ([]*entity.Geofence, error) {
	fences, err := s.Cache.GetGeofences(ctx)
	if err == nil && fences != nil {
		return fences, nil
	}
	if err != nil {
		s.Log.Warn("geofence cache read failed", err)
	}

	fences, err = s.Repo.ListAll(ctx)
	if err != nil {
		return nil, entity.NewStorageError("load geofences", err)
	}
	if fences == nil {
		fences = []*entity.Geofence{}
	}
	if err := s.Cache.SetGeofences(ctx, fences); err != nil {
		s.Log.Warn("geofence cache write failed", err)
	}
	return fences, nil
}

// SuggestName имя вида "Geofence N" с наименьшим свободным N среди геозон владельца.
func (s *GeofenceService) SuggestName(ctx context.Context, owner entity.User) (string, error) {
	fences, err := s.Repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return "", storageErr("list geofences", err)
	}
	return SuggestName(fences, DefaultGeofenceName), nil
}

// SuggestName "Geofence" без номера занимает номер 1.
func SuggestName(fences []*entity.Geofence, base string) string {
	numbered := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(base) + `\s+(\d+)$`)
	used := make(map[int]bool)
	for _, g := range fences {
		if g == nil {
			continue
		}
		name := strings.TrimSpace(g.Name)
		if strings.EqualFold(name, base) {
			used[1] = true
			continue
		}
		if m := numbered.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				used[n] = true
			}
		}
	}

	i := 1
	for used[i] {
		i++
	}
	return fmt.Sprintf("%s %d", base, i)
}

// DisplayNames имена для показа: повторы без учёта регистра получают суффикс " (2)", " (3)"...
// Пустое имя заменяется на "Geofence i" по позиции в списке.
func DisplayNames(fences []*entity.Geofence) []string {
	counts := make(map[string]int)
	names := make([]string, len(fences))
	for i, g := range fences {
		name := ""
		if g != nil {
			name = strings.TrimSpace(g.Name)
		}
		if name == "" {
			name = fmt.Sprintf("%s %d", DefaultGeofenceName, i+1)
		}
		key := strings.ToLower(name)
		counts[key]++
		if n := counts[key]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		names[i] = name
	}
	return names
}
