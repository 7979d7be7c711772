package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
	"github.com/paincake00/geoclock/internal/logger"
)

const (
	geofencesCollection  = "geofences"
	attendanceCollection = "attendance"
)

// FirestoreRepo реализация репозиториев геозон и записей посещаемости на основе Cloud Firestore.
type FirestoreRepo struct {
	Client *firestore.Client
	Log    logger.Logger
}

// New подключается к Firestore. credentials: путь к файлу ключа или JSON; пусто - учётные данные по умолчанию.
func New(ctx context.Context, projectID, credentials string) (*FirestoreRepo, error) {
	var opts []option.ClientOption
	if credentials != "" {
		if _, err := os.Stat(credentials); err == nil {
			opts = append(opts, option.WithCredentialsFile(credentials))
		} else {
			opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
		}
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing firestore: %w", err)
	}
	return &FirestoreRepo{Client: client}, nil
}

// Close закрывает клиент.
func (r *FirestoreRepo) Close() {
	r.Client.Close()
}

// Ping читает один документ геозон.
func (r *FirestoreRepo) Ping(ctx context.Context) error {
	iter := r.Client.Collection(geofencesCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

func notFound(err error) error {
	if status.Code(err) == codes.NotFound {
		return entity.ErrNotFound
	}
	return err
}

// Geofence Repository

// Create сохраняет новую геозону. ID назначает Firestore.
func (r *FirestoreRepo) Create(ctx context.Context, g *entity.Geofence) error {
	ref := r.Client.Collection(geofencesCollection).NewDoc()
	g.ID = ref.ID
	g.CreatedAt = time.Now().UTC()
	_, err := ref.Create(ctx, g.Document())
	return err
}

// decodeGeofence повреждённая форма читается как geo.Unsupported и логируется.
func (r *FirestoreRepo) decodeGeofence(snap *firestore.DocumentSnapshot) (*entity.Geofence, error) {
	var doc entity.GeofenceDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	doc.ID = snap.Ref.ID
	g, err := doc.StoredGeofence()
	if err != nil {
		log := r.Log
		if log == nil {
			log = logger.Discard()
		}
		log.Warn("corrupt geofence loaded as unsupported", map[string]interface{}{"id": g.ID, "error": err.Error()})
	}
	return g, nil
}

// GetByID получает геозону по ID.
func (r *FirestoreRepo) GetByID(ctx context.Context, id string) (*entity.Geofence, error) {
	snap, err := r.Client.Collection(geofencesCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return r.decodeGeofence(snap)
}

func (r *FirestoreRepo) queryGeofences(ctx context.Context, q firestore.Query) ([]*entity.Geofence, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	fences := []*entity.Geofence{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		g, err := r.decodeGeofence(snap)
		if err != nil {
			return nil, fmt.Errorf("geofence %s: %w", snap.Ref.ID, err)
		}
		fences = append(fences, g)
	}
	// Сортировка в памяти, чтобы не требовать составной индекс.
	sort.SliceStable(fences, func(i, j int) bool { return fences[i].CreatedAt.Before(fences[j].CreatedAt) })
	return fences, nil
}

// ListByOwner геозоны, созданные руководителем.
func (r *FirestoreRepo) ListByOwner(ctx context.Context, owner string) ([]*entity.Geofence, error) {
	return r.queryGeofences(ctx, r.Client.Collection(geofencesCollection).Where("createdBy", "==", owner))
}

// ListAll все геозоны.
func (r *FirestoreRepo) ListAll(ctx context.Context) ([]*entity.Geofence, error) {
	return r.queryGeofences(ctx, r.Client.Collection(geofencesCollection).Query)
}

// orDelete значение поля или удаление поля, если оно не относится к форме.
func orDelete(set bool, v interface{}) interface{} {
	if set {
		return v
	}
	return firestore.Delete
}

// UpdateShape заменяет поля формы, поля чужих форм удаляются.
func (r *FirestoreRepo) UpdateShape(ctx context.Context, id string, shape geo.Shape) error {
	typ, center, radius, coords := entity.ShapeFields(shape)
	_, err := r.Client.Collection(geofencesCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "type", Value: typ},
		{Path: "center", Value: orDelete(center != nil, center)},
		{Path: "radius", Value: orDelete(radius != 0, radius)},
		{Path: "coordinates", Value: orDelete(len(coords) > 0, coords)},
	})
	return notFound(err)
}

// Rename обновляет имя геозоны.
func (r *FirestoreRepo) Rename(ctx context.Context, id, name string) error {
	_, err := r.Client.Collection(geofencesCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "name", Value: name},
	})
	return notFound(err)
}

// Delete удаляет геозону. Отсутствующий документ даёт entity.ErrNotFound.
func (r *FirestoreRepo) Delete(ctx context.Context, id string) error {
	_, err := r.Client.Collection(geofencesCollection).Doc(id).Delete(ctx, firestore.Exists)
	return notFound(err)
}

// Attendance Repository

// AppendRecord добавляет запись посещаемости. Повторная запись с тем же ID отклоняется.
func (r *FirestoreRepo) AppendRecord(ctx context.Context, rec *entity.AttendanceRecord) error {
	_, err := r.Client.Collection(attendanceCollection).Doc(rec.ID).Create(ctx, rec)
	return err
}

// ListRecords последние записи пользователя, новые первыми.
func (r *FirestoreRepo) ListRecords(ctx context.Context, userID string, limit int) ([]*entity.AttendanceRecord, error) {
	iter := r.Client.Collection(attendanceCollection).
		Where("userId", "==", userID).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	records := []*entity.AttendanceRecord{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var rec entity.AttendanceRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, nil
}

// CountRecordsOnDate число записей пользователя за календарный день.
func (r *FirestoreRepo) CountRecordsOnDate(ctx context.Context, userID, date string) (int, error) {
	iter := r.Client.Collection(attendanceCollection).
		Where("userId", "==", userID).
		Where("date", "==", date).
		Documents(ctx)
	defer iter.Stop()

	n := 0
	for {
		_, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}
