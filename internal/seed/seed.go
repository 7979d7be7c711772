// Package seed загрузка геозон из YAML-файла.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
	"github.com/paincake00/geoclock/internal/usecase"
)

var ErrNoOwner = errors.New("seed file has no owner")

// File содержимое файла:
//
//	owner: sup-1
//	geofences:
//	  - name: Office
//	    type: circle
//	    center: {lat: 14.5995, lng: 120.9842}
//	    radius: 50
type File struct {
	Owner     string                    `yaml:"owner"`
	Geofences []entity.GeofenceDocument `yaml:"geofences"`
}

// Parse читает и проверяет файл. Ошибка указывает номер геозоны.
func Parse(r io.Reader) (string, []*entity.Geofence, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return "", nil, fmt.Errorf("decode seed file: %w", err)
	}
	f.Owner = strings.TrimSpace(f.Owner)
	if f.Owner == "" {
		return "", nil, ErrNoOwner
	}

	fences := make([]*entity.Geofence, 0, len(f.Geofences))
	for i, doc := range f.Geofences {
		g, err := doc.Geofence()
		if err != nil {
			return "", nil, fmt.Errorf("geofence %d: %w", i+1, err)
		}
		if err := geo.Validate(g.Shape); err != nil {
			return "", nil, fmt.Errorf("geofence %d: %w", i+1, err)
		}
		g.Name = strings.TrimSpace(g.Name)
		g.CreatedBy = f.Owner
		fences = append(fences, g)
	}
	return f.Owner, fences, nil
}

// Result итог применения.
type Result struct {
	Created int
	Skipped int
	Deleted int
}

// Apply создаёт геозоны владельца. Геозоны с уже существующим именем пропускаются.
// При replace сначала удаляются все геозоны владельца. Пустое имя заменяется предложенным.
func Apply(ctx context.Context, repo usecase.GeofenceRepository, owner string, fences []*entity.Geofence, replace bool) (Result, error) {
	var res Result

	existing, err := repo.ListByOwner(ctx, owner)
	if err != nil {
		return res, fmt.Errorf("list geofences: %w", err)
	}
	if replace {
		for _, g := range existing {
			if err := repo.Delete(ctx, g.ID); err != nil {
				return res, fmt.Errorf("delete geofence %s: %w", g.ID, err)
			}
			res.Deleted++
		}
		existing = nil
	}

	names := make(map[string]bool, len(existing))
	for _, g := range existing {
		names[strings.ToLower(g.Name)] = true
	}

	for _, g := range fences {
		if g.Name == "" {
			g.Name = usecase.SuggestName(existing, usecase.DefaultGeofenceName)
		}
		key := strings.ToLower(g.Name)
		if names[key] {
			res.Skipped++
			continue
		}
		if err := repo.Create(ctx, g); err != nil {
			return res, fmt.Errorf("create geofence %q: %w", g.Name, err)
		}
		names[key] = true
		existing = append(existing, g)
		res.Created++
	}
	return res, nil
}
