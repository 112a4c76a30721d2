package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"sheltercore/internal/blob"
	"sheltercore/pkg/domain"
)

// PhotoStore stores animal photo blobs keyed under animals/<id>/.
type PhotoStore = blob.Store

// ErrNoPhotoStore indicates the service was built without a photo backend.
var ErrNoPhotoStore = errors.New("core: no photo store configured")

// AttachAnimalPhoto uploads a photo blob and records its key as the animal's
// photo reference in the same logical operation. The blob key embeds the
// animal identifier so an animal's photos share a common prefix; keys are
// never reused, so each upload lands under a fresh name derived from the
// catalog revision.
func (s *Service) AttachAnimalPhoto(ctx context.Context, id int64, filename, contentType string, r io.Reader) (Animal, Info, error) {
	var updated Animal
	var info Info
	err := s.instrument(ctx, "attach_animal_photo", func(ctx context.Context) (string, error) {
		if s.photos == nil {
			return formatID(id), ErrNoPhotoStore
		}
		if _, ok := s.store.GetAnimal(id); !ok {
			return formatID(id), domain.NotFoundError{Entity: EntityAnimal, ID: formatID(id)}
		}
		key := photoKey(id, s.store.CurrentRevision(), filename)
		var err error
		info, err = s.photos.Put(ctx, key, r, blob.PutOptions{ContentType: contentType})
		if err != nil {
			return formatID(id), fmt.Errorf("store photo: %w", err)
		}
		updated, err = s.setPhotoRef(ctx, id, key)
		return formatID(id), err
	})
	return updated, info, err
}

// AnimalPhoto streams the stored photo for an animal.
func (s *Service) AnimalPhoto(ctx context.Context, id int64) (Info, io.ReadCloser, error) {
	if s.photos == nil {
		return Info{}, nil, ErrNoPhotoStore
	}
	animal, ok := s.store.GetAnimal(id)
	if !ok {
		return Info{}, nil, domain.NotFoundError{Entity: EntityAnimal, ID: formatID(id)}
	}
	if animal.PhotoRef == nil {
		return Info{}, nil, domain.NotFoundError{Entity: EntityAnimal, ID: formatID(id) + "/photo"}
	}
	return s.photos.Get(ctx, *animal.PhotoRef)
}

// Info describes a stored photo blob.
type Info = blob.Info

func (s *Service) setPhotoRef(ctx context.Context, id int64, key string) (Animal, error) {
	var updated Animal
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		updated, txErr = tx.UpdateAnimal(id, func(a *Animal) error {
			a.PhotoRef = &key
			return nil
		})
		return txErr
	})
	return updated, err
}

func photoKey(id int64, revision uint64, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "photo"
	}
	return fmt.Sprintf("animals/%d/%d-%s", id, revision, name)
}
