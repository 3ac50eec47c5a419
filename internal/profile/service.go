package profile

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nzsystems/rezume/internal/apierr"
)

// API is the part of the session client the profile service needs.
type API interface {
	JSON(ctx context.Context, method, path string, in, out any) error
	Upload(ctx context.Context, path, field, filename, contentType string, content io.Reader, out any) error
}

// Service runs profile mutations through the API and reconciles the cache
// with the responses. A failed call never touches the cache.
type Service struct {
	api    API
	cache  *Cache
	logger *zap.Logger
}

func NewService(api API, cache *Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewCache()
	}

	return &Service{
		api:    api,
		cache:  cache,
		logger: logger,
	}
}

func (s *Service) Cache() *Cache {
	return s.cache
}

// UpdateProfile sends a partial update and stores the full user returned by
// the backend.
func (s *Service) UpdateProfile(ctx context.Context, upd UserUpdate) (*User, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	epoch := s.cache.Epoch()
	var user User
	if err := s.api.JSON(ctx, http.MethodPut, MePath, upd, &user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.cache.SetUserAt(epoch, &user)
	return &user, nil
}

// LoadCollections refreshes the four collections in parallel. Each one is
// replaced as soon as its own response arrives.
func (s *Service) LoadCollections(ctx context.Context) error {
	return s.LoadCollectionsAt(ctx, s.cache.Epoch())
}

// LoadCollectionsAt is LoadCollections for the session snapshot at epoch.
// Lists answered after the cache was cleared are discarded.
func (s *Service) LoadCollectionsAt(ctx context.Context, epoch uint64) error {
	var g errgroup.Group

	g.Go(func() error { return list[Experience](ctx, s, epoch, KindExperience) })
	g.Go(func() error { return list[Education](ctx, s, epoch, KindEducation) })
	g.Go(func() error { return list[Skill](ctx, s, epoch, KindSkill) })
	g.Go(func() error { return list[Language](ctx, s, epoch, KindLanguage) })

	return g.Wait()
}

func list[T Entity](ctx context.Context, s *Service, epoch uint64, kind Kind) error {
	var items []T
	if err := s.api.JSON(ctx, http.MethodGet, kind.Path(), nil, &items); err != nil {
		return fmt.Errorf("list %s: %w", kind, err)
	}

	for _, item := range items {
		if err := validatePersisted(item, kind.Path()); err != nil {
			return err
		}
	}

	if !s.cache.ReplaceCollectionAt(epoch, kind, entities(items)) {
		s.logger.Debug("stale collection dropped", zap.String("kind", string(kind)))
		return nil
	}
	s.logger.Debug("collection refreshed", zap.String("kind", string(kind)), zap.Int("count", len(items)))
	return nil
}

// Save creates item when it is not persisted yet and updates it otherwise.
func (s *Service) Save(ctx context.Context, item Entity) (Entity, error) {
	if _, ok := item.EntityID().Server(); ok {
		return s.Update(ctx, item)
	}
	return s.Create(ctx, item)
}

// Create posts item. When item carries a local ID the cached entry is
// reconciled with the confirmed entity; otherwise the entity is appended.
func (s *Service) Create(ctx context.Context, item Entity) (Entity, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	kind := item.Kind()
	epoch := s.cache.Epoch()
	created, err := s.send(ctx, http.MethodPost, kind.Path(), item)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	id := item.EntityID()
	switch {
	case id.IsLocal():
		if !s.cache.ReconcileTemporaryID(kind, id, created) {
			s.logger.Debug("local entry removed before save completed",
				zap.String("kind", string(kind)),
				zap.String("local_id", id.String()),
			)
		}
	default:
		s.cache.AddAt(epoch, created)
	}

	return created, nil
}

// Update puts a persisted item and swaps the cached entry.
func (s *Service) Update(ctx context.Context, item Entity) (Entity, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	kind := item.Kind()
	serverID, ok := item.EntityID().Server()
	if !ok {
		return nil, &apierr.ValidationError{Field: "id", Reason: "is not persisted yet"}
	}

	updated, err := s.send(ctx, http.MethodPut, kind.ItemPath(serverID), item)
	if err != nil {
		return nil, fmt.Errorf("update %s %d: %w", kind, serverID, err)
	}

	s.cache.Replace(item.EntityID(), updated)
	return updated, nil
}

// Delete removes an entry. Entries that were never persisted are dropped
// locally without any request.
func (s *Service) Delete(ctx context.Context, kind Kind, id ID) error {
	serverID, ok := id.Server()
	if !ok {
		s.cache.Remove(kind, id)
		return nil
	}

	if err := s.api.JSON(ctx, http.MethodDelete, kind.ItemPath(serverID), nil, nil); err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, serverID, err)
	}

	s.cache.Remove(kind, id)
	return nil
}

// SaveAll persists the whole cached profile the way the editor's "save all"
// does: the user record, every local entry, and every persisted experience and
// education entry, all in parallel. Entries that fail keep their local ID.
func (s *Service) SaveAll(ctx context.Context) error {
	var g errgroup.Group

	if user := s.cache.User(); user != nil {
		g.Go(func() error {
			_, err := s.UpdateProfile(ctx, user.Snapshot())
			return err
		})
	}

	for _, kind := range Kinds {
		for _, item := range s.cache.Collection(kind) {
			switch {
			case item.EntityID().IsLocal():
				g.Go(func() error {
					_, err := s.Create(ctx, item)
					return err
				})
			case kind == KindExperience || kind == KindEducation:
				g.Go(func() error {
					_, err := s.Update(ctx, item)
					return err
				})
			}
		}
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	s.logger.Info("profile saved", zap.Int("local_left", s.cache.LocalCount()))
	return nil
}

func (s *Service) send(ctx context.Context, method, path string, item Entity) (Entity, error) {
	switch v := item.(type) {
	case Experience:
		return roundTrip(ctx, s.api, method, path, v)
	case Education:
		return roundTrip(ctx, s.api, method, path, v)
	case Skill:
		return roundTrip(ctx, s.api, method, path, v)
	case Language:
		return roundTrip(ctx, s.api, method, path, v)
	default:
		return nil, fmt.Errorf("unsupported entity %T", item)
	}
}

func roundTrip[T Entity](ctx context.Context, api API, method, path string, item T) (Entity, error) {
	var out T
	if err := api.JSON(ctx, method, path, item, &out); err != nil {
		return nil, err
	}
	if err := validatePersisted(out, path); err != nil {
		return nil, err
	}
	return out, nil
}
