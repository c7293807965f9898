package template

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/google/uuid"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

// Store owns template drafts and the append-only published version history.
// Published reads are served from cache; the store is read-mostly and publish
// is the only write that touches live traffic.
type Store struct {
	storage persistence.MetadataStorage
	cache   *gocache.Cache
	clock   util.Clock
}

func NewStore(storage persistence.MetadataStorage, clock util.Clock) *Store {
	return &Store{
		storage: storage,
		cache:   gocache.New(5*time.Minute, 10*time.Minute),
		clock:   clock,
	}
}

func (s *Store) SaveDraft(t model.WorkflowTemplate) (string, error) {
	if t.Id == "" {
		t.Id = uuid.New().String()
		t.CreatedAt = s.clock.Now()
	}
	t.Status = model.TEMPLATE_DRAFT
	t.UpdatedAt = s.clock.Now()
	if err := s.storage.SaveDraft(t); err != nil {
		return "", err
	}
	return t.Id, nil
}

func (s *Store) GetDraft(id string) (*model.WorkflowTemplate, error) {
	return s.storage.GetDraft(id)
}

// Publish validates the draft, freezes it under the next version number and
// leaves every prior version resolvable for existing assignments.
func (s *Store) Publish(id string) (int, error) {
	draft, err := s.storage.GetDraft(id)
	if err != nil {
		return 0, err
	}
	if err := Validate(draft); err != nil {
		return 0, err
	}
	version := 1
	latest, err := s.storage.GetLatestPublished(id)
	if err == nil {
		version = latest.Version + 1
	}
	published := *draft
	published.Status = model.TEMPLATE_PUBLISHED
	published.Version = version
	published.UpdatedAt = s.clock.Now()
	if err := s.storage.SavePublishedVersion(published); err != nil {
		return 0, err
	}
	s.cache.Delete(id)
	logger.Info("template published", zap.String("template", id), zap.Int("version", version))
	return version, nil
}

func (s *Store) GetPublished(id string) (*model.WorkflowTemplate, int, error) {
	if cached, ok := s.cache.Get(id); ok {
		t := cached.(*model.WorkflowTemplate)
		return t, t.Version, nil
	}
	t, err := s.storage.GetLatestPublished(id)
	if err != nil {
		return nil, 0, err
	}
	s.cache.SetDefault(id, t)
	return t, t.Version, nil
}

func (s *Store) GetVersion(id string, version int) (*model.WorkflowTemplate, error) {
	cacheKey := fmt.Sprintf("%s:%d", id, version)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*model.WorkflowTemplate), nil
	}
	t, err := s.storage.GetVersion(id, version)
	if err != nil {
		return nil, err
	}
	// version rows are immutable, cache without expiry
	s.cache.Set(cacheKey, t, gocache.NoExpiration)
	return t, nil
}

func (s *Store) ListTemplates(scope model.TemplateScope) ([]model.WorkflowTemplate, error) {
	return s.storage.ListTemplates(scope)
}
