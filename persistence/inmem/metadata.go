package inmem

import (
	"fmt"
	"sync"

	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
)

var _ persistence.MetadataStorage = new(InmemMetadataStorage)

type InmemMetadataStorage struct {
	mu       sync.RWMutex
	drafts   map[string][]byte
	versions map[string][]byte
	latest   map[string]int
	encDec   util.EncoderDecoder[model.WorkflowTemplate]
}

func NewInmemMetadataStorage() *InmemMetadataStorage {
	return &InmemMetadataStorage{
		drafts:   make(map[string][]byte),
		versions: make(map[string][]byte),
		latest:   make(map[string]int),
		encDec:   util.NewJsonEncoderDecoder[model.WorkflowTemplate](),
	}
}

func versionKey(id string, version int) string {
	return fmt.Sprintf("%s:%d", id, version)
}

func (s *InmemMetadataStorage) SaveDraft(t model.WorkflowTemplate) error {
	data, err := s.encDec.Encode(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[t.Id] = data
	return nil
}

func (s *InmemMetadataStorage) GetDraft(id string) (*model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.drafts[id]
	if !ok {
		return nil, model.NotFoundError{Kind: "template draft", Id: id}
	}
	return s.encDec.Decode(data)
}

func (s *InmemMetadataStorage) SavePublishedVersion(t model.WorkflowTemplate) error {
	data, err := s.encDec.Encode(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[versionKey(t.Id, t.Version)] = data
	if t.Version > s.latest[t.Id] {
		s.latest[t.Id] = t.Version
	}
	return nil
}

func (s *InmemMetadataStorage) GetLatestPublished(id string) (*model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.latest[id]
	if !ok {
		return nil, model.NotFoundError{Kind: "published template", Id: id}
	}
	return s.encDec.Decode(s.versions[versionKey(id, version)])
}

func (s *InmemMetadataStorage) GetVersion(id string, version int) (*model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.versions[versionKey(id, version)]
	if !ok {
		return nil, model.NotFoundError{Kind: "template version", Id: versionKey(id, version)}
	}
	return s.encDec.Decode(data)
}

func (s *InmemMetadataStorage) ListTemplates(scope model.TemplateScope) ([]model.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []model.WorkflowTemplate
	for id, version := range s.latest {
		t, err := s.encDec.Decode(s.versions[versionKey(id, version)])
		if err != nil {
			return nil, err
		}
		if scope == "" || t.Scope == scope {
			result = append(result, *t)
		}
	}
	return result, nil
}
