package inmem

import (
	"sync"

	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
)

var _ persistence.AssignmentStorage = new(InmemAssignmentStorage)

type InmemAssignmentStorage struct {
	mu          sync.RWMutex
	assignments map[string][]byte
	nodeIndex   map[string]string
	dedup       map[string]string
	encDec      util.EncoderDecoder[model.Assignment]

	// FailNextCreate makes the next CreateAssignmentTree fail without
	// writing anything, for clone atomicity tests.
	FailNextCreate error
}

func NewInmemAssignmentStorage() *InmemAssignmentStorage {
	return &InmemAssignmentStorage{
		assignments: make(map[string][]byte),
		nodeIndex:   make(map[string]string),
		dedup:       make(map[string]string),
		encDec:      util.NewJsonEncoderDecoder[model.Assignment](),
	}
}

func (s *InmemAssignmentStorage) CreateAssignmentTree(a *model.Assignment, dedupKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dedupKey != "" {
		if existing, ok := s.dedup[dedupKey]; ok {
			return existing, nil
		}
	}
	if s.FailNextCreate != nil {
		err := s.FailNextCreate
		s.FailNextCreate = nil
		return "", err
	}
	data, err := s.encDec.Encode(*a)
	if err != nil {
		return "", err
	}
	s.assignments[a.Id] = data
	for _, nodeId := range nodeIds(a) {
		s.nodeIndex[nodeId] = a.Id
	}
	if dedupKey != "" {
		s.dedup[dedupKey] = a.Id
	}
	return a.Id, nil
}

func (s *InmemAssignmentStorage) GetAssignment(id string) (*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.assignments[id]
	if !ok {
		return nil, model.NotFoundError{Kind: "assignment", Id: id}
	}
	return s.encDec.Decode(data)
}

func (s *InmemAssignmentStorage) GetAssignmentByNode(nodeId string) (*model.Assignment, error) {
	s.mu.RLock()
	assignmentId, ok := s.nodeIndex[nodeId]
	s.mu.RUnlock()
	if !ok {
		return nil, model.NotFoundError{Kind: "node", Id: nodeId}
	}
	return s.GetAssignment(assignmentId)
}

func (s *InmemAssignmentStorage) SaveAssignment(a *model.Assignment, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.assignments[a.Id]
	if !ok {
		return model.NotFoundError{Kind: "assignment", Id: a.Id}
	}
	stored, err := s.encDec.Decode(data)
	if err != nil {
		return err
	}
	if stored.Version != expectedVersion {
		return model.ConcurrencyConflict{AssignmentId: a.Id}
	}
	a.Version = expectedVersion + 1
	next, err := s.encDec.Encode(*a)
	if err != nil {
		return err
	}
	s.assignments[a.Id] = next
	return nil
}

// Count reports stored assignment rows, used by clone atomicity tests.
func (s *InmemAssignmentStorage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assignments)
}

func nodeIds(a *model.Assignment) []string {
	var ids []string
	for _, stage := range a.Stages {
		ids = append(ids, stage.Id)
		for _, step := range stage.Steps {
			ids = append(ids, step.Id)
			for _, task := range step.Tasks {
				ids = append(ids, task.Id)
			}
		}
	}
	return ids
}
