package redis

import (
	"context"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

const ASSIGNMENT_KEY string = "ASSIGNMENT"
const NODE_INDEX_KEY string = "NODE_INDEX"
const DEDUP_KEY string = "ASSIGNMENT_DEDUP"

var _ persistence.AssignmentStorage = new(redisAssignmentStorage)

type redisAssignmentStorage struct {
	*baseDao
	encDec util.EncoderDecoder[model.Assignment]
}

func NewRedisAssignmentStorage(conf Config) *redisAssignmentStorage {
	return &redisAssignmentStorage{
		baseDao: newBaseDao(conf),
		encDec:  util.NewJsonEncoderDecoder[model.Assignment](),
	}
}

// CreateAssignmentTree writes the assignment, its node index entries and the
// dedup binding in a single transaction guarded by a watch on the dedup key,
// so a retried scheduler tick can never produce a second tree.
func (ra *redisAssignmentStorage) CreateAssignmentTree(a *model.Assignment, dedupKey string) (string, error) {
	ctx := context.Background()
	assignmentKey := ra.getNamespaceKey(ASSIGNMENT_KEY, a.Id)
	indexKey := ra.getNamespaceKey(NODE_INDEX_KEY)
	dedupHashKey := ra.getNamespaceKey(DEDUP_KEY)

	data, err := ra.encDec.Encode(*a)
	if err != nil {
		return "", err
	}
	resultId := a.Id
	txn := func(tx *rd.Tx) error {
		if dedupKey != "" {
			existing, err := tx.HGet(ctx, dedupHashKey, dedupKey).Result()
			if err != nil && err != rd.Nil {
				return err
			}
			if err == nil {
				resultId = existing
				return nil
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Set(ctx, assignmentKey, data, 0)
			for _, stage := range a.Stages {
				pipe.HSet(ctx, indexKey, stage.Id, a.Id)
				for _, step := range stage.Steps {
					pipe.HSet(ctx, indexKey, step.Id, a.Id)
					for _, task := range step.Tasks {
						pipe.HSet(ctx, indexKey, task.Id, a.Id)
					}
				}
			}
			if dedupKey != "" {
				pipe.HSet(ctx, dedupHashKey, dedupKey, a.Id)
			}
			return nil
		})
		return err
	}
	if err := ra.redisClient.Watch(ctx, txn, dedupHashKey); err != nil {
		logger.Error("error creating assignment tree", zap.String("assignment", a.Id), zap.Error(err))
		return "", persistence.StorageLayerError{Message: err.Error()}
	}
	return resultId, nil
}

func (ra *redisAssignmentStorage) GetAssignment(id string) (*model.Assignment, error) {
	key := ra.getNamespaceKey(ASSIGNMENT_KEY, id)
	ctx := context.Background()
	val, err := ra.redisClient.Get(ctx, key).Result()
	if err == rd.Nil {
		return nil, model.NotFoundError{Kind: "assignment", Id: id}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ra.encDec.Decode([]byte(val))
}

func (ra *redisAssignmentStorage) GetAssignmentByNode(nodeId string) (*model.Assignment, error) {
	indexKey := ra.getNamespaceKey(NODE_INDEX_KEY)
	ctx := context.Background()
	assignmentId, err := ra.redisClient.HGet(ctx, indexKey, nodeId).Result()
	if err == rd.Nil {
		return nil, model.NotFoundError{Kind: "node", Id: nodeId}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ra.GetAssignment(assignmentId)
}

// SaveAssignment applies the optimistic token: the stored version must still
// equal expectedVersion inside the watch or the caller gets a conflict.
func (ra *redisAssignmentStorage) SaveAssignment(a *model.Assignment, expectedVersion int64) error {
	ctx := context.Background()
	key := ra.getNamespaceKey(ASSIGNMENT_KEY, a.Id)
	txn := func(tx *rd.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err == rd.Nil {
			return model.NotFoundError{Kind: "assignment", Id: a.Id}
		}
		if err != nil {
			return err
		}
		stored, err := ra.encDec.Decode([]byte(val))
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return model.ConcurrencyConflict{AssignmentId: a.Id}
		}
		a.Version = expectedVersion + 1
		data, err := ra.encDec.Encode(*a)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}
	err := ra.redisClient.Watch(ctx, txn, key)
	if err == rd.TxFailedErr {
		return model.ConcurrencyConflict{AssignmentId: a.Id}
	}
	return err
}
