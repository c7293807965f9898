package redis

import (
	"context"
	"strconv"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
	"go.uber.org/zap"
)

const TEMPLATE_DRAFT_KEY string = "TEMPLATE_DRAFT"
const TEMPLATE_VERSION_KEY string = "TEMPLATE_VERSION"
const TEMPLATE_LATEST_KEY string = "TEMPLATE_LATEST"

var _ persistence.MetadataStorage = new(redisMetadataStorage)

type redisMetadataStorage struct {
	*baseDao
	encDec util.EncoderDecoder[model.WorkflowTemplate]
}

func NewRedisMetadataStorage(conf Config) *redisMetadataStorage {
	return &redisMetadataStorage{
		baseDao: newBaseDao(conf),
		encDec:  util.NewJsonEncoderDecoder[model.WorkflowTemplate](),
	}
}

func (rm *redisMetadataStorage) SaveDraft(t model.WorkflowTemplate) error {
	key := rm.getNamespaceKey(TEMPLATE_DRAFT_KEY, t.Id)
	ctx := context.Background()
	data, err := rm.encDec.Encode(t)
	if err != nil {
		return err
	}
	if err := rm.redisClient.Set(ctx, key, data, 0).Err(); err != nil {
		logger.Error("error saving template draft", zap.String("template", t.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rm *redisMetadataStorage) GetDraft(id string) (*model.WorkflowTemplate, error) {
	key := rm.getNamespaceKey(TEMPLATE_DRAFT_KEY, id)
	ctx := context.Background()
	val, err := rm.redisClient.Get(ctx, key).Result()
	if err == rd.Nil {
		return nil, model.NotFoundError{Kind: "template draft", Id: id}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rm.encDec.Decode([]byte(val))
}

// SavePublishedVersion writes the immutable version row and bumps the latest
// pointer in one transaction.
func (rm *redisMetadataStorage) SavePublishedVersion(t model.WorkflowTemplate) error {
	versionKey := rm.getNamespaceKey(TEMPLATE_VERSION_KEY, t.Id, strconv.Itoa(t.Version))
	latestKey := rm.getNamespaceKey(TEMPLATE_LATEST_KEY)
	ctx := context.Background()
	data, err := rm.encDec.Encode(t)
	if err != nil {
		return err
	}
	_, err = rm.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.Set(ctx, versionKey, data, 0)
		pipe.HSet(ctx, latestKey, t.Id, t.Version)
		return nil
	})
	if err != nil {
		logger.Error("error publishing template version", zap.String("template", t.Id), zap.Int("version", t.Version), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rm *redisMetadataStorage) GetLatestPublished(id string) (*model.WorkflowTemplate, error) {
	latestKey := rm.getNamespaceKey(TEMPLATE_LATEST_KEY)
	ctx := context.Background()
	val, err := rm.redisClient.HGet(ctx, latestKey, id).Result()
	if err == rd.Nil {
		return nil, model.NotFoundError{Kind: "published template", Id: id}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	version, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return rm.GetVersion(id, version)
}

func (rm *redisMetadataStorage) GetVersion(id string, version int) (*model.WorkflowTemplate, error) {
	key := rm.getNamespaceKey(TEMPLATE_VERSION_KEY, id, strconv.Itoa(version))
	ctx := context.Background()
	val, err := rm.redisClient.Get(ctx, key).Result()
	if err == rd.Nil {
		return nil, model.NotFoundError{Kind: "template version", Id: id}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rm.encDec.Decode([]byte(val))
}

func (rm *redisMetadataStorage) ListTemplates(scope model.TemplateScope) ([]model.WorkflowTemplate, error) {
	latestKey := rm.getNamespaceKey(TEMPLATE_LATEST_KEY)
	ctx := context.Background()
	entries, err := rm.redisClient.HGetAll(ctx, latestKey).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var result []model.WorkflowTemplate
	for id, val := range entries {
		version, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		t, err := rm.GetVersion(id, version)
		if err != nil {
			return nil, err
		}
		if scope == "" || t.Scope == scope {
			result = append(result, *t)
		}
	}
	return result, nil
}
