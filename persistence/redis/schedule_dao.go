package redis

import (
	"context"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/util"
)

const SCHEDULE_KEY string = "SCHEDULE"
const SCHEDULE_DUE_KEY string = "SCHEDULE_DUE"
const FOLLOWUP_KEY string = "FOLLOWUP"
const FOLLOWUP_DUE_KEY string = "FOLLOWUP_DUE"
const FOLLOWUP_TASK_KEY string = "FOLLOWUP_TASK"

var _ persistence.ScheduleStorage = new(redisScheduleStorage)

type redisScheduleStorage struct {
	*baseDao
	encDec util.EncoderDecoder[model.RecurringSchedule]
}

func NewRedisScheduleStorage(conf Config) *redisScheduleStorage {
	return &redisScheduleStorage{
		baseDao: newBaseDao(conf),
		encDec:  util.NewJsonEncoderDecoder[model.RecurringSchedule](),
	}
}

// SaveSchedule keeps the due index (a sorted set scored by NextRunAt) in step
// with the schedule row.
func (rs *redisScheduleStorage) SaveSchedule(s model.RecurringSchedule) error {
	ctx := context.Background()
	hashKey := rs.getNamespaceKey(SCHEDULE_KEY)
	dueKey := rs.getNamespaceKey(SCHEDULE_DUE_KEY)
	data, err := rs.encDec.Encode(s)
	if err != nil {
		return err
	}
	_, err = rs.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, hashKey, s.Id, data)
		if s.IsActive {
			pipe.ZAdd(ctx, dueKey, rd.Z{Score: float64(s.NextRunAt.Unix()), Member: s.Id})
		} else {
			pipe.ZRem(ctx, dueKey, s.Id)
		}
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *redisScheduleStorage) GetSchedule(id string) (*model.RecurringSchedule, error) {
	ctx := context.Background()
	val, err := rs.redisClient.HGet(ctx, rs.getNamespaceKey(SCHEDULE_KEY), id).Result()
	if err == rd.Nil {
		return nil, model.NotFoundError{Kind: "schedule", Id: id}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rs.encDec.Decode([]byte(val))
}

func (rs *redisScheduleStorage) DeleteSchedule(id string) error {
	ctx := context.Background()
	_, err := rs.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HDel(ctx, rs.getNamespaceKey(SCHEDULE_KEY), id)
		pipe.ZRem(ctx, rs.getNamespaceKey(SCHEDULE_DUE_KEY), id)
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rs *redisScheduleStorage) ListDueSchedules(now time.Time) ([]model.RecurringSchedule, error) {
	ctx := context.Background()
	ids, err := rs.redisClient.ZRangeByScore(ctx, rs.getNamespaceKey(SCHEDULE_DUE_KEY), &rd.ZRangeBy{
		Min: "-inf",
		Max: formatScore(now),
	}).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var due []model.RecurringSchedule
	for _, id := range ids {
		s, err := rs.GetSchedule(id)
		if err != nil {
			continue
		}
		due = append(due, *s)
	}
	return due, nil
}

var _ persistence.FollowupStorage = new(redisFollowupStorage)

type redisFollowupStorage struct {
	*baseDao
	encDec util.EncoderDecoder[model.TaskFollowup]
}

func NewRedisFollowupStorage(conf Config) *redisFollowupStorage {
	return &redisFollowupStorage{
		baseDao: newBaseDao(conf),
		encDec:  util.NewJsonEncoderDecoder[model.TaskFollowup](),
	}
}

func (rf *redisFollowupStorage) SaveFollowup(f model.TaskFollowup) error {
	ctx := context.Background()
	data, err := rf.encDec.Encode(f)
	if err != nil {
		return err
	}
	_, err = rf.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, rf.getNamespaceKey(FOLLOWUP_KEY), f.Id, data)
		pipe.SAdd(ctx, rf.getNamespaceKey(FOLLOWUP_TASK_KEY, f.TaskId), f.Id)
		if f.State == model.FOLLOWUP_ACTIVE {
			pipe.ZAdd(ctx, rf.getNamespaceKey(FOLLOWUP_DUE_KEY), rd.Z{Score: float64(f.NextRunAt.Unix()), Member: f.Id})
		} else {
			pipe.ZRem(ctx, rf.getNamespaceKey(FOLLOWUP_DUE_KEY), f.Id)
		}
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFollowupStorage) GetFollowup(id string) (*model.TaskFollowup, error) {
	ctx := context.Background()
	val, err := rf.redisClient.HGet(ctx, rf.getNamespaceKey(FOLLOWUP_KEY), id).Result()
	if err == rd.Nil {
		return nil, model.NotFoundError{Kind: "followup", Id: id}
	}
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rf.encDec.Decode([]byte(val))
}

func (rf *redisFollowupStorage) ListDueFollowups(now time.Time) ([]model.TaskFollowup, error) {
	ctx := context.Background()
	ids, err := rf.redisClient.ZRangeByScore(ctx, rf.getNamespaceKey(FOLLOWUP_DUE_KEY), &rd.ZRangeBy{
		Min: "-inf",
		Max: formatScore(now),
	}).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var due []model.TaskFollowup
	for _, id := range ids {
		f, err := rf.GetFollowup(id)
		if err != nil {
			continue
		}
		due = append(due, *f)
	}
	return due, nil
}

func (rf *redisFollowupStorage) ListFollowupsByTask(taskId string) ([]model.TaskFollowup, error) {
	ctx := context.Background()
	ids, err := rf.redisClient.SMembers(ctx, rf.getNamespaceKey(FOLLOWUP_TASK_KEY, taskId)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var result []model.TaskFollowup
	for _, id := range ids {
		f, err := rf.GetFollowup(id)
		if err != nil {
			continue
		}
		result = append(result, *f)
	}
	return result, nil
}
