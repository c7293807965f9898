package container

import (
	"github.com/mohitkumar/praxis/config"
	"github.com/mohitkumar/praxis/persistence"
	"github.com/mohitkumar/praxis/persistence/inmem"
	rd "github.com/mohitkumar/praxis/persistence/redis"
	"github.com/mohitkumar/praxis/template"
	"github.com/mohitkumar/praxis/util"
)

type DIContainer struct {
	initialized       bool
	metadataStorage   persistence.MetadataStorage
	assignmentStorage persistence.AssignmentStorage
	scheduleStorage   persistence.ScheduleStorage
	followupStorage   persistence.FollowupStorage
	templateStore     *template.Store
	clock             util.Clock
}

func (d *DIContainer) setInitialized() {
	d.initialized = true
}

func NewDiContainer() *DIContainer {
	return &DIContainer{
		initialized: false,
	}
}

func (d *DIContainer) Init(conf config.Config) {
	defer d.setInitialized()

	switch conf.StorageType {
	case config.STORAGE_TYPE_REDIS:
		rdConf := rd.Config{
			Addrs:     conf.RedisConfig.Addrs,
			Namespace: conf.RedisConfig.Namespace,
		}
		d.metadataStorage = rd.NewRedisMetadataStorage(rdConf)
		d.assignmentStorage = rd.NewRedisAssignmentStorage(rdConf)
		d.scheduleStorage = rd.NewRedisScheduleStorage(rdConf)
		d.followupStorage = rd.NewRedisFollowupStorage(rdConf)
	default:
		d.metadataStorage = inmem.NewInmemMetadataStorage()
		d.assignmentStorage = inmem.NewInmemAssignmentStorage()
		d.scheduleStorage = inmem.NewInmemScheduleStorage()
		d.followupStorage = inmem.NewInmemFollowupStorage()
	}
	d.clock = util.NewSystemClock()
	d.templateStore = template.NewStore(d.metadataStorage, d.clock)
}

func (d *DIContainer) GetMetadataStorage() persistence.MetadataStorage {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.metadataStorage
}

func (d *DIContainer) GetAssignmentStorage() persistence.AssignmentStorage {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.assignmentStorage
}

func (d *DIContainer) GetScheduleStorage() persistence.ScheduleStorage {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.scheduleStorage
}

func (d *DIContainer) GetFollowupStorage() persistence.FollowupStorage {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.followupStorage
}

func (d *DIContainer) GetTemplateStore() *template.Store {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.templateStore
}

func (d *DIContainer) GetClock() util.Clock {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.clock
}
