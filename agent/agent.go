package agent

import (
	"sync"
	"time"

	"github.com/mohitkumar/praxis/action"
	"github.com/mohitkumar/praxis/analytics"
	"github.com/mohitkumar/praxis/assignment"
	"github.com/mohitkumar/praxis/config"
	"github.com/mohitkumar/praxis/container"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/rest"
	"github.com/mohitkumar/praxis/scheduler"
	"github.com/mohitkumar/praxis/service"
)

type Agent struct {
	Config           config.Config
	container        *container.DIContainer
	engine           *assignment.ProgressionEngine
	instantiator     *assignment.Instantiator
	dispatcher       *action.Dispatcher
	correlations     *action.CorrelationRegistry
	notifier         action.Notifier
	leadership       scheduler.Leadership
	membership       *scheduler.Membership
	scheduler        *scheduler.Scheduler
	followupRunner   *scheduler.FollowupRunner
	executionService *service.ExecutionService
	scheduleService  *service.ScheduleService
	httpServer       *rest.Server
	shutdown         bool
	shutdownLock     sync.Mutex
	wg               sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config: conf,
	}
	setup := []func() error{
		a.setupLogger,
		a.setupContainer,
		a.setupAnalytics,
		a.setupEngine,
		a.setupDispatcher,
		a.setupLeadership,
		a.setupServices,
		a.setupScheduler,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	return logger.InitLogger(a.Config.LogLevel)
}

func (a *Agent) setupContainer() error {
	a.container = container.NewDiContainer()
	a.container.Init(a.Config)
	return nil
}

func (a *Agent) setupAnalytics() error {
	collectorType := analytics.NOOP_DATA_COLLECTOR
	if a.Config.AuditLogFile != "" {
		collectorType = analytics.LOG_FILE_DATA_COLLECTOR
	}
	return analytics.InitDataCollector(analytics.DataCollectorConfig{
		FileName:      a.Config.AuditLogFile,
		CollectorType: collectorType,
	})
}

func (a *Agent) setupEngine() error {
	a.engine = assignment.NewProgressionEngine(a.container.GetAssignmentStorage(), a.container.GetClock())
	a.instantiator = assignment.NewInstantiator(a.container.GetTemplateStore(), a.container.GetAssignmentStorage(), a.container.GetClock())
	return nil
}

func (a *Agent) setupDispatcher() error {
	ttl := time.Duration(a.Config.CorrelationTtlHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	a.correlations = action.NewCorrelationRegistry(ttl)
	a.notifier = action.NewLogNotifier()
	capacity := a.Config.ActionExecutorCapacity
	if capacity <= 0 {
		capacity = 512
	}
	a.dispatcher = action.NewDispatcher(a.container.GetAssignmentStorage(), &a.wg, capacity)
	a.dispatcher.Register(action.NewNotifyExecutor(a.notifier))
	a.dispatcher.Register(action.NewAgentExecutor(action.NewWebhookAgentInvoker(a.Config.AgentEndpoint), a.correlations))
	a.dispatcher.Register(action.NewEndpointExecutor())
	a.dispatcher.Register(action.NewVisibilityExecutor(a.container.GetAssignmentStorage()))
	a.engine.SetTransitionSink(a.dispatcher)
	a.dispatcher.Start()
	return nil
}

func (a *Agent) setupLeadership() error {
	if !a.Config.ClusterConfig.Enabled {
		a.leadership = scheduler.NewStaticLeadership(true)
		return nil
	}
	m, err := scheduler.NewMembership(scheduler.MembershipConfig{
		NodeName:       a.Config.ClusterConfig.NodeName,
		BindAddr:       a.Config.ClusterConfig.BindAddr,
		StartJoinAddrs: a.Config.ClusterConfig.StartJoinAddrs,
	})
	if err != nil {
		return err
	}
	a.membership = m
	a.leadership = m
	return nil
}

func (a *Agent) setupServices() error {
	a.executionService = service.NewExecutionService(a.instantiator, a.engine, a.correlations, a.container.GetFollowupStorage(), a.container.GetClock())
	a.scheduleService = service.NewScheduleService(a.container.GetScheduleStorage(), a.container.GetClock())
	return nil
}

func (a *Agent) setupScheduler() error {
	schedulePoll := time.Duration(a.Config.SchedulePollSeconds) * time.Second
	if schedulePoll <= 0 {
		schedulePoll = 30 * time.Second
	}
	followupPoll := time.Duration(a.Config.FollowupPollSeconds) * time.Second
	if followupPoll <= 0 {
		followupPoll = time.Minute
	}
	a.scheduler = scheduler.NewScheduler(a.container.GetScheduleStorage(), a.instantiator, a.leadership, a.container.GetClock(), schedulePoll, &a.wg)
	a.followupRunner = scheduler.NewFollowupRunner(a.container.GetFollowupStorage(), a.container.GetAssignmentStorage(), a.notifier, a.leadership, a.container.GetClock(), followupPoll, &a.wg)
	a.scheduler.Start()
	a.followupRunner.Start()
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.container.GetTemplateStore(), a.executionService, a.scheduleService)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		func() error {
			a.scheduler.Stop()
			return nil
		},
		func() error {
			a.followupRunner.Stop()
			return nil
		},
		func() error {
			a.dispatcher.Stop()
			return nil
		},
		a.httpServer.Stop,
	}
	if a.membership != nil {
		shutdown = append(shutdown, a.membership.Leave)
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	a.wg.Wait()
	return nil
}
