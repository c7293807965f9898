package config

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig            RedisStorageConfig
	ClusterConfig          ClusterConfig
	HttpPort               int
	StorageType            StorageType
	ActionExecutorCapacity int
	SchedulePollSeconds    int
	FollowupPollSeconds    int
	CorrelationTtlHours    int
	AgentEndpoint          string
	AuditLogFile           string
	LogLevel               string
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

// ClusterConfig is only read when Enabled is set; single node deployments
// run with static leadership.
type ClusterConfig struct {
	Enabled        bool
	NodeName       string
	BindAddr       string
	StartJoinAddrs []string
}
