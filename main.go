package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/praxis/agent"
	"github.com/mohitkumar/praxis/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "praxis", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage")
	cmd.Flags().Int("executor-capacity", 512, "action executor capacity")
	cmd.Flags().Int("schedule-poll-seconds", 30, "poll interval for recurring schedules")
	cmd.Flags().Int("followup-poll-seconds", 60, "poll interval for task followups")
	cmd.Flags().Int("correlation-ttl-hours", 24, "time to live of pending agent correlations")
	cmd.Flags().String("agent-endpoint", "", "http endpoint agents are invoked on")
	cmd.Flags().String("audit-log-file", "", "file for the audit trail, empty disables it")
	cmd.Flags().String("log-level", "info", "log level")
	cmd.Flags().Bool("cluster-enabled", false, "join a serf cluster for leader gated scheduling")
	cmd.Flags().String("node-name", "", "unique node name within the cluster")
	cmd.Flags().String("bind-addr", "127.0.0.1:8401", "serf bind address")
	cmd.Flags().String("join-addrs", "", "comma separated serf addresses to join")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.ActionExecutorCapacity = viper.GetInt("executor-capacity")
	c.cfg.SchedulePollSeconds = viper.GetInt("schedule-poll-seconds")
	c.cfg.FollowupPollSeconds = viper.GetInt("followup-poll-seconds")
	c.cfg.CorrelationTtlHours = viper.GetInt("correlation-ttl-hours")
	c.cfg.AgentEndpoint = viper.GetString("agent-endpoint")
	c.cfg.AuditLogFile = viper.GetString("audit-log-file")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.ClusterConfig.Enabled = viper.GetBool("cluster-enabled")
	c.cfg.ClusterConfig.NodeName = viper.GetString("node-name")
	c.cfg.ClusterConfig.BindAddr = viper.GetString("bind-addr")
	if joins := viper.GetString("join-addrs"); joins != "" {
		c.cfg.ClusterConfig.StartJoinAddrs = strings.Split(joins, ",")
	}
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "praxis",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
