package scheduler

import (
	"net"
	"sort"

	"github.com/hashicorp/serf/serf"
	"github.com/mohitkumar/praxis/logger"
	"go.uber.org/zap"
)

type MembershipConfig struct {
	NodeName       string
	BindAddr       string
	Tags           map[string]string
	StartJoinAddrs []string
}

// Membership joins the node into a serf gossip ring and derives leadership
// from it: the alive member with the lowest name is the leader. Every node
// arrives at the same answer without coordination.
type Membership struct {
	MembershipConfig
	serf   *serf.Serf
	events chan serf.Event
}

var _ Leadership = new(Membership)

func NewMembership(config MembershipConfig) (*Membership, error) {
	m := &Membership{
		MembershipConfig: config,
	}
	if err := m.setupSerf(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Membership) setupSerf() (err error) {
	addr, err := net.ResolveTCPAddr("tcp", m.BindAddr)
	if err != nil {
		return err
	}
	config := serf.DefaultConfig()
	config.Init()
	config.MemberlistConfig.BindAddr = addr.IP.String()
	config.MemberlistConfig.BindPort = addr.Port
	m.events = make(chan serf.Event)
	config.EventCh = m.events
	config.Tags = m.Tags
	config.NodeName = m.MembershipConfig.NodeName
	m.serf, err = serf.Create(config)
	if err != nil {
		return err
	}
	go m.eventHandler()
	if m.StartJoinAddrs != nil {
		_, err = m.serf.Join(m.StartJoinAddrs, true)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Membership) eventHandler() {
	for e := range m.events {
		switch e.EventType() {
		case serf.EventMemberJoin:
			for _, member := range e.(serf.MemberEvent).Members {
				if m.isLocal(member) {
					continue
				}
				logger.Info("member joined", zap.String("name", member.Name))
			}
		case serf.EventMemberLeave, serf.EventMemberFailed:
			for _, member := range e.(serf.MemberEvent).Members {
				if m.isLocal(member) {
					continue
				}
				logger.Info("member left", zap.String("name", member.Name))
			}
		}
	}
}

func (m *Membership) isLocal(member serf.Member) bool {
	return m.serf.LocalMember().Name == member.Name
}

func (m *Membership) IsLeader() bool {
	members := m.serf.Members()
	alive := make([]string, 0, len(members))
	for _, member := range members {
		if member.Status == serf.StatusAlive {
			alive = append(alive, member.Name)
		}
	}
	if len(alive) == 0 {
		return false
	}
	sort.Strings(alive)
	return alive[0] == m.serf.LocalMember().Name
}

func (m *Membership) Leave() error {
	return m.serf.Leave()
}
