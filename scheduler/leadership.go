package scheduler

// Leadership gates the polling loops so only one node in a cluster fires
// schedules and followups.
type Leadership interface {
	IsLeader() bool
}

type StaticLeadership struct {
	leader bool
}

var _ Leadership = new(StaticLeadership)

// NewStaticLeadership is used for single node deployments and tests.
func NewStaticLeadership(leader bool) *StaticLeadership {
	return &StaticLeadership{leader: leader}
}

func (l *StaticLeadership) IsLeader() bool {
	return l.leader
}
