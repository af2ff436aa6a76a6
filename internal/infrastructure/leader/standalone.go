package leader

import "context"

// Standalone treats the single running instance as the leader. It is used
// when leader election is disabled.
type Standalone struct{}

func NewStandalone() *Standalone {
	return &Standalone{}
}

func (Standalone) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return true, nil
}

func (Standalone) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return true, nil
}

func (Standalone) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}
