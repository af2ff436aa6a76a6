package leader

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-platform/internal/domain"
	"auction-platform/pkg/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

var (
	_ domain.LeaderElection = (*RedisLeaderElection)(nil)
	_ domain.LeaderElection = Standalone{}
)

const testTTL = 30 * time.Second

func TestRedisLeaderElection_BecomeLeader(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(mock redismock.ClientMock)
		expected  bool
		expectErr bool
	}{
		{
			name: "acquires_free_lock",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(DefaultKey, "node-a", testTTL).SetVal(true)
			},
			expected: true,
		},
		{
			name: "already_holding_lock",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(DefaultKey, "node-a", testTTL).SetVal(false)
				mock.ExpectGet(DefaultKey).SetVal("node-a")
			},
			expected: true,
		},
		{
			name: "held_by_another_instance",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(DefaultKey, "node-a", testTTL).SetVal(false)
				mock.ExpectGet(DefaultKey).SetVal("node-b")
			},
			expected: false,
		},
		{
			name: "redis_unavailable",
			mockSetup: func(mock redismock.ClientMock) {
				mock.ExpectSetNX(DefaultKey, "node-a", testTTL).SetErr(errors.New("connection refused"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			election := NewRedisLeaderElection(client, testTTL, logger.NewNop())
			tt.mockSetup(mock)

			ok, err := election.BecomeLeader(context.Background(), "node-a")
			election.stopHeartbeat()

			if tt.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.expected, ok)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisLeaderElection_IsLeader(t *testing.T) {
	client, mock := redismock.NewClientMock()
	election := NewRedisLeaderElection(client, testTTL, logger.NewNop())
	ctx := context.Background()

	mock.ExpectGet(DefaultKey).RedisNil()
	mock.ExpectGet(DefaultKey).SetVal("node-a")

	ok, err := election.IsLeader(ctx, "node-a")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = election.IsLeader(ctx, "node-a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLeaderElection_ExtendAndRelease(t *testing.T) {
	client, mock := redismock.NewClientMock()
	election := NewRedisLeaderElection(client, testTTL, logger.NewNop())
	ctx := context.Background()

	mock.ExpectEval(extendScript, []string{DefaultKey}, "node-a", 30).SetVal(int64(1))
	mock.ExpectEval(extendScript, []string{DefaultKey}, "node-a", 30).SetVal(int64(0))
	mock.ExpectEval(releaseScript, []string{DefaultKey}, "node-a").SetVal(int64(1))

	held, err := election.extend(ctx, "node-a")
	require.NoError(t, err)
	require.True(t, held)

	held, err = election.extend(ctx, "node-a")
	require.NoError(t, err)
	require.False(t, held)

	require.NoError(t, election.ReleaseLeadership(ctx, "node-a"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStandalone(t *testing.T) {
	s := NewStandalone()
	ctx := context.Background()

	ok, err := s.BecomeLeader(ctx, "any")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.IsLeader(ctx, "any")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.ReleaseLeadership(ctx, "any"))
}
