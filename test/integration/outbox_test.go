//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/attaboy/muteregistry/internal/domain"
	"github.com/attaboy/muteregistry/internal/infra"
	"github.com/attaboy/muteregistry/internal/repository"
	"github.com/attaboy/muteregistry/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMessage struct {
	topic   string
	key     string
	headers map[string]string
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []capturedMessage
}

func (p *capturePublisher) Publish(_ context.Context, topic string, key, _ []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, capturedMessage{topic: topic, key: string(key), headers: headers})
	return nil
}

func TestOutboxPoller_RelaysInOrder(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour)
	_, err := env.Registry.CreateRecord(ctx, domain.IdentifierAccountName, "relayed", &exp)
	require.NoError(t, err)
	_, err = env.Registry.RemoveRecord(ctx, domain.IdentifierAccountName, "relayed")
	require.NoError(t, err)

	repo := repository.NewOutboxRepository()
	pending, oldest, err := repo.Backlog(ctx, env.Pool)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)
	require.NotNil(t, oldest)

	pub := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	poller := infra.NewOutboxPoller(env.Pool, repository.NewOutboxRepository(), pub, time.Second, 10, logger)

	n, err := poller.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, string(domain.EventRestrictionAdded), pub.msgs[0].topic)
	assert.Equal(t, string(domain.EventRestrictionRemoved), pub.msgs[1].topic)
	assert.Equal(t, "relayed", pub.msgs[0].key)
	assert.Equal(t, "account_name", pub.msgs[0].headers["identifier_type"])

	n, err = poller.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published rows are not relayed twice")

	pending, oldest, err = repo.Backlog(ctx, env.Pool)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Nil(t, oldest)
}
