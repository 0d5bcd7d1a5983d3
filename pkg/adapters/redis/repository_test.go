package redis_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/callflow/pkg/adapters/redis"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRepository_Contract(t *testing.T) {
	_, client := newClient(t)
	tests.RunFlowRepositoryContract(t, redis.NewRepository(client))
}

func TestRedisRepository_ListOrder(t *testing.T) {
	_, client := newClient(t)
	repo := redis.NewRepository(client, redis.WithFlowPrefix("test:flow:"))
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, repo.CreateFlow(ctx, domain.NewFlow(id, "Flow "+id, "", "root-"+id)))
	}
	flows, err := repo.ListFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{flows[0].ID, flows[1].ID, flows[2].ID})
}

func TestRedisRepository_ConcurrentNodeWrites(t *testing.T) {
	_, client := newClient(t)
	repo := redis.NewRepository(client)
	ctx := context.Background()
	require.NoError(t, repo.CreateFlow(ctx, domain.NewFlow("f1", "Flow", "", "root")))

	var wg sync.WaitGroup
	for _, id := range []string{"n1", "n2", "n3", "n4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, repo.CreateNode(ctx, "f1", domain.FlowNode{ID: id, Type: domain.NodeTypeQuestion}))
		}(id)
	}
	wg.Wait()

	flow, err := repo.LoadFlow(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, flow.Nodes, 5, "optimistic transactions must not lose writes")
}
