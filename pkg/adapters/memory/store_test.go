package memory_test

import (
	"testing"

	"github.com/aretw0/callflow/pkg/adapters/memory"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports"
	"github.com/aretw0/callflow/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

func TestMemoryRepository_Contract(t *testing.T) {
	tests.RunFlowRepositoryContract(t, memory.NewRepository())
}

func TestMemoryRepository_Loader(t *testing.T) {
	a := domain.NewFlow("a", "First", "", "ra")
	b := domain.NewFlow("b", "Second", "", "rb")
	tests.RunFlowLoaderContract(t, memory.NewRepository(a, b), map[string]domain.Flow{"a": a, "b": b})
}
