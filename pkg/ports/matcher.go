package ports

import (
	"context"

	"github.com/aretw0/callflow/pkg/domain"
)

// UtteranceMatcher selects the response branch a customer utterance refers to.
// It returns at most one edge; ok is false when none applies.
type UtteranceMatcher interface {
	Match(ctx context.Context, edges []domain.FlowEdge, utterance string) (edge domain.FlowEdge, ok bool)
}
