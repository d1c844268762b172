package classification

import (
	"context"

	"github.com/lenderlens/lenderlens/internal/domain/classification"
)

// ContentExtractor fetches the visible text of a website. Implementations
// must honor context cancellation; the executor bounds each call with the
// extraction stage timeout.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// InferenceRequest is the input to one classification inference call.
type InferenceRequest struct {
	SystemPrompt string
	Model        string
	Content      string
}

// InferenceClient asks the inference service for a structured verdict.
// Implementations must request machine-parseable output and honor context
// cancellation; the executor bounds each call with the inference stage timeout.
type InferenceClient interface {
	Classify(ctx context.Context, req InferenceRequest) (classification.Verdict, error)
}
