package background

import (
	"encoding/json"

	"github.com/airmsg/core/internal/apperrors"
)

// Transformer adapts the pipeline to the string-in, string-out contract of
// the native boundary.
type Transformer struct {
	runner *Runner
}

// NewTransformer creates a Transformer backed by the production pipeline.
func NewTransformer() *Transformer {
	return &Transformer{runner: NewRunner()}
}

// NewTransformerWithRunner creates a Transformer with a custom runner.
func NewTransformerWithRunner(runner *Runner) *Transformer {
	return &Transformer{runner: runner}
}

// Transform runs one background execution and serializes the resulting
// batch. An error means the host gets the sentinel instead of a result.
func (t *Transformer) Transform(content string) (string, error) {
	batch, err := t.runner.Run(content)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(batch)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternal, "failed to serialize notification batch", err)
	}
	return string(data), nil
}
