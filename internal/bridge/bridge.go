// Package bridge is the safe Go side of the native string boundary. The C
// edge in cmd/mobile is a thin shim over Processor; everything that can
// fail does so here, where it can be logged and contained.
package bridge

import (
	"fmt"
	"unicode/utf8"

	"github.com/airmsg/core/internal/apperrors"
	"github.com/airmsg/core/internal/logging"
)

// Sentinel is the "no valid result" value. The C edge maps it to NULL.
const Sentinel = ""

// Transformer produces the boundary result for one input payload.
type Transformer interface {
	Transform(content string) (string, error)
}

// Processor validates boundary input, delegates to a Transformer, and
// guarantees that neither an error nor a panic escapes toward the host.
type Processor struct {
	transformer Transformer
}

// NewProcessor creates a Processor around the given transformer.
func NewProcessor(t Transformer) *Processor {
	return &Processor{transformer: t}
}

// Process handles one borrowed input string and returns an owned result.
// Invalid UTF-8 input, a transformer error, or a transformer panic all
// collapse to the Sentinel. Process never panics and never retains content.
func (p *Processor) Process(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("panic during message processing",
				apperrors.New(apperrors.ErrInternal, fmt.Sprint(r)))
			result = Sentinel
		}
	}()

	if !utf8.ValidString(content) {
		logging.Error("boundary input is not valid UTF-8",
			apperrors.New(apperrors.ErrInvalidUTF8, "rejecting input"))
		return Sentinel
	}

	out, err := p.transformer.Transform(content)
	if err != nil {
		logging.Error("message processing failed", err,
			map[string]interface{}{"code": string(apperrors.CodeOf(err))})
		return Sentinel
	}
	return out
}
