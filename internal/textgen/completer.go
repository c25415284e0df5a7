// Package textgen writes product copy with a hosted language model.
//
// Generation is advisory: nothing here touches a RecordStore. Callers take
// the generated text or draft and apply it through Update or Create.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/JonMunkholm/shopsheet/internal/core"
)

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Completer is a language model backend. Errors wrap core.ErrQuotaExceeded,
// core.ErrAuth or core.ErrTimeout where the backend reports those.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrNotConfigured is returned when no backend credentials were given.
var ErrNotConfigured = errors.New("text generation is not configured")

// Disabled is the Completer used when no API key is set.
type Disabled struct{}

func (Disabled) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}

// transportError classifies a failed round trip.
func transportError(backend string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%s: %w: %w", backend, core.ErrTimeout, err)
	}
	return fmt.Errorf("%s: request failed: %w", backend, err)
}
