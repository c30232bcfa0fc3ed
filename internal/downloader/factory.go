package downloader

import (
	"errors"
	"fmt"

	"github.com/slipstream/gamearr/internal/downloader/mock"
)

// ErrUnsupportedClient is returned for client types without an adapter.
var ErrUnsupportedClient = errors.New("unsupported download client")

// NewClient creates a download client of the configured type.
func NewClient(cfg *ClientConfig) (Client, error) {
	switch cfg.Type {
	case ClientTypeMock:
		return mock.NewFromConfig(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown client type %q", ErrUnsupportedClient, cfg.Type)
	}
}
