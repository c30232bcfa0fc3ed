// Package downloader provides the download client registry and the grabber
// that hands accepted candidates to a client.
package downloader

import (
	"github.com/slipstream/gamearr/internal/downloader/types"
)

// Re-export types for convenience.
// This allows external packages to use downloader.Client instead of types.Client.

type (
	ClientType   = types.ClientType
	ClientConfig = types.ClientConfig
	Client       = types.Client
	Item         = types.Item
	Status       = types.Status
)

// Re-export constants.
const (
	ClientTypeMock = types.ClientTypeMock

	StatusQueued      = types.StatusQueued
	StatusDownloading = types.StatusDownloading
	StatusPaused      = types.StatusPaused
	StatusCompleted   = types.StatusCompleted
	StatusSeeding     = types.StatusSeeding
	StatusWarning     = types.StatusWarning
	StatusError       = types.StatusError
	StatusUnknown     = types.StatusUnknown
)

// Re-export errors.
var (
	ErrNotImplemented = types.ErrNotImplemented
	ErrNotConnected   = types.ErrNotConnected
	ErrAuthFailed     = types.ErrAuthFailed
	ErrNotFound       = types.ErrNotFound
)
