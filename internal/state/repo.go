// Package state persists per-workspace values under fixed keys.
package state

import (
	"context"
	"errors"
)

// Key names one persisted workspace value.
type Key string

const (
	KeyTranscript       Key = "transcript"
	KeyRecommendations  Key = "recommendations"
	KeyRules            Key = "rules"
	KeySubmittedRecords Key = "submitted_records"
)

// Keys lists every persisted key.
var Keys = []Key{KeyTranscript, KeyRecommendations, KeyRules, KeySubmittedRecords}

var (
	ErrNotFound   = errors.New("state not found")
	ErrUnknownKey = errors.New("unknown state key")
)

// Repo stores raw JSON values per workspace and key.
type Repo interface {
	Get(ctx context.Context, workspaceID string, key Key) ([]byte, error)
	Put(ctx context.Context, workspaceID string, key Key, value []byte) error
}

// Valid reports whether k is one of Keys.
func (k Key) Valid() bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}
