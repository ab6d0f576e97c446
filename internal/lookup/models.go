// Package lookup fetches aircraft details (registration, type, operator)
// for transponder addresses from an online provider, in batches, off the
// message hot path.
package lookup

import (
	"context"
	"time"

	"github.com/yegors/co-track/internal/transponder"
)

// Outcome is the result of looking up one address. Missing outcomes only
// carry the address and the age of the source that did not know it.
type Outcome struct {
	Icao24       transponder.Icao24 `json:"icao"`
	Found        bool               `json:"found"`
	SourceAge    time.Time          `json:"source_age"`
	Registration string             `json:"registration,omitempty"`
	Country      string             `json:"country,omitempty"`
	ModelIcao    string             `json:"model_icao,omitempty"`
	Manufacturer string             `json:"manufacturer,omitempty"`
	Model        string             `json:"model,omitempty"`
	OperatorIcao string             `json:"operator_icao,omitempty"`
	Operator     string             `json:"operator,omitempty"`
	Serial       string             `json:"serial,omitempty"`
	YearBuilt    int                `json:"year_built,omitempty"`
}

// Batch is one provider response split into found and missing addresses
type Batch struct {
	Found   []Outcome `json:"found"`
	Missing []Outcome `json:"missing"`
}

// All returns found and missing outcomes in one slice
func (b *Batch) All() []Outcome {
	if b == nil {
		return nil
	}
	out := make([]Outcome, 0, len(b.Found)+len(b.Missing))
	out = append(out, b.Found...)
	out = append(out, b.Missing...)
	return out
}

// Len returns the number of outcomes in the batch
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Found) + len(b.Missing)
}

// Settings are advised by the provider and bound the poll loop
type Settings struct {
	MaxBatchSize     int
	MinRetryInterval time.Duration
	MaxRetryInterval time.Duration
}

// DefaultSettings are used until the provider has told us otherwise
var DefaultSettings = Settings{
	MaxBatchSize:     100,
	MinRetryInterval: time.Second,
	MaxRetryInterval: 5 * time.Minute,
}

// Provider is the online lookup service
type Provider interface {
	Lookup(ctx context.Context, icaos []transponder.Icao24) (*Batch, error)
	Settings(ctx context.Context) (Settings, error)
}

// Cache keeps previous outcomes so repeat addresses need not hit the provider
type Cache interface {
	Get(ctx context.Context, icaos []transponder.Icao24, maxAge time.Duration) (map[transponder.Icao24]Outcome, error)
	Put(ctx context.Context, outcomes []Outcome) error
}
