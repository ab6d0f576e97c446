package jsonfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yegors/co-track/internal/feed"
	"github.com/yegors/co-track/internal/feed/chunker"
	"github.com/yegors/co-track/pkg/logger"
)

// Format is the registry name of this decoder
const Format = "aircraft-json"

// ErrMalformedObject is returned for a chunk that is not valid JSON
var ErrMalformedObject = errors.New("malformed aircraft object")

// Registration adds the decoder to a feed.Registry
var Registration = feed.Registration{
	Format: Format,
	Factory: func(log *logger.Logger) feed.Decoder {
		return NewDecoder(log)
	},
}

// Decoder reads aircraft JSON objects from one connection
type Decoder struct {
	*feed.Base
	strictIcao bool
	now        func() time.Time
}

// NewDecoder creates an unconfigured decoder
func NewDecoder(log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Decoder{
		Base: feed.NewBase(Format, log.Named("jsonfeed")),
		now:  time.Now,
	}
}

// Configure must be called once before any data is parsed. The time zone
// offset is ignored, JSON feeds carry epoch seconds.
func (d *Decoder) Configure(opts feed.Options) error {
	return d.ConfigureWith(opts, chunker.JSONObjectSplitter{}, func(opts feed.Options) {
		d.strictIcao = opts.StrictIcao
	})
}

// ParseFeedPacket decodes the next block from the connection
func (d *Decoder) ParseFeedPacket(ctx context.Context, data []byte) error {
	return d.Feed(ctx, data, d.handleObject)
}

func (d *Decoder) handleObject(chunk []byte) error {
	records, err := decodeRecords(chunk)
	if err != nil {
		d.Logger().Debug("Rejected aircraft object", logger.Error(err))
		return err
	}

	now := d.now().UTC()
	for i := range records {
		rec := &records[i]
		if msg := rec.Convert(d.strictIcao); msg != nil {
			d.PublishMessage(msg)
		}
		if outcome, ok := rec.Lookup(d.strictIcao, now); ok {
			d.PublishLookup(outcome)
		}
	}
	return nil
}

// decodeRecords accepts a single aircraft object or a whole document
func decodeRecords(chunk []byte) ([]Record, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(chunk, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}

	_, hasAircraft := probe["aircraft"]
	_, hasAC := probe["ac"]
	if hasAircraft || hasAC {
		var doc Document
		if err := json.Unmarshal(chunk, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedObject, err)
		}
		return doc.Records(), nil
	}

	var rec Record
	if err := json.Unmarshal(chunk, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedObject, err)
	}
	return []Record{rec}, nil
}
