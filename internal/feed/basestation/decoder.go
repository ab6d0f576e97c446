package basestation

import (
	"context"

	"github.com/yegors/co-track/internal/feed"
	"github.com/yegors/co-track/internal/feed/chunker"
	"github.com/yegors/co-track/pkg/logger"
)

// Format is the registry name of this decoder
const Format = "basestation"

// Registration adds the decoder to a feed.Registry
var Registration = feed.Registration{
	Format: Format,
	Factory: func(log *logger.Logger) feed.Decoder {
		return NewDecoder(log)
	},
}

// Decoder reads BaseStation lines from one connection
type Decoder struct {
	*feed.Base
	converter *Converter
}

// NewDecoder creates an unconfigured decoder
func NewDecoder(log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Decoder{Base: feed.NewBase(Format, log.Named("basestation"))}
}

// Configure must be called once before any data is parsed
func (d *Decoder) Configure(opts feed.Options) error {
	return d.ConfigureWith(opts, chunker.LineSplitter{}, func(opts feed.Options) {
		d.converter = NewConverter(opts.StrictIcao, opts.TimeZoneOffset)
	})
}

// ParseFeedPacket decodes the next block from the connection. Malformed
// date/time fields are collected and returned once the whole block has been
// processed; every other problem just drops the line.
func (d *Decoder) ParseFeedPacket(ctx context.Context, data []byte) error {
	return d.Feed(ctx, data, func(chunk []byte) error {
		msgs, err := d.converter.FromFeedMessage(chunk)
		if err != nil {
			d.Logger().Debug("Rejected basestation line",
				logger.String("line", string(chunk)),
				logger.Error(err))
			return err
		}
		for _, msg := range msgs {
			d.PublishMessage(msg)
		}
		return nil
	})
}
