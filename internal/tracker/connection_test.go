package tracker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yegors/co-track/internal/config"
	"github.com/yegors/co-track/internal/feed/basestation"
	"github.com/yegors/co-track/pkg/logger"
)

func TestConnectionWarnsAboutMalformedDates(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := newConnection(config.FeedConfig{Name: "sbs", Format: "basestation", Address: "sbs:30003"},
		nil, nil, nil, logger.FromZap(zap.New(core)))

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	corrupt := fmt.Errorf("%w: date %q", basestation.ErrInvalidDateTime, "2024-01-15")
	c.reportRejected(corrupt)
	c.reportRejected(corrupt)
	now = now.Add(30 * time.Second)
	c.reportRejected(corrupt)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "sbs", warnings[0].ContextMap()["feed"])
	assert.EqualValues(t, 0, warnings[0].ContextMap()["suppressed"])

	now = now.Add(corruptLogInterval)
	c.reportRejected(corrupt)
	warnings = logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 2)
	assert.EqualValues(t, 2, warnings[1].ContextMap()["suppressed"])

	c.reportRejected(errors.New("truncated record"))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.DebugLevel).FilterMessage("Feed data rejected").Len())
	assert.Len(t, logs.FilterLevelExact(zapcore.WarnLevel).All(), 2)
}
