package feed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-track/internal/feed"
	"github.com/yegors/co-track/internal/feed/basestation"
	"github.com/yegors/co-track/internal/feed/jsonfeed"
	"github.com/yegors/co-track/pkg/logger"
)

func TestRegistry(t *testing.T) {
	reg, err := feed.NewRegistry(basestation.Registration, jsonfeed.Registration)
	require.NoError(t, err)

	assert.Equal(t, []string{"aircraft-json", "basestation"}, reg.Formats())

	d, err := reg.New("BaseStation", logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, basestation.Format, d.Format())

	_, err = reg.New("beast", logger.NewNop())
	assert.ErrorContains(t, err, "unknown feed format")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := feed.NewRegistry(basestation.Registration, basestation.Registration)
	assert.ErrorContains(t, err, "registered twice")
}

func TestRegistryRejectsEmptyRegistrations(t *testing.T) {
	_, err := feed.NewRegistry(feed.Registration{Format: "x"})
	assert.Error(t, err)

	_, err = feed.NewRegistry(feed.Registration{Factory: basestation.Registration.Factory})
	assert.Error(t, err)
}
