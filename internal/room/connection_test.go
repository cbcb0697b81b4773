package room

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDropsThroughInjectedLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	conn := NewConnection(false, nil, logger)
	conn.OutChan = make(chan Event, 1)

	conn.Write(Event{Type: EventRoomUpdate})
	assert.Empty(t, hook.Entries)

	conn.Write(Event{Type: EventDayAdvanced})
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, conn.ID, entry.Data["conn"])
	assert.Contains(t, entry.Message, string(EventDayAdvanced))
	assert.Len(t, conn.OutChan, 1)
}
