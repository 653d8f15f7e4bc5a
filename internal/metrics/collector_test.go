package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector()

	snap := c.Snapshot()
	assert.Nil(t, snap.Extract)
	assert.Nil(t, snap.Upsert)

	c.RecordBatch(OpExtract, 30*time.Millisecond, 100)
	c.RecordBatch(OpExtract, 10*time.Millisecond, 50)
	c.RecordTiming(OpLoad, 5*time.Millisecond)

	snap = c.Snapshot()
	require.NotNil(t, snap.Extract)
	assert.Equal(t, int64(2), snap.Extract.Count)
	assert.Equal(t, int64(40), snap.Extract.TotalTimeMs)
	assert.InDelta(t, 20.0, snap.Extract.AvgTimeMs, 0.001)
	assert.Equal(t, int64(10), snap.Extract.MinTimeMs)
	assert.Equal(t, int64(30), snap.Extract.MaxTimeMs)
	assert.Equal(t, int64(150), snap.Extract.Records)
	assert.Equal(t, int64(10), snap.Extract.LastTimeMs)
	assert.InDelta(t, 3750.0, snap.Extract.RecordsPerSec, 0.001)

	require.NotNil(t, snap.Load)
	assert.Equal(t, int64(0), snap.Load.Records)
	assert.Nil(t, snap.Transform)
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordBatch(OpUpsert, time.Millisecond, 1)
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	require.NotNil(t, snap.Upsert)
	assert.Equal(t, int64(50), snap.Upsert.Count)
	assert.Equal(t, int64(50), snap.Upsert.Records)
}
