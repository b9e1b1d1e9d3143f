package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbrick/socrescue/transport"
)

func TestWaitForBootSignal(t *testing.T) {
	tr := transport.NewScripted(115200)
	tr.QueueOutput("garbage from a half-booted ROM\r\nSCIF Download mode (w/o verification)\r\n")

	err := waitForBootSignal(tr, "SCIF Download mode", time.Second)
	assert.NoError(t, err)
}

func TestWaitForBootSignalTimeout(t *testing.T) {
	tr := transport.NewScripted(115200)
	tr.QueueOutput("U-Boot 2023.10 (normal boot, no recovery)")

	const window = 150 * time.Millisecond
	start := time.Now()
	err := waitForBootSignal(tr, "SCIF Download mode", window)
	elapsed := time.Since(start)

	var dErr *DetectionTimeoutError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "SCIF Download mode", dErr.Signal)
	assert.Equal(t, window, dErr.Timeout)

	// The wait must run out the whole window, not give up early.
	assert.GreaterOrEqual(t, elapsed, window)
	assert.Less(t, elapsed, window+100*time.Millisecond)
}
