package window

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSignal uint64

func (s testSignal) SignalID() uint64 { return uint64(s) }

func TestHeadlessWindow(t *testing.T) {
	w := NewWindow(WithHeadless(true), WithWidth(640), WithHeight(480))

	assert.True(t, w.Headless())
	assert.True(t, w.IsRunning())
	assert.Equal(t, 640, w.Width())
	assert.Equal(t, 480, w.Height())
	assert.Nil(t, w.SurfaceDescriptor())

	require.NoError(t, w.Close())
	assert.False(t, w.IsRunning())
}

func TestImageAcquiredPerSlot(t *testing.T) {
	w := NewWindow(WithHeadless(true))
	w.Lock()
	defer w.Unlock()

	_, ok := w.ImageAcquiredSignal(1)
	assert.False(t, ok)

	w.SetImageAcquired(1, testSignal(7), 2)
	sig, ok := w.ImageAcquiredSignal(1)
	require.True(t, ok)
	assert.Equal(t, testSignal(7), sig)
	assert.Equal(t, uint32(2), w.ImageIndex(1))

	_, ok = w.ImageAcquiredSignal(0)
	assert.False(t, ok)

	w.BeginFrame(1)
	_, ok = w.ImageAcquiredSignal(1)
	assert.False(t, ok, "a new frame on the slot needs a new acquire")
}

func TestRenderCompleteSignals(t *testing.T) {
	w := NewWindow(WithHeadless(true))
	w.Lock()
	defer w.Unlock()

	w.AddRenderCompleteSignal(testSignal(1))
	w.AddRenderCompleteSignal(testSignal(2))
	assert.Equal(t, []common.Signal{testSignal(1), testSignal(2)}, w.RenderCompleteSignals())

	w.BeginFrame(0)
	assert.Empty(t, w.RenderCompleteSignals())
}

func TestResizeWaitsForWindowMutex(t *testing.T) {
	w := NewWindow(WithHeadless(true), WithWidth(100), WithHeight(100))
	ew := w.(*engineWindow)

	w.Lock()
	done := make(chan struct{})
	go func() {
		ew.resize(200, 150)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("resize ran while the frame held the window mutex")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 100, w.Width(), "size is stable for the whole frame")
	assert.False(t, w.OutOfDate())
	w.Unlock()

	<-done
	assert.Equal(t, 200, w.Width())
	assert.Equal(t, 150, w.Height())

	w.Lock()
	assert.True(t, w.OutOfDate())
	w.SetOutOfDate(false)
	assert.False(t, w.OutOfDate())
	w.Unlock()
}
