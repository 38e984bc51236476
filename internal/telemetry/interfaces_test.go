package telemetry

import (
	"bytes"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		assert.NotPanics(t, func() { logger.Printf("ignored %d", 42) })
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("hello %s", "world")
		assert.Equal(t, "hello world\n", buf.String())
	})

	t.Run("nil func", func(t *testing.T) {
		var fn LoggerFunc
		assert.NotPanics(t, func() { fn.Printf("ignored") })
	})
}

func TestCounters(t *testing.T) {
	counters := NewCounters()

	counters.Add("test_counter", 2)
	counters.Store("test_counter", 5)
	counters.Add("test_counter", 3)
	counters.Store("gauge", 9)
	counters.Add("", 1)

	assert.Equal(t, uint64(8), counters.Snapshot()["test_counter"])
	assert.Equal(t, uint64(9), counters.Value("gauge"))
	assert.Equal(t, []string{"gauge", "test_counter"}, counters.Keys())

	var nilCounters *Counters
	nilCounters.Add("ignored", 1)
	nilCounters.Store("ignored", 1)
	assert.Zero(t, nilCounters.Value("ignored"))
}

func TestCountersConcurrentAdd(t *testing.T) {
	var counters Counters
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				counters.Add("hits", 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(800), counters.Value("hits"))
}
