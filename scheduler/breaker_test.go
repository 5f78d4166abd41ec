package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, nil)

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.False(t, b.IsOpen())

	assert.True(t, b.RecordFailure(), "third failure should trip the breaker")
	assert.True(t, b.IsOpen())
	assert.Equal(t, 3, b.Failures())

	// Only the tripping failure reports true.
	assert.False(t, b.RecordFailure())
	assert.True(t, b.IsOpen())
}

func TestCircuitBreakerResetsOnSuccess(t *testing.T) {
	b := NewCircuitBreaker(3, nil)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	assert.Equal(t, 0, b.Failures())
	assert.False(t, b.IsOpen())

	// Failures must be consecutive to open the breaker.
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
}

func TestCircuitBreakerDisabled(t *testing.T) {
	b := NewCircuitBreaker(0, nil)

	for i := 0; i < 10; i++ {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
}

func TestCircuitBreakerReset(t *testing.T) {
	b := NewCircuitBreaker(1, nil)

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, 0, b.Failures())
}

func TestCircuitBreakerConcurrent(t *testing.T) {
	b := NewCircuitBreaker(50, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, b.Failures())
	assert.True(t, b.IsOpen())
}
