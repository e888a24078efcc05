package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCountersDoNotPanic(t *testing.T) {
	Register()

	assert.NotPanics(t, func() {
		IncOp("add", "ok")
		IncOp("add", "conflict")
		IncConflict()
		IncPersistenceFailure()
		ObserveHTTP("/api/v1/bookings", "POST", 201, 12*time.Millisecond)
	})
}
