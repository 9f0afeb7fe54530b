package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExitState_AdoptResting(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	var s ExitState
	s.AdoptResting(at)
	assert.False(t, s.HasEntry(), "sin entrada en reposo no se registra nada")

	s.Resting = true
	s.RestingEdge = 7
	s.AdoptResting(at)
	assert.True(t, s.HasEntry())
	assert.Equal(t, at, s.EntryAt)
	assert.Equal(t, 7, s.EntryEdge)
	assert.False(t, s.Resting)
	assert.Zero(t, s.RestingEdge)
}
