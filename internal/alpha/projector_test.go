package alpha_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/kalshibot/internal/alpha"
	"github.com/stretchr/testify/assert"
)

func TestProjector_NoDataProjectsYes(t *testing.T) {
	p := alpha.NewProjector()
	assert.True(t, p.ProjectSettlement(1e9, 60, 100, t0))

	p.Record(100, t0)
	assert.True(t, p.ProjectSettlement(1e9, 60, 0, t0))
}

func TestProjector_ProjectSettlement(t *testing.T) {
	p := alpha.NewProjector()
	p.Record(100, t0)
	p.Record(110, t0.Add(30*time.Second))
	assert.InDelta(t, 105, p.Projected(), 1e-9)

	now := t0.Add(30 * time.Second)
	// (105·30 + 110·30) / 60 = 107.5
	assert.True(t, p.ProjectSettlement(107, 30, 110, now))
	assert.InDelta(t, 107.5, p.Projected(), 1e-9)
	assert.False(t, p.ProjectSettlement(108, 30, 110, now))
}

func TestProjector_ElapsedFloorIsOneSecond(t *testing.T) {
	p := alpha.NewProjector()
	p.Record(100, t0)
	// elapsed = 1, remaining = 0 → media observada
	assert.True(t, p.ProjectSettlement(100, -5, 200, t0))
	assert.InDelta(t, 100, p.Projected(), 1e-9)
}

func TestProjector_MinuteBucketResets(t *testing.T) {
	p := alpha.NewProjector()
	p.Record(100, t0.Add(59*time.Second))
	p.Record(200, t0.Add(60*time.Second))
	assert.InDelta(t, 200, p.Projected(), 1e-9)

	// el cubo del contrato no se resetea con el minuto
	mean, ok := p.ContractMean()
	assert.True(t, ok)
	assert.InDelta(t, 150, mean, 1e-9)
}

func TestProjector_ContractBucket(t *testing.T) {
	p := alpha.NewProjector()
	p.Record(100, t0)
	p.Record(120, t0.Add(901*time.Second))
	mean, _ := p.ContractMean()
	assert.InDelta(t, 120, mean, 1e-9)

	p.ResetContract(t0.Add(902 * time.Second))
	_, ok := p.ContractMean()
	assert.False(t, ok)
	assert.Equal(t, t0.Add(902*time.Second), p.ContractStart())
}
