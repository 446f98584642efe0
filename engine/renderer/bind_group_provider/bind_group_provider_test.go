package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-swarm/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

type fakeBuffer struct {
	label    string
	released int
}

func (b *fakeBuffer) Label() string           { return b.label }
func (b *fakeBuffer) Size() uint64            { return 8 }
func (b *fakeBuffer) Usage() wgpu.BufferUsage { return wgpu.BufferUsageStorage }
func (b *fakeBuffer) Native() any             { return nil }
func (b *fakeBuffer) Release()                { b.released++ }

var _ resource.Buffer = &fakeBuffer{}

func TestReleaseFreesOnlyOwnedResources(t *testing.T) {
	borrowed := &fakeBuffer{label: "borrowed"}
	owned := &fakeBuffer{label: "owned"}
	groupReleased := 0

	p := NewBindGroupProvider("test", WithBuffer(0, borrowed))
	p.SetBuffer(1, owned)
	p.Own(owned)
	p.SetBindGroup("group", func() { groupReleased++ })

	p.Release()
	p.Release()

	assert.Equal(t, 0, borrowed.released)
	assert.Equal(t, 1, owned.released)
	assert.Equal(t, 1, groupReleased)
	assert.Nil(t, p.BindGroup())
	assert.Nil(t, p.Buffer(0))
}

func TestSetBindGroupReleasesPrevious(t *testing.T) {
	released := 0
	p := NewBindGroupProvider("test")
	p.SetBindGroup(1, func() { released++ })
	p.SetBindGroup(2, nil)
	assert.Equal(t, 1, released)
	assert.Equal(t, 2, p.BindGroup())
}
