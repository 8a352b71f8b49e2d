package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/recorder"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestNewPipeline_VariantDepthState(t *testing.T) {
	tests := []struct {
		variant recorder.PipelineVariant
		compare wgpu.CompareFunction
		write   bool
		blend   bool
	}{
		{recorder.PipelineNormal, wgpu.CompareFunctionLess, true, false},
		{recorder.PipelineDepthWriteDisabled, wgpu.CompareFunctionLessEqual, false, false},
		{recorder.PipelineDepthTestGreater, wgpu.CompareFunctionGreater, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			p := NewPipeline("cube", tt.variant)
			depth := p.DepthStencilState()
			assert.Equal(t, tt.compare, depth.DepthCompare)
			assert.Equal(t, tt.write, depth.DepthWriteEnabled)
			assert.Equal(t, wgpu.TextureFormatDepth24Plus, depth.Format)

			color := p.ColorTargetState(wgpu.TextureFormatBGRA8Unorm)
			assert.Equal(t, tt.blend, color.Blend != nil)
			assert.Equal(t, "cube/"+tt.variant.String(), p.Key())
		})
	}
}

func TestNewPipeline_OptionsOverrideDefaults(t *testing.T) {
	p := NewPipeline("box", recorder.PipelineDepthWriteDisabled,
		WithCullMode(wgpu.CullModeNone),
		WithWriteMask(wgpu.ColorWriteMaskNone),
		WithDepthBias(2, 1.5),
	)

	assert.Equal(t, wgpu.CullModeNone, p.PrimitiveState().CullMode)
	assert.Equal(t, wgpu.ColorWriteMaskNone, p.ColorTargetState(wgpu.TextureFormatBGRA8Unorm).WriteMask)
	assert.Equal(t, int32(2), p.DepthStencilState().DepthBias)
	assert.False(t, p.DepthStencilState().DepthWriteEnabled, "variant defaults survive unrelated options")
}

func TestPipeline_Descriptor(t *testing.T) {
	p := NewPipeline("cube", recorder.PipelineNormal)
	desc := p.Descriptor(Stages{
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		ColorFormat:   wgpu.TextureFormatBGRA8Unorm,
	})

	assert.Equal(t, "cube/normal", desc.Label)
	assert.Equal(t, "vs_main", desc.Vertex.EntryPoint)
	assert.Equal(t, uint32(1), desc.Multisample.Count)
	assert.Len(t, desc.Fragment.Targets, 1)
	assert.Nil(t, p.RenderPipeline())
}

func TestVariantSet_For(t *testing.T) {
	set := NewVariantSet("cube")
	for _, v := range []recorder.PipelineVariant{recorder.PipelineNormal, recorder.PipelineDepthWriteDisabled, recorder.PipelineDepthTestGreater} {
		assert.Equal(t, v, set.For(v).Variant())
	}
	assert.Equal(t, recorder.PipelineNormal, set.For(recorder.PipelineVariant(9)).Variant())
	set.Release()
}
