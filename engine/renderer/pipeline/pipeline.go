package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/engine/recorder"
	"github.com/cogentcore/webgpu/wgpu"
)

// Stages are the compiled shader stages and formats shared by every variant of a draw.
type Stages struct {
	Layout        *wgpu.PipelineLayout
	Vertex        *wgpu.ShaderModule
	VertexEntry   string
	Fragment      *wgpu.ShaderModule
	FragmentEntry string
	Buffers       []wgpu.VertexBufferLayout
	ColorFormat   wgpu.TextureFormat
	SampleCount   uint32
}

// pipeline is the implementation of the Pipeline interface.
// It holds the fixed-function state of one draw variant and the WebGPU pipeline built from it.
type pipeline struct {
	key     string
	variant recorder.PipelineVariant

	renderPipeline *wgpu.RenderPipeline

	depthFormat         wgpu.TextureFormat
	depthCompare        wgpu.CompareFunction
	depthWriteEnabled   bool
	depthBias           int32
	depthBiasSlopeScale float32
	blendEnabled        bool
	cullMode            wgpu.CullMode
	topology            wgpu.PrimitiveTopology
	frontFace           wgpu.FrontFace
	writeMask           wgpu.ColorWriteMask
	blendState          *wgpu.BlendState
}

// Pipeline is the graphics pipeline a draw variant is recorded with. The variant decides the
// depth and blend state; everything else comes from the builder options.
type Pipeline interface {
	// Key returns the pipeline's label, the set key plus the variant name.
	//
	// Returns:
	//   - string: the label
	Key() string

	// Variant returns the draw variant this pipeline serves.
	//
	// Returns:
	//   - recorder.PipelineVariant: the variant
	Variant() recorder.PipelineVariant

	// DepthStencilState returns the depth state of the variant.
	//
	// Returns:
	//   - *wgpu.DepthStencilState: the depth-stencil state
	DepthStencilState() *wgpu.DepthStencilState

	// ColorTargetState returns the color target of the variant for the given format.
	//
	// Parameters:
	//   - format: the color attachment format
	//
	// Returns:
	//   - wgpu.ColorTargetState: the color target
	ColorTargetState(format wgpu.TextureFormat) wgpu.ColorTargetState

	// PrimitiveState returns the primitive assembly state.
	//
	// Returns:
	//   - wgpu.PrimitiveState: the primitive state
	PrimitiveState() wgpu.PrimitiveState

	// Descriptor builds the render pipeline descriptor for the given stages.
	//
	// Parameters:
	//   - stages: the shader stages and formats
	//
	// Returns:
	//   - *wgpu.RenderPipelineDescriptor: the descriptor
	Descriptor(stages Stages) *wgpu.RenderPipelineDescriptor

	// Create builds the WebGPU pipeline, replacing any previous one.
	//
	// Parameters:
	//   - device: the device to create it on
	//   - stages: the shader stages and formats
	//
	// Returns:
	//   - error: the creation error
	Create(device *wgpu.Device, stages Stages) error

	// RenderPipeline returns the created pipeline, or nil before Create.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the pipeline
	RenderPipeline() *wgpu.RenderPipeline

	// Release frees the created pipeline.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates the pipeline state of one draw variant:
//   - PipelineNormal tests with less and writes depth.
//   - PipelineDepthWriteDisabled tests with less-equal and leaves depth untouched.
//   - PipelineDepthTestGreater tests with greater, leaves depth untouched and blends.
//
// Parameters:
//   - key: the label shared by the variants of one draw
//   - variant: the draw variant
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline for the variant
func NewPipeline(key string, variant recorder.PipelineVariant, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		key:               fmt.Sprintf("%s/%s", key, variant),
		variant:           variant,
		depthFormat:       wgpu.TextureFormatDepth24Plus,
		depthCompare:      wgpu.CompareFunctionLess,
		depthWriteEnabled: true,
		cullMode:          wgpu.CullModeBack,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}

	switch variant {
	case recorder.PipelineDepthWriteDisabled:
		p.depthCompare = wgpu.CompareFunctionLessEqual
		p.depthWriteEnabled = false
	case recorder.PipelineDepthTestGreater:
		p.depthCompare = wgpu.CompareFunctionGreater
		p.depthWriteEnabled = false
		p.blendEnabled = true
	}

	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Key() string {
	return p.key
}

func (p *pipeline) Variant() recorder.PipelineVariant {
	return p.variant
}

func (p *pipeline) DepthStencilState() *wgpu.DepthStencilState {
	return &wgpu.DepthStencilState{
		Format:              p.depthFormat,
		DepthWriteEnabled:   p.depthWriteEnabled,
		DepthCompare:        p.depthCompare,
		DepthBias:           p.depthBias,
		DepthBiasSlopeScale: p.depthBiasSlopeScale,
		StencilFront: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
		StencilBack: wgpu.StencilFaceState{
			Compare: wgpu.CompareFunctionAlways,
		},
	}
}

func (p *pipeline) ColorTargetState(format wgpu.TextureFormat) wgpu.ColorTargetState {
	state := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: p.writeMask,
	}
	if p.blendEnabled {
		state.Blend = p.blendState
	}
	return state
}

func (p *pipeline) PrimitiveState() wgpu.PrimitiveState {
	return wgpu.PrimitiveState{
		Topology:  p.topology,
		FrontFace: p.frontFace,
		CullMode:  p.cullMode,
	}
}

func (p *pipeline) Descriptor(stages Stages) *wgpu.RenderPipelineDescriptor {
	return &wgpu.RenderPipelineDescriptor{
		Label:  p.key,
		Layout: stages.Layout,
		Vertex: wgpu.VertexState{
			Module:     stages.Vertex,
			EntryPoint: stages.VertexEntry,
			Buffers:    stages.Buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     stages.Fragment,
			EntryPoint: stages.FragmentEntry,
			Targets:    []wgpu.ColorTargetState{p.ColorTargetState(stages.ColorFormat)},
		},
		Primitive: p.PrimitiveState(),
		Multisample: wgpu.MultisampleState{
			Count: max(stages.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: p.DepthStencilState(),
	}
}

func (p *pipeline) Create(device *wgpu.Device, stages Stages) error {
	created, err := device.CreateRenderPipeline(p.Descriptor(stages))
	if err != nil {
		return fmt.Errorf("create pipeline %s: %w", p.key, err)
	}
	p.Release()
	p.renderPipeline = created
	return nil
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
}

// VariantSet holds the pipelines of every draw variant of one material.
type VariantSet struct {
	pipelines [3]Pipeline
}

// NewVariantSet creates a pipeline per draw variant sharing the same options.
//
// Parameters:
//   - key: the label of the set
//   - opts: options applied to every variant after its defaults
//
// Returns:
//   - *VariantSet: the set
func NewVariantSet(key string, opts ...PipelineBuilderOption) *VariantSet {
	s := &VariantSet{}
	for i := range s.pipelines {
		s.pipelines[i] = NewPipeline(key, recorder.PipelineVariant(i), opts...)
	}
	return s
}

// For returns the pipeline a draw command of the given variant is recorded with.
// Unknown variants get the normal pipeline.
func (s *VariantSet) For(variant recorder.PipelineVariant) Pipeline {
	if variant < 0 || int(variant) >= len(s.pipelines) {
		return s.pipelines[recorder.PipelineNormal]
	}
	return s.pipelines[variant]
}

// Create builds every variant. On failure the variants created so far are released.
func (s *VariantSet) Create(device *wgpu.Device, stages Stages) error {
	for _, p := range s.pipelines {
		if err := p.Create(device, stages); err != nil {
			s.Release()
			return err
		}
	}
	return nil
}

// Release frees every created variant.
func (s *VariantSet) Release() {
	for _, p := range s.pipelines {
		p.Release()
	}
}
