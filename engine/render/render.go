// Package render owns every GPU resource of the viewer. All of its methods
// must be called from the thread that created the renderer; mesh uploads for
// worker-produced data arrive via the loader's upload queue, which the owning
// thread drains between frames.
package render

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/scenestream/common"
)

// meshUniformSize is the byte size of the per-mesh uniform block:
// a column-major model matrix followed by an RGBA color.
const meshUniformSize = 16*4 + 4*4

// frameUniformSize is the byte size of the per-frame uniform block:
// a column-major view-projection matrix.
const frameUniformSize = 16 * 4

// MeshHandle bundles the GPU buffers and bind group of one uploaded mesh.
// Each mesh carries its own uniform buffer so draws within a single frame
// submit cannot clobber each other's model transform.
type MeshHandle struct {
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   uint32

	meshBuffer *wgpu.Buffer
	bindGroup  *wgpu.BindGroup
}

// IndexCount returns the number of indices the mesh draws with.
func (h *MeshHandle) IndexCount() uint32 { return h.indexCount }

// meshRenderer is the implementation of the MeshRenderer interface.
type meshRenderer struct {
	mu sync.Mutex

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	clearColor    wgpu.Color

	frameLayout *wgpu.BindGroupLayout
	meshLayout  *wgpu.BindGroupLayout
	pipeline    *wgpu.RenderPipeline

	frameBuffer    *wgpu.Buffer
	frameBindGroup *wgpu.BindGroup

	depthTextureView *wgpu.TextureView

	renderPassDescriptor *wgpu.RenderPassDescriptor

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

// MeshRenderer draws position-only triangle meshes with a single flat-shaded
// pipeline. It exists so the rest of the viewer never touches wgpu types:
// workers hand over raw vertex and index arrays, the owning thread turns them
// into opaque MeshHandles here.
type MeshRenderer interface {
	// ConfigureSurface (re)configures the swapchain and depth texture for the
	// given framebuffer size. Must be called once before the first frame and
	// again on every resize.
	//
	// Parameters:
	//   - width: the framebuffer width in pixels
	//   - height: the framebuffer height in pixels
	ConfigureSurface(width, height int)

	// UploadMesh creates GPU buffers for the given vertex positions and
	// indices and returns an opaque handle for drawing them.
	//
	// Parameters:
	//   - label: a debug label attached to the created GPU objects
	//   - positions: packed xyz vertex positions
	//   - indices: triangle indices into the position array
	//
	// Returns:
	//   - *MeshHandle: the handle for subsequent DrawMesh and DestroyMesh calls
	//   - error: any error that occurred creating the GPU resources
	UploadMesh(label string, positions []float32, indices []uint32) (*MeshHandle, error)

	// DestroyMesh releases every GPU resource held by the handle. The handle
	// must not be drawn afterwards. Nil handles are ignored.
	//
	// Parameters:
	//   - h: the handle to destroy
	DestroyMesh(h *MeshHandle)

	// BeginFrame acquires the next swapchain image, uploads the frame's
	// view-projection matrix, and opens the render pass.
	//
	// Parameters:
	//   - viewProj: the column-major view-projection matrix for this frame
	//
	// Returns:
	//   - error: any error acquiring the surface or building the pass
	BeginFrame(viewProj [16]float32) error

	// DrawMesh records one draw of the mesh with the given model transform
	// and color. Valid only between BeginFrame and EndFrame.
	//
	// Parameters:
	//   - h: the mesh to draw
	//   - model: the column-major model transform
	//   - color: the RGBA base color
	DrawMesh(h *MeshHandle, model [16]float32, color [4]float32)

	// EndFrame closes the render pass and submits the frame's command buffer.
	EndFrame()

	// Present presents the frame begun by the last successful BeginFrame.
	Present()

	// Release destroys the renderer's own GPU objects. Mesh handles are owned
	// by their callers and must be destroyed separately before Release.
	Release()
}

var _ MeshRenderer = &meshRenderer{}

// NewMeshRenderer creates a MeshRenderer bound to the given surface. The
// calling goroutine is locked to its OS thread and becomes the only thread
// allowed to call any renderer method.
//
// Parameters:
//   - surfaceDescriptor: the platform surface to present to
//   - options: a variadic list of MeshRendererBuilderOption functions to configure the renderer
//
// Returns:
//   - MeshRenderer: the newly created renderer
func NewMeshRenderer(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...MeshRendererBuilderOption) MeshRenderer {
	runtime.LockOSThread()

	r := &meshRenderer{
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
		clearColor:  wgpu.Color{R: 0.08, G: 0.08, B: 0.1, A: 1.0},
	}

	for _, option := range options {
		option(r)
	}

	r.surface = r.instance.CreateSurface(surfaceDescriptor)

	a, err := r.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: r.surface,
	})
	if err != nil {
		panic(err)
	}
	r.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Viewer Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		panic(err)
	}
	r.device = d
	r.queue = d.GetQueue()

	r.initLayouts()
	r.initFrameBindGroup()

	return r
}

func (r *meshRenderer) initLayouts() {
	var err error
	r.frameLayout, err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Frame Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: frameUniformSize,
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}

	r.meshLayout, err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Mesh Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: meshUniformSize,
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}
}

func (r *meshRenderer) initFrameBindGroup() {
	var err error
	r.frameBuffer, err = r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Uniform Buffer",
		Size:  frameUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		panic(err)
	}

	r.frameBindGroup, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Frame Bind Group",
		Layout: r.frameLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  r.frameBuffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			},
		},
	})
	if err != nil {
		panic(err)
	}
}

func (r *meshRenderer) ConfigureSurface(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capabilities := r.surface.GetCapabilities(r.adapter)
	r.surfaceFormat = &capabilities.Formats[0]

	r.surface.Configure(r.adapter, r.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *r.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: r.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	depthTexture, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	if r.depthTextureView != nil {
		r.depthTextureView.Release()
	}
	r.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}

	r.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       nil, // set per-frame to the swapchain view
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: r.clearColor,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	}

	if r.pipeline == nil {
		r.initPipeline()
	}
}

func (r *meshRenderer) initPipeline() {
	shaderModule, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Mesh Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: meshShaderWGSL,
		},
	})
	if err != nil {
		panic(err)
	}

	pipelineLayout, err := r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Mesh Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.frameLayout, r.meshLayout},
	})
	if err != nil {
		panic(err)
	}

	r.pipeline, err = r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Mesh Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: 3 * 4,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{
							Format:         wgpu.VertexFormatFloat32x3,
							Offset:         0,
							ShaderLocation: 0,
						},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *r.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		panic(err)
	}
}

func (r *meshRenderer) UploadMesh(label string, positions []float32, indices []uint32) (*MeshHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(positions) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("mesh %s has no geometry", label)
	}

	h := &MeshHandle{indexCount: uint32(len(indices))}

	vertexData := common.SliceToBytes(positions)
	vertexBuffer, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	r.queue.WriteBuffer(vertexBuffer, 0, vertexData)
	h.vertexBuffer = vertexBuffer

	indexData := common.SliceToBytes(indices)
	indexBuffer, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vertexBuffer.Release()
		return nil, err
	}
	r.queue.WriteBuffer(indexBuffer, 0, indexData)
	h.indexBuffer = indexBuffer

	meshBuffer, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Uniform Buffer",
		Size:  meshUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vertexBuffer.Release()
		indexBuffer.Release()
		return nil, err
	}
	h.meshBuffer = meshBuffer

	bindGroup, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Bind Group",
		Layout: r.meshLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  meshBuffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			},
		},
	})
	if err != nil {
		vertexBuffer.Release()
		indexBuffer.Release()
		meshBuffer.Release()
		return nil, err
	}
	h.bindGroup = bindGroup

	return h, nil
}

func (r *meshRenderer) DestroyMesh(h *MeshHandle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.bindGroup != nil {
		h.bindGroup.Release()
		h.bindGroup = nil
	}
	if h.meshBuffer != nil {
		h.meshBuffer.Release()
		h.meshBuffer = nil
	}
	if h.indexBuffer != nil {
		h.indexBuffer.Release()
		h.indexBuffer = nil
	}
	if h.vertexBuffer != nil {
		h.vertexBuffer.Release()
		h.vertexBuffer = nil
	}
	h.indexCount = 0
}

func (r *meshRenderer) BeginFrame(viewProj [16]float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}
	if r.renderPassDescriptor == nil {
		return fmt.Errorf("surface not configured")
	}

	r.queue.WriteBuffer(r.frameBuffer, 0, common.SliceToBytes(viewProj[:]))

	surfaceTexture, err := r.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	r.renderPassDescriptor.ColorAttachments[0].View = view
	pass := encoder.BeginRenderPass(r.renderPassDescriptor)
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.frameBindGroup, nil)

	r.frameEncoder = encoder
	r.framePass = pass
	r.frameSurface = surfaceTexture
	r.frameView = view

	return nil
}

func (r *meshRenderer) DrawMesh(h *MeshHandle, model [16]float32, color [4]float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h == nil || h.vertexBuffer == nil || r.framePass == nil {
		return
	}

	var uniform [meshUniformSize / 4]float32
	copy(uniform[:16], model[:])
	copy(uniform[16:], color[:])
	r.queue.WriteBuffer(h.meshBuffer, 0, common.SliceToBytes(uniform[:]))

	r.framePass.SetBindGroup(1, h.bindGroup, nil)
	r.framePass.SetVertexBuffer(0, h.vertexBuffer, 0, wgpu.WholeSize)
	r.framePass.SetIndexBuffer(h.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	r.framePass.DrawIndexed(h.indexCount, 1, 0, 0, 0)
}

func (r *meshRenderer) EndFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.framePass == nil {
		return
	}
	r.framePass.End()

	commandBuffer, err := r.frameEncoder.Finish(nil)
	if err != nil {
		r.frameEncoder.Release()
		r.frameView.Release()
		r.frameSurface.Release()
		r.frameEncoder = nil
		r.framePass = nil
		r.frameSurface = nil
		r.frameView = nil
		return
	}

	r.queue.Submit(commandBuffer)

	commandBuffer.Release()
	r.frameEncoder.Release()
	r.frameEncoder = nil
	r.framePass = nil
}

func (r *meshRenderer) Present() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frameSurface == nil {
		return
	}

	r.surface.Present()

	if r.frameView != nil {
		r.frameView.Release()
		r.frameView = nil
	}
	r.frameSurface.Release()
	r.frameSurface = nil
}

func (r *meshRenderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.depthTextureView != nil {
		r.depthTextureView.Release()
		r.depthTextureView = nil
	}
	if r.frameBindGroup != nil {
		r.frameBindGroup.Release()
		r.frameBindGroup = nil
	}
	if r.frameBuffer != nil {
		r.frameBuffer.Release()
		r.frameBuffer = nil
	}
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	if r.device != nil {
		r.device.Release()
		r.device = nil
	}
}
