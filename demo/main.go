package main

import (
	"flag"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	voxelrender "github.com/Levijatan/voxel-render"
)

const shaderCode = `
struct Camera {
    view_proj: mat4x4<f32>,
};

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var<storage, read> instances: array<mat4x4<f32>>;

@vertex
fn vs_main(@location(0) position: vec3<f32>, @builtin(instance_index) idx: u32) -> @builtin(position) vec4<f32> {
    return camera.view_proj * instances[idx] * vec4<f32>(position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(0.35, 0.65, 0.3, 1.0);
}
`

var cubeVertices = []float32{
	0, 0, 0,
	1, 0, 0,
	1, 1, 0,
	0, 1, 0,
	0, 0, 1,
	1, 0, 1,
	1, 1, 1,
	0, 1, 1,
}

var cubeIndices = []uint16{
	0, 2, 1, 0, 3, 2, // south
	4, 5, 6, 4, 6, 7, // north
	0, 1, 5, 0, 5, 4, // bottom
	3, 6, 2, 3, 7, 6, // top
	0, 4, 7, 0, 7, 3, // west
	1, 2, 6, 1, 6, 5, // east
}

type windowState struct {
	window *glfw.Window
	width  int
	height int
}

func createWindowState(cfg voxelrender.WindowConfig) *windowState {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		panic(err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Important: tell GLFW we don't want OpenGL
	glfw.WindowHint(glfw.Resizable, glfw.False)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	return &windowState{window: win, width: cfg.Width, height: cfg.Height}
}

type gpuState struct {
	surface       *wgpu.Surface
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration
}

func createGpuState(s *windowState) *gpuState {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(s.window))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		panic(err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		panic(err)
	}
	queue := device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(s.width),
		Height:      uint32(s.height),
		PresentMode: wgpu.PresentModeFifo, // vsync
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &surfaceConfig)

	return &gpuState{
		surface:       surface,
		device:        device,
		queue:         queue,
		surfaceConfig: &surfaceConfig,
	}
}

type drawSpan struct {
	offset uint32
	amount uint32
}

// chunkDrawer collects the spans the streaming draw pass emits each
// frame; the frame system turns them into instanced draw calls.
type chunkDrawer struct {
	spans []drawSpan
}

func (d *chunkDrawer) DrawChunk(offset, amount uint32) {
	d.spans = append(d.spans, drawSpan{offset: offset, amount: amount})
}

func (d *chunkDrawer) take() []drawSpan {
	spans := d.spans
	d.spans = nil
	return spans
}

type demoState struct {
	window *windowState
	gpu    *gpuState
	drawer *chunkDrawer

	pipeline     *wgpu.RenderPipeline
	bindGroup    *wgpu.BindGroup
	cameraBuffer *wgpu.Buffer
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
}

func createDemoState(window *windowState, gpu *gpuState, instances *voxelrender.InstanceBuffer, drawer *chunkDrawer) *demoState {
	device := gpu.device

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "chunkShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderCode},
	})
	if err != nil {
		panic(err)
	}
	defer shader.Release()

	cameraBuffer, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "camera",
		Size:  64,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		panic(err)
	}
	vertexBuffer, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "cubeVertices",
		Contents: wgpu.ToBytes(cubeVertices),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		panic(err)
	}
	indexBuffer, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "cubeIndices",
		Contents: wgpu.ToBytes(cubeIndices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		panic(err)
	}

	bindGroupLayout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "chunkBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	defer bindGroupLayout.Release()

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "chunkBindGroup",
		Layout: bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: cameraBuffer, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: instances.Buffer(), Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		panic(err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "chunkPipelineLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bindGroupLayout},
	})
	if err != nil {
		panic(err)
	}
	defer pipelineLayout.Release()

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "chunkPipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: 12,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{ShaderLocation: 0, Offset: 0, Format: wgpu.VertexFormatFloat32x3},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    gpu.surfaceConfig.Format,
					Blend:     nil,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		panic(err)
	}

	return &demoState{
		window:       window,
		gpu:          gpu,
		drawer:       drawer,
		pipeline:     pipeline,
		bindGroup:    bindGroup,
		cameraBuffer: cameraBuffer,
		vertexBuffer: vertexBuffer,
		indexBuffer:  indexBuffer,
	}
}

// demoModule owns the window, the gpu state and the frame presentation.
type demoModule struct {
	state *demoState
}

func (m demoModule) Install(app *voxelrender.App, cmd *voxelrender.Commands) {
	cmd.AddResources(m.state)
	cmd.UseSystem(voxelrender.System(pollEventsSystem).InStage(voxelrender.Prelude))
	cmd.UseSystem(voxelrender.System(presentFrameSystem).InStage(voxelrender.PostRender))
}

func pollEventsSystem(cmd *voxelrender.Commands, state *demoState) {
	glfw.PollEvents()
	if state.window.window.ShouldClose() {
		cmd.Quit()
	}
}

func presentFrameSystem(cmd *voxelrender.Commands, state *demoState, camera *voxelrender.Camera) {
	gpu := state.gpu
	spans := state.drawer.take()

	nextTexture, err := gpu.surface.GetCurrentTexture()
	if err != nil {
		cmd.Logger().Errorf("acquiring surface texture: %v", err)
		return
	}
	view, err := nextTexture.CreateView(nil)
	if err != nil {
		panic(err)
	}
	defer view.Release()
	encoder, err := gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		panic(err)
	}
	defer encoder.Release()

	viewProj := camera.ViewProjection()
	if err := gpu.queue.WriteBuffer(state.cameraBuffer, 0, wgpu.ToBytes(viewProj[:])); err != nil {
		panic(err)
	}

	renderPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1.0},
			},
		},
	})
	defer renderPass.Release()

	renderPass.SetPipeline(state.pipeline)
	renderPass.SetBindGroup(0, state.bindGroup, nil)
	renderPass.SetVertexBuffer(0, state.vertexBuffer, 0, wgpu.WholeSize)
	renderPass.SetIndexBuffer(state.indexBuffer, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
	for _, span := range spans {
		renderPass.DrawIndexed(uint32(len(cubeIndices)), span.amount, 0, 0, span.offset)
	}
	if err := renderPass.End(); err != nil {
		panic(err)
	}

	cmdBuffer, err := encoder.Finish(nil)
	if err != nil {
		panic(err)
	}
	defer cmdBuffer.Release()

	gpu.queue.Submit(cmdBuffer)
	gpu.surface.Present()
}

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg := voxelrender.DefaultConfig()
	if *configPath != "" {
		loaded, err := voxelrender.LoadConfig(*configPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}

	window := createWindowState(cfg.Window)
	defer glfw.Terminate()
	gpu := createGpuState(window)

	side := cfg.RenderRadius*2 + 1
	instances, err := voxelrender.NewInstanceBuffer(gpu.device, gpu.queue, side*side*side, voxelrender.VoxelsInChunk)
	if err != nil {
		panic(err)
	}
	defer instances.Release()

	drawer := &chunkDrawer{}
	state := createDemoState(window, gpu, instances, drawer)

	app := voxelrender.NewAppBuilder().
		UseModule(voxelrender.LoggingModule{Prefix: "demo", Debug: cfg.Debug}).
		UseModule(voxelrender.ClockModule{TicksPerSecond: cfg.TicksPerSecond}).
		UseModule(voxelrender.VoxelRegistryModule{}).
		UseModule(voxelrender.WorldModule{}).
		UseModule(voxelrender.CameraModule{
			Pos:    mgl32.Vec3{0, 24, 48},
			Aspect: float32(cfg.Window.Width) / float32(cfg.Window.Height),
		}).
		UseModule(voxelrender.StreamingModule{
			Config: cfg,
			RenderState: &voxelrender.ChunkRenderState{
				Uploader: instances,
				Drawer:   drawer,
			},
		}).
		UseModule(demoModule{state: state}).
		Build()

	app.Run()
}
