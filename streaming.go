package voxelrender

// nopUploadSink and nopDrawSink let the streaming systems run headless,
// for tests and tools that step the pipeline without a gpu.
type nopUploadSink struct{}

func (nopUploadSink) UploadInstances(instances []Instance, instanceOffset uint64) error {
	return nil
}

type nopDrawSink struct{}

func (nopDrawSink) DrawChunk(offset, amount uint32) {}

// StreamingModule wires the chunk streaming pipeline: ticket seeding
// and growth in the update stages, instance uploads before rendering
// and the culled draw pass itself. Install VoxelRegistryModule and
// ClockModule before this one.
type StreamingModule struct {
	Config      Config
	RenderState *ChunkRenderState
}

func (m StreamingModule) Install(app *App, cmd *Commands) {
	cfg := m.Config
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(err)
	}

	voxReg := GetResource[VoxelRegistry](app)
	if voxReg == nil {
		panic("streaming module needs a voxel registry resource")
	}

	renderState := m.RenderState
	if renderState == nil {
		renderState = &ChunkRenderState{Uploader: nopUploadSink{}, Drawer: nopDrawSink{}}
	}

	codec, err := NewCodec()
	if err != nil {
		panic(err)
	}

	cmd.AddResources(
		&cfg,
		NewChunkOffsetController(cfg.RenderRadius),
		NewGenWorker(voxReg, codec),
		renderState,
	)

	cmd.UseSystem(System(ticketAddSystem).InStage(Update))
	cmd.UseSystem(System(ticketUpdateSystem).InStage(Update))
	cmd.UseSystem(System(chunkEvictionSystem).InStage(PostUpdate))
	cmd.UseSystem(System(ticketRenderSystem).InStage(PreRender))
	cmd.UseSystem(System(chunkRenderPassSystem).InStage(Render))
}
