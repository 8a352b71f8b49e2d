package engine

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/command_graph"
	"github.com/Carmen-Shannon/oxy-frame/engine/occlusion_query"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/Carmen-Shannon/oxy-frame/engine/recorder"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/Carmen-Shannon/oxy-frame/engine/submission"
	"github.com/Carmen-Shannon/oxy-frame/engine/sync_pool"
	"github.com/Carmen-Shannon/oxy-frame/engine/visibility"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrReleased is returned by RenderFrame after the engine has been released.
var ErrReleased = errors.New("engine released")

// cameraView is one camera's culling result for the frame being built.
type cameraView struct {
	cam    camera.Camera
	result visibility.Result
}

// retiredPipeline is the query pipeline of a removed camera, held until the GPU can no longer use it.
type retiredPipeline struct {
	queries occlusion_query.QueryPipeline
	after   uint64
}

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once
	releaseOnce sync.Once

	window   window.Window
	renderer renderer.Renderer
	recorder recorder.Recorder

	pool       sync_pool.SyncPool
	driver     submission.SubmissionDriver
	graph      command_graph.CommandGraph
	visibility visibility.VisibilityEngine

	// Frame state owned by the render goroutine.
	frame    uint64
	queries  map[uuid.UUID]occlusion_query.QueryPipeline
	retiring []retiredPipeline
	cameras  map[uuid.UUID]struct{}
	invalid  map[uuid.UUID]string
	released bool

	maxFramesInFlight int
	maxEntities       int
	maxViews          int
	fenceTimeout      time.Duration
	visibilityWorkers int
	downloadWorkers   int

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	scenesMu *sync.RWMutex
	scenes   map[int]scene.Scene

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the engine.
// It orchestrates the engine loop, render loop, and window management. Each render frame
// acquires the window image, culls every camera, records the frame's stages, builds the
// command graph, submits it, presents, and downloads occlusion results for the next frame.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer the frame loop submits to.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// Profiler returns the profiler collecting frame stage timings.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, physics, input processing, and animation updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each render frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddScene registers a scene at the given z-index key.
	// Scenes are recorded in ascending key order; within a scene cameras are ordered by render order.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	// Its cameras stop rendering on the next frame.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	// Returns nil if no scene exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// RenderFrame runs one frame synchronously on the calling goroutine.
	// The render loop started by Run calls it; callers driving their own loop must not call Run.
	//
	// Parameters:
	//   - dt: elapsed time in seconds since the previous frame
	//
	// Returns:
	//   - error: a backend or submission failure; the frame loop cannot continue
	RenderFrame(dt float32) error

	// Run starts the engine and render loops and blocks until the window closes or Quit is called.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Release stops the loops, waits for the GPU to go idle and frees every synchronization
	// primitive, query set and the renderer. Must not be called from a tick or render callback.
	Release()
}

// NewEngine creates a new Engine instance with the provided options.
// Without WithWindow a window is created, and without WithRenderer a WebGPU renderer
// (headless renderer for headless windows) is created for it. Panics when the frame
// resources cannot be allocated.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:   make(chan time.Duration, 1),
		quitChannel:       make(chan struct{}),
		scenesMu:          &sync.RWMutex{},
		scenes:            make(map[int]scene.Scene),
		queries:           make(map[uuid.UUID]occlusion_query.QueryPipeline),
		cameras:           make(map[uuid.UUID]struct{}),
		invalid:           make(map[uuid.UUID]string),
		profiler:          profiler.NewProfiler(),
		engineTickRate:    time.Second / 60,
		maxFramesInFlight: 2,
		maxEntities:       4096,
		maxViews:          2,
		fenceTimeout:      time.Second,
		downloadWorkers:   4,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window == nil {
		e.window = window.NewWindow()
	}
	if e.renderer == nil {
		backend := renderer.BackendTypeWGPU
		if e.window.Headless() {
			backend = renderer.BackendTypeHeadless
		}
		e.renderer = renderer.NewRenderer(backend, e.window)
	}
	if e.recorder == nil {
		e.recorder = recorder.NewDrawRecorder(func(recorder.Batch, recorder.DrawCommand) error { return nil })
	}

	pool, err := sync_pool.NewSyncPool(e.renderer, e.maxFramesInFlight)
	if err != nil {
		panic(fmt.Errorf("engine: create sync pool: %w", err))
	}
	e.pool = pool
	e.driver = submission.NewSubmissionDriver(e.renderer, e.pool, submission.WithFenceTimeout(e.fenceTimeout))
	e.graph = command_graph.NewCommandGraph(e.driver.Slot())

	var visOptions []visibility.VisibilityEngineBuilderOption
	if e.visibilityWorkers > 0 {
		visOptions = append(visOptions, visibility.WithWorkers(e.visibilityWorkers))
	}
	e.visibility = visibility.NewVisibilityEngine(visOptions...)

	e.window.SetResizeCallback(func(width, height int) {
		if height <= 0 {
			return
		}
		aspect := float32(width) / float32(height)
		for _, s := range e.Scenes() {
			for _, cam := range s.Cameras() {
				if e.targetsWindow(cam) {
					cam.SetAspect(aspect)
				}
			}
		}
	})

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

// Run closes the window from the message loop once quit is signalled, so the window is only
// ever touched by the goroutine that created it. The window's update callback is replaced.
func (e *engine) Run() {
	e.running = true
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			if err := e.window.Close(); err != nil {
				log.Printf("[Engine] close window: %v", err)
			}
		default:
		}
	})
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
	e.release()
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) Release() {
	e.signalQuit()
	e.wg.Wait()
	e.release()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// A frame error or a recovered panic stops the loop and signals quit.
func (e *engine) handleRender() {
	defer e.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if err := e.RenderFrame(dt); err != nil {
				log.Printf("[Engine] frame failed: %v", err)
				e.signalQuit()
				return
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

func (e *engine) RenderFrame(dt float32) error {
	if e.released {
		return ErrReleased
	}

	slot := e.driver.Slot()
	if err := e.driver.AwaitSlot(); err != nil {
		return err
	}
	e.frame++
	e.releaseRetired()
	if err := e.renderer.BeginFrame(slot); err != nil {
		return fmt.Errorf("begin frame %d: %w", slot, err)
	}

	scenes := e.activeScenes()
	for _, s := range scenes {
		s.Update(dt)
	}

	recorded, err := e.renderLocked(slot, scenes)
	if err != nil {
		return err
	}

	if err := e.download(recorded); err != nil {
		return err
	}

	if e.profilingEnabled {
		e.profiler.Tick()
	}
	return nil
}

// renderLocked runs acquire through present with the window mutex held and returns the
// query pipelines recorded this frame.
func (e *engine) renderLocked(slot common.FrameSlot, scenes []keyedScene) ([]occlusion_query.QueryPipeline, error) {
	e.window.Lock()
	defer e.window.Unlock()

	stop := e.profiler.Time(profiler.StageAcquire)
	acquired, err := e.acquire(slot)
	stop()
	if err != nil {
		return nil, err
	}

	stop = e.profiler.Time(profiler.StageCull)
	views := e.cull(scenes)
	stop()

	stop = e.profiler.Time(profiler.StageRecord)
	e.graph.Reset(slot)
	recorded, err := e.record(views, acquired)
	stop()
	if err != nil {
		return nil, err
	}

	stop = e.profiler.Time(profiler.StageEnqueue)
	err = e.graph.Finalize(e.pool)
	stop()
	if err != nil {
		return nil, fmt.Errorf("finalize graph: %w", err)
	}

	stop = e.profiler.Time(profiler.StageSubmit)
	_, err = e.driver.Submit(e.graph)
	stop()
	if err != nil {
		return nil, err
	}

	if acquired {
		stop = e.profiler.Time(profiler.StagePresent)
		err = e.renderer.Present(e.window, slot)
		stop()
		if err != nil {
			return nil, fmt.Errorf("present: %w", err)
		}
	}
	return recorded, nil
}

// acquire takes the window's next image for the slot. It reports false when the window is
// closed or its swapchain is out of date this frame.
func (e *engine) acquire(slot common.FrameSlot) (bool, error) {
	e.window.BeginFrame(slot)
	if !e.window.IsRunning() {
		return false, nil
	}
	sig, err := e.pool.AcquireSignal(slot)
	if err != nil {
		return false, fmt.Errorf("acquire image signal: %w", err)
	}
	ok, err := e.renderer.AcquireImage(e.window, slot, sig)
	if err != nil {
		return false, fmt.Errorf("acquire image: %w", err)
	}
	return ok, nil
}

// cull validates every camera of the active scenes and culls the valid ones. Cameras that
// disappeared since the last frame are forgotten and their query pipelines retired.
func (e *engine) cull(scenes []keyedScene) []cameraView {
	var views []cameraView
	live := make(map[uuid.UUID]struct{}, len(e.cameras))

	for _, ks := range scenes {
		var valid []camera.Camera
		for _, cam := range ks.scene.Cameras() {
			live[cam.ID()] = struct{}{}
			if err := cam.Validate(); err != nil {
				e.reportInvalid(cam.ID(), err)
				continue
			}
			delete(e.invalid, cam.ID())
			valid = append(valid, cam)
		}
		if len(valid) == 0 {
			continue
		}

		results := e.visibility.CullAll(valid, ks.scene.Entities())
		for _, cam := range valid {
			views = append(views, cameraView{cam: cam, result: results[cam.ID()]})
		}
	}

	for id := range e.cameras {
		if _, ok := live[id]; !ok {
			e.forgetCamera(id)
		}
	}
	e.cameras = live
	return views
}

// reportInvalid logs a camera precondition failure when it first occurs.
func (e *engine) reportInvalid(id uuid.UUID, err error) {
	msg := err.Error()
	if e.invalid[id] == msg {
		return
	}
	e.invalid[id] = msg
	log.Printf("[Engine] camera %s: %v; skipping its stage", id, err)
}

func (e *engine) forgetCamera(id uuid.UUID) {
	e.visibility.Forget(id)
	delete(e.invalid, id)
	if q, ok := e.queries[id]; ok {
		delete(e.queries, id)
		e.retiring = append(e.retiring, retiredPipeline{
			queries: q,
			after:   e.frame + uint64(e.maxFramesInFlight),
		})
	}
}

// releaseRetired releases the query pipelines whose last frame has been waited on.
func (e *engine) releaseRetired() {
	e.retiring = slices.DeleteFunc(e.retiring, func(r retiredPipeline) bool {
		if e.frame < r.after {
			return false
		}
		r.queries.Release()
		return true
	})
}

// record adds the frame's stages to the graph: acceleration structures, compute, one stage
// per camera render order group across all scenes, then the blit stage that carries
// presentation. Within a group cameras keep scene z-index order.
func (e *engine) record(views []cameraView, acquired bool) ([]occlusion_query.QueryPipeline, error) {
	if err := e.recordGlobal("acceleration structures", common.QueueCompute, common.StageAccelerationStructureBuild, e.recorder.RecordAccelerationStructures, false); err != nil {
		return nil, err
	}
	if err := e.recordGlobal("compute", common.QueueCompute, common.StageComputeShader, e.recorder.RecordCompute, false); err != nil {
		return nil, err
	}

	slices.SortStableFunc(views, func(a, b cameraView) int {
		return a.cam.RenderOrder() - b.cam.RenderOrder()
	})

	var recorded []occlusion_query.QueryPipeline
	for start := 0; start < len(views); {
		end := start + 1
		for end < len(views) && views[end].cam.RenderOrder() == views[start].cam.RenderOrder() {
			end++
		}

		var work []command_graph.Work
		for _, v := range views[start:end] {
			w, queries, err := e.recordCamera(v, acquired)
			if err != nil {
				return nil, err
			}
			if w == nil {
				continue
			}
			work = append(work, *w)
			if queries != nil {
				recorded = append(recorded, queries)
			}
		}
		if len(work) > 0 {
			name := fmt.Sprintf("order %d", views[start].cam.RenderOrder())
			if err := e.graph.AddStage(name, work...); err != nil {
				return nil, fmt.Errorf("add stage %s: %w", name, err)
			}
		}
		start = end
	}

	if err := e.recordGlobal("blit", common.QueueGraphics, common.StageColorAttachmentOutput, e.recorder.RecordBlit, acquired); err != nil {
		return nil, err
	}
	return recorded, nil
}

// recordGlobal records one global stage. The stage is added when it recorded work, or
// unconditionally when it has to carry the window's presentation dependency.
func (e *engine) recordGlobal(name string, queue common.QueueSelector, waitStage common.StageMask, fn func(recorder.Batch) (bool, error), present bool) error {
	batch, err := e.renderer.NewCommandBatch(name, queue)
	if err != nil {
		return fmt.Errorf("%s batch: %w", name, err)
	}
	ok, err := fn(batch)
	if err != nil {
		log.Printf("[Engine] record %s: %v; skipping its stage", name, err)
		ok = false
	}
	if !ok && !present {
		return nil
	}

	work := command_graph.Work{Batch: batch, WaitStage: waitStage}
	if present {
		work.Surfaces = []command_graph.PresentationSurface{e.window}
	}
	if err := e.graph.AddStage(name, work); err != nil {
		return fmt.Errorf("add stage %s: %w", name, err)
	}
	return nil
}

// recordCamera records one camera. A nil Work means the camera's stage was skipped.
func (e *engine) recordCamera(v cameraView, acquired bool) (*command_graph.Work, occlusion_query.QueryPipeline, error) {
	cam := v.cam
	batch, err := e.renderer.NewCommandBatch("camera "+cam.ID().String(), common.QueueGraphics)
	if err != nil {
		return nil, nil, fmt.Errorf("camera %s batch: %w", cam.ID(), err)
	}

	pass := recorder.CameraPass{Camera: cam, Visibility: v.result}
	if cam.DepthPrepass() {
		queries, err := e.queryPipeline(cam.ID())
		if err != nil {
			return nil, nil, err
		}
		queries.SetPaused(cam.VisibilityTestingPaused())
		if err := queries.Reset(batch); err != nil {
			log.Printf("[Engine] camera %s: reset queries: %v; skipping its stage", cam.ID(), err)
			return nil, nil, nil
		}
		pass.Queries = queries
	}

	if err := e.recorder.RecordCamera(batch, pass); err != nil {
		if pass.Queries != nil {
			pass.Queries.AbortRecording()
		}
		log.Printf("[Engine] camera %s: %v; skipping its stage", cam.ID(), err)
		return nil, nil, nil
	}
	if pass.Queries != nil {
		pass.Queries.FinishRecording()
	}

	work := &command_graph.Work{Batch: batch}
	if acquired && e.targetsWindow(cam) {
		work.WaitStage = common.StageColorAttachmentOutput
		work.Surfaces = []command_graph.PresentationSurface{e.window}
	}
	return work, pass.Queries, nil
}

// queryPipeline returns the camera's query pipeline, creating it on first use.
func (e *engine) queryPipeline(id uuid.UUID) (occlusion_query.QueryPipeline, error) {
	if q, ok := e.queries[id]; ok {
		return q, nil
	}
	label := "camera " + id.String()
	set, err := e.renderer.CreateQuerySet(label, uint32(e.maxEntities*e.maxViews))
	if err != nil {
		return nil, fmt.Errorf("camera %s query set: %w", id, err)
	}
	q, err := occlusion_query.NewQueryPipeline(set, e.maxEntities, e.maxViews, occlusion_query.WithLabel(label))
	if err != nil {
		set.Release()
		return nil, fmt.Errorf("camera %s query pipeline: %w", id, err)
	}
	e.queries[id] = q
	return q, nil
}

// download reads back the occlusion results recorded this frame, a few pipelines at a time.
func (e *engine) download(pipelines []occlusion_query.QueryPipeline) error {
	if len(pipelines) == 0 {
		return nil
	}
	defer e.profiler.Time(profiler.StageDownload)()

	var g errgroup.Group
	g.SetLimit(e.downloadWorkers)
	for _, q := range pipelines {
		g.Go(func() error {
			_, err := q.Download()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("download occlusion results: %w", err)
	}
	return nil
}

func (e *engine) targetsWindow(cam camera.Camera) bool {
	w, ok := cam.RenderTarget().(window.Window)
	return ok && w == e.window
}

// release waits for in-flight frames and frees every frame resource. Runs once.
func (e *engine) release() {
	e.releaseOnce.Do(func() {
		e.released = true
		if err := e.driver.Drain(); err != nil {
			log.Printf("[Engine] drain: %v", err)
		}
		for id, q := range e.queries {
			q.Release()
			delete(e.queries, id)
		}
		for _, r := range e.retiring {
			r.queries.Release()
		}
		e.retiring = nil
		e.visibility.Release()
		e.pool.Destroy()
		e.renderer.Release()
	})
}

// keyedScene is an active scene and its z-index.
type keyedScene struct {
	key   int
	scene scene.Scene
}

// activeScenes returns the active scenes in ascending z-index order.
func (e *engine) activeScenes() []keyedScene {
	e.scenesMu.RLock()
	defer e.scenesMu.RUnlock()

	keys := make([]int, 0, len(e.scenes))
	for k := range e.scenes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]keyedScene, 0, len(keys))
	for _, k := range keys {
		if s := e.scenes[k]; s.Active() {
			out = append(out, keyedScene{key: k, scene: s})
		}
	}
	return out
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	e.scenes[key] = s
}

func (e *engine) RemoveScene(key int) {
	e.scenesMu.Lock()
	defer e.scenesMu.Unlock()
	delete(e.scenes, key)
}

func (e *engine) Scene(key int) scene.Scene {
	e.scenesMu.RLock()
	defer e.scenesMu.RUnlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.scenesMu.RLock()
	defer e.scenesMu.RUnlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}
