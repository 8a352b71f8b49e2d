package visibility

import (
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Result holds a camera's culling output, one front-to-back list per view.
type Result [][]VisibleEntityInfo

type visibilityEngine struct {
	mu *sync.Mutex

	cache map[uuid.UUID]Result

	pool    worker.DynamicWorkerPool
	workers int
}

// VisibilityEngine frustum-culls and depth-sorts entities per camera and per view.
// Results are cached per camera; a camera with visibility testing paused gets its
// previous result back unchanged.
type VisibilityEngine interface {
	// Cull computes the visibility of every renderable entity for each of the camera's views.
	// The camera's own entity is skipped.
	//
	// Parameters:
	//   - cam: the camera to cull for
	//   - entities: the scene's entities
	//
	// Returns:
	//   - Result: one sorted list per view
	Cull(cam camera.Camera, entities []Entity) Result

	// CullAll culls for every camera in parallel and waits for all of them.
	//
	// Parameters:
	//   - cams: the cameras to cull for
	//   - entities: the scene's entities
	//
	// Returns:
	//   - map[uuid.UUID]Result: results keyed by camera id
	CullAll(cams []camera.Camera, entities []Entity) map[uuid.UUID]Result

	// Cached returns the last result computed for a camera.
	//
	// Parameters:
	//   - id: the camera id
	//
	// Returns:
	//   - Result: the cached result
	//   - bool: false if the camera was never culled
	Cached(id uuid.UUID) (Result, bool)

	// Forget drops the cached result of a removed camera.
	//
	// Parameters:
	//   - id: the camera id
	Forget(id uuid.UUID)

	// Release stops the worker pool.
	Release()
}

var _ VisibilityEngine = &visibilityEngine{}

// NewVisibilityEngine creates a VisibilityEngine backed by a worker pool.
//
// Parameters:
//   - options: functional options to configure the engine
//
// Returns:
//   - VisibilityEngine: the new engine
func NewVisibilityEngine(options ...VisibilityEngineBuilderOption) VisibilityEngine {
	v := &visibilityEngine{
		mu:      &sync.Mutex{},
		cache:   make(map[uuid.UUID]Result),
		workers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(v)
	}
	v.pool = worker.NewDynamicWorkerPool(v.workers, 64, 1*time.Second)
	return v
}

func (v *visibilityEngine) Cull(cam camera.Camera, entities []Entity) Result {
	id := cam.ID()
	if cam.VisibilityTestingPaused() {
		if cached, ok := v.Cached(id); ok {
			return cached
		}
	}

	res := make(Result, cam.ViewCount())
	for view := range res {
		res[view] = cullView(cam, view, entities)
	}

	v.mu.Lock()
	v.cache[id] = res
	v.mu.Unlock()
	return res
}

func (v *visibilityEngine) CullAll(cams []camera.Camera, entities []Entity) map[uuid.UUID]Result {
	results := make([]Result, len(cams))

	var wg sync.WaitGroup
	for i, cam := range cams {
		wg.Add(1)
		idx := i
		c := cam
		v.pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				results[idx] = v.Cull(c, entities)
				return nil, nil
			},
		})
	}
	wg.Wait()

	out := make(map[uuid.UUID]Result, len(cams))
	for i, cam := range cams {
		out[cam.ID()] = results[i]
	}
	return out
}

func (v *visibilityEngine) Cached(id uuid.UUID) (Result, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	res, ok := v.cache[id]
	return res, ok
}

func (v *visibilityEngine) Forget(id uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.cache, id)
}

func (v *visibilityEngine) Release() {
	v.pool.Stop()
}

// cullView tests every renderable entity against one view's frustum and sorts the
// result front to back, ties broken by entity index.
func cullView(cam camera.Camera, view int, entities []Entity) []VisibleEntityInfo {
	viewProj := cam.Projection(view).Mul4(cam.View(view)).Mul4(cam.WorldToLocal())
	camPos := cam.Position()
	self := cam.EntityIndex()

	out := make([]VisibleEntityInfo, 0, len(entities))
	for _, e := range entities {
		if e == nil || !e.Renderable() || e.Index() == self {
			continue
		}

		info := VisibleEntityInfo{Entity: e, Distance: math32.Inf(1)}
		bounds := e.Bounds()
		frustum := common.ExtractFrustum(viewProj.Mul4(e.LocalToWorld()))
		if frustum.CheckSphere(bounds.Centroid, bounds.Radius) {
			info.Visible = true
			info.Distance = NearestPointDistance(camPos, bounds, e.LocalToWorld(), e.WorldToLocal())
		}
		out = append(out, info)
	}

	slices.SortStableFunc(out, func(a, b VisibleEntityInfo) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return a.Entity.Index() - b.Entity.Index()
	})
	return out
}

// NearestPointDistance returns the distance from camPos to the point of the bounding
// sphere nearest to it. The offset from the centroid is clamped to the centroid
// distance, so a camera inside the sphere gets a distance of zero.
//
// Parameters:
//   - camPos: the camera position in world space
//   - bounds: the entity's local bounding sphere
//   - localToWorld: the entity's model matrix
//   - worldToLocal: the inverse model matrix
//
// Returns:
//   - float32: the distance in world units
func NearestPointDistance(camPos mgl32.Vec3, bounds common.BoundingSphere, localToWorld, worldToLocal mgl32.Mat4) float32 {
	camLocal := mgl32.TransformCoordinate(camPos, worldToLocal)
	toCam := camLocal.Sub(bounds.Centroid)

	nearest := bounds.Centroid
	if d := toCam.Len(); d > 0 {
		nearest = nearest.Add(toCam.Mul(min(bounds.Radius, d) / d))
	}
	return camPos.Sub(mgl32.TransformCoordinate(nearest, localToWorld)).Len()
}
