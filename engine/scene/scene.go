package scene

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/game_object"
	"github.com/Carmen-Shannon/oxy-frame/engine/visibility"
	"github.com/google/uuid"
)

var (
	// ErrSceneFull is returned when every entity index below the scene's capacity is taken.
	ErrSceneFull = errors.New("scene is full")

	// ErrAlreadyAdded is returned when an object that already has a scene index is added.
	ErrAlreadyAdded = errors.New("object already belongs to a scene")
)

// Scene owns the entities and cameras one frame loop renders.
// Entity indices are stable for an entity's lifetime and double as its occlusion query index;
// freed indices are reused lowest first. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Capacity returns the maximum number of entities.
	Capacity() int

	// Count returns the number of live entities.
	Count() int

	// Add assigns the object the lowest free index and registers it.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - int: the assigned index
	//   - error: ErrSceneFull or ErrAlreadyAdded
	Add(obj game_object.GameObject) (int, error)

	// Get returns the object at index, or nil.
	//
	// Parameters:
	//   - index: the entity index
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(index int) game_object.GameObject

	// Remove unregisters the object at index and frees the index.
	//
	// Parameters:
	//   - index: the entity index
	Remove(index int)

	// Clear removes every entity. Cameras are kept.
	Clear()

	// Entities returns the live entities in index order.
	//
	// Returns:
	//   - []visibility.Entity: the entities
	Entities() []visibility.Entity

	// AddCamera registers a camera.
	//
	// Parameters:
	//   - cam: the camera
	AddCamera(cam camera.Camera)

	// RemoveCamera unregisters the camera with the given id.
	//
	// Parameters:
	//   - id: the camera id
	RemoveCamera(id uuid.UUID)

	// Cameras returns the registered cameras ordered by render order, ties in registration order.
	//
	// Returns:
	//   - []camera.Camera: the cameras
	Cameras() []camera.Camera

	// Update advances every object by dt in parallel and refreshes camera transforms.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	Update(dt float32)

	// Release stops the scene's worker pool.
	Release()
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	capacity int
	objects  []game_object.GameObject
	free     []int
	count    int

	cameras []camera.Camera

	workerPool worker.DynamicWorkerPool
	workers    int
	chunkSize  int
}

var _ Scene = &scene{}

// NewScene creates a Scene with room for capacity entities.
//
// Parameters:
//   - name: the scene identifier, "scene" when empty
//   - capacity: the maximum number of entities
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
func NewScene(name string, capacity int, options ...SceneBuilderOption) Scene {
	if capacity <= 0 {
		panic(fmt.Sprintf("scene: capacity must be positive, got %d", capacity))
	}
	s := &scene{
		mu:        &sync.RWMutex{},
		name:      common.Coalesce(name, "scene"),
		active:    true,
		capacity:  capacity,
		workers:   max(runtime.NumCPU()-1, 1),
		chunkSize: 256,
	}
	for _, opt := range options {
		opt(s)
	}
	s.workerPool = worker.NewDynamicWorkerPool(s.workers, 64, time.Second)
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Capacity() int {
	return s.capacity
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *scene) Add(obj game_object.GameObject) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(obj)
}

func (s *scene) addLocked(obj game_object.GameObject) (int, error) {
	if obj.Index() >= 0 {
		return -1, ErrAlreadyAdded
	}

	var idx int
	switch {
	case len(s.free) > 0:
		idx = s.free[0]
		s.free = s.free[1:]
	case len(s.objects) < s.capacity:
		idx = len(s.objects)
		s.objects = append(s.objects, nil)
	default:
		return -1, fmt.Errorf("%w: capacity %d", ErrSceneFull, s.capacity)
	}

	s.objects[idx] = obj
	obj.SetIndex(idx)
	s.count++
	return idx, nil
}

func (s *scene) Get(index int) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.objects) {
		return nil
	}
	return s.objects[index]
}

func (s *scene) Remove(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.objects) || s.objects[index] == nil {
		return
	}
	s.objects[index].SetIndex(-1)
	s.objects[index] = nil
	s.count--

	pos, _ := slices.BinarySearch(s.free, index)
	s.free = slices.Insert(s.free, pos, index)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range s.objects {
		if obj != nil {
			obj.SetIndex(-1)
		}
	}
	s.objects = nil
	s.free = nil
	s.count = 0
}

func (s *scene) Entities() []visibility.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]visibility.Entity, 0, s.count)
	for _, obj := range s.objects {
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

func (s *scene) AddCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cameras {
		if c.ID() == cam.ID() {
			return
		}
	}
	s.cameras = append(s.cameras, cam)
}

func (s *scene) RemoveCamera(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras = slices.DeleteFunc(s.cameras, func(c camera.Camera) bool {
		return c.ID() == id
	})
}

func (s *scene) Cameras() []camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.cameras)
	slices.SortStableFunc(out, func(a, b camera.Camera) int {
		return a.RenderOrder() - b.RenderOrder()
	})
	return out
}

// Update splits the objects into chunks and runs each chunk on the worker pool, waiting on a
// WaitGroup barrier before refreshing the cameras.
func (s *scene) Update(dt float32) {
	s.mu.RLock()
	objects := slices.Clone(s.objects)
	cameras := slices.Clone(s.cameras)
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for start := 0; start < len(objects); start += s.chunkSize {
		chunk := objects[start:min(start+s.chunkSize, len(objects))]
		wg.Add(1)
		s.workerPool.SubmitTask(worker.Task{
			ID: start,
			Do: func() (any, error) {
				defer wg.Done()
				for _, obj := range chunk {
					if obj != nil && obj.Enabled() {
						obj.Update(dt)
					}
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	for _, cam := range cameras {
		cam.Update()
	}
}

func (s *scene) Release() {
	s.workerPool.Stop()
}
