package scene

import (
	"log"

	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/game_object"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithObjects adds initial objects to the scene in order. Objects that do not fit are logged and skipped.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			if _, err := s.addLocked(obj); err != nil {
				log.Printf("[Scene] %s: skipping initial object: %v", s.name, err)
			}
		}
	}
}

// WithCameras registers initial cameras.
//
// Parameters:
//   - cameras: the cameras to register
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCameras(cameras ...camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.cameras = append(s.cameras, cameras...)
	}
}

// WithWorkers sets the number of workers Update fans out across.
//
// Parameters:
//   - n: the worker count, at least 1
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		s.workers = max(n, 1)
	}
}

// WithUpdateChunkSize sets how many objects one Update task advances.
//
// Parameters:
//   - n: the chunk size, at least 1
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithUpdateChunkSize(n int) SceneBuilderOption {
	return func(s *scene) {
		s.chunkSize = max(n, 1)
	}
}
