package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/game_object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScene_AddAssignsLowestFreeIndex(t *testing.T) {
	s := NewScene("test", 4, WithWorkers(1))
	t.Cleanup(s.Release)

	objs := make([]game_object.GameObject, 4)
	for i := range objs {
		objs[i] = game_object.NewGameObject()
		idx, err := s.Add(objs[i])
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	_, err := s.Add(game_object.NewGameObject())
	assert.ErrorIs(t, err, ErrSceneFull)

	s.Remove(2)
	s.Remove(0)
	assert.Equal(t, -1, objs[2].Index())
	assert.Nil(t, s.Get(2))
	assert.Equal(t, 2, s.Count())

	a := game_object.NewGameObject()
	idx, err := s.Add(a)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	b := game_object.NewGameObject()
	idx, err = s.Add(b)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = s.Add(b)
	assert.ErrorIs(t, err, ErrAlreadyAdded)
}

func TestScene_EntitiesInIndexOrder(t *testing.T) {
	objs := []game_object.GameObject{game_object.NewGameObject(), game_object.NewGameObject(), game_object.NewGameObject()}
	s := NewScene("test", 8, WithObjects(objs...))
	t.Cleanup(s.Release)

	s.Remove(1)
	ents := s.Entities()
	require.Len(t, ents, 2)
	assert.Equal(t, 0, ents[0].Index())
	assert.Equal(t, 2, ents[1].Index())

	s.Clear()
	assert.Empty(t, s.Entities())
	assert.Equal(t, -1, objs[0].Index())
}

func TestScene_CamerasSortedByRenderOrder(t *testing.T) {
	late := camera.NewCamera(camera.WithRenderOrder(2))
	early := camera.NewCamera(camera.WithRenderOrder(0))
	mid := camera.NewCamera(camera.WithRenderOrder(1))
	tie := camera.NewCamera(camera.WithRenderOrder(1))

	s := NewScene("test", 1, WithCameras(late, early, mid))
	t.Cleanup(s.Release)
	s.AddCamera(tie)
	s.AddCamera(tie)

	cams := s.Cameras()
	require.Len(t, cams, 4)
	assert.Equal(t, early.ID(), cams[0].ID())
	assert.Equal(t, mid.ID(), cams[1].ID())
	assert.Equal(t, tie.ID(), cams[2].ID())
	assert.Equal(t, late.ID(), cams[3].ID())

	s.RemoveCamera(mid.ID())
	assert.Len(t, s.Cameras(), 3)
}

func TestScene_UpdateAdvancesEnabledObjects(t *testing.T) {
	s := NewScene("test", 64, WithWorkers(3), WithUpdateChunkSize(5))
	t.Cleanup(s.Release)

	var objs []game_object.GameObject
	for i := range 23 {
		o := game_object.NewGameObject(game_object.WithRotationSpeed(1, 0, 0), game_object.WithEnabled(i%2 == 0))
		_, err := s.Add(o)
		require.NoError(t, err)
		objs = append(objs, o)
	}

	s.Update(0.5)

	for i, o := range objs {
		rx, _, _ := o.Rotation()
		if i%2 == 0 {
			assert.InDelta(t, 0.5, rx, 1e-6, "object %d", i)
		} else {
			assert.Zero(t, rx, "object %d", i)
		}
	}
}

func TestNewScene_Defaults(t *testing.T) {
	s := NewScene("", 4)
	t.Cleanup(s.Release)

	assert.Equal(t, "scene", s.Name())
	assert.True(t, s.Active())
	assert.Equal(t, 4, s.Capacity())
	assert.Panics(t, func() { NewScene("empty", 0) })
}
