package livemap_test

import (
	"testing"
	"time"

	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
	"parkflow/internal/livemap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayout() entities.ParkingLayout {
	return entities.ParkingLayout{
		ParkingID: "p1",
		Spots: []entities.Spot{
			{ID: "spot-1", ParkingID: "p1", Position: entities.Point{X: 100, Y: 50}},
			{ID: "spot-2", ParkingID: "p1", Position: entities.Point{X: 140, Y: 50}, IsOccupied: true},
			{ID: "spot-3", ParkingID: "p1", Position: entities.Point{X: 180, Y: 50}},
			{ID: "spot-12", ParkingID: "p1", Position: entities.Point{X: 220, Y: 90}},
		},
		Streets: []entities.Street{{ID: "st-1", Position: entities.Point{X: 0, Y: 120}}},
		Arrows:  []entities.Arrow{{ID: "ar-1", Position: entities.Point{X: 20, Y: 120}, Rotation: 90}},
	}
}

func TestViewport_ZoomClamping(t *testing.T) {
	v := livemap.NewViewport(testLayout())
	for i := 0; i < 50; i++ {
		v.ZoomIn()
		require.LessOrEqual(t, v.Transform().Scale, livemap.MaxScale)
	}
	assert.Equal(t, livemap.MaxScale, v.Transform().Scale)

	for i := 0; i < 50; i++ {
		v.ZoomOut()
		require.GreaterOrEqual(t, v.Transform().Scale, livemap.MinScale)
	}
	assert.Equal(t, livemap.MinScale, v.Transform().Scale)

	v.ResetView()
	assert.Equal(t, livemap.Transform{Scale: 1}, v.Transform())
}

func TestViewport_DragIsScaleAware(t *testing.T) {
	v := livemap.NewViewport(testLayout())
	v.ZoomIn()
	v.ZoomIn() // 1.44

	v.Drag(entities.Point{X: 500, Y: 500})
	assert.Zero(t, v.Transform().OffsetX, "moves without a drag are ignored")

	v.BeginDrag(entities.Point{X: 10, Y: 10})
	assert.True(t, v.Dragging())
	v.Drag(entities.Point{X: 82, Y: 10})
	v.Drag(entities.Point{X: 154, Y: -62})
	v.EndDrag()

	assert.False(t, v.Dragging())
	assert.InDelta(t, 144/1.44, v.Transform().OffsetX, 1e-9)
	assert.InDelta(t, -72/1.44, v.Transform().OffsetY, 1e-9)
}

func TestViewport_LocateSpot(t *testing.T) {
	t.Run("bare number selects and recenters", func(t *testing.T) {
		var selected []string
		v := livemap.NewViewport(testLayout(),
			livemap.WithAnchor(entities.Point{X: 400, Y: 300}),
			livemap.OnSelect(func(s entities.Spot) { selected = append(selected, s.ID) }),
		)
		s, err := v.LocateSpot(" 12 ")
		require.NoError(t, err)
		assert.Equal(t, "spot-12", s.ID)
		assert.Equal(t, []string{"spot-12"}, selected)

		h, ok := v.Highlighted()
		require.True(t, ok)
		assert.Equal(t, "spot-12", h.ID)

		screen := v.Transform().ToScreen(h.Position)
		assert.InDelta(t, 400, screen.X, 1e-9)
		assert.InDelta(t, 300, screen.Y, 1e-9)
	})

	t.Run("qualified id is case insensitive", func(t *testing.T) {
		v := livemap.NewViewport(testLayout())
		s, err := v.LocateSpot("SPOT-3")
		require.NoError(t, err)
		assert.Equal(t, "spot-3", s.ID)
	})

	t.Run("occupied spot is a conflict and keeps the highlight", func(t *testing.T) {
		v := livemap.NewViewport(testLayout())
		_, err := v.LocateSpot("1")
		require.NoError(t, err)
		before := v.Transform()

		_, err = v.LocateSpot("2")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
		assert.Contains(t, apperrors.UserMessage(err), "occupied")

		h, ok := v.Highlighted()
		require.True(t, ok)
		assert.Equal(t, "spot-1", h.ID)
		assert.Equal(t, before, v.Transform())
	})

	t.Run("unknown id is not found and clears the highlight", func(t *testing.T) {
		v := livemap.NewViewport(testLayout())
		_, err := v.LocateSpot("1")
		require.NoError(t, err)

		_, err = v.LocateSpot("99")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
		_, ok := v.Highlighted()
		assert.False(t, ok)
	})

	t.Run("empty input", func(t *testing.T) {
		v := livemap.NewViewport(testLayout())
		_, err := v.LocateSpot("   ")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})
}

func TestViewport_ApplyReservations(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	v := livemap.NewViewport(testLayout())
	_, err := v.SelectSpot("spot-3")
	require.NoError(t, err)

	v.ApplyReservations([]entities.SpotReservation{
		{ParkingID: "p1", SpotID: "spot-3", StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
		{ParkingID: "p1", SpotID: "spot-1", StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
		{ParkingID: "p2", SpotID: "spot-12", StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
		{ParkingID: "p1", SpotID: "spot-12", StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour), Status: entities.StatusCanceled},
	}, now)

	_, ok := v.Highlighted()
	assert.False(t, ok, "a spot that became reserved loses its highlight")

	view := v.Render()
	states := map[string]livemap.SpotState{}
	for _, s := range view.Spots {
		states[s.ID] = s.State
	}
	assert.Equal(t, map[string]livemap.SpotState{
		"spot-1":  livemap.SpotAvailable,
		"spot-2":  livemap.SpotOccupied,
		"spot-3":  livemap.SpotReserved,
		"spot-12": livemap.SpotAvailable,
	}, states)

	_, err = v.SelectSpot("spot-3")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestViewport_Render(t *testing.T) {
	v := livemap.NewViewport(testLayout())
	_, err := v.SelectSpot("spot-1")
	require.NoError(t, err)

	view := v.Render()
	assert.Equal(t, "p1", view.ParkingID)
	assert.Equal(t, "spot-1", view.Highlighted)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, map[livemap.SpotState]int{
		livemap.SpotSelected:  1,
		livemap.SpotOccupied:  1,
		livemap.SpotAvailable: 2,
	}, view.Counts())

	for _, s := range view.Spots {
		assert.Equal(t, v.Transform().ToScreen(s.Position), s.Screen)
	}
}

func TestViewport_SetLayoutDropsStaleHighlight(t *testing.T) {
	v := livemap.NewViewport(testLayout())
	_, err := v.SelectSpot("spot-1")
	require.NoError(t, err)

	refreshed := testLayout()
	refreshed.Spots[0].IsOccupied = true
	v.SetLayout(refreshed)

	_, ok := v.Highlighted()
	assert.False(t, ok)
}
