package livemap

import (
	"math"
	"strconv"
	"strings"
	"time"

	"parkflow/internal/entities"
	apperrors "parkflow/internal/errors"
)

const (
	MinScale   = 0.3
	MaxScale   = 3.0
	ZoomFactor = 1.2

	DefaultSpotPrefix = "spot-"
)

// Transform maps world coordinates to the screen: screen = (world + offset) * scale.
type Transform struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

func (t Transform) ToScreen(p entities.Point) entities.Point {
	return entities.Point{
		X: (p.X + t.OffsetX) * t.Scale,
		Y: (p.Y + t.OffsetY) * t.Scale,
	}
}

type SpotState string

const (
	SpotAvailable SpotState = "available"
	SpotOccupied  SpotState = "occupied"
	SpotReserved  SpotState = "reserved"
	SpotSelected  SpotState = "selected"
)

type Option func(*Viewport)

// WithAnchor sets the screen point a located spot is centred on.
func WithAnchor(p entities.Point) Option {
	return func(v *Viewport) { v.anchor = p }
}

// WithSpotPrefix sets the prefix that turns a bare spot number into a full id.
func WithSpotPrefix(prefix string) Option {
	return func(v *Viewport) { v.spotPrefix = prefix }
}

// OnSelect registers the listener told about every successful selection.
func OnSelect(fn func(entities.Spot)) Option {
	return func(v *Viewport) { v.onSelect = fn }
}

// Viewport is the pan/zoom state over one parking's layout plus the spot
// highlight. It is not safe for concurrent use; its owner serializes access.
type Viewport struct {
	transform   Transform
	dragging    bool
	lastPointer entities.Point

	anchor     entities.Point
	spotPrefix string
	onSelect   func(entities.Spot)

	layout      entities.ParkingLayout
	index       map[string]int
	highlighted string
}

func NewViewport(layout entities.ParkingLayout, opts ...Option) *Viewport {
	v := &Viewport{
		transform:  Transform{Scale: 1},
		anchor:     entities.Point{X: 400, Y: 300},
		spotPrefix: DefaultSpotPrefix,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.SetLayout(layout)
	return v
}

func (v *Viewport) Transform() Transform { return v.transform }
func (v *Viewport) Dragging() bool       { return v.dragging }
func (v *Viewport) ParkingID() string    { return v.layout.ParkingID }

// SetLayout swaps in a freshly fetched layout. The highlight survives only if the
// spot still exists and is still selectable.
func (v *Viewport) SetLayout(layout entities.ParkingLayout) {
	layout.Spots = append([]entities.Spot(nil), layout.Spots...)
	v.layout = layout
	v.index = make(map[string]int, len(layout.Spots))
	for i, s := range layout.Spots {
		v.index[strings.ToLower(s.ID)] = i
	}
	if v.highlighted != "" {
		s, ok := v.spot(v.highlighted)
		if !ok || !s.Selectable() {
			v.highlighted = ""
		}
	}
}

func (v *Viewport) ZoomIn() {
	v.transform.Scale = clampScale(v.transform.Scale * ZoomFactor)
}

func (v *Viewport) ZoomOut() {
	v.transform.Scale = clampScale(v.transform.Scale / ZoomFactor)
}

func (v *Viewport) ResetView() {
	v.transform = Transform{Scale: 1}
	v.dragging = false
}

func (v *Viewport) BeginDrag(p entities.Point) {
	v.dragging = true
	v.lastPointer = p
}

// Drag pans by the pointer delta divided by the scale, so a pointer move covers
// the same on-screen distance whatever the zoom level.
func (v *Viewport) Drag(p entities.Point) {
	if !v.dragging {
		return
	}
	v.transform.OffsetX += (p.X - v.lastPointer.X) / v.transform.Scale
	v.transform.OffsetY += (p.Y - v.lastPointer.Y) / v.transform.Scale
	v.lastPointer = p
}

func (v *Viewport) EndDrag() {
	v.dragging = false
}

// NormalizeSpotID accepts a bare number ("7", "#07") or a full spot id.
func (v *Viewport) NormalizeSpotID(text string) string {
	id := strings.TrimPrefix(strings.TrimSpace(text), "#")
	if n, err := strconv.Atoi(id); err == nil && n >= 0 {
		return v.spotPrefix + strconv.Itoa(n)
	}
	return id
}

// LocateSpot looks the typed id up and selects the spot when it is free.
// An occupied or reserved spot is a conflict and leaves the highlight alone;
// an unknown id is not found and clears it.
func (v *Viewport) LocateSpot(text string) (entities.Spot, error) {
	id := v.NormalizeSpotID(text)
	if id == "" {
		v.highlighted = ""
		return entities.Spot{}, apperrors.New(apperrors.ErrValidation, "spot id is empty")
	}
	return v.SelectSpot(id)
}

// SelectSpot is the click path: same outcome as LocateSpot without text lookup.
func (v *Viewport) SelectSpot(id string) (entities.Spot, error) {
	s, ok := v.spot(id)
	if !ok {
		v.highlighted = ""
		return entities.Spot{}, apperrors.Newf(apperrors.ErrNotFound, "spot %s does not exist", id)
	}
	switch {
	case s.IsOccupied:
		return s, apperrors.Newf(apperrors.ErrConflict, "spot %s is occupied", s.ID)
	case s.IsReserved:
		return s, apperrors.Newf(apperrors.ErrConflict, "spot %s is reserved", s.ID)
	}

	v.highlighted = s.ID
	v.centerOn(s.Position)
	if v.onSelect != nil {
		v.onSelect(s)
	}
	return s, nil
}

func (v *Viewport) ClearHighlight() {
	v.highlighted = ""
}

func (v *Viewport) Highlighted() (entities.Spot, bool) {
	if v.highlighted == "" {
		return entities.Spot{}, false
	}
	return v.spot(v.highlighted)
}

// ApplyReservations recomputes IsReserved for every spot: a spot is reserved when
// a reservation for this parking and spot covers now.
func (v *Viewport) ApplyReservations(reservations []entities.SpotReservation, now time.Time) {
	active := make(map[string]bool)
	for _, r := range reservations {
		if r.ParkingID != v.layout.ParkingID || !r.Covers(now) {
			continue
		}
		active[strings.ToLower(r.SpotID)] = true
	}
	for i := range v.layout.Spots {
		v.layout.Spots[i].IsReserved = active[strings.ToLower(v.layout.Spots[i].ID)]
	}
	if s, ok := v.Highlighted(); ok && !s.Selectable() {
		v.highlighted = ""
	}
}

func (v *Viewport) StateOf(s entities.Spot) SpotState {
	switch {
	case s.IsOccupied:
		return SpotOccupied
	case s.IsReserved:
		return SpotReserved
	case strings.EqualFold(s.ID, v.highlighted):
		return SpotSelected
	}
	return SpotAvailable
}

func (v *Viewport) spot(id string) (entities.Spot, bool) {
	i, ok := v.index[strings.ToLower(id)]
	if !ok {
		return entities.Spot{}, false
	}
	return v.layout.Spots[i], true
}

func (v *Viewport) centerOn(p entities.Point) {
	v.transform.OffsetX = v.anchor.X/v.transform.Scale - p.X
	v.transform.OffsetY = v.anchor.Y/v.transform.Scale - p.Y
}

func clampScale(s float64) float64 {
	return math.Min(MaxScale, math.Max(MinScale, s))
}
