package livemap

import "parkflow/internal/entities"

type RenderedSpot struct {
	entities.Spot
	State  SpotState      `json:"state"`
	Screen entities.Point `json:"screen"`
}

type RenderedItem struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Rotation float64        `json:"rotation"`
	Size     entities.Size  `json:"size"`
	Screen   entities.Point `json:"screen"`
}

// View is one render pass: every entity with its screen position under the
// current transform and, for spots, the state to draw.
type View struct {
	ParkingID   string         `json:"parkingId"`
	Transform   Transform      `json:"transform"`
	Dragging    bool           `json:"dragging"`
	Highlighted string         `json:"highlighted,omitempty"`
	Spots       []RenderedSpot `json:"spots"`
	Items       []RenderedItem `json:"items"`
}

func (v *Viewport) Render() View {
	t := v.transform
	out := View{
		ParkingID:   v.layout.ParkingID,
		Transform:   t,
		Dragging:    v.dragging,
		Highlighted: v.highlighted,
		Spots:       make([]RenderedSpot, 0, len(v.layout.Spots)),
		Items:       make([]RenderedItem, 0, len(v.layout.Streets)+len(v.layout.Arrows)),
	}
	for _, s := range v.layout.Spots {
		out.Spots = append(out.Spots, RenderedSpot{
			Spot:   s,
			State:  v.StateOf(s),
			Screen: t.ToScreen(s.Position),
		})
	}
	for _, st := range v.layout.Streets {
		out.Items = append(out.Items, RenderedItem{
			ID: st.ID, Kind: "street", Rotation: st.Rotation, Size: st.Size, Screen: t.ToScreen(st.Position),
		})
	}
	for _, a := range v.layout.Arrows {
		out.Items = append(out.Items, RenderedItem{
			ID: a.ID, Kind: "arrow", Rotation: a.Rotation, Screen: t.ToScreen(a.Position),
		})
	}
	return out
}

// Counts tallies spots per state, for the legend.
func (view View) Counts() map[SpotState]int {
	counts := make(map[SpotState]int, 4)
	for _, s := range view.Spots {
		counts[s.State]++
	}
	return counts
}
