package entities

type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Tariff holds the per-unit rates of a parking. A zero rate means the unit is not offered.
type Tariff struct {
	Hourly  float64 `json:"hourly"`
	Daily   float64 `json:"daily"`
	Weekly  float64 `json:"weekly"`
	Monthly float64 `json:"monthly"`
}

func (t Tariff) Computable() bool {
	return t.Hourly > 0 || t.Daily > 0 || t.Weekly > 0 || t.Monthly > 0
}

type Parking struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Position       Position      `json:"position"`
	TotalSpots     int           `json:"totalSpots"`
	AvailableSpots int           `json:"availableSpots"`
	Tariff         Tariff        `json:"tariff"`
	VehicleTypes   []VehicleType `json:"vehicleTypes"`
	Features       []string      `json:"features"`
	Images         []string      `json:"images"`
}

// Accepts reports whether the parking lists the vehicle type. An empty list accepts everything.
func (p Parking) Accepts(vt VehicleType) bool {
	if len(p.VehicleTypes) == 0 {
		return true
	}
	for _, v := range p.VehicleTypes {
		if v == vt {
			return true
		}
	}
	return false
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Spot struct {
	ID         string  `json:"id"`
	ParkingID  string  `json:"parkingId"`
	Position   Point   `json:"position"`
	Rotation   float64 `json:"rotation"`
	Size       Size    `json:"size"`
	IsOccupied bool    `json:"isOccupied"`
	IsReserved bool    `json:"isReserved"`
}

func (s Spot) Selectable() bool {
	return !s.IsOccupied && !s.IsReserved
}

// Street and Arrow are static layout decorations drawn around the spots.
type Street struct {
	ID       string  `json:"id"`
	Position Point   `json:"position"`
	Rotation float64 `json:"rotation"`
	Size     Size    `json:"size"`
}

type Arrow struct {
	ID       string  `json:"id"`
	Position Point   `json:"position"`
	Rotation float64 `json:"rotation"`
}

// ParkingLayout is everything the live map draws for one parking.
type ParkingLayout struct {
	ParkingID string   `json:"parkingId"`
	Spots     []Spot   `json:"spots"`
	Streets   []Street `json:"streets"`
	Arrows    []Arrow  `json:"arrows"`
}
