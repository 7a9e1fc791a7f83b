package geo

import (
	"math"
	"sort"

	"parkflow/internal/entities"
)

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two positions.
func DistanceKm(a, b entities.Position) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// SortByDistance orders parkings nearest first; ties keep the backend order.
func SortByDistance(parkings []entities.Parking, from entities.Position) {
	sort.SliceStable(parkings, func(i, j int) bool {
		return DistanceKm(from, parkings[i].Position) < DistanceKm(from, parkings[j].Position)
	})
}
