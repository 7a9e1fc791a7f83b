package entities

import "strings"

type VehicleType string

const (
	VehicleMoto       VehicleType = "Moto"
	VehicleCitadine   VehicleType = "Citadine"
	VehicleBerline    VehicleType = "Berline / Petit SUV"
	VehicleFamiliale  VehicleType = "Familiale / Grand SUV"
	VehicleUtilitaire VehicleType = "Utilitaire"
)

var VehicleTypes = []VehicleType{
	VehicleMoto,
	VehicleCitadine,
	VehicleBerline,
	VehicleFamiliale,
	VehicleUtilitaire,
}

// ParseVehicleType matches case-insensitively and ignores spacing around the slash,
// so "berline/petit suv" and "Berline / Petit SUV" are the same type.
func ParseVehicleType(s string) (VehicleType, bool) {
	key := normalizeVehicleKey(s)
	if key == "" {
		return "", false
	}
	for _, vt := range VehicleTypes {
		if normalizeVehicleKey(string(vt)) == key {
			return vt, true
		}
	}
	return "", false
}

func (v VehicleType) Valid() bool {
	_, ok := ParseVehicleType(string(v))
	return ok
}

func normalizeVehicleKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "/", " / ")), "")
}
