package geo

import "math"

const earthRadiusMeters = 6371000.0

// DistanceMeters - расстояние по большому кругу (формула гаверсинусов)
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Within сообщает, лежит ли точка внутри круга (граница включительно)
func Within(lat, lon, centerLat, centerLon float64, radiusMeters int) bool {
	return DistanceMeters(lat, lon, centerLat, centerLon) <= float64(radiusMeters)
}

func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
