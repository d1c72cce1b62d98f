package dispatch

import (
	"math"
	"strconv"

	"github.com/edgecraft/edgecraft/routetable"
)

const earthRadiusKm = 6371.0

// viewerCoordinates parses the viewer's approximate position from
// edge-provided headers.
func viewerCoordinates(req *Request) (lat, lon float64, ok bool) {
	latValue := req.Header(headerViewerLatitude)
	lonValue := req.Header(headerViewerLongitude)
	if latValue == "" || lonValue == "" {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(latValue, 64)
	lon, errLon := strconv.ParseFloat(lonValue, 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// nearestServer picks the server with minimum great-circle distance to the
// viewer. With a single server, or without viewer coordinates, the first
// server is used.
func nearestServer(servers []routetable.ServerEndpoint, lat, lon float64, haveCoords bool) routetable.ServerEndpoint {
	if len(servers) == 1 || !haveCoords {
		return servers[0]
	}
	best := servers[0]
	bestDist := haversineKm(lat, lon, best.Lat, best.Lon)
	for _, server := range servers[1:] {
		if dist := haversineKm(lat, lon, server.Lat, server.Lon); dist < bestDist {
			best = server
			bestDist = dist
		}
	}
	return best
}

// haversineKm returns the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
