package track

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/okranz/tracklog/internal/domain"
)

// KML XML mapping. Placemarks can sit directly under <kml>, under <Document>,
// or inside arbitrarily nested <Folder> elements, so the folder type recurses.
type kmlFile struct {
	XMLName    xml.Name       `xml:"kml"`
	Document   *kmlFolder     `xml:"Document"`
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string        `xml:"name"`
	LineStrings []kmlGeometry `xml:"LineString"`
	Points      []kmlGeometry `xml:"Point"`
	Multi       *kmlMulti     `xml:"MultiGeometry"`
}

type kmlMulti struct {
	LineStrings []kmlGeometry `xml:"LineString"`
	Points      []kmlGeometry `xml:"Point"`
}

type kmlGeometry struct {
	Coordinates string `xml:"coordinates"`
}

// parseKML decodes a KML document, collecting coordinates from every
// LineString and Point geometry in document order.
func parseKML(data []byte) (domain.RawTrack, error) {
	var doc kmlFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return domain.RawTrack{}, domain.NewParseError(domain.ParseMalformed, domain.FormatKML, err)
	}

	raw := domain.RawTrack{Format: domain.FormatKML}
	if doc.Document != nil {
		raw.Name = doc.Document.Name
		collectFolder(*doc.Document, &raw)
	}
	for _, f := range doc.Folders {
		collectFolder(f, &raw)
	}
	collectPlacemarks(doc.Placemarks, &raw)
	return raw, nil
}

func collectFolder(f kmlFolder, raw *domain.RawTrack) {
	collectPlacemarks(f.Placemarks, raw)
	for _, sub := range f.Folders {
		collectFolder(sub, raw)
	}
}

func collectPlacemarks(placemarks []kmlPlacemark, raw *domain.RawTrack) {
	for _, pm := range placemarks {
		if raw.Name == "" {
			raw.Name = pm.Name
		}
		geoms := pm.LineStrings
		geoms = append(geoms, pm.Points...)
		if pm.Multi != nil {
			geoms = append(geoms, pm.Multi.LineStrings...)
			geoms = append(geoms, pm.Multi.Points...)
		}
		for _, g := range geoms {
			raw.Points = append(raw.Points, parseCoordinates(g.Coordinates)...)
		}
	}
}

// parseCoordinates splits a KML coordinates block: whitespace-separated
// tuples of "lon,lat[,ele]". Malformed tuples are skipped rather than
// failing the file — partial garbage inside an otherwise valid KML is
// common in hand-exported files.
func parseCoordinates(s string) []domain.TrackPoint {
	var points []domain.TrackPoint
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lon, errLon := strconv.ParseFloat(parts[0], 64)
		lat, errLat := strconv.ParseFloat(parts[1], 64)
		if errLon != nil || errLat != nil {
			continue
		}
		tp := domain.TrackPoint{Lat: lat, Lon: lon}
		if len(parts) >= 3 {
			if ele, err := strconv.ParseFloat(parts[2], 64); err == nil {
				tp.Elevation = &ele
			}
		}
		points = append(points, tp)
	}
	return points
}
