package model

import "strings"

// Legacy-data normalization. Older writers left driverId as null, "",
// whitespace, or even 0/false, stored documents under camelCase keys, and
// persisted geopoints as {_latitude,_longitude}. Every reader goes through
// the helpers in this file; writers always write canonical forms.

// ─── driverId ───────────────────────────────────────────────

// DriverIDOf normalizes a stored driver reference. Nil, empty and
// whitespace-only values all mean "no driver assigned".
func DriverIDOf(raw *string) string {
	if raw == nil {
		return ""
	}
	return strings.TrimSpace(*raw)
}

// NormalizeDriverValue normalizes a driver reference decoded from loosely
// typed storage (JSONB, wire payloads). Numbers and booleans are legacy
// junk and mean unassigned.
func NormalizeDriverValue(raw any) string {
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// ─── document keys ──────────────────────────────────────────

// legacyDocumentKeys maps canonical snake_case kinds to the camelCase
// variants older rows still use.
var legacyDocumentKeys = map[string]string{
	"driving_license": "drivingLicense",
	"aadhaar_card":    "aadhaarCard",
	"bike_insurance":  "bikeInsurance",
	"rc_book":         "rcBook",
	"profile_photo":   "profilePhoto",
}

// DocumentRecordFor looks up a document by kind under both the canonical
// snake_case key and the legacy camelCase key.
func DocumentRecordFor(docs map[string]DocumentRecord, kind string) (DocumentRecord, bool) {
	if docs == nil {
		return DocumentRecord{}, false
	}
	if rec, ok := docs[kind]; ok {
		return rec, true
	}
	if legacy, ok := legacyDocumentKeys[kind]; ok {
		if rec, ok := docs[legacy]; ok {
			return rec, true
		}
	}
	return DocumentRecord{}, false
}

// CanonicalDocumentKind maps either key variant to the snake_case kind.
// Unknown kinds are returned unchanged.
func CanonicalDocumentKind(kind string) string {
	for canonical, legacy := range legacyDocumentKeys {
		if kind == canonical || kind == legacy {
			return canonical
		}
	}
	return kind
}

// IsRequiredDocumentKind reports whether the (possibly legacy-keyed) kind is
// one of the five required kinds.
func IsRequiredDocumentKind(kind string) bool {
	canonical := CanonicalDocumentKind(kind)
	for _, k := range RequiredDocumentKinds {
		if canonical == k {
			return true
		}
	}
	return false
}

// ─── geopoints ──────────────────────────────────────────────

// NormalizeGeoPoint converts any stored geopoint shape to the wire shape.
// Accepted inputs: GeoPoint, *GeoPoint, and maps with latitude/longitude,
// lat/lng, or the store's _latitude/_longitude fields.
func NormalizeGeoPoint(raw any) (GeoPoint, bool) {
	switch v := raw.(type) {
	case GeoPoint:
		return v, true
	case *GeoPoint:
		if v == nil {
			return GeoPoint{}, false
		}
		return *v, true
	case map[string]any:
		if lat, lng, ok := latLngFromMap(v); ok {
			return GeoPoint{Latitude: lat, Longitude: lng}, true
		}
	}
	return GeoPoint{}, false
}

func latLngFromMap(m map[string]any) (float64, float64, bool) {
	pairs := [][2]string{
		{"latitude", "longitude"},
		{"lat", "lng"},
		{"_latitude", "_longitude"},
	}
	for _, p := range pairs {
		lat, okLat := asFloat(m[p[0]])
		lng, okLng := asFloat(m[p[1]])
		if okLat && okLng {
			return lat, lng, true
		}
	}
	return 0, 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
