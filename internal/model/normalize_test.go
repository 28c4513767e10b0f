package model

import "testing"

func TestDriverIDOf(t *testing.T) {
	blank := ""
	spaces := "  \t "
	padded := " driver-1 "
	cases := []struct {
		name string
		in   *string
		want string
	}{
		{"nil", nil, ""},
		{"empty", &blank, ""},
		{"whitespace", &spaces, ""},
		{"padded", &padded, "driver-1"},
	}
	for _, c := range cases {
		if got := DriverIDOf(c.in); got != c.want {
			t.Errorf("%s: DriverIDOf = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestNormalizeDriverValue(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"string", "driver-1", "driver-1"},
		{"padded", "  driver-1 ", "driver-1"},
		{"empty", "", ""},
		// Legacy junk: numbers and booleans mean unassigned.
		{"zero", 0, ""},
		{"float", 0.0, ""},
		{"false", false, ""},
		{"nil", nil, ""},
	}
	for _, c := range cases {
		if got := NormalizeDriverValue(c.in); got != c.want {
			t.Errorf("%s: NormalizeDriverValue(%v) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}

func TestDocumentRecordFor_BothKeyVariants(t *testing.T) {
	docs := map[string]DocumentRecord{
		"driving_license": {URL: "snake"},
		"aadhaarCard":     {URL: "camel"},
	}

	if rec, ok := DocumentRecordFor(docs, "driving_license"); !ok || rec.URL != "snake" {
		t.Errorf("snake_case lookup = %+v, %v", rec, ok)
	}
	if rec, ok := DocumentRecordFor(docs, "aadhaar_card"); !ok || rec.URL != "camel" {
		t.Errorf("legacy camelCase fallback = %+v, %v", rec, ok)
	}
	if _, ok := DocumentRecordFor(docs, "rc_book"); ok {
		t.Error("missing kind reported present")
	}
	if _, ok := DocumentRecordFor(nil, "rc_book"); ok {
		t.Error("nil map reported a record")
	}
}

func TestDocumentRecordFor_CanonicalWins(t *testing.T) {
	// When both key variants exist the canonical one is authoritative.
	docs := map[string]DocumentRecord{
		"rc_book": {URL: "snake"},
		"rcBook":  {URL: "camel"},
	}
	if rec, _ := DocumentRecordFor(docs, "rc_book"); rec.URL != "snake" {
		t.Errorf("lookup with both variants = %q, want the canonical record", rec.URL)
	}
}

func TestCanonicalDocumentKind(t *testing.T) {
	cases := map[string]string{
		"driving_license": "driving_license",
		"drivingLicense":  "driving_license",
		"profilePhoto":    "profile_photo",
		"passport":        "passport", // unknown kinds pass through
	}
	for in, want := range cases {
		if got := CanonicalDocumentKind(in); got != want {
			t.Errorf("CanonicalDocumentKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsRequiredDocumentKind(t *testing.T) {
	for _, kind := range RequiredDocumentKinds {
		if !IsRequiredDocumentKind(kind) {
			t.Errorf("IsRequiredDocumentKind(%q) = false", kind)
		}
	}
	if !IsRequiredDocumentKind("bikeInsurance") {
		t.Error("legacy key not recognized as required")
	}
	if IsRequiredDocumentKind("passport") {
		t.Error("unknown kind reported required")
	}
}

func TestNormalizeGeoPoint(t *testing.T) {
	want := GeoPoint{Latitude: 12.9716, Longitude: 77.5946}
	cases := []struct {
		name string
		in   any
		ok   bool
	}{
		{"struct", want, true},
		{"pointer", &want, true},
		{"wire map", map[string]any{"latitude": 12.9716, "longitude": 77.5946}, true},
		{"short map", map[string]any{"lat": 12.9716, "lng": 77.5946}, true},
		{"store map", map[string]any{"_latitude": 12.9716, "_longitude": 77.5946}, true},
		{"int coords", map[string]any{"lat": 12, "lng": 77}, true},
		{"half pair", map[string]any{"latitude": 12.9716}, false},
		{"nil pointer", (*GeoPoint)(nil), false},
		{"garbage", "12.97,77.59", false},
	}
	for _, c := range cases {
		got, ok := NormalizeGeoPoint(c.in)
		if ok != c.ok {
			t.Errorf("%s: ok = %v, want %v", c.name, ok, c.ok)
			continue
		}
		if c.name == "struct" || c.name == "pointer" || c.name == "wire map" || c.name == "short map" || c.name == "store map" {
			if got != want {
				t.Errorf("%s: NormalizeGeoPoint = %v, want %v", c.name, got, want)
			}
		}
	}
}
