package conditions

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

const validSquare = `[[10.0,20.0],[10.0,21.0],[11.0,21.0],[11.0,20.0]]`

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		coordinates string
		date        string
		want        []string
	}{
		{
			name:        "valid square",
			coordinates: validSquare,
			date:        `"2024-06-01"`,
			want:        nil,
		},
		{
			name:        "exponent literals are floats",
			coordinates: `[[1e1,2E1],[1.0e1,2.1e1],[-11.5,21.0],[11.0,-0.0]]`,
			date:        `"2024-06-01"`,
			want:        nil,
		},
		{
			name:        "integer coordinates rejected",
			coordinates: `[[10,20],[10,21],[11,21],[11,20]]`,
			date:        `"2024-06-01"`,
			want: []string{
				"Point 1 must contain two floats (lon, lat).",
				"Point 2 must contain two floats (lon, lat).",
				"Point 3 must contain two floats (lon, lat).",
				"Point 4 must contain two floats (lon, lat).",
			},
		},
		{
			name:        "one integer component",
			coordinates: `[[10.0,20.0],[10.0,21],[11.0,21.0],[11.0,20.0]]`,
			date:        `"2024-06-01"`,
			want:        []string{"Point 2 must contain two floats (lon, lat)."},
		},
		{
			name:        "too few points skips point checks",
			coordinates: `[[10,20],[10.0,21.0],[11.0,21.0]]`,
			date:        `"2024-06-01"`,
			want:        []string{msgCoordinates},
		},
		{
			name:        "coordinates not a list",
			coordinates: `"10,20"`,
			date:        `"2024-06-01"`,
			want:        []string{msgCoordinates},
		},
		{
			name:        "coordinates missing",
			coordinates: ``,
			date:        `"2024-06-01"`,
			want:        []string{msgCoordinates},
		},
		{
			name:        "malformed points reported and skipped",
			coordinates: `[[10.0,20.0],[10.0],[11.0,21.0,3.0],"x",[11.0,"20.0"]]`,
			date:        `"2024-06-01"`,
			want: []string{
				"Point 2 is not a list of two elements.",
				"Point 3 is not a list of two elements.",
				"Point 4 is not a list of two elements.",
				"Point 5 must contain two floats (lon, lat).",
			},
		},
		{
			name:        "out of range literal rejected",
			coordinates: `[[1e400,20.0],[10.0,-1e400],[11.0,21.0],[11.0,20.0]]`,
			date:        `"2024-06-01"`,
			want: []string{
				"Point 1 must contain two floats (lon, lat).",
				"Point 2 must contain two floats (lon, lat).",
			},
		},
		{
			name:        "booleans and nulls are not floats",
			coordinates: `[[true,20.0],[10.0,null],[11.0,21.0],[11.0,20.0]]`,
			date:        `"2024-06-01"`,
			want: []string{
				"Point 1 must contain two floats (lon, lat).",
				"Point 2 must contain two floats (lon, lat).",
			},
		},
		{
			name:        "date in wrong layout",
			coordinates: validSquare,
			date:        `"06/01/2024"`,
			want:        []string{msgDate},
		},
		{
			name:        "date out of range",
			coordinates: validSquare,
			date:        `"2024-02-30"`,
			want:        []string{msgDate},
		},
		{
			name:        "date with time of day",
			coordinates: validSquare,
			date:        `"2024-06-01T00:00:00Z"`,
			want:        []string{msgDate},
		},
		{
			name:        "date not a string",
			coordinates: validSquare,
			date:        `20240601`,
			want:        []string{msgDate},
		},
		{
			name:        "date missing",
			coordinates: validSquare,
			date:        ``,
			want:        []string{msgDate},
		},
		{
			name:        "errors accumulate across fields",
			coordinates: `[]`,
			date:        `null`,
			want:        []string{msgCoordinates, msgDate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var coords, date []byte
			if tt.coordinates != "" {
				coords = []byte(tt.coordinates)
			}
			if tt.date != "" {
				date = []byte(tt.date)
			}

			got := Validate(coords, date)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRequest(t *testing.T) {
	q, errs := ParseRequest([]byte(`{"coordinates": ` + validSquare + `, "date": "2024-06-01"}`))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if len(q.Polygon) != 4 {
		t.Fatalf("expected 4 points, got %d", len(q.Polygon))
	}
	if got := q.Anchor(); got.Lon() != 10.0 || got.Lat() != 20.0 {
		t.Errorf("anchor = %v, want lon 10 lat 20", got)
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !q.Date.Equal(want) {
		t.Errorf("date = %s, want %s", q.Date, want)
	}
}

func TestParseRequestRejectsNonObjects(t *testing.T) {
	bodies := []string{``, `[]`, `"text"`, `42`, `{"coordinates":`, `null`}

	for _, body := range bodies {
		_, errs := ParseRequest([]byte(body))
		if len(errs) != 1 {
			t.Errorf("ParseRequest(%q) returned %d errors, want 1: %v", body, len(errs), errs)
			continue
		}
		if !strings.HasPrefix(errs[0], "validate request: ") {
			t.Errorf("ParseRequest(%q) error %q lacks generic prefix", body, errs[0])
		}
	}
}
