package conditions

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// MinPolygonPoints is the smallest accepted number of polygon vertices.
const MinPolygonPoints = 4

const (
	msgCoordinates = "Coordinates must be a list with at least 4 points."
	msgDate        = "Date must be a valid string in 'YYYY-MM-DD' format."
)

// requestEnvelope is the raw request body. Fields stay undecoded so the
// validator can tell integer literals from floating-point ones.
type requestEnvelope struct {
	Coordinates json.RawMessage `json:"coordinates"`
	Date        json.RawMessage `json:"date"`
}

// ParseRequest decodes and validates a request body. On success the
// returned error list is empty and the query is fully populated.
func ParseRequest(body []byte) (Query, []string) {
	if t := bytes.TrimSpace(body); len(t) == 0 || t[0] != '{' {
		return Query{}, []string{"validate request: request body must be a JSON object"}
	}

	var env requestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Query{}, []string{fmt.Sprintf("validate request: %v", err)}
	}

	if errs := Validate(env.Coordinates, env.Date); len(errs) > 0 {
		return Query{}, errs
	}

	q, err := buildQuery(env)
	if err != nil {
		return Query{}, []string{fmt.Sprintf("validate request: %v", err)}
	}
	return q, nil
}

// Validate checks the raw coordinates and date values. It reports every
// problem it finds; an empty result means the input is accepted.
func Validate(coordinates, date json.RawMessage) []string {
	var errs []string

	points, ok := decodeArray(coordinates)
	if !ok || len(points) < MinPolygonPoints {
		errs = append(errs, msgCoordinates)
	} else {
		for i, raw := range points {
			pair, ok := decodeArray(raw)
			if !ok || len(pair) != 2 {
				errs = append(errs, fmt.Sprintf("Point %d is not a list of two elements.", i+1))
				continue
			}
			if !isFloatLiteral(pair[0]) || !isFloatLiteral(pair[1]) {
				errs = append(errs, fmt.Sprintf("Point %d must contain two floats (lon, lat).", i+1))
			}
		}
	}

	if _, err := parseDate(date); err != nil {
		errs = append(errs, msgDate)
	}

	return errs
}

func buildQuery(env requestEnvelope) (Query, error) {
	var raw [][2]float64
	if err := json.Unmarshal(env.Coordinates, &raw); err != nil {
		return Query{}, err
	}
	day, err := parseDate(env.Date)
	if err != nil {
		return Query{}, err
	}

	polygon := make(Polygon, len(raw))
	for i, p := range raw {
		polygon[i] = Point(p)
	}
	return Query{Polygon: polygon, Date: day}, nil
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || t[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(t, &items); err != nil {
		return nil, false
	}
	return items, true
}

// isFloatLiteral reports whether raw is a JSON number written as a
// floating-point literal representable as a finite float64. 1.0 and 1e3
// qualify; 1 and 1e400 do not.
func isFloatLiteral(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return false
	}
	if c := t[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	if !bytes.ContainsAny(t, ".eE") {
		return false
	}
	_, err := strconv.ParseFloat(string(t), 64)
	return err == nil
}

func parseDate(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	return time.Parse(DateLayout, s)
}
