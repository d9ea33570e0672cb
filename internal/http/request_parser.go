// This file implements utilities for parsing and validating request data:
// query parameters, path IDs and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// maxBodyBytes bounds request bodies, imports included.
const maxBodyBytes = 4 << 20

// Query reads typed values from URL query parameters. Parse failures are
// returned as bad requests.
type Query struct {
	values url.Values
}

// NewQuery wraps the query parameters of r.
func NewQuery(r *http.Request) Query {
	return Query{values: r.URL.Query()}
}

// String returns the trimmed value of key.
func (q Query) String(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// Int returns the value of key, or def when it is absent.
func (q Query) Int(key string, def int) (int, error) {
	v := q.String(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &badRequest{msg: fmt.Sprintf("%s: not an integer: %q", key, v)}
	}
	return n, nil
}

// Float returns the value of key. A comma is accepted as decimal separator.
func (q Query) Float(key string) (float64, error) {
	v := q.String(key)
	if v == "" {
		return 0, &badRequest{msg: key + ": required"}
	}
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, &badRequest{msg: fmt.Sprintf("%s: not a number: %q", key, v)}
	}
	return f, nil
}

// Date returns the value of key, or def when it is absent.
func (q Query) Date(key string, def time.Time) (time.Time, error) {
	v := q.String(key)
	if v == "" {
		return def, nil
	}
	t, err := ParseDate(v)
	if err != nil {
		return time.Time{}, &badRequest{msg: fmt.Sprintf("%s: %v", key, err)}
	}
	return t, nil
}

// OptionalDate returns the value of key, or nil when it is absent.
func (q Query) OptionalDate(key string) (*time.Time, error) {
	if q.String(key) == "" {
		return nil, nil
	}
	t, err := q.Date(key, time.Time{})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp. Dates are
// midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t.UTC(), nil
}

// EndOfDay moves a midnight date to the last instant of that day, so a date
// used as the upper bound of a window includes the whole day.
func EndOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}

// pathID returns the numeric {id} route variable.
func pathID(r *http.Request) (int64, error) {
	v := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequest{msg: fmt.Sprintf("invalid id %q", v)}
	}
	return id, nil
}

// decodeJSON reads a single JSON object from the body of r into v. Unknown
// fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return &badRequest{msg: "content type must be application/json"}
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &badRequest{msg: fmt.Sprintf("body larger than %d bytes", maxErr.Limit)}
		}
		return &badRequest{msg: "invalid JSON body: " + err.Error()}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &badRequest{msg: "body must contain a single JSON object"}
	}
	return nil
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
