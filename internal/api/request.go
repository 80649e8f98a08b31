package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// flexInt decodes numbers, numeric strings and null. Anything else becomes 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = 0
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		*f = flexInt(truncate(n))
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			*f = flexInt(i)
		} else if fl, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			*f = flexInt(truncate(fl))
		}
	}
	return nil
}

func truncate(n float64) int {
	if math.IsNaN(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
		return 0
	}
	return int(n)
}

// flexString accepts any scalar and keeps its text form. Objects and arrays become "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	*f = ""
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch s := v.(type) {
	case string:
		*f = flexString(s)
	case float64:
		*f = flexString(strconv.FormatFloat(s, 'f', -1, 64))
	case bool:
		*f = flexString(strconv.FormatBool(s))
	}
	return nil
}

type pointRequest struct {
	X flexInt `json:"x"`
	Y flexInt `json:"y"`
}

type clickRequest struct {
	X      flexInt     `json:"x"`
	Y      flexInt     `json:"y"`
	Button *flexString `json:"button"`
}

type scrollRequest struct {
	Direction *flexString `json:"direction"`
	Amount    *flexInt    `json:"amount"`
}

type dragRequest struct {
	StartX flexInt `json:"startX"`
	StartY flexInt `json:"startY"`
	EndX   flexInt `json:"endX"`
	EndY   flexInt `json:"endY"`
}

type typeRequest struct {
	Text flexString `json:"text"`
}

type keyRequest struct {
	Key flexString `json:"key"`
}

type focusRequest struct {
	WindowID flexString `json:"windowId"`
}

// decodeBody reads at most limit bytes into dst. An empty body decodes as {};
// anything other than a JSON object is rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}
	if body[0] != '{' {
		return fmt.Errorf("%w: body must be a JSON object", errMalformedRequest)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	return nil
}
