package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"jetfakes/domain/core"
	"jetfakes/domain/histogram"
)

// surfacePayload is the stored JSON document of one surface
type surfacePayload struct {
	Name       string    `json:"name"`
	XEdges     []float64 `json:"x_edges"`
	YEdges     []float64 `json:"y_edges"`
	Values     []float64 `json:"values"`
	Errors     []float64 `json:"errors"`
	Degenerate [][2]int  `json:"degenerate"`
}

func encodeSurface(s *histogram.Surface) (string, error) {
	p := surfacePayload{
		Name:       s.Name(),
		XEdges:     s.XAxis().Edges(),
		YEdges:     s.YAxis().Edges(),
		Values:     s.Values(),
		Errors:     s.Errors(),
		Degenerate: make([][2]int, 0, len(s.Degenerate())),
	}
	for _, b := range s.Degenerate() {
		p.Degenerate = append(p.Degenerate, [2]int{b.X, b.Y})
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal surface %s: %w", s.Name(), err)
	}
	return string(data), nil
}

func decodeSurface(payload string) (*histogram.Surface, error) {
	if !gjson.Valid(payload) {
		return nil, core.NewInvalidBinningError("stored surface payload is not valid JSON")
	}
	doc := gjson.Parse(payload)
	name := doc.Get("name").String()

	x, err := histogram.NewAxis(floatArray(doc.Get("x_edges")))
	if err != nil {
		return nil, fmt.Errorf("surface %s x axis: %w", name, err)
	}
	y, err := histogram.NewAxis(floatArray(doc.Get("y_edges")))
	if err != nil {
		return nil, fmt.Errorf("surface %s y axis: %w", name, err)
	}

	var degenerate []histogram.Bin
	doc.Get("degenerate").ForEach(func(_, bin gjson.Result) bool {
		degenerate = append(degenerate, histogram.Bin{
			X: int(bin.Get("0").Int()),
			Y: int(bin.Get("1").Int()),
		})
		return true
	})

	return histogram.NewSurface(name, x, y, floatArray(doc.Get("values")), floatArray(doc.Get("errors")), degenerate)
}

func floatArray(r gjson.Result) []float64 {
	items := r.Array()
	out := make([]float64, len(items))
	for i, item := range items {
		out[i] = item.Float()
	}
	return out
}
