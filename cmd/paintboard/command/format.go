package command

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"paintboard/internal/protocol"
)

// parsePoints reads "x,y x,y ..."
func parsePoints(s string) ([]protocol.Point, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no points given")
	}
	points := make([]protocol.Point, 0, len(fields))
	for _, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("point %q is not x,y", f)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", f, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", f, err)
		}
		points = append(points, protocol.Point{X: x, Y: y})
	}
	return points, nil
}

// parseCanvas reads "WIDTHxHEIGHT"
func parseCanvas(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("canvas %q is not WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("canvas width: %w", err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("canvas height: %w", err)
	}
	return w, h, nil
}

// parseColor reads "#rrggbb", "#aarrggbb" or a decimal ARGB integer
func parseColor(s string) (int, error) {
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || (len(hex) != 6 && len(hex) != 8) {
			return 0, fmt.Errorf("color %q is not #rrggbb or #aarrggbb", s)
		}
		if len(hex) == 6 {
			v |= 0xff000000
		}
		return int(int32(uint32(v))), nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("color %q: %w", s, err)
	}
	return v, nil
}

func describeLine(line protocol.Line) string {
	kind := "stroke"
	if line.Eraser {
		kind = "eraser"
	}
	return fmt.Sprintf("%s points=%d color=#%08x width=%g canvas=%dx%d",
		kind, len(line.Points), uint32(line.Color), line.StrokeWidth, line.CanvasWidth, line.CanvasHeight)
}

// httpBase turns the websocket server URL into its HTTP origin
func httpBase(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}
