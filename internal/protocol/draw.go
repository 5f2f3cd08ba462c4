package protocol

import (
	"fmt"
	"math"
)

// Point is one sampled position of a stroke
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Line is a single stroke together with the canvas size it was drawn on
type Line struct {
	Points       []Point `json:"points"`
	Color        int     `json:"color"`
	StrokeWidth  float64 `json:"strokeWidth"`
	Eraser       bool    `json:"eraser"`
	CanvasWidth  int     `json:"canvasWidth"`
	CanvasHeight int     `json:"canvasHeight"`
}

// lineTrailer counts the fixed elements after the point list:
// color, stroke width, eraser flag, canvas width, canvas height
const lineTrailer = 5

// AppendLine appends the wire layout of a line:
// pointCount, x1, y1, ... xN, yN, color, strokeWidth, isEraser, canvasWidth, canvasHeight
func AppendLine(payload []any, line Line) ([]any, error) {
	payload = append(payload, len(line.Points))
	for i, p := range line.Points {
		if !finite(p.X) || !finite(p.Y) {
			return nil, fmt.Errorf("point %d is not finite", i)
		}
		payload = append(payload, p.X, p.Y)
	}
	if !finite(line.StrokeWidth) {
		return nil, fmt.Errorf("stroke width is not finite")
	}
	if line.CanvasWidth < 0 || line.CanvasHeight < 0 {
		return nil, fmt.Errorf("negative canvas size %dx%d", line.CanvasWidth, line.CanvasHeight)
	}
	return append(payload, line.Color, line.StrokeWidth, line.Eraser, line.CanvasWidth, line.CanvasHeight), nil
}

// DrawPayload builds the DRAW payload: roomId followed by the line layout
func DrawPayload(roomID int, line Line) ([]any, error) {
	return AppendLine([]any{roomID}, line)
}

// NewDrawMessage builds a DRAW request
func NewDrawMessage(timestamp int64, roomID int, line Line) (Message, error) {
	payload, err := DrawPayload(roomID, line)
	if err != nil {
		return Message{}, fmt.Errorf("encode draw: %w", err)
	}
	return NewMessage(OpDraw, timestamp, payload...)
}

// DecodeDraw reads the room ID and line of a DRAW or DRAW_PUSH message
func DecodeDraw(m Message) (int, Line, error) {
	roomID, err := m.Int(0)
	if err != nil {
		return 0, Line{}, err
	}
	line, next, err := ReadLine(m, 1)
	if err != nil {
		return 0, Line{}, err
	}
	if next != m.Len() {
		return 0, Line{}, &PayloadError{Op: m.op, Index: next, Reason: "trailing elements"}
	}
	return roomID, line, nil
}

// ReadLine reads one line starting at payload index i and returns the index
// following it.
func ReadLine(m Message, i int) (Line, int, error) {
	count, err := m.Int(i)
	if err != nil {
		return Line{}, i, err
	}
	if count < 0 {
		return Line{}, i, &PayloadError{Op: m.op, Index: i, Reason: "negative point count"}
	}
	need := i + 1 + 2*count + lineTrailer
	if count > m.Len() || m.Len() < need {
		return Line{}, i, &Underflow{Op: m.op, Len: m.Len(), Minimum: need}
	}

	line := Line{Points: make([]Point, 0, count)}
	pos := i + 1
	for k := 0; k < count; k++ {
		x, err := m.Float(pos)
		if err != nil {
			return Line{}, i, err
		}
		y, err := m.Float(pos + 1)
		if err != nil {
			return Line{}, i, err
		}
		line.Points = append(line.Points, Point{X: x, Y: y})
		pos += 2
	}

	if line.Color, err = m.Int(pos); err != nil {
		return Line{}, i, err
	}
	if line.StrokeWidth, err = m.Float(pos + 1); err != nil {
		return Line{}, i, err
	}
	if line.Eraser, err = m.Bool(pos + 2); err != nil {
		return Line{}, i, err
	}
	if line.CanvasWidth, err = m.Int(pos + 3); err != nil {
		return Line{}, i, err
	}
	if line.CanvasHeight, err = m.Int(pos + 4); err != nil {
		return Line{}, i, err
	}
	return line, pos + lineTrailer, nil
}

// DrawListPayload builds the GET_DRAW_LIST reply: status, lineCount, lines...
func DrawListPayload(lines []Line) ([]any, error) {
	payload := []any{StatusOK, len(lines)}
	var err error
	for i, line := range lines {
		if payload, err = AppendLine(payload, line); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
	}
	return payload, nil
}

// DecodeDrawList reads the lines of a GET_DRAW_LIST reply
func DecodeDrawList(m Message) ([]Line, error) {
	status, err := m.Status()
	if err != nil {
		return nil, err
	}
	if status != StatusOK {
		return nil, fmt.Errorf("draw list request failed with status %d", status)
	}
	count, err := m.Int(1)
	if err != nil {
		return nil, err
	}
	if count < 0 || count > m.Len() {
		return nil, &PayloadError{Op: m.op, Index: 1, Reason: "invalid line count"}
	}
	lines := make([]Line, 0, count)
	pos := 2
	for k := 0; k < count; k++ {
		var line Line
		if line, pos, err = ReadLine(m, pos); err != nil {
			return nil, fmt.Errorf("line %d: %w", k, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
