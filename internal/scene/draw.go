package scene

import (
	"encoding/json"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/filter"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
)

// DrawCommand is a single drawing operation for a browser client to execute
// on a Canvas2D context.
type DrawCommand struct {
	Op          string         `json:"op"`                    // "background", "image", "line", "path", "selection"
	ObjectID    string         `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64      `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Points      []Point        `json:"points,omitempty"`      // Local coordinates for "line" and "path"
	Fill        string         `json:"fill,omitempty"`        // Background color
	Stroke      string         `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64        `json:"strokeWidth,omitempty"` // Stroke width
	Opacity     float64        `json:"opacity,omitempty"`     // Global alpha
	AssetPath   string         `json:"assetPath,omitempty"`   // Locator for image lookup
	ImageWidth  float64        `json:"imageWidth,omitempty"`  // Image natural width
	ImageHeight float64        `json:"imageHeight,omitempty"` // Image natural height
	Filters     filter.Stack   `json:"filters,omitempty"`
	Bounds      *geometry.Rect `json:"bounds,omitempty"` // For "selection"
}

// DrawList compiles the scene into commands in painter's order (back to
// front), ending with the selection outline when something is selected.
func (g *Graph) DrawList() []DrawCommand {
	commands := []DrawCommand{{Op: "background", Fill: g.background}}

	for _, id := range g.order {
		o := g.objects[id]
		cmd := DrawCommand{
			ObjectID:  o.ID,
			Transform: o.Frame.Matrix().ToSlice(),
			Opacity:   1,
		}
		switch o.Kind {
		case KindImage:
			cmd.Op = "image"
			cmd.AssetPath = o.Image.Asset.Path
			cmd.ImageWidth = o.Frame.Width
			cmd.ImageHeight = o.Frame.Height
			cmd.Filters = o.Image.Filters.Clone()
		case KindLine:
			cmd.Op = "line"
			cmd.Points = o.Line.Local()
			cmd.Stroke = o.Line.Stroke
			cmd.StrokeWidth = o.Line.StrokeWidth
			cmd.Opacity = o.Line.Opacity
		case KindPath:
			cmd.Op = "path"
			cmd.Points = o.Path.Points
			cmd.Stroke = o.Path.Stroke
			cmd.StrokeWidth = o.Path.StrokeWidth
		}
		commands = append(commands, cmd)
	}

	if g.selected != "" {
		if o, ok := g.objects[g.selected]; ok {
			b := o.Bounds()
			commands = append(commands, DrawCommand{Op: "selection", ObjectID: o.ID, Bounds: &b})
		}
	}
	return commands
}

// Local returns the line endpoints relative to the top-left of its box.
func (l *LineData) Local() []Point {
	minX, minY := min(l.X1, l.X2), min(l.Y1, l.Y2)
	return []Point{
		{X: l.X1 - minX, Y: l.Y1 - minY},
		{X: l.X2 - minX, Y: l.Y2 - minY},
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// HitTest returns the id of the topmost selectable object under (x, y), or
// "". Images and paths are tested against their rotated box, lines against
// their padded bounds.
func (g *Graph) HitTest(x, y float64) string {
	for i := len(g.order) - 1; i >= 0; i-- {
		o := g.objects[g.order[i]]
		if !o.Selectable {
			continue
		}
		if o.Kind == KindLine {
			if o.Bounds().Contains(x, y) {
				return o.ID
			}
			continue
		}
		m := o.Frame.Matrix()
		if m.Determinant() == 0 {
			continue
		}
		lx, ly := m.Invert().TransformPoint(x, y)
		if (geometry.Rect{Width: o.Frame.Width, Height: o.Frame.Height}).Contains(lx, ly) {
			return o.ID
		}
	}
	return ""
}

// SelectionBounds returns the combined bounding box of the given object ids.
// Unknown ids are skipped.
func (g *Graph) SelectionBounds(ids ...string) geometry.Rect {
	var result geometry.Rect
	for _, id := range ids {
		o, ok := g.objects[id]
		if !ok {
			continue
		}
		result = result.Union(o.Bounds())
	}
	return result
}
