package geometry

import "sort"

// Op is a pure transform of a frame within canvas bounds.
type Op func(f *Frame, canvas Size) *Frame

// RotateBy returns an Op rotating by delta degrees.
func RotateBy(delta float64) Op {
	return func(f *Frame, _ Size) *Frame { return Rotate(f, delta) }
}

// SnapOp returns an Op snapping the position to a grid step.
func SnapOp(step float64) Op {
	return func(f *Frame, _ Size) *Frame { return SnapToGrid(f, step) }
}

var namedOps = map[string]Op{
	"rotateCW":     RotateBy(90),
	"rotateCCW":    RotateBy(-90),
	"rotate180":    RotateBy(180),
	"flipH":        func(f *Frame, _ Size) *Frame { return FlipHorizontal(f) },
	"flipV":        func(f *Frame, _ Size) *Frame { return FlipVertical(f) },
	"alignLeft":    AlignLeft,
	"alignRight":   AlignRight,
	"alignTop":     AlignTop,
	"alignBottom":  AlignBottom,
	"alignCenterH": AlignCenterH,
	"alignCenterV": AlignCenterV,
	"reset":        ResetTransform,
}

// LookupOp returns the named transform used by editor commands.
func LookupOp(name string) (Op, bool) {
	op, ok := namedOps[name]
	return op, ok
}

// OpNames lists the named transforms in sorted order.
func OpNames() []string {
	names := make([]string, 0, len(namedOps))
	for name := range namedOps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
