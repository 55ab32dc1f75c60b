package scene

import "github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"

// Surface is the rendering collaborator a Graph drives. The graph keeps the
// surface's object set in step with its own and asks for one redraw per
// completed mutation.
type Surface interface {
	// Size returns the canvas bounds.
	Size() geometry.Size
	// Put adds or replaces an object. For images the surface re-renders
	// the pixels from the original source through the full filter stack.
	Put(o *Object) error
	// Remove drops an object; unknown ids are ignored.
	Remove(id string)
	// Clear drops every object and resets the background.
	Clear(background string)
	// Snapshot serializes the current surface state.
	Snapshot() ([]byte, error)
	// ParseSnapshot decodes a blob produced by Snapshot without touching
	// the surface's current state. Image objects come back without pixels.
	ParseSnapshot(blob []byte) (*Snapshot, error)
	// RequestRedraw schedules a repaint of the current state.
	RequestRedraw()
}

// Snapshot is the decoded content of a surface snapshot.
type Snapshot struct {
	Background string
	Objects    []*Object
}
