//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"strings"
	"sync"
	"syscall/js"

	"github.com/disintegration/imaging"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/document"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/editor"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/typeid"
)

// memPrefix marks images that only exist in this page, such as crop results.
const memPrefix = "mem:"

var (
	sess     *editor.Session
	images   = newMemAssets()
	redraw   = make(chan struct{}, 1)
	listener js.Value
)

func main() {
	sess = editor.New(editor.Config{
		Width:      800,
		Height:     600,
		Background: "#f8f9fa",
		Loader:     asset.LoaderFunc(images.Load),
		Uploader:   images,
	})

	// The listener runs inside editor mutations; JS is notified from a
	// separate goroutine so it can query the session.
	sess.OnRender(func(uint64) {
		select {
		case redraw <- struct{}{}:
		default:
		}
	})
	go notifyLoop()

	// Create the editor API object
	canvasEditor := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	canvasEditor.Set("execute", js.FuncOf(execute))
	canvasEditor.Set("loadDocument", js.FuncOf(loadDocument))
	canvasEditor.Set("onRender", js.FuncOf(onRender))

	// --- Queries (frontend ← editor) ---
	canvasEditor.Set("render", js.FuncOf(render))
	canvasEditor.Set("hitTest", js.FuncOf(hitTest))
	canvasEditor.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	canvasEditor.Set("getDocument", js.FuncOf(getDocument))
	canvasEditor.Set("getFrame", js.FuncOf(getFrame))
	canvasEditor.Set("exportImage", js.FuncOf(exportImage))

	// Register on global scope
	js.Global().Set("canvasEditor", canvasEditor)

	// Signal that WASM is ready
	js.Global().Set("canvasWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func notifyLoop() {
	for range redraw {
		if listener.Type() == js.TypeFunction {
			listener.Invoke(js.ValueOf(int(sess.Canvas().Frame())))
		}
	}
}

func errorValue(err error) js.Value {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

// --- Command Handlers ---

// execute runs one editor command given as JSON, e.g. {"op":"open","locator":"..."}.
// Image loads continue in the background and trigger onRender when they land.
func execute(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing command JSON"})
	}

	var cmd editor.Command
	if err := json.Unmarshal([]byte(args[0].String()), &cmd); err != nil {
		return errorValue(fmt.Errorf("invalid command: %w", err))
	}

	result, err := sess.Execute(context.Background(), cmd)
	if err != nil {
		return errorValue(err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorValue(err)
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "result": string(data)})
}

// loadDocument restores a saved composition. Restoring fetches images, so it
// runs off the JS event loop; onRender fires once it has landed.
func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing document JSON"})
	}

	doc, err := document.Unmarshal([]byte(args[0].String()))
	if err != nil {
		return errorValue(err)
	}

	go func() {
		if err := sess.Load(context.Background(), doc); err != nil {
			js.Global().Get("console").Call("warn", "canvas: "+err.Error())
		}
	}()
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func onRender(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	listener = args[0]
	return nil
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	data, err := json.Marshal(sess.DrawList())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	x := args[0].Float()
	y := args[1].Float()
	return js.ValueOf(sess.SelectAt(x, y))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	b := sess.SelectionBounds()
	return js.ValueOf(map[string]interface{}{"x": b.X, "y": b.Y, "width": b.Width, "height": b.Height})
}

func getDocument(this js.Value, args []js.Value) interface{} {
	doc, err := sess.Save()
	if err != nil {
		return errorValue(err)
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return errorValue(err)
	}
	return js.ValueOf(string(data))
}

func getFrame(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(int(sess.Canvas().Frame()))
}

// exportImage rasterizes the composition and returns the encoded bytes as a
// Uint8Array. The optional argument picks "png" (default) or "jpeg".
func exportImage(this js.Value, args []js.Value) interface{} {
	var buf bytes.Buffer
	var err error
	if len(args) > 0 && strings.EqualFold(args[0].String(), "jpeg") {
		err = sess.Canvas().EncodeJPEG(&buf, 90)
	} else {
		err = sess.Canvas().EncodePNG(&buf)
	}
	if err != nil {
		return errorValue(err)
	}
	out := js.Global().Get("Uint8Array").New(buf.Len())
	js.CopyBytesToJS(out, buf.Bytes())
	return out
}

// memAssets fetches images over HTTP and keeps images produced in the page
// (crop results) in memory.
type memAssets struct {
	mu     sync.Mutex
	images map[string]image.Image
}

func newMemAssets() *memAssets {
	return &memAssets{images: make(map[string]image.Image)}
}

func (m *memAssets) Load(ctx context.Context, locator string) (*asset.Decoded, error) {
	if strings.HasPrefix(locator, memPrefix) {
		m.mu.Lock()
		img, ok := m.images[locator]
		m.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", asset.ErrAssetLoad, locator)
		}
		return decoded(locator, img), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", asset.ErrAssetLoad, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", asset.ErrAssetLoad, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", asset.ErrAssetLoad, locator, resp.StatusCode)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", asset.ErrAssetLoad, locator, err)
	}
	return decoded(locator, img), nil
}

func (m *memAssets) Put(ctx context.Context, img image.Image, name string) (asset.Ref, error) {
	locator := memPrefix + typeid.NewAssetID()
	m.mu.Lock()
	m.images[locator] = img
	m.mu.Unlock()

	ref := decoded(locator, img).Ref
	ref.Filename = name
	return ref, nil
}

func decoded(locator string, img image.Image) *asset.Decoded {
	b := img.Bounds()
	return &asset.Decoded{
		Ref:   asset.Ref{Path: locator, Width: b.Dx(), Height: b.Dy()},
		Image: img,
	}
}
