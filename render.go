package vista

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var (
	colorSky         = Color{0.08, 0.09, 0.11, 1}
	colorTransition  = Color{0.16, 0.55, 0.95, 0.9}
	colorCloseup     = Color{0.98, 0.62, 0.18, 0.9}
	colorPin         = Color{0.9, 0.22, 0.22, 1}
	colorPinCurrent  = Color{0.2, 0.85, 0.4, 1}
	colorOutline     = Color{1, 1, 1, 0.9}
	colorOverlay     = Color{0, 0, 0, 0.55}
	colorBanner      = Color{0.75, 0.12, 0.12, 0.92}
	colorTooltipBack = Color{0, 0, 0, 0.7}
)

const (
	markerDrawRadius = 14
	pinDrawRadius    = 6
)

// Draw renders the panorama, markers, floorplan overlay, tooltip, the open
// dialog and the connection banner.
func (e *Editor) Draw(screen *ebiten.Image) {
	start := time.Now()
	screen.Fill(colorSky.toRGBA())

	tris := e.drawPanorama(screen)
	markers := e.drawMarkers(screen)
	e.drawFloorplan(screen)
	e.drawTooltip(screen)
	e.drawDialog(screen)
	e.drawBanner(screen)

	if e.debug {
		e.stats.drawTime = time.Since(start)
		e.stats.triangles = tris
		e.stats.markers = markers
		ebitenutil.DebugPrint(screen, fmt.Sprintf("FPS: %.1f\nTPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS()))
	}
}

// Layout keeps the viewport in sync with the window.
func (e *Editor) Layout(outsideWidth, outsideHeight int) (int, int) {
	vp := e.camera.Viewport
	if vp.Width != float64(outsideWidth) || vp.Height != float64(outsideHeight) {
		e.SetViewport(Rect{Width: float64(outsideWidth), Height: float64(outsideHeight)})
	}
	return outsideWidth, outsideHeight
}

func (e *Editor) drawPanorama(screen *ebiten.Image) int {
	scene := e.Scene()
	if scene == nil {
		return 0
	}
	img, ok := e.textures.Get(scene.FilePath)
	var verts []ebiten.Vertex
	var idx []uint16
	if ok {
		b := img.Bounds()
		verts, idx = e.sphere.project(e.camera, float32(b.Dx()), float32(b.Dy()))
	} else {
		// Shade an untextured sphere by latitude so the horizon stays
		// visible while the panorama loads.
		img = ensureWhitePixel()
		verts, idx = e.sphere.project(e.camera, 1, 1)
		for i := range verts {
			shade := 0.12 + 0.2*(1-e.sphere.v[i])
			verts[i].ColorR, verts[i].ColorG, verts[i].ColorB = shade, shade, shade*1.2
		}
		ebitenutil.DebugPrintAt(screen, "Loading "+scene.Name+"...", 8, int(e.camera.Viewport.Height)-20)
	}
	if len(idx) == 0 {
		return 0
	}
	var op ebiten.DrawTrianglesOptions
	op.Filter = ebiten.FilterLinear
	screen.DrawTriangles(verts, idx, img, &op)
	return len(idx) / 3
}

func (e *Editor) drawMarkers(screen *ebiten.Image) int {
	drawn := 0
	overlay := e.floorplanRect()
	for _, m := range e.registry.Markers() {
		if !m.Visible {
			continue
		}
		x, y, ok := m.screenPos(e.camera, overlay)
		if !ok {
			continue
		}
		c := colorTransition
		if m.Kind == MarkerCloseup {
			c = colorCloseup
		}
		if m.ID.Tentative() {
			c.A *= 0.6
		}
		cx, cy := float32(x), float32(y)
		width := float32(2)
		if m.Dragging || m == e.hover {
			width = 3
		}
		if m.Kind == MarkerCloseup {
			side := float32(2 * markerDrawRadius)
			vector.DrawFilledRect(screen, cx-markerDrawRadius, cy-markerDrawRadius, side, side, c.toRGBA(), true)
			vector.StrokeRect(screen, cx-markerDrawRadius, cy-markerDrawRadius, side, side, width, colorOutline.toRGBA(), true)
			ebitenutil.DebugPrintAt(screen, strconv.Itoa(m.IconIndex), int(x)-3, int(y)-8)
		} else {
			vector.DrawFilledCircle(screen, cx, cy, markerDrawRadius, c.toRGBA(), true)
			vector.StrokeCircle(screen, cx, cy, markerDrawRadius, width, colorOutline.toRGBA(), true)
		}
		drawn++
	}
	return drawn
}

func (e *Editor) drawFloorplan(screen *ebiten.Image) {
	r := e.floorplanRect()
	if r.Width <= 0 {
		return
	}
	fp := e.cache.Floorplan()
	if img, ok := e.textures.Get(fp.FilePath); ok {
		b := img.Bounds()
		var op ebiten.DrawImageOptions
		op.GeoM.Scale(r.Width/float64(b.Dx()), r.Height/float64(b.Dy()))
		op.GeoM.Translate(r.X, r.Y)
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(img, &op)
	} else {
		vector.DrawFilledRect(screen, float32(r.X), float32(r.Y), float32(r.Width), float32(r.Height), colorOverlay.toRGBA(), false)
	}
	vector.StrokeRect(screen, float32(r.X), float32(r.Y), float32(r.Width), float32(r.Height), 1, colorOutline.toRGBA(), false)

	for _, pin := range e.registry.Pins() {
		x, y, _ := pin.screenPos(e.camera, r)
		c := colorPin
		if pin.SceneID == e.sceneID {
			c = colorPinCurrent
		}
		vector.DrawFilledCircle(screen, float32(x), float32(y), pinDrawRadius, c.toRGBA(), true)
		if pin.Dragging || pin == e.hover {
			vector.StrokeCircle(screen, float32(x), float32(y), pinDrawRadius+2, 2, colorOutline.toRGBA(), true)
		}
	}
}

func (e *Editor) drawTooltip(screen *ebiten.Image) {
	if e.hover == nil || e.ModalOpen() {
		return
	}
	label := e.hover.Label(e.cache.Scene)
	if label == "" {
		return
	}
	x, y := e.hoverX+14, e.hoverY+14
	w := float32(len(label)*6 + 8)
	vector.DrawFilledRect(screen, float32(x), float32(y), w, 20, colorTooltipBack.toRGBA(), false)
	ebitenutil.DebugPrintAt(screen, label, int(x)+4, int(y)+2)
}

func (e *Editor) drawDialog(screen *ebiten.Image) {
	lines := e.dialogLines()
	if len(lines) == 0 {
		return
	}
	width := 0
	for _, l := range lines {
		width = max(width, len(l))
	}
	const x, y, lineHeight = 16, 40, 16
	w := float32(width*6 + 16)
	h := float32(len(lines)*lineHeight + 12)
	vector.DrawFilledRect(screen, x, y, w, h, colorTooltipBack.toRGBA(), false)
	vector.StrokeRect(screen, x, y, w, h, 1, colorOutline.toRGBA(), false)
	ebitenutil.DebugPrintAt(screen, strings.Join(lines, "\n"), x+8, y+6)
}

func (e *Editor) drawBanner(screen *ebiten.Image) {
	if e.banner == "" {
		return
	}
	w := float32(e.camera.Viewport.Width)
	vector.DrawFilledRect(screen, 0, 0, w, 24, colorBanner.toRGBA(), false)
	ebitenutil.DebugPrintAt(screen, e.banner, 8, 4)
}
