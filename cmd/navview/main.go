package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/common"
	"github.com/milk9111/navmesh/ecs/component"
	"github.com/milk9111/navmesh/ecs/system"
	"github.com/milk9111/navmesh/logging"
	"github.com/milk9111/navmesh/pathing"
	"github.com/milk9111/navmesh/sim"
)

const (
	screenWidth  = 1280
	screenHeight = 720
	margin       = 24
)

var (
	meshColor      = color.RGBA{R: 60, G: 90, B: 120, A: 255}
	obstacleColor  = color.RGBA{R: 220, G: 80, B: 60, A: 255}
	agentColor     = color.RGBA{R: 80, G: 220, B: 120, A: 255}
	pathColor      = color.RGBA{R: 240, G: 220, B: 80, A: 255}
	targetColor    = color.RGBA{R: 200, G: 120, B: 240, A: 255}
	backgroundFill = color.RGBA{R: 16, G: 18, B: 24, A: 255}
)

type viewer struct {
	sim    *sim.Simulation
	view   common.Viewport
	paused bool
	placed int
	help   bool

	// zoom is the scale the view eases toward.
	zoom float64
}

func (v *viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		v.paused = !v.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyH) {
		v.help = !v.help
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		v.view = v.fit()
		v.zoom = v.view.Scale
	}

	mx, my := ebiten.CursorPosition()
	if _, dy := ebiten.Wheel(); dy > 0 {
		v.zoom *= 1.25
	} else if dy < 0 {
		v.zoom /= 1.25
	}
	if math.Abs(v.zoom-v.view.Scale) > 1e-6*v.zoom {
		next := common.Lerp(v.view.Scale, v.zoom, 0.2)
		v.view = v.view.Zoom(next/v.view.Scale, float64(mx), float64(my))
	}

	at := v.view.ToMap(float64(mx), float64(my))
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		v.sendAgents(at)
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		v.placed++
		name := fmt.Sprintf("placed_%d", v.placed)
		if _, err := system.SpawnObstacle(v.sim.World, name, "crate", component.Transform{X: at.X, Y: at.Y}); err != nil {
			return err
		}
	}

	if !v.paused || inpututil.IsKeyJustPressed(ebiten.KeyPeriod) {
		v.sim.Step()
	}
	return nil
}

func (v *viewer) sendAgents(to cp.Vector) {
	props := v.sim.Spec.QueryProps()
	for _, a := range v.sim.Agents() {
		system.RequestPath(v.sim.World, a.Entity, pathing.NewPathTarget(to, props, false))
	}
}

func (v *viewer) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundFill)

	if f := v.sim.Pathing.Finder(); f != nil {
		mesh := f.Mesh()
		for i := 0; i < mesh.Len(); i++ {
			c := mesh.Corners(i)
			v.polygon(screen, c[:], meshColor, 1)
		}
		for _, fp := range f.Exclusions().Footprints() {
			v.polygon(screen, fp.Polygon, obstacleColor, 2)
		}
	}

	for _, a := range v.sim.Agents() {
		if a.Path != nil {
			for i := 1; i < a.Path.Len(); i++ {
				v.line(screen, a.Path.Waypoints[i-1], a.Path.Waypoints[i], pathColor, 2)
			}
		}
		if a.Target != nil {
			x, y := v.view.ToScreen(a.Target.Location)
			r := float32(a.Target.Props.Distance * v.view.Scale)
			if r < 3 {
				r = 3
			}
			vector.StrokeCircle(screen, x, y, r, 1, targetColor, true)
		}
		x, y := v.view.ToScreen(a.Position.Position())
		vector.FillCircle(screen, x, y, 5, agentColor, true)
		ebitenutil.DebugPrintAt(screen, a.Name, int(x)+6, int(y)-6)
	}

	status := fmt.Sprintf("frame %d  fps %.0f", v.sim.Frames(), ebiten.ActualFPS())
	if f := v.sim.Pathing.Finder(); f != nil {
		status += fmt.Sprintf("  triangles %d  obstacles %d", f.Mesh().Len(), f.Exclusions().Len())
	}
	if v.paused {
		status += "  [paused]"
	}
	ebitenutil.DebugPrint(screen, status)
	if v.help {
		ebitenutil.DebugPrintAt(screen, "left click: send agents\nright click: drop crate\nwheel: zoom  r: reset view\nspace: pause  .: step", 10, 20)
	}
}

func (v *viewer) line(screen *ebiten.Image, a, b cp.Vector, c color.Color, width float32) {
	x0, y0 := v.view.ToScreen(a)
	x1, y1 := v.view.ToScreen(b)
	vector.StrokeLine(screen, x0, y0, x1, y1, width, c, true)
}

func (v *viewer) polygon(screen *ebiten.Image, points []cp.Vector, c color.Color, width float32) {
	for i := range points {
		v.line(screen, points[i], points[(i+1)%len(points)], c, width)
	}
}

func (v *viewer) fit() common.Viewport {
	b := v.sim.Level.Bounds.MapBounds()
	return common.Fit(b.Min, b.Max, screenWidth, screenHeight, margin)
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	levelName := flag.String("level", "arena", "level name in levels/ (basename, .yaml optional)")
	script := flag.String("script", "", "scenario script in prefabs/scripts/")
	watch := flag.Bool("watch", true, "hot reload prefabs, levels and scripts from disk")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	s, err := sim.New(sim.Options{
		Level:  *levelName,
		Script: *script,
		Watch:  *watch,
		Log:    logging.New(logging.ParseLevel(*logLevel), "text", os.Stderr),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	v := &viewer{sim: s}
	v.view = v.fit()
	v.zoom = v.view.Scale

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("navview: " + s.Level.Name)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(v); err != nil {
		log.Fatal(err)
	}
}
