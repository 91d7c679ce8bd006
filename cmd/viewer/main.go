// Command viewer plays back a recorded simulation run: the source image, the
// 3x3 perception window of every cell, and the class channels as a bar panel.
// It runs as its own process so rendering resources never mix with the
// engine's state.
package main

import (
	"flag"
	"fmt"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/neocortex/sim"
)

const panelWidth = 200

func main() {
	scale := flag.Int("scale", 20, "Screen pixels per image pixel")
	fps := flag.Int("fps", 8, "Playback iterations per second")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: viewer [flags] recording.json")
		os.Exit(2)
	}
	rec, err := sim.LoadRecording(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(rec.Frames) == 0 {
		fmt.Fprintln(os.Stderr, "viewer: recording has no frames")
		os.Exit(1)
	}

	s := int32(*scale)
	width := int32(rec.ImageW)*s + panelWidth
	height := max(int32(rec.ImageH)*s, 240)

	rl.InitWindow(width, height, "neocortex run playback")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	step := 60 / *fps
	if step < 1 {
		step = 1
	}

	frame := 0
	tick := 0
	paused := false
	for !rl.WindowShouldClose() {
		// Space pauses, arrows step, R restarts
		if rl.IsKeyPressed(rl.KeySpace) {
			paused = !paused
		}
		if rl.IsKeyPressed(rl.KeyRight) {
			frame = (frame + 1) % len(rec.Frames)
			paused = true
		}
		if rl.IsKeyPressed(rl.KeyLeft) {
			frame = (frame + len(rec.Frames) - 1) % len(rec.Frames)
			paused = true
		}
		if rl.IsKeyPressed(rl.KeyR) {
			frame = 0
			tick = 0
		}
		if !paused {
			tick++
			if tick >= step {
				tick = 0
				frame = (frame + 1) % len(rec.Frames)
			}
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)
		drawImage(rec, s)
		drawAnchors(rec, frame, s)
		drawClassPanel(rec, frame, int32(rec.ImageW)*s, height)
		rl.DrawText(fmt.Sprintf("iter %d/%d", frame+1, len(rec.Frames)), 8, 8, 18, rl.Gold)
		rl.EndDrawing()
	}
}

func drawImage(rec *sim.Recording, s int32) {
	for r := 0; r < rec.ImageH; r++ {
		for c := 0; c < rec.ImageW; c++ {
			g := uint8(rec.Image[r*rec.ImageW+c] * 255)
			rl.DrawRectangle(int32(c)*s, int32(r)*s, s, s, rl.NewColor(g, g, g, 255))
		}
	}
}

// drawAnchors outlines each cell's current 3x3 observation window.
func drawAnchors(rec *sim.Recording, frame int, s int32) {
	f := rec.Frames[frame]
	for i := 0; i < len(f.Anchors); i += 2 {
		r, c := f.Anchors[i], f.Anchors[i+1]
		rl.DrawRectangleLines(int32(c)*s, int32(r)*s, 3*s, 3*s, rl.Fade(rl.SkyBlue, 0.5))
	}
}

// drawClassPanel shows the mean class-channel activations as bars.
func drawClassPanel(rec *sim.Recording, frame int, x, height int32) {
	rl.DrawRectangle(x, 0, panelWidth, height, rl.NewColor(24, 24, 24, 255))

	means := classMeans(rec, frame)
	maxAbs := 1e-9
	for _, m := range means {
		if m > maxAbs {
			maxAbs = m
		}
		if -m > maxAbs {
			maxAbs = -m
		}
	}

	barW := int32(panelWidth-40) / int32(len(means))
	base := height - 40
	for i, m := range means {
		h := int32(float64(height-80) * (m / maxAbs))
		bx := x + 20 + int32(i)*barW
		color := rl.Green
		if h < 0 {
			h = -h
			color = rl.Red
		}
		rl.DrawRectangle(bx, base-h, barW-6, h, color)
		rl.DrawText(fmt.Sprintf("%d", i), bx, base+8, 16, rl.RayWhite)
	}
	rl.DrawText("class channels", x+20, 8, 16, rl.RayWhite)
}

// classMeans averages each class channel over the grid interior.
func classMeans(rec *sim.Recording, frame int) []float64 {
	ch := rec.StateChannels()
	cols := rec.GridCols + 2
	means := make([]float64, rec.ClassChannels)
	state := rec.Frames[frame].State
	for x := 1; x <= rec.GridRows; x++ {
		for y := 1; y <= rec.GridCols; y++ {
			row := state[(x*cols+y)*ch:]
			for c := range means {
				means[c] += row[ch-rec.ClassChannels+c]
			}
		}
	}
	n := float64(rec.GridRows * rec.GridCols)
	for c := range means {
		means[c] /= n
	}
	return means
}
