package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/milk9111/navmesh/logging"
	"github.com/milk9111/navmesh/sim"
)

func main() {
	levelName := flag.String("level", "arena", "level name in levels/ (basename, .yaml optional)")
	script := flag.String("script", "", "scenario script in prefabs/scripts/")
	frames := flag.Int("frames", 3600, "number of frames to simulate, 0 runs until interrupted")
	realtime := flag.Bool("realtime", false, "pace frames at the configured tick rate")
	workers := flag.Int("workers", 0, "pathing workers, 0 uses pathing.yaml")
	watch := flag.Bool("watch", false, "hot reload prefabs, levels and scripts from disk")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	logFormat := flag.String("log-format", "text", "text or json")
	reportEvery := flag.Int("report", 600, "log agent states every n frames, 0 disables")
	flag.Parse()

	logger := logging.New(logging.ParseLevel(*logLevel), *logFormat, os.Stderr)

	s, err := sim.New(sim.Options{
		Level:   *levelName,
		Script:  *script,
		Workers: *workers,
		Watch:   *watch,
		Log:     logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var ticker *time.Ticker
	if *realtime {
		ticker = time.NewTicker(time.Duration(s.Spec.TickSeconds * float64(time.Second)))
		defer ticker.Stop()
	}

	for *frames == 0 || s.Frames() < int64(*frames) {
		if ticker != nil {
			select {
			case <-ctx.Done():
				report(logger, s)
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			break
		}
		s.Step()
		if *reportEvery > 0 && s.Frames()%int64(*reportEvery) == 0 {
			report(logger, s)
		}
	}
	report(logger, s)
}

func report(logger logging.Logger, s *sim.Simulation) {
	for _, a := range s.Agents() {
		target, path := "-", "-"
		if a.Target != nil {
			target = fmt.Sprintf("(%.1f, %.1f)", a.Target.Location.X, a.Target.Location.Y)
		}
		if a.Path != nil {
			path = fmt.Sprintf("%d waypoints, %.1f long", a.Path.Len(), a.Path.Length())
		}
		logger.Info("navsim: agent",
			"frame", s.Frames(),
			"name", a.Name,
			"x", a.Position.X,
			"y", a.Position.Y,
			"target", target,
			"path", path,
		)
	}
	if f := s.Pathing.Finder(); f != nil {
		logger.Info("navsim: finder", "id", f.ID(), "triangles", f.Mesh().Len(), "area", f.Mesh().Area())
	}
}
