package session

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dynamicmaps/overlay/internal/dispatcher"
	"github.com/dynamicmaps/overlay/internal/export"
	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/dynamicmaps/overlay/internal/world"
)

// DefaultFrame is the frame time used by :TICK: without an argument.
const DefaultFrame = 16 * time.Millisecond

// Register adds the map screen commands to d.
func (s *Session) Register(d *dispatcher.Dispatcher) {
	d.Register(":MAP:LOAD:", func(e dispatcher.Event) (any, error) {
		id := e.Arg(0)
		if id == "" {
			return nil, fmt.Errorf("%s: missing map id", e.Command)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.ChangeMap(ctx, id); err != nil {
			return nil, err
		}
		return s.view.MapID(), nil
	}, dispatcher.Logged())

	d.Register(":MAP:UNLOAD:", func(e dispatcher.Event) (any, error) {
		s.UnloadMap()
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":MAP:SHOW:", func(e dispatcher.Event) (any, error) {
		if err := s.Show(); err != nil {
			return nil, err
		}
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":MAP:HIDE:", func(e dispatcher.Event) (any, error) {
		s.Hide()
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":RAID:END:", func(e dispatcher.Event) (any, error) {
		s.EndRaid()
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":LEVEL:SELECT:", func(e dispatcher.Event) (any, error) {
		level, err := strconv.Atoi(e.Arg(0))
		if err != nil {
			return nil, fmt.Errorf("%s: level: %w", e.Command, err)
		}
		if err := s.SelectLevel(level); err != nil {
			return nil, err
		}
		return level, nil
	})

	d.Register(":LEVEL:UP:", func(e dispatcher.Event) (any, error) {
		return s.LevelUp()
	})

	d.Register(":LEVEL:DOWN:", func(e dispatcher.Event) (any, error) {
		return s.LevelDown()
	})

	d.Register(":CATEGORY:SHOW:", func(e dispatcher.Event) (any, error) {
		return categoryVisible(s, e, true)
	})

	d.Register(":CATEGORY:HIDE:", func(e dispatcher.Event) (any, error) {
		return categoryVisible(s, e, false)
	})

	d.Register(":TICK:", func(e dispatcher.Event) (any, error) {
		dt := DefaultFrame
		if arg := e.Arg(0); arg != "" {
			var err error
			if dt, err = time.ParseDuration(arg); err != nil {
				return nil, fmt.Errorf("%s: frame time: %w", e.Command, err)
			}
		}
		s.Tick(dt)
		return "ok", nil
	})

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		return s.Status(), nil
	})

	// :MARKERS:EXPORT: [path|-] [category...]
	d.Register(":MARKERS:EXPORT:", func(e dispatcher.Event) (any, error) {
		var opts export.Options
		if len(e.Args) > 1 {
			opts.Categories = e.Args[1:]
		}
		fc := s.Export(opts)

		path := e.Arg(0)
		if path == "" || path == "-" {
			return fc, nil
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Command, err)
		}
		defer f.Close()
		if err := export.Write(f, fc); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Command, err)
		}
		return len(fc), nil
	}, dispatcher.Logged())
}

func categoryVisible(s *Session, e dispatcher.Event, visible bool) (any, error) {
	category := e.Arg(0)
	if category == "" {
		return nil, fmt.Errorf("%s: missing category", e.Command)
	}
	s.view.SetCategoryVisible(category, visible)
	return category, nil
}

// RegisterWorld adds commands that drive an in-memory world, used by command
// scripts in place of a running game.
//
//	:WORLD:SESSION: true|false
//	:WORLD:SPAWN: <id> <scav|pmc|boss> <x> <y> <z> [nickname] [local] [escort]
//	:WORLD:MOVE: <id> <x> <y> <z> [rotation]
//	:WORLD:KILL: <id>
//	:WORLD:DESPAWN: <id>
func RegisterWorld(d *dispatcher.Dispatcher, w *world.Memory) {
	d.Register(":WORLD:SESSION:", func(e dispatcher.Event) (any, error) {
		in, err := strconv.ParseBool(e.Arg(0))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Command, err)
		}
		w.SetInSession(in)
		return in, nil
	})

	d.Register(":WORLD:SPAWN:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 5 {
			return nil, fmt.Errorf("%s: want id, role and position", e.Command)
		}
		role, err := world.ParseRole(e.Arg(1))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Command, err)
		}
		pos, err := parsePosition(e.Args[2:5])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Command, err)
		}
		spec := world.Spec{ID: e.Arg(0), Nickname: e.Arg(0), Role: role, Position: pos}
		for i, arg := range e.Args[5:] {
			switch strings.ToLower(arg) {
			case "local":
				spec.Local = true
			case "escort":
				spec.EscortShooter = true
			default:
				if i == 0 {
					spec.Nickname = arg
				} else {
					return nil, fmt.Errorf("%s: unknown flag %q", e.Command, arg)
				}
			}
		}
		if err := w.Spawn(spec); err != nil {
			return nil, err
		}
		return spec.ID, nil
	})

	d.Register(":WORLD:MOVE:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 4 {
			return nil, fmt.Errorf("%s: want id and position", e.Command)
		}
		pos, err := parsePosition(e.Args[1:4])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Command, err)
		}
		var rot float64
		if r := e.Arg(4); r != "" {
			if rot, err = strconv.ParseFloat(r, 64); err != nil {
				return nil, fmt.Errorf("%s: rotation: %w", e.Command, err)
			}
		}
		return e.Arg(0), w.Move(e.Arg(0), pos, rot)
	})

	d.Register(":WORLD:KILL:", func(e dispatcher.Event) (any, error) {
		return e.Arg(0), w.Kill(e.Arg(0))
	})

	d.Register(":WORLD:DESPAWN:", func(e dispatcher.Event) (any, error) {
		return e.Arg(0), w.Despawn(e.Arg(0))
	})
}

func parsePosition(args []string) (core.Position3D, error) {
	var v [3]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return core.Position3D{}, fmt.Errorf("coordinate %d: %w", i, err)
		}
		v[i] = f
	}
	return core.Position3D{X: v[0], Y: v[1], Z: v[2]}, nil
}
