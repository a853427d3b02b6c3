package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/sauerbraten/arena/internal/hud"
	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/session"
	"github.com/sauerbraten/arena/internal/stats"
)

// console turns typed lines into player input, chat and HUD actions.
type console struct {
	sess  *session.Session
	hud   *hud.HUD
	stats *stats.Store // nil on clients
	killY float64

	input player.Input
	quit  bool
}

// Handle processes one line. It returns false once the player confirmed quitting.
func (c *console) Handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	if c.hud.Quitting() {
		if cmd == "/quit" {
			c.quit = true
			return false
		}
		c.hud.CancelQuit()
		return true
	}

	switch cmd {
	case "/quit":
		c.hud.ToggleQuit()

	case "/charge":
		c.input.Trigger = true

	case "/release":
		c.input.Trigger = false

	case "/aim":
		if len(args) != 1 {
			c.hud.Print("usage: /aim <name>")
			break
		}
		c.aim(args[0])

	case "/move":
		if len(args) != 2 {
			c.hud.Print("usage: /move <x> <z>")
			break
		}
		x, errX := strconv.ParseFloat(args[0], 64)
		z, errZ := strconv.ParseFloat(args[1], 64)
		if errX != nil || errZ != nil {
			c.hud.Print("usage: /move <x> <z>")
			break
		}
		move := mgl64.Vec2{x, z}
		if move.Len() > 1 {
			move = move.Normalize()
		}
		c.input.Move = move

	case "/stop":
		c.input.Move = mgl64.Vec2{}

	case "/jump":
		c.input.Jump = true

	case "/fall":
		if self := c.sess.Local(); self != nil {
			self.Position[1] = c.killY - 1
		}

	case "/pause":
		c.sess.SetInputEnabled(false)

	case "/resume":
		c.sess.SetInputEnabled(true)

	case "/stats":
		c.printStats()

	default:
		if strings.HasPrefix(cmd, "/") {
			c.hud.Print("unknown command " + cmd)
			break
		}
		c.sess.SendChat(line, "")
	}

	return true
}

// aim turns the local actor to face name.
func (c *console) aim(name string) {
	self := c.sess.Local()
	target, ok := c.sess.Roster().ByName(name)
	if self == nil || !ok || target == self {
		c.hud.Print("nobody called " + name)
		return
	}
	d := target.Position.Sub(self.Position)
	c.input.Yaw = math.Atan2(-d.X(), -d.Z())
}

func (c *console) printStats() {
	c.hud.Print(fmt.Sprintf("%s, health %d", c.hud.ScoreLabel(), c.hud.Health()))

	if c.stats == nil {
		return
	}
	board, err := c.stats.Leaderboard(context.Background(), c.sess.ID)
	if err != nil {
		c.hud.Print("could not load leaderboard: " + err.Error())
		return
	}
	for i, st := range board {
		c.hud.Print(fmt.Sprintf("%d. %s", i+1, st))
	}
}

// Frame returns the input for the next physics step. One-shot inputs are
// consumed.
func (c *console) Frame() player.Input {
	in := c.input
	c.input.Jump = false
	return in
}
