package hud

import (
	"fmt"
	"strings"

	"github.com/sauerbraten/arena/internal/rng"
)

var fallTemplates = []string{
	"fell off the world",
	"found out the world was flat",
	"found out {youOrThey} couldn't fly",
	"didn't realize {youOrThey} were near the edge",
	"decided to respawn just for fun",
	"discovered gravity",
	"learned how to fall with style",
}

func youOrName(isSelf bool, name string) string {
	if isSelf {
		return "You"
	}
	return name
}

func wasOrWere(isSelf bool) string {
	if isSelf {
		return "were"
	}
	return "was"
}

func youOrThey(isSelf bool) string {
	if isSelf {
		return "you"
	}
	return "they"
}

func ShotPlayer(isSelf bool, shooter, victim string) string {
	return fmt.Sprintf("%s shot %s", youOrName(isSelf, shooter), victim)
}

func RespawnedShot(isSelf bool, name, shooter string) string {
	return fmt.Sprintf("%s %s shot by %s", youOrName(isSelf, name), wasOrWere(isSelf), shooter)
}

// FallMessage renders fall template i; out of range indexes wrap.
func FallMessage(isSelf bool, name string, i int) string {
	i %= len(fallTemplates)
	if i < 0 {
		i += len(fallTemplates)
	}
	t := strings.ReplaceAll(fallTemplates[i], "{youOrThey}", youOrThey(isSelf))
	return youOrName(isSelf, name) + " " + t
}

func RandomFallMessage(isSelf bool, name string, r rng.Source) string {
	return FallMessage(isSelf, name, r.Intn(len(fallTemplates)))
}
