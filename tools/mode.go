package tools

import (
	"fmt"
	"strings"
)

// Mode selects how a tracy tool runs.
type Mode string

const (
	// ModeAuto prefers a binary on PATH, then a local docker image.
	ModeAuto Mode = "auto"
	// ModeProcess runs the binary directly on the host.
	ModeProcess Mode = "process"
	// ModeDocker runs the tool image in a container.
	ModeDocker Mode = "docker"
)

func ParseMode(s string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeProcess, ModeDocker:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported run mode %q (want auto, process or docker)", s)
	}
}

func (m Mode) String() string {
	return string(m)
}
