// Package deck loads tracks into the target DJ application by driving its
// window with simulated input: the decoded card text is typed into the
// library search, and a deck-load shortcut is sent for the requested side.
package deck

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kartenwerk/schallpappenspieler/internal/monitoring"
	"github.com/kartenwerk/schallpappenspieler/internal/timeutil"
	"github.com/kartenwerk/schallpappenspieler/internal/track"
)

// Runner executes external commands. The indirection exists so tests can
// script wmctrl/xdotool interactions without a display server.
type Runner interface {
	// Output runs a command and returns its stdout.
	Output(name string, args ...string) (string, error)
	// Run runs a command, discarding output.
	Run(name string, args ...string) error
	// RunInput runs a command with input on stdin.
	RunInput(input string, name string, args ...string) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Output implements Runner.
func (ExecRunner) Output(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

// Run implements Runner.
func (ExecRunner) Run(name string, args ...string) error {
	if err := exec.Command(name, args...).Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// RunInput implements Runner.
func (ExecRunner) RunInput(input string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = bytes.NewBufferString(input)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Config describes how to drive the target application's window.
type Config struct {
	WindowClassHint string        // substring matched against wmctrl -lx window classes
	StepDelay       time.Duration // pause between automation steps
	SearchHotkey    string        // key combination that focuses the library search
	ResultTabCount  int           // Tab presses from search field to the result list
	LeftDeckKey     string        // shortcut that loads the selection into the left deck
	RightDeckKey    string        // shortcut that loads the selection into the right deck
}

// DefaultConfig returns settings for a stock Mixxx layout.
func DefaultConfig() Config {
	return Config{
		WindowClassHint: "mixxx",
		StepDelay:       500 * time.Millisecond,
		SearchHotkey:    "ctrl+f",
		ResultTabCount:  3,
		LeftDeckKey:     "shift+Left",
		RightDeckKey:    "shift+Right",
	}
}

// Controller automates the target application. It prefers pasting search
// text through the clipboard (xclip, then xsel) and falls back to keystroke
// typing when neither is available.
type Controller struct {
	cfg    Config
	runner Runner
	clock  timeutil.Clock

	hasXclip bool
	hasXsel  bool
}

// NewController creates a Controller using real command execution.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg, runner: ExecRunner{}, clock: timeutil.RealClock{}}
	_, err := exec.LookPath("xclip")
	c.hasXclip = err == nil
	_, err = exec.LookPath("xsel")
	c.hasXsel = err == nil
	return c
}

// NewControllerWith creates a Controller with injected dependencies, for
// tests.
func NewControllerWith(cfg Config, runner Runner, clock timeutil.Clock, hasXclip, hasXsel bool) *Controller {
	return &Controller{cfg: cfg, runner: runner, clock: clock, hasXclip: hasXclip, hasXsel: hasXsel}
}

// Load searches for text and loads the first result into the deck for side.
// It returns false on any failed step; failures are logged, never fatal.
func (c *Controller) Load(text string, side track.Side) bool {
	winID, ok := c.findWindowID()
	if !ok {
		monitoring.Logf("deck: target window %q not found", c.cfg.WindowClassHint)
		return false
	}

	if err := c.runner.Run("wmctrl", "-ia", winID); err != nil {
		monitoring.Logf("deck: focus window: %v", err)
		return false
	}
	c.clock.Sleep(c.cfg.StepDelay)

	if err := c.key(winID, c.cfg.SearchHotkey); err != nil {
		monitoring.Logf("deck: open search: %v", err)
		return false
	}
	c.clock.Sleep(c.cfg.StepDelay)

	if err := c.enterText(winID, text); err != nil {
		monitoring.Logf("deck: enter search text: %v", err)
		return false
	}
	c.clock.Sleep(c.cfg.StepDelay)

	for i := 0; i < c.cfg.ResultTabCount; i++ {
		if err := c.key(winID, "Tab"); err != nil {
			monitoring.Logf("deck: tab to results: %v", err)
			return false
		}
		c.clock.Sleep(c.cfg.StepDelay)
	}

	deckKey := c.cfg.LeftDeckKey
	if side == track.SideRight {
		deckKey = c.cfg.RightDeckKey
	}
	if err := c.key(winID, deckKey); err != nil {
		monitoring.Logf("deck: load deck: %v", err)
		return false
	}
	return true
}

// findWindowID locates the target window via wmctrl -lx. The third column is
// the WM_CLASS; the first matching line wins.
func (c *Controller) findWindowID() (string, bool) {
	out, err := c.runner.Output("wmctrl", "-lx")
	if err != nil {
		monitoring.Logf("deck: wmctrl -lx: %v", err)
		return "", false
	}
	hint := strings.ToLower(c.cfg.WindowClassHint)
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Fields(line)
		if len(parts) >= 3 && strings.Contains(strings.ToLower(parts[2]), hint) {
			return parts[0], true
		}
	}
	return "", false
}

func (c *Controller) key(winID, key string) error {
	return c.runner.Run("xdotool", "key", "--window", winID, key)
}

// enterText puts text into the focused search field: clipboard paste when a
// clipboard tool is available, keystroke typing otherwise. Pasting is both
// faster and safe for characters the active keymap cannot type.
func (c *Controller) enterText(winID, text string) error {
	if c.hasXclip {
		if err := c.runner.RunInput(text, "xclip", "-selection", "clipboard"); err == nil {
			return c.key(winID, "ctrl+v")
		}
	}
	if c.hasXsel {
		if err := c.runner.RunInput(text, "xsel", "--clipboard", "--input"); err == nil {
			return c.key(winID, "ctrl+v")
		}
	}
	return c.runner.Run("xdotool", "type", "--window", winID, text)
}
