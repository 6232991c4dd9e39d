package slice

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Mode selects how the extractor reads the recording.
type Mode string

const (
	// ModeWhole processes the entire recording.
	ModeWhole Mode = "whole"
	// ModeTailWindow processes only the most recent requested window.
	ModeTailWindow Mode = "tail_window"
)

// Plan describes which part of a recording a catch-up request covers.
type Plan struct {
	Mode                 Mode
	RequestedSeconds     int
	AvailableSeconds     int
	StartOffsetSeconds   int
	StartOffsetFormatted string
}

var (
	hoursRe   = regexp.MustCompile(`(\d+)h`)
	minutesRe = regexp.MustCompile(`(\d+)m`)
	secondsRe = regexp.MustCompile(`(\d+)s`)
)

// ParseDuration converts a platform duration string such as "2h15m30s"
// into total seconds. Any subset of the h/m/s tokens may appear, in any
// order. A string with no tokens at all is an error.
func ParseDuration(duration string) (int, error) {
	total := 0
	found := false

	for _, tok := range []struct {
		re   *regexp.Regexp
		mult int
	}{
		{hoursRe, 3600},
		{minutesRe, 60},
		{secondsRe, 1},
	} {
		if m := tok.re.FindStringSubmatch(duration); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, fmt.Errorf("invalid duration token in %q: %w", duration, err)
			}
			total += n * tok.mult
			found = true
		}
	}

	if !found {
		return 0, errors.New("cannot determine duration from " + duration)
	}
	return total, nil
}

// ComputePlan decides between whole-recording and tail-window processing.
// When the recording is no longer than the requested window the whole
// recording is used; otherwise only the trailing window, starting at
// available minus requested.
func ComputePlan(duration string, requestedMinutes int) (Plan, error) {
	available, err := ParseDuration(duration)
	if err != nil {
		return Plan{}, err
	}
	if requestedMinutes <= 0 {
		return Plan{}, fmt.Errorf("requested window must be positive, got %d", requestedMinutes)
	}

	requested := requestedMinutes * 60
	plan := Plan{
		RequestedSeconds: requested,
		AvailableSeconds: available,
	}

	if available <= requested {
		plan.Mode = ModeWhole
		plan.StartOffsetSeconds = 0
	} else {
		plan.Mode = ModeTailWindow
		plan.StartOffsetSeconds = available - requested
	}
	plan.StartOffsetFormatted = FormatOffset(plan.StartOffsetSeconds)

	return plan, nil
}

// WindowSeconds returns the span the plan actually covers, which is the
// full recording in whole mode.
func (p Plan) WindowSeconds() int {
	if p.Mode == ModeWhole {
		return p.AvailableSeconds
	}
	return p.RequestedSeconds
}

// FormatOffset renders seconds as zero-padded HH:MM:SS.
func FormatOffset(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// DeepLink builds a jump URL into a recording at the plan's start offset,
// using the platform's ?t=XXhYYmZZs fragment format.
func DeepLink(vodID string, p Plan) string {
	if vodID == "" {
		return ""
	}
	sec := p.StartOffsetSeconds
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("https://www.twitch.tv/videos/%s?t=%dh%dm%ds", vodID, h, m, s)
}
