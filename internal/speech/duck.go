package speech

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Ducker fades down every PulseAudio stream except the assistant's own
// while an announcement plays, and restores the original volumes after.
type Ducker struct {
	mu          sync.Mutex
	active      bool
	selfNames   []string // application.name values to leave alone
	factor      float64
	minVolume   int
	originalVol map[int]int // id -> volume % before ducking
}

func NewDucker(selfNames []string, factor float64, minVolume int) *Ducker {
	if factor <= 0 || factor >= 1 {
		factor = 0.3
	}
	if minVolume < 0 {
		minVolume = 0
	}
	return &Ducker{
		selfNames:   append([]string(nil), selfNames...),
		factor:      factor,
		minVolume:   minVolume,
		originalVol: make(map[int]int),
	}
}

// DuckOthers fades foreign streams to volume*factor (bounded below by
// minVolume). Idempotent while active.
func (d *Ducker) DuckOthers(ctx context.Context, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.originalVol = make(map[int]int)
	var targets []fadeTarget

	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}
		to := int(math.Round(float64(s.Volume) * d.factor))
		if to < d.minVolume {
			to = d.minVolume
		}
		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: to})
	}

	if err := fadeInputs(ctx, targets, fade); err != nil {
		return err
	}
	d.active = true
	return nil
}

// UnduckOthers restores the volumes recorded by DuckOthers. Streams that
// appeared during the duck are left untouched.
func (d *Ducker) UnduckOthers(ctx context.Context, fade time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := fadeInputs(ctx, targets, fade); err != nil {
		return err
	}
	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

// fadeInputs steps the set of sink inputs from their current volume to the
// target over the fade duration.
func fadeInputs(ctx context.Context, targets []fadeTarget, fade time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond
	steps := int(fade / minStep)
	if steps < 1 {
		steps = 1
	}
	stepDur := fade / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		frac := float64(i) / float64(steps)
		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := setSinkInputVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}
		if i < steps {
			time.Sleep(stepDur)
		}
	}
	return nil
}

func listStreams(ctx context.Context) ([]streamInfo, error) {
	cmd := exec.CommandContext(ctx, "pactl", "list", "sink-inputs")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}

	parts := strings.Split(string(out), "Sink Input #")
	var res []streamInfo

	for i := 1; i < len(parts); i++ {
		block := parts[i]
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}
		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						s.Volume = v
					}
				}
			}
			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				if idx := strings.Index(line, "\""); idx >= 0 {
					rest := line[idx+1:]
					if idx2 := strings.Index(rest, "\""); idx2 >= 0 {
						s.AppName = rest[:idx2]
					}
				}
			}
		}
		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}
	return res, nil
}

func setSinkInputVolume(ctx context.Context, id, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 150 {
		percent = 150
	}
	cmd := exec.CommandContext(ctx, "pactl",
		"set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	return cmd.Run()
}
