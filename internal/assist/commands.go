package assist

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "log/slog"

	"cosmo/internal/directions"
	"cosmo/internal/locate"
	"cosmo/internal/places"
	"cosmo/pkg/geo"
)

const helpText = "You can say: navigate to a place, a number to pick a result, " +
	"start, stop, repeat, walking mode, transit mode, or ask me a question."

const requestTimeout = 15 * time.Second

// prompt acknowledges a bare wake phrase and opens the active window.
func (c *Core) prompt() {
	if c.deps.Chime != nil {
		go c.deps.Chime.Play()
	}
	c.deps.Listener.EnterActive()
	c.announce("Yes? How can I help?")
	c.publishState()
}

// search looks up candidates for query near the walker and announces the
// top results. The network call runs off-loop.
func (c *Core) search(query string) {
	pos, err := c.deps.Position.Current()
	if err != nil {
		if errors.Is(err, locate.ErrNoFix) {
			c.announce("I don't have your location yet. Please try again in a moment.")
		} else {
			log.Warn("position lookup failed", "err", err)
			c.announce("I couldn't determine your location.")
		}
		return
	}

	c.announce(fmt.Sprintf("Searching for %s.", query))
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		found, err := c.deps.Places.Search(ctx, query, pos.Point)
		c.Post(func() { c.searchDone(query, found, err) })
	}()
}

func (c *Core) searchDone(query string, found []places.Candidate, err error) {
	if err != nil {
		if errors.Is(err, places.ErrNoResults) {
			c.announce(fmt.Sprintf("I couldn't find anything for %s.", query))
		} else {
			log.Warn("place search failed", "query", query, "err", err)
			c.announce("The search failed. Please try again.")
		}
		return
	}

	c.candidates = places.Rank(found, query)
	c.lastQuery = query
	c.announceOptions(3)
	c.deps.Listener.EnterActive()
	c.publishState()
}

// announceOptions speaks the result count and the first limit candidates
// with their distances.
func (c *Core) announceOptions(limit int) {
	n := len(c.candidates)
	if n == 0 {
		c.announce("There are no options right now.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d results for %s. ", n, c.lastQuery)
	for i, cand := range c.candidates {
		if i >= limit {
			break
		}
		fmt.Fprintf(&b, "%d: %s, %s. ", i+1, cand.Label, spokenDistance(cand.DistanceMeters))
	}
	b.WriteString("Say a number to choose.")
	c.announce(b.String())
}

func spokenDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d meters", int(meters+0.5))
	}
	return fmt.Sprintf("%.1f kilometers", meters/1000)
}

// selectCandidate picks the i-th (0-based) result and requests a route to
// it. Out-of-range indexes leave state untouched and speak the valid range.
func (c *Core) selectCandidate(i int) {
	n := len(c.candidates)
	if n == 0 {
		c.announce("There are no options to choose from. Search for a place first.")
		return
	}
	if i < 0 || i >= n {
		c.announce(fmt.Sprintf("Please say a number between 1 and %d.", n))
		return
	}

	cand := c.candidates[i]
	pos, err := c.deps.Position.Current()
	if err != nil {
		c.announce("I don't have your location yet. Please try again in a moment.")
		return
	}

	c.announce(fmt.Sprintf("Getting directions to %s.", cand.Label))
	mode := c.travelMode
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		route, err := c.deps.Directions.Route(ctx, pos.Point, cand.Point, mode)
		c.Post(func() { c.routeDone(cand, route, err) })
	}()
}

func (c *Core) routeDone(cand places.Candidate, route *directions.Route, err error) {
	if err != nil {
		switch {
		case errors.Is(err, directions.ErrNoRoute):
			c.announce(fmt.Sprintf("I couldn't find a %s route to %s.", c.travelMode, cand.Label))
		case errors.Is(err, directions.ErrRouteDenied):
			log.Error("route request denied", "err", err)
			c.announce("Route lookup was denied. Please check the maps configuration.")
		default:
			log.Warn("route lookup failed", "err", err)
			c.announce("Route lookup failed. Please try again.")
		}
		return
	}

	c.route = route
	c.destLabel = cand.Label
	c.announce(fmt.Sprintf("Route to %s: %s, about %s, %s. Say start to begin navigation.",
		cand.Label, route.DistanceText, route.DurationText, c.travelMode))
	c.deps.Listener.EnterActive()
	c.publishState()
}

// startNavigation begins the monitor run. No-op when already navigating.
func (c *Core) startNavigation() {
	if c.route == nil {
		c.announce("There's no route yet. Search for a destination first.")
		return
	}
	if c.monitor.Running() {
		return
	}
	c.deps.Listener.Deactivate()
	c.monitor.Start(c.route)
	c.announce("Starting navigation.")
	c.publishState()
}

// stopNavigation ends the run and clears the session. Idempotent: a second
// stop is a silent no-op.
func (c *Core) stopNavigation(arrived bool) {
	if arrived {
		// The monitor already stopped the run; only the session state is
		// left to clear.
		if c.route == nil {
			return
		}
	} else if !c.monitor.Running() {
		return
	}
	c.monitor.Stop()
	c.route = nil
	c.destLabel = ""
	c.candidates = nil
	c.deps.Listener.EnterPassive()
	if arrived {
		c.announce("You have arrived at your destination.")
	} else {
		c.announce("Navigation stopped.")
	}
	c.publishState()
}

func (c *Core) repeatInstruction() {
	if _, text, ok := c.monitor.CurrentStep(); ok {
		c.announce(text)
		return
	}
	c.announce("You're not navigating right now.")
}

func (c *Core) setTravelMode(mode string) {
	switch directions.Mode(mode) {
	case directions.ModeWalking, directions.ModeTransit:
		c.travelMode = directions.Mode(mode)
		c.announce(fmt.Sprintf("Travel mode set to %s.", mode))
		c.publishState()
	default:
		c.announce("I can do walking or transit.")
	}
}

func (c *Core) help() {
	c.announce(helpText)
}

func (c *Core) repeatOptions() {
	c.announceOptions(5)
}

// freeform sends the command through the AI fallback chain. Navigate
// decisions feed back into search; answers are spoken as-is.
func (c *Core) freeform(query string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*requestTimeout)
		defer cancel()
		d := c.deps.Resolver.Resolve(ctx, query)
		c.Post(func() {
			switch d.Action {
			case "navigate":
				c.search(d.Location)
			case "answer":
				c.announce(d.Response)
			}
		})
	}()
}

// recalculate reroutes to dest after an off-route stop and restarts the
// run with the fresh route.
func (c *Core) recalculate(dest geo.Point) {
	pos, err := c.deps.Position.Current()
	if err != nil {
		c.announce("I lost your location and couldn't recalculate the route.")
		c.clearAfterFailedReroute()
		return
	}

	mode := c.travelMode
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		route, err := c.deps.Directions.Route(ctx, pos.Point, dest, mode)
		c.Post(func() { c.rerouteDone(route, err) })
	}()
}

func (c *Core) rerouteDone(route *directions.Route, err error) {
	if err != nil {
		log.Warn("reroute failed", "err", err)
		c.announce("I couldn't recalculate the route. Navigation stopped.")
		c.clearAfterFailedReroute()
		return
	}
	c.route = route
	c.monitor.Start(route)
	c.publishState()
}

func (c *Core) clearAfterFailedReroute() {
	c.route = nil
	c.destLabel = ""
	c.deps.Listener.EnterPassive()
	c.publishState()
}

// HandleCommand services the IPC and bus command surface. It posts the
// work onto the session loop and reports acceptance; status is answered
// synchronously.
func (c *Core) HandleCommand(cmd, arg string) (string, bool) {
	switch cmd {
	case "search":
		if strings.TrimSpace(arg) == "" {
			return "search needs a query", false
		}
		c.Post(func() { c.search(arg) })
		return "searching", true
	case "select":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 1 {
			return "select needs a 1-based option number", false
		}
		c.Post(func() { c.selectCandidate(n - 1) })
		return fmt.Sprintf("selecting option %d", n), true
	case "start":
		c.Post(func() { c.startNavigation() })
		return "starting", true
	case "stop":
		c.Post(func() { c.stopNavigation(false) })
		return "stopping", true
	case "repeat":
		c.Post(func() { c.repeatInstruction() })
		return "repeating", true
	case "mode":
		c.Post(func() { c.setTravelMode(strings.TrimSpace(arg)) })
		return "setting mode", true
	case "status":
		return c.Status().String(), true
	default:
		return fmt.Sprintf("unknown command %q", cmd), false
	}
}
