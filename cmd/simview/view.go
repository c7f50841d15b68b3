package main

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/smartcity/mobility/internal/animation"
	"github.com/smartcity/mobility/internal/dispatch"
	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

const frameInterval = 16 * time.Millisecond // ~60 FPS

// projection maps lat/lon into the map area of the terminal. Row h is the status line.
type projection struct {
	minLat, maxLat float64
	minLon, maxLon float64
	w, h           int
}

func newProjection(routes []*domain.Route, w, h int) projection {
	p := projection{
		minLat: math.Inf(1), maxLat: math.Inf(-1),
		minLon: math.Inf(1), maxLon: math.Inf(-1),
		w: w, h: h - 1,
	}
	for _, r := range routes {
		for _, pt := range r.Points {
			p.minLat = math.Min(p.minLat, pt.Lat)
			p.maxLat = math.Max(p.maxLat, pt.Lat)
			p.minLon = math.Min(p.minLon, pt.Lon)
			p.maxLon = math.Max(p.maxLon, pt.Lon)
		}
	}
	if math.IsInf(p.minLat, 1) {
		c := domain.CityCenter
		p.minLat, p.maxLat = c.Lat-0.01, c.Lat+0.01
		p.minLon, p.maxLon = c.Lon-0.01, c.Lon+0.01
	}
	return p
}

// cell returns the terminal cell of pt; ok is false outside the map area
func (p projection) cell(pt geo.GeoPoint) (x, y int, ok bool) {
	if p.w <= 0 || p.h <= 0 {
		return 0, 0, false
	}
	fx, fy := 0.5, 0.5
	if span := p.maxLon - p.minLon; span > 0 {
		fx = (pt.Lon - p.minLon) / span
	}
	if span := p.maxLat - p.minLat; span > 0 {
		fy = (p.maxLat - pt.Lat) / span
	}
	x = int(math.Round(fx * float64(p.w-1)))
	y = int(math.Round(fy * float64(p.h-1)))
	return x, y, x >= 0 && x < p.w && y >= 0 && y < p.h
}

var (
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
	styleTrail    = tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
	styleInactive = tcell.StyleDefault.Foreground(tcell.ColorDimGray)

	routeStyles = map[domain.Classification]tcell.Style{
		domain.ClassPrimary:   tcell.StyleDefault.Foreground(tcell.ColorBlue),
		domain.ClassSecondary: tcell.StyleDefault.Foreground(tcell.ColorGreen),
		domain.ClassTertiary:  tcell.StyleDefault.Foreground(tcell.ColorGray),
	}
	eventStyles = map[dispatch.EventStatus]tcell.Style{
		dispatch.StatusPending:    tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
		dispatch.StatusResponding: tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true),
		dispatch.StatusResolved:   tcell.StyleDefault.Foreground(tcell.ColorGreen),
	}
	markers = map[domain.EntityKind]rune{
		domain.KindPatrol:    'P',
		domain.KindAmbulance: 'A',
		domain.KindFire:      'F',
		domain.KindTransit:   'B',
		domain.KindCar:       'c',
		domain.KindBicycle:   'b',
		domain.KindGeneric:   '@',
	}
	markerStyles = map[domain.EntityKind]tcell.Style{
		domain.KindPatrol:    tcell.StyleDefault.Foreground(tcell.ColorDodgerBlue).Bold(true),
		domain.KindAmbulance: tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true),
		domain.KindFire:      tcell.StyleDefault.Foreground(tcell.ColorOrangeRed).Bold(true),
	}
)

// Viewer renders scheduler frames and handles playback keys
type Viewer struct {
	screen     tcell.Screen
	scheduler  *animation.Scheduler
	dispatcher *dispatch.Dispatcher
	routes     []*domain.Route

	proj projection

	mu             sync.Mutex
	cancelDispatch context.CancelFunc
}

// NewViewer binds a screen to a scheduler and its routes
func NewViewer(screen tcell.Screen, scheduler *animation.Scheduler, dispatcher *dispatch.Dispatcher, routes []*domain.Route) *Viewer {
	v := &Viewer{
		screen:     screen,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		routes:     routes,
	}
	v.resize()
	return v
}

func (v *Viewer) resize() {
	w, h := v.screen.Size()
	v.proj = newProjection(v.routes, w, h)
}

// DispatchActive reports whether the emergency simulation is running
func (v *Viewer) DispatchActive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancelDispatch != nil
}

func (v *Viewer) toggleDispatch(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancelDispatch != nil {
		v.cancelDispatch()
		v.cancelDispatch = nil
		return
	}
	if v.dispatcher == nil {
		return
	}
	dctx, cancel := context.WithCancel(ctx)
	v.cancelDispatch = cancel
	go v.dispatcher.Run(dctx)
}

// handleKey applies one key press and reports whether the viewer should quit
func (v *Viewer) handleKey(ctx context.Context, key tcell.Key, r rune) bool {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
	default:
		return false
	}

	switch r {
	case 'q':
		return true
	case ' ':
		v.scheduler.Toggle(ctx)
	case '1', '2', '3', '4':
		_ = v.scheduler.SetSpeedMultiplier(animation.SpeedMultipliers[r-'1'])
	case 'r':
		v.scheduler.Reset()
		if v.dispatcher != nil {
			v.dispatcher.Reset()
		}
	case 'd':
		v.toggleDispatch(ctx)
	}
	return false
}

func (v *Viewer) handleEvent(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ctx, ev.Key(), ev.Rune())
	case *tcell.EventResize:
		v.resize()
		v.screen.Sync()
	}
	return false
}

// draw renders routes, events, trails, markers and the status line
func (v *Viewer) draw() {
	v.screen.Clear()

	for _, r := range v.routes {
		style, ok := routeStyles[r.Classification]
		if !ok {
			style = routeStyles[domain.ClassTertiary]
		}
		for i := 1; i < len(r.Points); i++ {
			v.line(r.Points[i-1], r.Points[i], '·', style)
		}
	}

	if v.dispatcher != nil {
		for _, ev := range v.dispatcher.Events() {
			v.put(ev.Location, '!', eventStyles[ev.Status])
		}
	}

	frames := v.scheduler.Snapshot()
	for _, f := range frames {
		for _, p := range f.Trail {
			v.put(p, '•', styleTrail)
		}
	}
	for _, f := range frames {
		marker, ok := markers[f.Kind]
		if !ok {
			marker = '@'
		}
		style, ok := markerStyles[f.Kind]
		if !ok {
			style = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
		}
		if f.State == domain.StateIdle {
			style = styleInactive
		}
		v.put(f.Position, marker, style)
	}

	v.status(len(frames))
	v.screen.Show()
}

func (v *Viewer) put(p geo.GeoPoint, r rune, style tcell.Style) {
	if x, y, ok := v.proj.cell(p); ok {
		v.screen.SetContent(x, y, r, nil, style)
	}
}

// line plots a segment by sampling one point per cell
func (v *Viewer) line(a, b geo.GeoPoint, r rune, style tcell.Style) {
	ax, ay, _ := v.proj.cell(a)
	bx, by, _ := v.proj.cell(b)
	steps := max(abs(bx-ax), abs(by-ay), 1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		v.put(geo.GeoPoint{
			Lat: a.Lat + (b.Lat-a.Lat)*t,
			Lon: a.Lon + (b.Lon-a.Lon)*t,
		}, r, style)
	}
}

func (v *Viewer) status(entities int) {
	state := "paused"
	if v.scheduler.Playing() {
		state = "playing"
	}
	text := fmt.Sprintf(" %s  %gx  vehicles:%d  routes:%d", state, v.scheduler.SpeedMultiplier(), entities, len(v.routes))
	if v.dispatcher != nil {
		mode := "off"
		if v.DispatchActive() {
			mode = "on"
		}
		s := v.dispatcher.Stats()
		text += fmt.Sprintf("  dispatch:%s idle:%d busy:%d pending:%d resolved:%d",
			mode, s.IdleVehicles, s.RespondingVehicles, s.PendingEvents, s.ResolvedEvents)
	}
	text += "  [space] play  [1-4] speed  [r] reset  [d] dispatch  [q] quit"

	w, h := v.screen.Size()
	row := h - 1
	col := 0
	for _, ch := range text {
		if col >= w {
			break
		}
		v.screen.SetContent(col, row, ch, nil, styleStatus)
		col++
	}
	for ; col < w; col++ {
		v.screen.SetContent(col, row, ' ', nil, styleStatus)
	}
}

// Run renders at ~60 FPS until a quit key or ctx is done
func (v *Viewer) Run(ctx context.Context) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	v.draw()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if v.handleEvent(ctx, ev) {
				return
			}
		case <-ticker.C:
			v.draw()
		}
	}
}

// Stop halts playback and the dispatch loop
func (v *Viewer) Stop() {
	v.scheduler.Pause()
	v.mu.Lock()
	if v.cancelDispatch != nil {
		v.cancelDispatch()
		v.cancelDispatch = nil
	}
	v.mu.Unlock()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
