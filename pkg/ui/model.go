// Package ui is the bubbletea front end for reel: an endless, scrollable
// image feed driven by the engine in pkg/feed.
//
// The model owns one engine session at a time (controller + sink + source).
// Scrolling the viewport feeds the demand trigger; engine events arrive
// through a channel-pump command and only ever touch the model inside
// Update, so no UI state needs locking. A query restart swaps in a whole
// new session and with it a fresh served set.
package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/reel/pkg/config"
	"github.com/vanderheijden86/reel/pkg/debug"
	"github.com/vanderheijden86/reel/pkg/export"
	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/render"
	"github.com/vanderheijden86/reel/pkg/source"
	"github.com/vanderheijden86/reel/pkg/watcher"
)

// Default dimensions so the model is usable before the terminal reports its
// real size (tmux, SSH and some emulators delay the first WindowSizeMsg).
const (
	defaultWidth  = 120
	defaultHeight = 40
)

// statusMsgTTL is how long transient footer messages stay up.
const statusMsgTTL = 4 * time.Second

// engineEventMsg carries one engine event into the Update loop.
type engineEventMsg struct {
	gen int
	ev  feed.Event
}

// engineStoppedMsg is sent when a session's controller shuts down.
type engineStoppedMsg struct {
	gen int
}

// configChangedMsg is sent when the watched config file changes.
type configChangedMsg struct{}

// catalogGrewMsg is sent when the watched catalog file changes.
type catalogGrewMsg struct{}

// exportDoneMsg carries the result of a contact-sheet export.
type exportDoneMsg struct {
	path string
	err  error
}

// statusExpiredMsg clears a transient footer message.
type statusExpiredMsg struct {
	seq int
}

// waitEngineEventCmd waits for the next engine event of the given session.
func waitEngineEventCmd(c *feed.Controller, gen int) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-c.Events():
			return engineEventMsg{gen: gen, ev: ev}
		case <-c.Done():
			return engineStoppedMsg{gen: gen}
		}
	}
}

// watchConfigCmd waits for the next config file change.
func watchConfigCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return configChangedMsg{}
	}
}

// watchCatalogCmd waits for the next catalog file change.
func watchCatalogCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return catalogGrewMsg{}
	}
}

// exportSheetCmd writes a contact sheet off the Update loop.
func exportSheetCmd(items []export.SheetItem, opts export.SheetOptions) tea.Cmd {
	return func() tea.Msg {
		path, err := export.WriteContactSheet(items, opts)
		return exportDoneMsg{path: path, err: err}
	}
}

// session bundles one engine run. Replacing the session is how a query
// restart gets a clean slate: halts and dedupe history are scoped to
// exactly one of these.
type session struct {
	gen    int
	query  string
	ctrl   *feed.Controller
	sink   *tileSink
	src    source.Source
	cancel context.CancelFunc
}

// startSession builds a fresh source, sink and controller wired together.
// extent is the viewport height in rows, used to size the first batch.
func startSession(cfg config.Config, query string, gen int, loader *render.Loader, extent int, geo cellGeometry) (*session, error) {
	scfg := cfg.Source
	scfg.Query = query
	src, err := source.New(scfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := newTileSink(ctx, loader, int64(cfg.Feed.DecodeConcurrency), geo.cellW, geo.tileRows)
	ctrl, err := feed.New(feed.Config{
		Source:         src,
		Sink:           sink,
		Tunables:       cfg.Tunables(),
		ViewportExtent: extent,
	})
	if err != nil {
		cancel()
		src.Close()
		return nil, err
	}

	return &session{gen: gen, query: query, ctrl: ctrl, sink: sink, src: src, cancel: cancel}, nil
}

// stop winds the session down: no more fetches, pending decodes cancelled.
func (s *session) stop() {
	s.ctrl.Stop()
	s.cancel()
	if err := s.src.Close(); err != nil {
		debug.Log("session %d: closing source: %v", s.gen, err)
	}
}

// Model is the top-level bubbletea model for the reel feed.
type Model struct {
	cfg        config.Config
	configPath string
	theme      Theme
	loader     *render.Loader
	flog       *feedLogger

	sess    *session
	geo     cellGeometry
	trigger demandTrigger

	viewport viewport.Model
	spinner  spinner.Model
	query    textinput.Model

	cfgWatcher *watcher.Watcher
	catWatcher *watcher.Watcher

	// renderedTop is the absolute feed row of the first rendered line; it
	// rises as eviction trims rows off the top of the content.
	renderedTop int
	// feedRows is the rendered content height in rows.
	feedRows int
	// exhausted is set when a refill came back empty with a dry buffer, so
	// the trigger stops demanding until something changes (scroll, catalog
	// growth, restart).
	exhausted bool

	engineState feed.State
	spinning    bool

	showStats   bool
	showHelp    bool
	helpView    string
	queryActive bool

	statusMsg   string
	statusIsErr bool
	statusSeq   int

	width  int
	height int
	ready  bool
}

// NewModel builds the feed UI and starts the first engine session.
func NewModel(cfg config.Config, configPath string) (Model, error) {
	theme := DefaultTheme(lipgloss.NewRenderer(os.Stdout))
	geo := newCellGeometry(defaultWidth, cfg.UI.Columns, cfg.UI.CardRows, cfg.CaptionsEnabled())
	loader := render.NewLoader()

	sess, err := startSession(cfg, cfg.Source.Query, 1, loader, defaultHeight-1, geo)
	if err != nil {
		return Model{}, err
	}

	sp := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Renderer.NewStyle().Foreground(theme.Primary)),
	)

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "tag query (empty shows everything)"
	ti.CharLimit = 80

	m := Model{
		cfg:        cfg,
		configPath: configPath,
		theme:      theme,
		loader:     loader,
		flog:       newFeedLogger(),
		sess:       sess,
		geo:        geo,
		trigger:    demandTrigger{lead: cfg.Feed.LeadRows},
		viewport:   viewport.New(defaultWidth, defaultHeight-1),
		spinner:    sp,
		query:      ti,
		width:      defaultWidth,
		height:     defaultHeight,
		ready:      true,
	}

	if configPath != "" {
		if w, err := watcher.NewWatcher(configPath); err == nil {
			if err := w.Start(); err == nil {
				m.cfgWatcher = w
			}
		}
	}
	if catalogBacked(cfg.Source.Provider) && cfg.Source.Catalog != "" {
		if w, err := watcher.NewWatcher(cfg.Source.Catalog); err == nil {
			if err := w.Start(); err == nil {
				m.catWatcher = w
			}
		}
	}

	return m, nil
}

func catalogBacked(provider string) bool {
	return provider == "file" || provider == "sqlite"
}

// Init starts the event pump, the file watchers and the first demand.
func (m Model) Init() tea.Cmd {
	sess := m.sess
	cmds := []tea.Cmd{
		waitEngineEventCmd(sess.ctrl, sess.gen),
		func() tea.Msg { sess.ctrl.Demand(); return nil },
	}
	if m.cfgWatcher != nil {
		cmds = append(cmds, watchConfigCmd(m.cfgWatcher))
	}
	if m.catWatcher != nil {
		cmds = append(cmds, watchCatalogCmd(m.catWatcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.viewport.Width = msg.Width
		m.viewport.Height = m.bodyHeight()
		m.geo = newCellGeometry(msg.Width, m.geo.cols, m.geo.cardRows, m.geo.captions)
		m.sess.sink.SetCellSize(m.geo.cellW, m.geo.tileRows)
		m.sess.ctrl.SetViewportExtent(m.bodyHeight())
		m.helpView = "" // re-rendered at the new width on next open
		m.rebuildContent()
		m.maybeDemand()
		return m, nil

	case spinner.TickMsg:
		if !m.engineBusy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case engineEventMsg:
		return m.handleEngineEvent(msg)

	case engineStoppedMsg:
		return m, nil

	case configChangedMsg:
		cmds := []tea.Cmd{watchConfigCmd(m.cfgWatcher)}
		if cmd := m.reloadConfig(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case catalogGrewMsg:
		m.exhausted = false
		m.maybeDemand()
		return m, watchCatalogCmd(m.catWatcher)

	case exportDoneMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("export failed: %v", msg.err), true)
		} else {
			m.setStatus("sheet written: "+msg.path, false)
		}
		return m, m.statusExpireCmd()

	case statusExpiredMsg:
		if msg.seq == m.statusSeq {
			m.statusMsg = ""
		}
		return m, nil
	}

	return m, nil
}

// handleKey routes key presses: query prompt first, then overlay toggles,
// then viewport scrolling.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.queryActive {
		switch msg.String() {
		case "esc":
			m.queryActive = false
			m.query.Blur()
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.query.Value())
			m.queryActive = false
			m.query.Blur()
			return m.restartSession(q)
		default:
			var cmd tea.Cmd
			m.query, cmd = m.query.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab":
		m.showStats = !m.showStats
		m.showHelp = false
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		m.showStats = false
		if m.showHelp && m.helpView == "" {
			m.helpView = renderHelp(m.width)
		}
		return m, nil

	case "esc":
		m.showStats = false
		m.showHelp = false
		return m, nil

	case "/":
		m.queryActive = true
		m.query.SetValue(m.sess.query)
		m.query.CursorEnd()
		return m, m.query.Focus()

	case "y":
		return m.copyFocusedURL()

	case "e":
		return m.exportSheet()
	}

	if m.showStats || m.showHelp {
		return m, nil // overlays swallow scroll keys
	}

	before := m.viewport.YOffset
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	if m.viewport.YOffset != before {
		m.syncScroll(before)
		m.maybeDemand()
	}
	return m, cmd
}

// handleEngineEvent reacts to one engine event and re-arms the pump.
func (m Model) handleEngineEvent(msg engineEventMsg) (tea.Model, tea.Cmd) {
	if m.sess == nil || msg.gen != m.sess.gen {
		return m, nil // event from a replaced session
	}
	m.flog.logEngineEvent(msg.gen, msg.ev)

	cmds := []tea.Cmd{waitEngineEventCmd(m.sess.ctrl, m.sess.gen)}

	switch ev := msg.ev; ev.Kind {
	case feed.EventStateChanged:
		m.engineState = ev.State
		if m.engineBusy() && !m.spinning {
			m.spinning = true
			cmds = append(cmds, m.spinner.Tick)
		}

	case feed.EventAppended:
		m.exhausted = false
		m.rebuildContent()
		m.maybeDemand()

	case feed.EventRefilled:
		if ev.Count == 0 && m.sess.ctrl.Stats().Buffer.Len == 0 {
			// Nothing new and nothing queued: stop demanding until the
			// world changes, or an empty fetch loop would spin.
			m.exhausted = true
		} else {
			m.exhausted = false
			m.maybeDemand()
		}

	case feed.EventEvicted, feed.EventUnitReady, feed.EventUnitFailed:
		m.rebuildContent()
	}

	return m, tea.Batch(cmds...)
}

// reloadConfig re-reads the config file and applies the knobs that are safe
// to change mid-session. Source and layout changes take effect on the next
// query restart.
func (m *Model) reloadConfig() tea.Cmd {
	next, err := config.LoadFrom(m.configPath)
	if err != nil {
		m.setStatus(fmt.Sprintf("config reload failed: %v", err), true)
		return m.statusExpireCmd()
	}
	if err := next.Validate(); err != nil {
		m.setStatus(fmt.Sprintf("config invalid: %v", err), true)
		return m.statusExpireCmd()
	}

	structural := next.Source != m.cfg.Source ||
		next.UI.Columns != m.cfg.UI.Columns ||
		next.UI.CardRows != m.cfg.UI.CardRows
	m.cfg = next

	live := next.Tunables()
	m.sess.ctrl.Retune(live)
	m.trigger.lead = live.LeadDistance

	if captions := next.CaptionsEnabled(); captions != m.geo.captions {
		m.geo = newCellGeometry(m.viewport.Width, m.geo.cols, m.geo.cardRows, captions)
		m.sess.sink.SetCellSize(m.geo.cellW, m.geo.tileRows)
		m.rebuildContent()
	}

	if structural {
		m.setStatus("config reloaded, / applies the new source and layout", false)
	} else {
		m.setStatus("config reloaded", false)
	}
	debug.Log("ui: config reloaded (structural=%v)", structural)
	return m.statusExpireCmd()
}

// restartSession replaces the engine session with a fresh one for query.
// The old session keeps running until the new source construction succeeds,
// so a typo'd catalog path doesn't kill the stream.
func (m Model) restartSession(query string) (tea.Model, tea.Cmd) {
	gen := m.sess.gen + 1
	m.geo = newCellGeometry(m.width, m.cfg.UI.Columns, m.cfg.UI.CardRows, m.cfg.CaptionsEnabled())
	sess, err := startSession(m.cfg, query, gen, m.loader, m.bodyHeight(), m.geo)
	if err != nil {
		m.setStatus(fmt.Sprintf("restart failed: %v", err), true)
		return m, m.statusExpireCmd()
	}

	m.sess.stop()
	m.sess = sess
	m.renderedTop = 0
	m.feedRows = 0
	m.exhausted = false
	m.engineState = feed.StateIdle
	m.viewport.SetContent("")
	m.viewport.SetYOffset(0)
	m.trigger.lead = m.cfg.Tunables().LeadDistance

	if query == "" {
		m.setStatus("stream restarted", false)
	} else {
		m.setStatus("stream restarted: "+query, false)
	}
	debug.Log("ui: session %d started (query=%q)", gen, query)

	sess.ctrl.Demand()
	return m, tea.Batch(
		waitEngineEventCmd(sess.ctrl, sess.gen),
		m.statusExpireCmd(),
	)
}

// copyFocusedURL puts the focused image's URL on the system clipboard.
func (m Model) copyFocusedURL() (tea.Model, tea.Cmd) {
	d, ok := m.focusedDescriptor()
	if !ok {
		m.setStatus("nothing to copy yet", true)
		return m, m.statusExpireCmd()
	}
	url := d.DownloadURL
	if url == "" {
		url = d.URL
	}
	if url == "" {
		m.setStatus(d.ID+" has no url", true)
		return m, m.statusExpireCmd()
	}
	if err := clipboard.WriteAll(url); err != nil {
		m.setStatus(fmt.Sprintf("clipboard: %v", err), true)
	} else {
		m.setStatus("copied "+d.ID+" url", false)
	}
	return m, m.statusExpireCmd()
}

// focusedDescriptor returns the first tile at or below the viewport top.
func (m Model) focusedDescriptor() (feed.Descriptor, bool) {
	entries := m.sess.ctrl.WindowEntries()
	if len(entries) == 0 {
		return feed.Descriptor{}, false
	}
	target := m.viewport.YOffset + m.renderedTop
	for _, e := range entries {
		if e.Offset >= target {
			return m.sess.sink.Descriptor(e.ID)
		}
	}
	return m.sess.sink.Descriptor(entries[len(entries)-1].ID)
}

// exportSheet kicks off a contact-sheet export of the current window.
func (m Model) exportSheet() (tea.Model, tea.Cmd) {
	entries := m.sess.ctrl.WindowEntries()
	if len(entries) == 0 {
		m.setStatus("nothing to export yet", true)
		return m, m.statusExpireCmd()
	}

	items := make([]export.SheetItem, 0, len(entries))
	for _, e := range entries {
		item := export.SheetItem{ID: e.ID, Author: m.sess.sink.Author(e.ID)}
		if img, ok := m.sess.sink.Image(e.ID); ok {
			item.Image = img
		}
		items = append(items, item)
	}

	opts := export.SheetOptions{
		Title:   m.sheetTitle(),
		Summary: m.sheetSummary(),
		Columns: m.cfg.Export.Columns,
		Format:  m.cfg.Export.Format,
		Dir:     m.cfg.ExportDir(),
	}

	m.setStatus("exporting contact sheet…", false)
	return m, tea.Batch(exportSheetCmd(items, opts), m.statusExpireCmd())
}

func (m Model) sheetTitle() string {
	title := "reel " + m.cfg.Source.Provider
	if m.sess.query != "" {
		title += " " + m.sess.query
	}
	return title
}

func (m Model) sheetSummary() []string {
	st := m.sess.ctrl.Stats()
	return []string{
		fmt.Sprintf("window %d tiles, %d served, %d evicted", st.WindowLen, st.Buffer.Served, st.Evicted),
		time.Now().Format("2006-01-02 15:04:05"),
	}
}

// syncScroll forwards the new scroll position to the engine and re-arms
// the exhausted trigger on downward movement, so a stalled stream gets one
// more try per user action.
func (m *Model) syncScroll(before int) {
	pos := m.viewport.YOffset + m.renderedTop
	if m.viewport.YOffset > before {
		m.exhausted = false
	}
	m.sess.ctrl.UpdateScroll(pos)
}

// maybeDemand fires the viewport trigger when the remaining runway below
// the bottom edge is inside the lead distance. The controller ignores the
// call unless it is idle, so spurious fires are harmless.
func (m *Model) maybeDemand() {
	if m.sess == nil || m.exhausted {
		return
	}
	if m.sess.ctrl.State() != feed.StateIdle {
		return
	}
	bottom := m.renderedTop + m.viewport.YOffset + m.viewport.Height
	content := m.renderedTop + m.feedRows
	if m.trigger.shouldDemand(bottom, content) {
		m.sess.ctrl.Demand()
	}
}

// rebuildContent re-renders the window into the viewport. When eviction
// trimmed rows off the top, the viewport offset shifts by the same amount
// so the tiles on screen stay put.
func (m *Model) rebuildContent() {
	entries := m.sess.ctrl.WindowEntries()

	newTop := m.renderedTop
	rows := 0
	if len(entries) > 0 {
		newTop = entries[0].Offset
		rows = entries[len(entries)-1].Offset + m.geo.cardRows - newTop
	}

	yBefore := m.viewport.YOffset
	m.viewport.SetContent(feedContent(entries, m.sess.sink, m.geo))

	if delta := newTop - m.renderedTop; delta > 0 {
		y := yBefore - delta
		if y < 0 {
			y = 0
		}
		m.viewport.SetYOffset(y)
	}
	m.renderedTop = newTop
	m.feedRows = rows
}

func (m Model) bodyHeight() int {
	h := m.height - 1 // footer
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) engineBusy() bool {
	return m.engineState == feed.StateFetching || m.engineState == feed.StateBackoff
}

// setStatus sets a transient footer message. Pair with statusExpireCmd.
func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsErr = isErr
	m.statusSeq++
}

func (m Model) statusExpireCmd() tea.Cmd {
	seq := m.statusSeq
	return tea.Tick(statusMsgTTL, func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}

// Stop winds down the engine session, the watchers and the feed log. Called
// by main once the program exits.
func (m Model) Stop() {
	if m.sess != nil {
		m.sess.stop()
	}
	if m.cfgWatcher != nil {
		m.cfgWatcher.Stop()
	}
	if m.catWatcher != nil {
		m.catWatcher.Stop()
	}
	m.flog.close()
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var body string
	switch {
	case m.showHelp:
		body = m.centerOverlay(m.theme.Overlay.Render(m.helpView))
	case m.showStats:
		body = m.centerOverlay(m.renderStatsOverlay())
	case m.feedRows == 0:
		body = m.renderEmptyState()
	default:
		body = m.viewport.View()
	}

	return body + "\n" + m.renderFooter()
}

// centerOverlay places a panel in the middle of the feed area.
func (m Model) centerOverlay(panel string) string {
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, panel)
}

// renderEmptyState fills the feed area before the first tiles land.
func (m Model) renderEmptyState() string {
	t := m.theme
	msg := t.OverlayText.Render("no images yet")
	if m.engineBusy() {
		msg = m.spinner.View() + " " + t.OverlayText.Render("fetching the first batch")
	}
	hint := t.OverlayHint.Render("tab shows the engine state")
	return m.centerOverlay(lipgloss.JoinVertical(lipgloss.Center, msg, "", hint))
}

// renderFooter draws the bottom line: the query prompt when active, a
// transient status message when set, otherwise key hints plus engine
// activity.
func (m Model) renderFooter() string {
	if m.queryActive {
		return m.query.View()
	}

	t := m.theme
	if m.statusMsg != "" {
		style := t.StatusGood
		prefix := "✓ "
		if m.statusIsErr {
			style = t.StatusBad
			prefix = "✗ "
		}
		return style.Render(prefix + truncateTo(m.statusMsg, m.width-3))
	}

	type hint struct {
		key   string
		label string
	}
	hints := []hint{
		{"j/k", "scroll"},
		{"/", "query"},
		{"y", "copy url"},
		{"e", "export"},
		{"tab", "stats"},
		{"?", "help"},
		{"q", "quit"},
	}

	var b strings.Builder
	for i, h := range hints {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(t.StatusKey.Render(h.key))
		b.WriteString(" ")
		b.WriteString(t.StatusLabel.Render(h.label))
	}
	left := b.String()

	right := m.activityIndicator()
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if right == "" || gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

// activityIndicator shows engine liveliness, not errors: fetch failures
// surface only in the stats overlay, the feed itself just stops growing.
func (m Model) activityIndicator() string {
	t := m.theme
	if m.engineBusy() {
		return m.spinner.View() + " " + t.StatusInfo.Render("fetching")
	}
	if m.exhausted {
		return t.StatusInfo.Render("caught up")
	}
	if TermProfile < colorprofile.TrueColor {
		return t.StatusInfo.Render("limited colors")
	}
	return ""
}

// truncateTo fits s into w terminal cells, counting display width so wide
// runes do not overflow the line.
func truncateTo(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return runewidth.Truncate(s, w, "…")
}
