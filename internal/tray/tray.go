// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"context"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"screenbridge/internal/liveness"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Checked  bool
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	title   string
	tooltip string
	logger  *slog.Logger

	mu      sync.Mutex
	icon    []byte
	items   []*MenuItem
	ready   bool
	readyCh chan struct{}
	quitCh  chan struct{}
}

// New creates a new system tray
func New(title, tooltip string, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		title:   title,
		tooltip: tooltip,
		logger:  logger,
		icon:    StatusIcon(false),
		items:   make([]*MenuItem, 0),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a clickable menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	return t.add(&MenuItem{Title: title, Callback: callback})
}

// AddStatusItem adds a disabled item used as a text label
func (t *Tray) AddStatusItem(title string) int {
	return t.add(&MenuItem{Title: title, Disabled: true})
}

func (t *Tray) add(mi *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.ID = len(t.items)
	t.items = append(t.items, mi)
	return mi.ID
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// lookup returns the item for id, or nil for separators and unknown ids
func (t *Tray) lookup(id int) *MenuItem {
	if id < 0 || id >= len(t.items) {
		return nil
	}
	return t.items[id]
}

// SetItemTitle changes the text of a menu item. Before Run the title is kept
// and applied when the menu is built.
func (t *Tray) SetItemTitle(id int, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi := t.lookup(id)
	if mi == nil {
		return
	}
	mi.Title = title
	if mi.item != nil {
		mi.item.SetTitle(title)
	}
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi := t.lookup(id)
	if mi == nil {
		return
	}
	mi.Checked = checked
	if mi.item != nil {
		if checked {
			mi.item.Check()
		} else {
			mi.item.Uncheck()
		}
	}
}

// ItemTitle returns the current title of a menu item
func (t *Tray) ItemTitle(id int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mi := t.lookup(id); mi != nil {
		return mi.Title
	}
	return ""
}

// SetIcon replaces the tray icon (PNG bytes)
func (t *Tray) SetIcon(icon []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.icon = icon
	if t.ready {
		systray.SetIcon(icon)
	}
}

// Icon returns the current icon bytes
func (t *Tray) Icon() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.icon
}

// FollowStatus mirrors liveness updates into the status item and icon until
// ctx is done or updates is closed
func (t *Tray) FollowStatus(ctx context.Context, updates <-chan liveness.Status, statusID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			t.ShowStatus(statusID, st)
		}
	}
}

// ShowStatus renders one liveness snapshot
func (t *Tray) ShowStatus(statusID int, st liveness.Status) {
	t.SetItemTitle(statusID, st.Label())
	t.SetIcon(StatusIcon(st.Connected()))
}

// Run starts the tray event loop (blocks until Stop)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// Ready is closed once the menu has been built
func (t *Tray) Ready() <-chan struct{} {
	return t.readyCh
}

// Done is closed when the tray event loop exits
func (t *Tray) Done() <-chan struct{} {
	return t.quitCh
}

func (t *Tray) onExit() {
	t.logger.Info("tray stopped")
	close(t.quitCh)
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.mu.Lock()
	defer t.mu.Unlock()

	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(t.icon)

	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}
		item := systray.AddMenuItem(menuItem.Title, "")
		menuItem.item = item
		if menuItem.Disabled {
			item.Disable()
		}
		if menuItem.Checked {
			item.Check()
		}

		// Handle clicks in goroutine
		if menuItem.Callback != nil {
			go func(mi *MenuItem, clicked <-chan struct{}) {
				for {
					select {
					case <-clicked:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem, item.ClickedCh)
		}
	}

	t.ready = true
	close(t.readyCh)
	t.logger.Info("tray ready", "items", len(t.items))
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}
