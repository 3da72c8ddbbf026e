package app

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Ahmadinit/complete-app-setup/pkg/lib/paths"
)

// Notification is a message shown to the user.
type Notification struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// HeadlessWindow stands in for a native window. It decides what would be
// loaded and keeps the notifications it was asked to show.
type HeadlessWindow struct {
	devServerURL string
	logger       *slog.Logger

	mu       sync.Mutex
	loaded   string
	created  bool
	notices  []Notification
	maxNotes int
}

// NewHeadlessWindow creates a window that falls back to devServerURL when the
// frontend bundle cannot be loaded.
func NewHeadlessWindow(devServerURL string, logger *slog.Logger) *HeadlessWindow {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if devServerURL == "" {
		devServerURL = paths.DefaultDevServerURL
	}
	return &HeadlessWindow{
		devServerURL: devServerURL,
		logger:       logger.With("component", "window"),
		maxNotes:     32,
	}
}

func (w *HeadlessWindow) Create(content Content) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.created {
		return errors.New("window already created")
	}
	w.created = true

	switch content.Outcome {
	case paths.Found:
		if info, err := os.Stat(content.Path); err == nil && !info.IsDir() {
			w.loaded = content.Path
			w.logger.Info("frontend loaded from file", "path", content.Path)
			return nil
		}
		w.loaded = w.devServerURL
		w.logger.Warn("frontend file not loadable, using dev server", "path", content.Path, "address", w.devServerURL)
	case paths.FoundRemote:
		w.loaded = content.Address
		w.logger.Info("frontend loaded from dev server", "address", content.Address)
	default:
		w.loaded = w.devServerURL
		w.logger.Warn("no frontend resolved, using dev server", "address", w.devServerURL)
	}
	return nil
}

func (w *HeadlessWindow) Notify(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notices = append(w.notices, Notification{Message: message, At: time.Now()})
	if len(w.notices) > w.maxNotes {
		w.notices = w.notices[len(w.notices)-w.maxNotes:]
	}
	w.logger.Error("backend error", "message", message)
}

func (w *HeadlessWindow) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.created = false
	w.loaded = ""
}

// Loaded returns the file path or address currently shown.
func (w *HeadlessWindow) Loaded() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Notifications returns the retained notifications, oldest first.
func (w *HeadlessWindow) Notifications() []Notification {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Notification(nil), w.notices...)
}

// LastNotification returns the newest notification.
func (w *HeadlessWindow) LastNotification() (Notification, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.notices) == 0 {
		return Notification{}, false
	}
	return w.notices[len(w.notices)-1], true
}
