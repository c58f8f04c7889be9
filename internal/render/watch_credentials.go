package render

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SecretSink receives a rotated client secret.
type SecretSink interface {
	SetClientSecret(secret string)
}

// WatchClientSecret watches a secret file and pushes its contents into the
// sink when it changes. Events are debounced because editors and secret
// managers rewrite files as remove-then-create bursts. An empty path is a
// no-op.
func WatchClientSecret(path string, sink SecretSink) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					if err := w.Add(ev.Name); err != nil {
						slog.Error("watch re-add", "path", ev.Name, "err", err)
					}
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(250 * time.Millisecond)
				}
			case <-debounce.C:
				raw, err := os.ReadFile(path)
				if err != nil {
					slog.Error("secret reload failed", "path", path, "err", err)
					continue
				}
				sink.SetClientSecret(strings.TrimSpace(string(raw)))
				slog.Info("client secret reloaded", "path", path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("watch error", "err", err)
			}
		}
	}()
	return nil
}
