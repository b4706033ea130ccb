// Copyright 2026 The ScribeFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher hot-reloads the feature-flag section of the config file while the
// server is running. Only flags are reloaded; structural settings such as the
// listen port or MCP endpoint require a restart.
type Watcher struct {
	path    string
	flags   *FeatureFlags
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, flags *FeatureFlags) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file so editors that replace the
	// file on save (rename + create) keep triggering events.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		flags:   flags,
		watcher: fw,
		stop:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.stop)
	_ = w.watcher.Close()
}

func (w *Watcher) loop() {
	// Debounce timer: editors often emit several events per save.
	var pending *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("Config watcher error: %v", err)
		case <-trigger:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	set, err := ReloadFlags(w.path)
	if err != nil {
		log.Warnf("Feature flag reload failed, keeping current flags: %v", err)
		return
	}
	w.flags.Replace(set)
	log.Infof("Feature flags reloaded from %s", w.path)
}
