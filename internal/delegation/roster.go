package delegation

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/avyuktsoni0731/continuum/internal/logging"
)

// Roster holds the current set of teammates. It can be seeded with inline
// members and optionally backed by a YAML file that is hot-reloaded on
// change, so a roster edit does not require a daemon restart.
type Roster struct {
	mu      sync.RWMutex
	members []Teammate
	path    string
	watcher *fsnotify.Watcher
	log     *logging.Logger
}

// rosterFile is the on-disk shape of a roster YAML file.
type rosterFile struct {
	Teammates []Teammate `yaml:"teammates"`
}

// NewRoster creates a roster from inline members.
func NewRoster(members []Teammate) *Roster {
	return &Roster{
		members: append([]Teammate(nil), members...),
		log:     logging.Component("roster"),
	}
}

// NewRosterFromFile loads a roster from a YAML file.
func NewRosterFromFile(path string) (*Roster, error) {
	r := &Roster{
		path: path,
		log:  logging.Component("roster"),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Members returns a snapshot of the current roster.
func (r *Roster) Members() []Teammate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Teammate(nil), r.members...)
}

// Watch starts reloading the roster file whenever it is written. No-op for
// inline rosters. Stop with Close.
func (r *Roster) Watch() error {
	if r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating roster watcher: %w", err)
	}
	if err := watcher.Add(r.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching roster file: %w", err)
	}
	r.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					if err := r.reload(); err != nil {
						r.log.Warnf("roster reload failed: %v", err)
						continue
					}
					r.log.Infof("roster reloaded: %d teammates", len(r.Members()))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Warnf("roster watcher: %v", err)
			}
		}
	}()

	return nil
}

// Close stops the file watcher, if any.
func (r *Roster) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *Roster) reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("reading roster: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing roster: %w", err)
	}

	valid := make([]Teammate, 0, len(file.Teammates))
	for _, tm := range file.Teammates {
		if tm.Username == "" {
			continue
		}
		valid = append(valid, tm)
	}

	r.mu.Lock()
	r.members = valid
	r.mu.Unlock()
	return nil
}
