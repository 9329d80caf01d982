// Copyright (C) 2020-2026 Sirius Social, Inc.
// This file is part of go-microledger
//
// go-microledger is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-microledger is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-microledger.  If not, see <https://www.gnu.org/licenses/>.

package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/algorand/go-deadlock"
	"github.com/gofrs/flock"

	"github.com/sirius-social/go-microledger/logging"
)

const logFileExt = ".mlog"

// List is the registry of microledgers under one directory. The directory
// is guarded by an advisory file lock so that two processes never append to
// the same ledger files.
type List struct {
	mu deadlock.Mutex

	dir     string
	dirLock *flock.Flock
	log     logging.Logger
	ledgers map[string]*Microledger
}

// OpenList opens the registry rooted at dir, creating the directory if
// needed, and replays every ledger file found there. It fails if another
// process holds the directory.
func OpenList(dir string, log logging.Logger) (*List, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	dirLock := flock.New(filepath.Join(dir, ".lock"))
	held, err := dirLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock ledger directory %s: %w", dir, err)
	}
	if !held {
		return nil, fmt.Errorf("ledger directory %s is locked by another process", dir)
	}

	l := &List{
		dir:     dir,
		dirLock: dirLock,
		log:     log,
		ledgers: make(map[string]*Microledger),
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		dirLock.Unlock()
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), logFileExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), logFileExt)
		m, err := l.openLedger(name)
		if err != nil {
			l.closeLocked()
			return nil, err
		}
		l.ledgers[name] = m
		log.Debugf("opened ledger %q with %d committed transactions", name, len(m.committed))
	}
	return l, nil
}

func (l *List) openLedger(name string) (*Microledger, error) {
	file, batches, err := openLogFile(l.path(name))
	if err != nil {
		return nil, err
	}
	m := &Microledger{name: name, file: file}
	for _, batch := range batches {
		m.committed = append(m.committed, batch...)
	}
	return m, nil
}

// Close releases the directory lock and closes every ledger file.
func (l *List) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *List) closeLocked() error {
	var firstErr error
	for _, m := range l.ledgers {
		if err := m.file.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.ledgers = make(map[string]*Microledger)
	if err := l.dirLock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Create makes a new ledger and commits its genesis block in one step.
func (l *List) Create(name string, genesis []Transaction, at time.Time) (*Microledger, State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := validName(name); err != nil {
		return nil, State{}, err
	}
	if _, ok := l.ledgers[name]; ok {
		return nil, State{}, AlreadyExistsError{Name: name}
	}
	file, err := createLogFile(l.path(name))
	if err != nil {
		if os.IsExist(err) {
			return nil, State{}, AlreadyExistsError{Name: name}
		}
		return nil, State{}, err
	}

	m := &Microledger{name: name, file: file}
	state, err := m.Reset(genesis, at)
	if err != nil {
		file.close()
		os.Remove(l.path(name))
		return nil, State{}, err
	}
	l.ledgers[name] = m
	l.log.Infof("created ledger %q with %d genesis transactions", name, len(genesis))
	return m, state, nil
}

// Ledger returns the named ledger.
func (l *List) Ledger(name string) (*Microledger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.ledgers[name]
	if !ok {
		return nil, NotFoundError{Name: name}
	}
	return m, nil
}

// Exists reports whether a ledger with the given name is registered.
func (l *List) Exists(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ledgers[name]
	return ok
}

// Delete closes the named ledger and removes its file.
func (l *List) Delete(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.ledgers[name]
	if !ok {
		return NotFoundError{Name: name}
	}
	if err := m.file.close(); err != nil {
		return err
	}
	if err := os.Remove(l.path(name)); err != nil {
		return err
	}
	delete(l.ledgers, name)
	l.log.Infof("deleted ledger %q", name)
	return nil
}

// Rename changes a ledger's name and moves its backing file.
func (l *List) Rename(oldName, newName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.ledgers[oldName]
	if !ok {
		return NotFoundError{Name: oldName}
	}
	if err := validName(newName); err != nil {
		return err
	}
	if _, ok := l.ledgers[newName]; ok {
		return AlreadyExistsError{Name: newName}
	}
	if err := m.file.close(); err != nil {
		return err
	}
	if err := os.Rename(l.path(oldName), l.path(newName)); err != nil {
		return err
	}
	reopened, err := l.openLedger(newName)
	if err != nil {
		return err
	}
	delete(l.ledgers, oldName)
	l.ledgers[newName] = reopened
	l.log.Infof("renamed ledger %q to %q", oldName, newName)
	return nil
}

// Names returns the registered ledger names in sorted order.
func (l *List) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.ledgers))
	for name := range l.ledgers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *List) path(name string) string {
	return filepath.Join(l.dir, name+logFileExt)
}

// validName restricts ledger names to a filesystem-safe alphabet.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("ledger name is empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return fmt.Errorf("ledger name %q contains invalid character %q", name, r)
		}
	}
	if name == "." || name == ".." {
		return fmt.Errorf("ledger name %q is reserved", name)
	}
	return nil
}
