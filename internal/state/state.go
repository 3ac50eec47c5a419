// Package state persists the small amount of client state that outlives a
// single command: preferences and the session cookies.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	appDir   = "rezume"
	fileName = "state.json"
)

var rename = os.Rename

type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

// Generation remembers the last generated CV so the backend can serve it again
// for the same job offer.
type Generation struct {
	OfferDigest string `json:"offer_digest"`
	ID          string `json:"id"`
}

type data struct {
	Theme      string      `json:"theme,omitempty"`
	Locale     string      `json:"locale,omitempty"`
	Cookies    []Cookie    `json:"cookies,omitempty"`
	Generation *Generation `json:"generation,omitempty"`
}

// File is a JSON state file. Every setter writes the file immediately.
type File struct {
	path string

	mu   sync.Mutex
	data data
}

// DefaultPath is state.json under the user configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// Open reads the state at path. A missing or empty file is an empty state.
func Open(path string) (*File, error) {
	f := &File{path: path}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return f, nil
	}

	if err := json.NewDecoder(file).Decode(&f.data); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", path, err)
	}

	return f, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Theme() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.Theme
}

func (f *File) SetTheme(theme string) error {
	return f.update(func(d *data) { d.Theme = theme })
}

func (f *File) Locale() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.Locale
}

func (f *File) SetLocale(locale string) error {
	return f.update(func(d *data) { d.Locale = locale })
}

// Cookies returns the stored cookies that have not expired yet.
func (f *File) Cookies() []*http.Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	var out []*http.Cookie
	for _, c := range f.data.Cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
	return out
}

// SetCookies replaces the stored cookies. nil removes them all.
func (f *File) SetCookies(cookies []*http.Cookie) error {
	stored := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
	return f.update(func(d *data) { d.Cookies = stored })
}

func (f *File) Generation() *Generation {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data.Generation == nil {
		return nil
	}
	g := *f.data.Generation
	return &g
}

func (f *File) SetGeneration(g *Generation) error {
	return f.update(func(d *data) { d.Generation = g })
}

// Clear empties the state and removes the file.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.data = data{}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) update(fn func(*data)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev := f.data
	fn(&f.data)
	if err := f.save(); err != nil {
		f.data = prev
		return err
	}
	return nil
}

// save writes the state next to the file and renames it into place, so a
// crash mid-write leaves the previous state readable.
func (f *File) save() (err error) {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+fileName+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.data); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return rename(tmp.Name(), f.path)
}
