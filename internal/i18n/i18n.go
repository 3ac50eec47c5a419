// Package i18n looks up interface strings by locale and dotted key.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Locale string

const (
	FR Locale = "fr"
	EN Locale = "en"
	// DefaultLocale is used when the profile language is empty or unknown.
	DefaultLocale = FR
)

//go:embed locales/*.yaml
var locales embed.FS

// Store holds one flattened dictionary per locale. It is read-only once built.
type Store struct {
	dicts map[Locale]map[string]string
}

// Load reads every <locale>.yaml file at the root of fsys.
func Load(fsys fs.FS) (*Store, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}

	s := &Store{dicts: make(map[Locale]map[string]string, len(files))}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, err
		}

		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}

		dict := make(map[string]string)
		flatten("", tree, dict)

		locale := Locale(strings.TrimSuffix(path.Base(file), path.Ext(file)))
		s.dicts[locale] = dict
	}

	return s, nil
}

var defaultStore = sync.OnceValues(func() (*Store, error) {
	sub, err := fs.Sub(locales, "locales")
	if err != nil {
		return nil, err
	}
	return Load(sub)
})

// Default returns the store built from the embedded dictionaries.
func Default() *Store {
	s, err := defaultStore()
	if err != nil {
		// The dictionaries are compiled in; failing to parse them is a build defect.
		panic(fmt.Sprintf("i18n: embedded dictionaries: %v", err))
	}
	return s
}

// T returns the string at key for locale, or key itself when it is missing.
func (s *Store) T(locale Locale, key string) string {
	if v, ok := s.dicts[locale][key]; ok {
		return v
	}
	return key
}

// Locales lists the loaded locales in sorted order.
func (s *Store) Locales() []Locale {
	out := make([]Locale, 0, len(s.dicts))
	for l := range s.dicts {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve maps a profile language to a locale.
func Resolve(language string) Locale {
	switch Locale(strings.ToLower(strings.TrimSpace(language))) {
	case EN:
		return EN
	case FR:
		return FR
	default:
		return DefaultLocale
	}
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
