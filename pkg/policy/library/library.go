package library

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	indexFile      = "policies.yaml"
	codeDir        = "code"
	descriptionDir = "description"
	codeExt        = ".lua"
)

//go:embed primitives/*.lua
var primitiveFS embed.FS

var (
	// ErrInvalidName is returned for names that are not Lua identifiers.
	ErrInvalidName = errors.New("invalid policy name")

	// ErrNotFound is returned when a policy is not in the library.
	ErrNotFound = errors.New("policy not found")
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Entry is one accepted policy.
type Entry struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	File        string    `yaml:"file"`
	Version     int       `yaml:"version"`
	AddedAt     time.Time `yaml:"added_at"`

	// Code is read from File and never written to the index.
	Code string `yaml:"-"`
}

type index struct {
	Policies []Entry `yaml:"policies"`
}

// Library is an on-disk policy library. It is safe for concurrent use.
type Library struct {
	dir        string
	logger     *slog.Logger
	primitives []string

	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// Open opens the library rooted at dir, creating its layout if needed.
// When resume is false any existing index is ignored and the library starts empty.
func Open(dir string, resume bool, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, sub := range []string{codeDir, descriptionDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}

	primitives, err := loadPrimitives()
	if err != nil {
		return nil, err
	}

	lib := &Library{
		dir:        dir,
		logger:     logger.With("component", "policy-library"),
		primitives: primitives,
		entries:    make(map[string]Entry),
	}
	if resume {
		if err := lib.load(); err != nil {
			return nil, err
		}
		lib.logger.Info("policy library loaded", "dir", dir, "policies", len(lib.order))
	}
	return lib, nil
}

func loadPrimitives() ([]string, error) {
	names, err := fs.Glob(primitiveFS, "primitives/*"+codeExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list primitives: %w", err)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		data, err := primitiveFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read primitive %q: %w", name, err)
		}
		out = append(out, string(data))
	}
	return out, nil
}

func (l *Library) load() error {
	data, err := os.ReadFile(filepath.Join(l.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read library index: %w", err)
	}

	var idx index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("failed to parse library index: %w", err)
	}
	for _, e := range idx.Policies {
		code, err := os.ReadFile(filepath.Join(l.dir, codeDir, e.File))
		if err != nil {
			return fmt.Errorf("failed to read code of policy %q: %w", e.Name, err)
		}
		e.Code = string(code)
		if _, ok := l.entries[e.Name]; !ok {
			l.order = append(l.order, e.Name)
		}
		l.entries[e.Name] = e
	}
	return nil
}

// Add stores code under name and returns the stored entry.
func (l *Library) Add(name, code, description string) (Entry, error) {
	if !namePattern.MatchString(name) {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Name:        name,
		Description: description,
		Code:        code,
		Version:     1,
		File:        name + codeExt,
		AddedAt:     time.Now().UTC(),
	}
	if _, exists := l.entries[name]; exists {
		l.logger.Info("policy already exists, writing new version", "policy", name)
		entry.Version = l.nextVersion(name)
		entry.File = fmt.Sprintf("%sV%d%s", name, entry.Version, codeExt)
	}

	base := strings.TrimSuffix(entry.File, codeExt)
	if err := writeFileAtomic(filepath.Join(l.dir, codeDir, entry.File), []byte(code)); err != nil {
		return Entry{}, fmt.Errorf("failed to write policy code: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(l.dir, descriptionDir, base+".txt"), []byte(description)); err != nil {
		return Entry{}, fmt.Errorf("failed to write policy description: %w", err)
	}

	prev, existed := l.entries[name]
	l.entries[name] = entry
	if !existed {
		l.order = append(l.order, name)
	}
	if err := l.saveIndex(); err != nil {
		if existed {
			l.entries[name] = prev
		} else {
			delete(l.entries, name)
			l.order = l.order[:len(l.order)-1]
		}
		return Entry{}, err
	}

	l.logger.Info("policy added to library",
		"policy", name,
		"version", entry.Version,
		"file", entry.File,
	)
	return entry, nil
}

// nextVersion returns the first free version number, starting at 2.
func (l *Library) nextVersion(name string) int {
	version := 2
	for {
		file := filepath.Join(l.dir, codeDir, fmt.Sprintf("%sV%d%s", name, version, codeExt))
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			return version
		}
		version++
	}
}

func (l *Library) saveIndex() error {
	idx := index{Policies: make([]Entry, 0, len(l.order))}
	for _, name := range l.order {
		idx.Policies = append(idx.Policies, l.entries[name])
	}
	data, err := yaml.Marshal(&idx)
	if err != nil {
		return fmt.Errorf("failed to encode library index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(l.dir, indexFile), data); err != nil {
		return fmt.Errorf("failed to write library index: %w", err)
	}
	return nil
}

// Get returns the newest version of the named policy.
func (l *Library) Get(name string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e, nil
}

// List returns all entries in insertion order.
func (l *Library) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Map(l.order, func(name string, _ int) Entry { return l.entries[name] })
}

// Len returns the number of accepted policies.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Search returns up to k entries ranked by how many query words appear in
// their name or description. Entries matching no word are left out.
func (l *Library) Search(query string, k int) []Entry {
	words := lo.Uniq(strings.Fields(strings.ToLower(query)))
	if len(words) == 0 || k <= 0 {
		return nil
	}

	type scored struct {
		entry Entry
		score int
	}
	var hits []scored
	for _, e := range l.List() {
		text := strings.ToLower(strings.ReplaceAll(e.Name, "_", " ") + " " + e.Description)
		score := lo.CountBy(words, func(w string) bool { return strings.Contains(text, w) })
		if score > 0 {
			hits = append(hits, scored{e, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return lo.Map(hits, func(h scored, _ int) Entry { return h.entry })
}

// ReusedCode returns every accepted policy followed by the built-in
// primitives, separated by blank lines.
func (l *Library) ReusedCode() (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	for _, name := range l.order {
		b.WriteString(l.entries[name].Code)
		b.WriteString("\n\n")
	}
	for _, p := range l.primitives {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// Primitives returns the names of the built-in primitive files.
func Primitives() []string {
	names, _ := fs.Glob(primitiveFS, "primitives/*"+codeExt)
	sort.Strings(names)
	return lo.Map(names, func(n string, _ int) string {
		return strings.TrimSuffix(path.Base(n), codeExt)
	})
}

func writeFileAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), ".tmp-"+filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), name)
}
