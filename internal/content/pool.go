package content

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"dailysender/internal/platform/jsonfile"
	"dailysender/internal/shared"
)

// FileName is the group file inside the data directory.
const FileName = "message_groups.json"

// Pool is the ordered list of message groups backed by a JSON file.
// Reads return deep copies; the pool owns its groups exclusively.
type Pool struct {
	mu     sync.Mutex
	file   *jsonfile.File[document]
	logger *slog.Logger
	groups []Group
	digest uint64
	intn   func(n int) int
}

// Option configures a Pool.
type Option func(*Pool)

// WithRand replaces the index source used by SelectRandom.
// intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(p *Pool) { p.intn = intn }
}

// NewPool loads the pool from path. A missing or malformed file is logged and
// yields an empty pool.
func NewPool(path string, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		file:   jsonfile.New[document](path),
		logger: logger.With("component", "content"),
		groups: []Group{},
		intn:   rand.IntN,
	}
	for _, opt := range opts {
		opt(p)
	}
	if _, err := p.load(); err != nil {
		p.logger.Warn("group file unreadable, starting empty", "path", path, "error", err)
	}
	return p
}

// Path returns the backing file path.
func (p *Pool) Path() string { return p.file.Path() }

// Len returns the number of groups.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.groups)
}

// List returns a snapshot of all groups in insertion order.
func (p *Pool) List() []Group {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Group, len(p.groups))
	for i, g := range p.groups {
		out[i] = g.clone()
	}
	return out
}

// SelectRandom picks one group uniformly. It reports false on an empty pool.
func (p *Pool) SelectRandom() (Group, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.groups) == 0 {
		return Group{}, false
	}
	return p.groups[p.intn(len(p.groups))].clone(), true
}

// Add appends a group and persists the pool. The text is trimmed, the image
// reference reduced to a file name and buttons sanitized.
func (p *Pool) Add(g Group) (Group, error) {
	g = normalize(g)
	if g.Text == "" {
		return Group{}, fmt.Errorf("%w: message text is empty", shared.ErrValidation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.groups = append(p.groups, g.clone())
	p.persist()
	return g.clone(), nil
}

// Delete removes the group at index; later indices shift down.
func (p *Pool) Delete(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkIndex(index); err != nil {
		return err
	}
	p.groups = slices.Delete(p.groups, index, index+1)
	p.persist()
	return nil
}

// Update applies the non-nil fields of patch to the group at index.
func (p *Pool) Update(index int, patch Patch) (Group, error) {
	if patch.Empty() {
		return Group{}, fmt.Errorf("%w: nothing to update", shared.ErrValidation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkIndex(index); err != nil {
		return Group{}, err
	}

	g := p.groups[index].clone()
	if patch.Text != nil {
		g.Text = strings.TrimSpace(*patch.Text)
		if g.Text == "" {
			return Group{}, fmt.Errorf("%w: message text is empty", shared.ErrValidation)
		}
	}
	if patch.ImageRef != nil {
		g.ImageRef = baseName(*patch.ImageRef)
	}
	if patch.Buttons != nil {
		g.Buttons = SanitizeButtons(*patch.Buttons)
	}

	p.groups[index] = g
	p.persist()
	return g.clone(), nil
}

// Reload re-reads the backing file and reports whether the groups changed.
// On a read or decode error the in-memory state is kept.
func (p *Pool) Reload() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

func (p *Pool) checkIndex(index int) error {
	if index < 0 || index >= len(p.groups) {
		return fmt.Errorf("%w: group %d of %d", shared.ErrOutOfRange, index, len(p.groups))
	}
	return nil
}

// persist writes the current groups; callers hold mu. A failed write is
// logged and memory stays authoritative.
func (p *Pool) persist() {
	doc := document{Groups: make([]entry, len(p.groups))}
	for i, g := range p.groups {
		doc.Groups[i] = entry{Group: g}
	}
	sum, err := p.file.Save(doc)
	if err != nil {
		p.logger.Error("save groups", "path", p.file.Path(), "error", err)
		return
	}
	p.digest = sum
}

// load applies the file state; callers hold mu (or own p exclusively).
func (p *Pool) load() (bool, error) {
	res, err := p.file.Load()
	if err != nil {
		return false, err
	}
	if res.Digest == p.digest {
		return false, nil
	}

	next := make([]Group, 0, len(res.Value.Groups))
	var dropped []error
	for i, e := range res.Value.Groups {
		if e.bad != "" {
			dropped = append(dropped, fmt.Errorf("group %d: %s", i, e.bad))
			continue
		}
		next = append(next, e.Group.clone())
	}
	if len(dropped) > 0 {
		p.logger.Warn("dropped invalid groups",
			"path", p.file.Path(),
			"count", len(dropped),
			"error", shared.MarkKind(errors.Join(dropped...), shared.KindValidation))
	}

	changed := !slices.EqualFunc(p.groups, next, equalGroup)
	p.groups, p.digest = next, res.Digest
	return changed, nil
}

func equalGroup(a, b Group) bool {
	return a.ImageRef == b.ImageRef && a.Text == b.Text && slices.Equal(a.Buttons, b.Buttons)
}
