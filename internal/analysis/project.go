package analysis

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/shinyvision/phpinfer/internal/symbols"
	"github.com/shinyvision/phpinfer/internal/syntax"
	"github.com/tliron/commonlog"
)

type projectFile struct {
	name   string
	source []byte
	tree   *syntax.Tree
}

// Project analyzes several compilation units against one symbol store.
// Every unit finishes a pass before any unit starts the next one, so
// symbols declared in any file are visible everywhere.
type Project struct {
	mu      sync.Mutex
	opts    Options
	workers int
	store   *symbols.Store
	files   []*projectFile
	index   map[string]*projectFile
	log     commonlog.Logger
}

// NewProject returns an empty project. Per-file options are derived from
// opts; workers bounds how many units are walked at once in the final pass
// and defaults to the number of CPUs. opts.Sink, when set, must be safe for
// concurrent use.
func NewProject(opts Options, workers int) *Project {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if opts.Store == nil {
		opts.Store = symbols.NewStore()
	}
	return &Project{
		opts:    opts,
		workers: workers,
		store:   opts.Store,
		index:   make(map[string]*projectFile),
		log:     commonlog.GetLoggerf("phpinfer.project"),
	}
}

func (p *Project) Store() *symbols.Store { return p.store }

// AddSource parses source and registers it under name, replacing any earlier
// version of the same file.
func (p *Project) AddSource(ctx context.Context, name string, source []byte) error {
	tree, err := syntax.Parse(ctx, source)
	if err != nil {
		return fmt.Errorf("could not parse %s: %w", name, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.index[name]; ok {
		old.tree.Close()
		old.tree, old.source = tree, source
		return nil
	}
	f := &projectFile{name: name, source: source, tree: tree}
	p.files = append(p.files, f)
	p.index[name] = f
	return nil
}

// RemoveFile drops a file and the symbols it declared.
func (p *Project) RemoveFile(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.index[name]
	if !ok {
		return
	}
	f.tree.Close()
	delete(p.index, name)
	for i, other := range p.files {
		if other == f {
			p.files = append(p.files[:i], p.files[i+1:]...)
			break
		}
	}
	p.store.RemoveFile(name)
}

// Files lists the registered file names in insertion order.
func (p *Project) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.files))
	for _, f := range p.files {
		out = append(out, f.name)
	}
	return out
}

// Analyze runs the passes over every file and returns one result per file,
// in insertion order.
func (p *Project) Analyze(ctx context.Context) []*Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	units := make([]*unit, len(p.files))
	for i, f := range p.files {
		p.store.RemoveFile(f.name)
		opts := p.opts
		opts.File = f.name
		units[i] = newUnit(f.tree.Root(), f.source, opts)
	}

	for _, u := range units {
		u.state.collectDeclarations()
	}
	for _, u := range units {
		u.state.resolveSignatures()
	}
	for round := 0; round < inferenceRounds; round++ {
		for _, u := range units {
			u.state.inferReturns()
		}
	}

	work := make(chan int, len(units))
	for i := range units {
		work <- i
	}
	close(work)
	results := make([]*Result, len(units))
	var wg sync.WaitGroup
	for range min(p.workers, len(units)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				units[i].state.walkBodies(ctx)
				results[i] = units[i].result()
			}
		}()
	}
	wg.Wait()
	p.log.Debugf("analyzed %d files", len(units))
	return results
}

// Close releases the parsed trees.
func (p *Project) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.files {
		f.tree.Close()
	}
	p.files = nil
	p.index = make(map[string]*projectFile)
}
