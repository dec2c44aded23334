package state

import (
	"sync"

	"github.com/shinyvision/phpinfer/internal/analysis"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Document is an open editor buffer and its latest analysis.
type Document struct {
	URI  protocol.DocumentUri
	Path string

	mu      sync.RWMutex
	text    string
	version protocol.Integer
	result  *analysis.Result
}

// Read calls fn with the document text and the analysis of that text.
// result is nil until the first analysis completes.
func (d *Document) Read(fn func(text string, result *analysis.Result)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.text, d.result)
}

func (d *Document) Version() protocol.Integer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

func (d *Document) update(text string, version protocol.Integer) {
	d.mu.Lock()
	d.text, d.version, d.result = text, version, nil
	d.mu.Unlock()
}

// attach stores result unless the text changed since it was analyzed.
func (d *Document) attach(result *analysis.Result, version protocol.Integer) {
	d.mu.Lock()
	if d.version == version {
		d.result = result
	}
	d.mu.Unlock()
}
