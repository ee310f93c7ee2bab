package drive

import (
	"context"
	"fmt"
	"sync"

	"github.com/gslide2media/gslide2media/internal/lazy"
)

// Distinguished folder identities.
const (
	// RootID addresses the Drive "My Drive" root.
	RootID = "root"
	// BatchID addresses the virtual folder aggregating explicit members.
	BatchID = "batch"
)

// FolderNode is a Drive folder. Children are resolved lazily and memoized;
// a listing failure is logged by the cache and yields empty children rather
// than aborting the traversal.
type FolderNode struct {
	ID     string
	Name   string
	Parent string

	folders       *lazy.Cell[[]*FolderNode]
	presentations *lazy.Cell[[]*PresentationNode]
}

// IsRoot reports whether this is the distinguished Drive root.
func (f *FolderNode) IsRoot() bool { return f.ID == RootID }

// IsBatch reports whether this is a virtual batch aggregate.
func (f *FolderNode) IsBatch() bool { return f.ID == BatchID }

// Folders resolves the direct sub-folders, fetching at most once.
func (f *FolderNode) Folders(ctx context.Context) ([]*FolderNode, error) {
	return f.folders.Get(ctx)
}

// Presentations resolves the directly contained presentations, fetching at
// most once.
func (f *FolderNode) Presentations(ctx context.Context) ([]*PresentationNode, error) {
	return f.presentations.Get(ctx)
}

// PresentationNode is a Slides presentation addressed by (id, parent folder).
// The same presentation id under two parents is two distinct nodes, matching
// Drive shortcut semantics; the structural JSON and slide list are shared
// per-node and fetched at most once.
type PresentationNode struct {
	ID     string
	Parent string
	Batch  bool

	nameMu    sync.Mutex
	name      string
	structure *lazy.Cell[*Structure]
	slides    *lazy.Cell[[]*SlideNode]
}

// Name returns the presentation title, resolving the structure if the name
// was not supplied by the listing that discovered the node. Safe for
// concurrent use; the same node is reachable from multiple walk workers.
func (p *PresentationNode) Name(ctx context.Context) (string, error) {
	p.nameMu.Lock()
	name := p.name
	p.nameMu.Unlock()
	if name != "" {
		return name, nil
	}

	st, err := p.structure.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("drive: resolving presentation %s name: %w", p.ID, err)
	}

	p.nameMu.Lock()
	defer p.nameMu.Unlock()
	if p.name == "" {
		p.name = SanitizeName(st.Title)
	}
	return p.name, nil
}

// seedName records a title learned from a listing, keeping the first
// non-empty value.
func (p *PresentationNode) seedName(name string) {
	p.nameMu.Lock()
	defer p.nameMu.Unlock()
	if p.name == "" && name != "" {
		p.name = name
	}
}

// Structure resolves the presentation's structural JSON, fetching at most
// once. Failure is fatal for this presentation's materialization.
func (p *PresentationNode) Structure(ctx context.Context) (*Structure, error) {
	return p.structure.Get(ctx)
}

// Slides resolves the slide nodes in authoritative remote order.
func (p *PresentationNode) Slides(ctx context.Context) ([]*SlideNode, error) {
	return p.slides.Get(ctx)
}

// SlideNode is a single slide addressed by (slide id, presentation id).
type SlideNode struct {
	ID             string
	PresentationID string
	// Order is the zero-based position within the presentation's slide
	// listing, stable within one structure fetch.
	Order int

	presentation *PresentationNode
}

// Presentation returns the owning presentation node.
func (s *SlideNode) Presentation() *PresentationNode { return s.presentation }

// JSON returns this slide's structural sub-object from the presentation's
// memoized structure.
func (s *SlideNode) JSON(ctx context.Context) ([]byte, error) {
	st, err := s.presentation.Structure(ctx)
	if err != nil {
		return nil, err
	}
	for _, sl := range st.Slides {
		if sl.ObjectID == s.ID {
			return sl.Raw, nil
		}
	}
	return nil, fmt.Errorf("drive: slide %s not present in presentation %s structure", s.ID, s.PresentationID)
}
