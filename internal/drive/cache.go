package drive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gslide2media/gslide2media/internal/lazy"
)

// Config holds cache configuration.
type Config struct {
	Lister Lister
	Logger *slog.Logger
}

type presentationKey struct {
	id     string
	parent string
}

type slideKey struct {
	id             string
	presentationID string
}

// Cache is the identity map for remote nodes: at most one in-memory instance
// exists per identity key for the cache's lifetime. It is owned by a traversal
// session rather than being process-global, so tests and repeated runs can
// reset it.
type Cache struct {
	lister Lister
	logger *slog.Logger

	mu            sync.Mutex
	folders       map[string]*FolderNode
	presentations map[presentationKey]*PresentationNode
	slides        map[slideKey]*SlideNode
	paths         map[string]string
}

// NewCache creates an empty identity cache over the given lister.
func NewCache(cfg Config) *Cache {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		lister:        cfg.Lister,
		logger:        cfg.Logger,
		folders:       make(map[string]*FolderNode),
		presentations: make(map[presentationKey]*PresentationNode),
		slides:        make(map[slideKey]*SlideNode),
	}
}

// Reset empties the cache. Nodes obtained before the reset keep working but
// are no longer identity-shared with nodes obtained after it.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folders = make(map[string]*FolderNode)
	c.presentations = make(map[presentationKey]*PresentationNode)
	c.slides = make(map[slideKey]*SlideNode)
	c.paths = nil
	c.logger.Debug("node cache reset")
}

// Root returns the distinguished root folder. Its children are the "My
// Drive" root listing concatenated with resources shared with the user.
func (c *Cache) Root() *FolderNode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.folders[RootID]; ok {
		return f
	}
	f := &FolderNode{ID: RootID, Name: RootID}
	f.folders = lazy.Defer(func(ctx context.Context) ([]*FolderNode, error) {
		items := c.listTolerant(ctx, "root folders", func(ctx context.Context) ([]Item, error) {
			return c.lister.RootFolders(ctx)
		})
		items = append(items, c.listTolerant(ctx, "shared folders", func(ctx context.Context) ([]Item, error) {
			return c.lister.SharedFolders(ctx)
		})...)
		return c.folderNodes(items, RootID), nil
	})
	f.presentations = lazy.Defer(func(ctx context.Context) ([]*PresentationNode, error) {
		items := c.listTolerant(ctx, "root presentations", func(ctx context.Context) ([]Item, error) {
			return c.lister.RootPresentations(ctx)
		})
		items = append(items, c.listTolerant(ctx, "shared presentations", func(ctx context.Context) ([]Item, error) {
			return c.lister.SharedPresentations(ctx)
		})...)
		return c.presentationNodes(items, RootID), nil
	})
	c.folders[RootID] = f
	return f
}

// Folder returns the node for a real folder id, constructing it on first
// reference. The folder name is required to build the identity, so a name
// lookup failure is fatal; a missing parent is tolerated.
func (c *Cache) Folder(ctx context.Context, folderID string) (*FolderNode, error) {
	if folderID == "" || folderID == RootID {
		return c.Root(), nil
	}

	c.mu.Lock()
	if f, ok := c.folders[folderID]; ok {
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	name, err := c.lister.FolderName(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("drive: resolving folder %s name: %w", folderID, err)
	}
	parent, err := c.lister.Parent(ctx, folderID)
	if err != nil {
		c.logger.Warn("parent lookup failed, treating folder as parentless",
			slog.String("folder_id", folderID),
			slog.String("error", err.Error()),
		)
		parent = ""
	}
	return c.folderWith(folderID, SanitizeName(name), parent), nil
}

// folderWith returns the node for a folder whose name and parent are already
// known, typically from the listing that discovered it.
func (c *Cache) folderWith(folderID, name, parent string) *FolderNode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.folders[folderID]; ok {
		return f
	}
	f := &FolderNode{ID: folderID, Name: name, Parent: parent}
	f.folders = lazy.Defer(func(ctx context.Context) ([]*FolderNode, error) {
		items := c.listTolerant(ctx, "child folders", func(ctx context.Context) ([]Item, error) {
			return c.lister.ChildFolders(ctx, folderID)
		})
		return c.folderNodes(items, folderID), nil
	})
	f.presentations = lazy.Defer(func(ctx context.Context) ([]*PresentationNode, error) {
		items := c.listTolerant(ctx, "child presentations", func(ctx context.Context) ([]Item, error) {
			return c.lister.ChildPresentations(ctx, folderID)
		})
		return c.presentationNodes(items, folderID), nil
	})
	c.folders[folderID] = f
	return f
}

// BatchMembers are the explicit contents of a virtual batch folder.
type BatchMembers struct {
	FolderIDs       []string
	PresentationIDs []string
	Presentations   []*PresentationNode
}

// Batch returns the virtual folder aggregating the supplied members. No
// remote listing is made for the batch identity itself; each explicit folder
// id is resolved eagerly because a bad id should fail the invocation, not be
// silently skipped.
func (c *Cache) Batch(ctx context.Context, members BatchMembers) (*FolderNode, error) {
	folders := make([]*FolderNode, 0, len(members.FolderIDs))
	for _, id := range members.FolderIDs {
		f, err := c.Folder(ctx, id)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}

	presentations := make([]*PresentationNode, 0, len(members.PresentationIDs)+len(members.Presentations))
	for _, id := range members.PresentationIDs {
		presentations = append(presentations, c.presentationWith(id, BatchID, "", true))
	}
	presentations = append(presentations, members.Presentations...)

	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.folders[BatchID]
	if !ok {
		f = &FolderNode{ID: BatchID, Name: BatchID}
		c.folders[BatchID] = f
	}
	f.folders = lazy.Resolve(folders)
	f.presentations = lazy.Resolve(presentations)
	return f, nil
}

// Presentation returns the node for (presentation id, parent folder id),
// constructing it on first reference. The title is resolved lazily from the
// structural JSON, so repeated lookups never trigger a second remote call.
func (c *Cache) Presentation(presentationID, parent string) *PresentationNode {
	return c.presentationWith(presentationID, parent, "", false)
}

// CustomPresentation returns a batch presentation restricted to the given
// slide ids, in the given order.
func (c *Cache) CustomPresentation(presentationID string, slideIDs []string) *PresentationNode {
	p := c.presentationWith(presentationID, BatchID, "", true)
	slides := make([]*SlideNode, len(slideIDs))
	for i, id := range slideIDs {
		slides[i] = c.slide(id, presentationID, i, p)
	}
	p.slides = lazy.Resolve(slides)
	return p
}

func (c *Cache) presentationWith(presentationID, parent, name string, batch bool) *PresentationNode {
	key := presentationKey{id: presentationID, parent: parent}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.presentations[key]; ok {
		p.seedName(name)
		return p
	}

	p := &PresentationNode{ID: presentationID, Parent: parent, Batch: batch, name: name}
	p.structure = lazy.Defer(func(ctx context.Context) (*Structure, error) {
		return c.lister.PresentationStructure(ctx, presentationID)
	})
	p.slides = lazy.Defer(func(ctx context.Context) ([]*SlideNode, error) {
		st, err := p.structure.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("drive: listing slides of %s: %w", presentationID, err)
		}
		slides := make([]*SlideNode, len(st.Slides))
		for i, sl := range st.Slides {
			slides[i] = c.slide(sl.ObjectID, presentationID, i, p)
		}
		return slides, nil
	})
	c.presentations[key] = p
	return p
}

// slide returns the node for (slide id, presentation id).
func (c *Cache) slide(slideID, presentationID string, order int, p *PresentationNode) *SlideNode {
	key := slideKey{id: slideID, presentationID: presentationID}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slides[key]; ok {
		return s
	}
	s := &SlideNode{ID: slideID, PresentationID: presentationID, Order: order, presentation: p}
	c.slides[key] = s
	return s
}

func (c *Cache) folderNodes(items []Item, parent string) []*FolderNode {
	out := make([]*FolderNode, len(items))
	for i, it := range items {
		out[i] = c.folderWith(it.ID, SanitizeName(it.Name), parent)
	}
	return out
}

func (c *Cache) presentationNodes(items []Item, parent string) []*PresentationNode {
	out := make([]*PresentationNode, len(items))
	for i, it := range items {
		out[i] = c.presentationWith(it.ID, parent, SanitizeName(it.Name), false)
	}
	return out
}

// listTolerant runs a listing call, converting failure into an empty result
// so a broken sub-tree does not abort the whole traversal.
func (c *Cache) listTolerant(ctx context.Context, what string, fn func(context.Context) ([]Item, error)) []Item {
	items, err := fn(ctx)
	if err != nil {
		c.logger.Warn("listing failed, treating as empty",
			slog.String("listing", what),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return items
}
