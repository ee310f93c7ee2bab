package drive

import (
	"context"
	"fmt"
	"log/slog"
	"path"
)

// BatchPathSegment is the output path segment used for batch members, which
// have no real Drive ancestry.
const BatchPathSegment = "gslide2media"

// maxAncestry bounds the upward walk so a cyclic parent chain (possible with
// shortcut misconfiguration) cannot loop forever.
const maxAncestry = 64

// ResolvePathToRoot resolves a presentation's name-path from the Drive root,
// by walking its own parent ancestry rather than the traversal branch it was
// reached through. Results are memoized per presentation id.
func (c *Cache) ResolvePathToRoot(ctx context.Context, p *PresentationNode) (string, error) {
	if p.Batch || p.Parent == BatchID {
		return BatchPathSegment, nil
	}

	c.mu.Lock()
	if c.paths == nil {
		c.paths = make(map[string]string)
	}
	if cached, ok := c.paths[p.ID]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	var segments []string
	cur, err := c.lister.Parent(ctx, p.ID)
	if err != nil {
		c.logger.Warn("parent lookup failed, placing presentation at root",
			slog.String("presentation_id", p.ID),
			slog.String("error", err.Error()),
		)
		cur = ""
	}

	for depth := 0; cur != "" && cur != RootID; depth++ {
		if depth >= maxAncestry {
			return "", fmt.Errorf("drive: ancestry of presentation %s exceeds %d levels", p.ID, maxAncestry)
		}

		name, err := c.folderNameCached(ctx, cur)
		if err != nil {
			return "", fmt.Errorf("drive: resolving ancestor folder %s: %w", cur, err)
		}
		segments = append([]string{name}, segments...)

		parent, err := c.lister.Parent(ctx, cur)
		if err != nil {
			c.logger.Warn("ancestor parent lookup failed, truncating path",
				slog.String("folder_id", cur),
				slog.String("error", err.Error()),
			)
			break
		}
		cur = parent
	}

	resolved := path.Join(segments...)
	c.mu.Lock()
	c.paths[p.ID] = resolved
	c.mu.Unlock()
	return resolved, nil
}

// folderNameCached prefers the name already held by a cached folder node
// before asking the lister.
func (c *Cache) folderNameCached(ctx context.Context, folderID string) (string, error) {
	c.mu.Lock()
	if f, ok := c.folders[folderID]; ok && f.Name != "" {
		c.mu.Unlock()
		return f.Name, nil
	}
	c.mu.Unlock()

	name, err := c.lister.FolderName(ctx, folderID)
	if err != nil {
		return "", err
	}
	return SanitizeName(name), nil
}
