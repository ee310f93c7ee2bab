// Package drive models the remote Folder/Presentation/Slide hierarchy as
// identity-cached nodes with lazily fetched children, so repeated references
// to the same remote resource resolve to one in-memory instance and each
// remote call happens at most once.
package drive

import (
	"context"
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Item is one entry of a remote listing.
type Item struct {
	ID   string
	Name string
}

// StructureSlide is one slide of a presentation's structural JSON.
type StructureSlide struct {
	ObjectID string
	Raw      json.RawMessage
}

// Structure is the structural JSON of a presentation: its title, the raw
// document, and the slides in authoritative remote order.
type Structure struct {
	Title  string
	Raw    json.RawMessage
	Slides []StructureSlide
}

// Lister abstracts the remote resource-listing collaborator. Listing calls
// may fail and are treated as empty results by the traversal; name and
// structure lookups needed to build an identity are fatal on failure.
type Lister interface {
	ChildFolders(ctx context.Context, folderID string) ([]Item, error)
	ChildPresentations(ctx context.Context, folderID string) ([]Item, error)
	RootFolders(ctx context.Context) ([]Item, error)
	RootPresentations(ctx context.Context) ([]Item, error)
	SharedFolders(ctx context.Context) ([]Item, error)
	SharedPresentations(ctx context.Context) ([]Item, error)
	Parent(ctx context.Context, resourceID string) (string, error)
	FolderName(ctx context.Context, folderID string) (string, error)
	PresentationStructure(ctx context.Context, presentationID string) (*Structure, error)
}

// SanitizeName converts a remote display name into a filesystem-safe path
// segment: NFC-normalized, trimmed, spaces replaced with dashes.
func SanitizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")
	return strings.ReplaceAll(name, "/", "-")
}
