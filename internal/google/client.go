package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/slides/v1"

	"github.com/gslide2media/gslide2media/internal/drive"
	"github.com/gslide2media/gslide2media/internal/lazy"
	"github.com/gslide2media/gslide2media/internal/options"
	"github.com/gslide2media/gslide2media/internal/ratelimit"
	"github.com/gslide2media/gslide2media/internal/retry"
)

// Drive mime types.
const (
	mimeFolder       = "application/vnd.google-apps.folder"
	mimePresentation = "application/vnd.google-apps.presentation"
)

// defaultExportBaseURL is where presentation export URLs live.
const defaultExportBaseURL = "https://docs.google.com"

// Config holds client configuration.
type Config struct {
	// TokenSource supplies OAuth2 tokens for the API services.
	TokenSource oauth2.TokenSource
	// HTTPClient is the authorized client for export-URL fetches. Defaults
	// to an oauth2 client over TokenSource.
	HTTPClient *http.Client
	// DriveFactory and SlidesFactory default to the real services.
	DriveFactory  DriveServiceFactory
	SlidesFactory SlidesServiceFactory
	// Retryer wraps remote calls; defaults to retry.DefaultConfig.
	Retryer *retry.Retryer
	// Quota paces remote calls; nil disables pacing.
	Quota *ratelimit.Gate
	// ExportBaseURL overrides the export host, for tests.
	ExportBaseURL string
	// Logger for client events.
	Logger *slog.Logger
}

// Client talks to the Drive and Slides APIs. It implements the tree's
// listing contract and the walk's export contract.
type Client struct {
	drive   DriveService
	slides  SlidesService
	http    *http.Client
	retryer *retry.Retryer
	quota   *ratelimit.Gate
	baseURL string
	logger  *slog.Logger

	rootID *lazy.Cell[string]
}

// NewClient builds a client over the configured services.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Retryer == nil {
		cfg.Retryer = retry.New(retry.Config{Logger: cfg.Logger})
	}
	if cfg.DriveFactory == nil {
		cfg.DriveFactory = NewRealDriveServiceFactory()
	}
	if cfg.SlidesFactory == nil {
		cfg.SlidesFactory = NewRealSlidesServiceFactory()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = oauth2.NewClient(ctx, cfg.TokenSource)
	}
	if cfg.ExportBaseURL == "" {
		cfg.ExportBaseURL = defaultExportBaseURL
	}

	driveService, err := cfg.DriveFactory(ctx, cfg.TokenSource)
	if err != nil {
		return nil, fmt.Errorf("google: creating drive service: %w", err)
	}
	slidesService, err := cfg.SlidesFactory(ctx, cfg.TokenSource)
	if err != nil {
		return nil, fmt.Errorf("google: creating slides service: %w", err)
	}

	c := &Client{
		drive:   driveService,
		slides:  slidesService,
		http:    cfg.HTTPClient,
		retryer: cfg.Retryer,
		quota:   cfg.Quota,
		baseURL: cfg.ExportBaseURL,
		logger:  cfg.Logger,
	}
	c.rootID = lazy.Defer(func(ctx context.Context) (string, error) {
		root, err := c.getFile(ctx, "root")
		if err != nil {
			return "", fmt.Errorf("google: resolving root folder id: %w", err)
		}
		return root.Id, nil
	})
	return c, nil
}

func (c *Client) pace(ctx context.Context) error {
	if c.quota == nil {
		return nil
	}
	return c.quota.Wait(ctx)
}

func (c *Client) listFiles(ctx context.Context, query string) ([]*drivev3.File, error) {
	return retry.Do(ctx, c.retryer, func(ctx context.Context) ([]*drivev3.File, int, error) {
		if err := c.pace(ctx); err != nil {
			return nil, 0, err
		}
		files, err := c.drive.ListFiles(ctx, query)
		return files, statusOf(err), err
	})
}

func (c *Client) getFile(ctx context.Context, fileID string) (*drivev3.File, error) {
	return retry.Do(ctx, c.retryer, func(ctx context.Context) (*drivev3.File, int, error) {
		if err := c.pace(ctx); err != nil {
			return nil, 0, err
		}
		f, err := c.drive.GetFile(ctx, fileID)
		return f, statusOf(err), err
	})
}

func toItems(files []*drivev3.File) []drive.Item {
	items := make([]drive.Item, len(files))
	for i, f := range files {
		items[i] = drive.Item{ID: f.Id, Name: f.Name}
	}
	return items
}

// ChildFolders lists the folders directly inside a folder.
func (c *Client) ChildFolders(ctx context.Context, folderID string) ([]drive.Item, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", folderID, mimeFolder)
	files, err := c.listFiles(ctx, query)
	if err != nil {
		return nil, err
	}
	return toItems(files), nil
}

// ChildPresentations lists the presentations directly inside a folder.
func (c *Client) ChildPresentations(ctx context.Context, folderID string) ([]drive.Item, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false", folderID, mimePresentation)
	files, err := c.listFiles(ctx, query)
	if err != nil {
		return nil, err
	}
	return toItems(files), nil
}

// RootFolders lists the folders at the top of My Drive.
func (c *Client) RootFolders(ctx context.Context) ([]drive.Item, error) {
	return c.ChildFolders(ctx, "root")
}

// RootPresentations lists the presentations at the top of My Drive.
func (c *Client) RootPresentations(ctx context.Context) ([]drive.Item, error) {
	return c.ChildPresentations(ctx, "root")
}

// SharedFolders lists folders shared with the user.
func (c *Client) SharedFolders(ctx context.Context) ([]drive.Item, error) {
	query := fmt.Sprintf("sharedWithMe = true and mimeType = '%s' and trashed = false", mimeFolder)
	files, err := c.listFiles(ctx, query)
	if err != nil {
		return nil, err
	}
	return toItems(files), nil
}

// SharedPresentations lists presentations shared with the user.
func (c *Client) SharedPresentations(ctx context.Context) ([]drive.Item, error) {
	query := fmt.Sprintf("sharedWithMe = true and mimeType = '%s' and trashed = false", mimePresentation)
	files, err := c.listFiles(ctx, query)
	if err != nil {
		return nil, err
	}
	return toItems(files), nil
}

// Parent returns the containing folder of a resource. The Drive API reports
// the real root folder id rather than the "root" alias, so the alias is
// resolved at most once, safely across concurrent callers, and substituted.
func (c *Client) Parent(ctx context.Context, resourceID string) (string, error) {
	f, err := c.getFile(ctx, resourceID)
	if err != nil {
		return "", err
	}
	if len(f.Parents) == 0 {
		return "", nil
	}
	parent := f.Parents[0]

	rootID, err := c.rootID.Get(ctx)
	if err != nil {
		return "", err
	}
	if parent == rootID {
		return drive.RootID, nil
	}
	return parent, nil
}

// FolderName returns a folder's display name.
func (c *Client) FolderName(ctx context.Context, folderID string) (string, error) {
	f, err := c.getFile(ctx, folderID)
	if err != nil {
		return "", err
	}
	return f.Name, nil
}

// PresentationStructure fetches a presentation's structural JSON.
func (c *Client) PresentationStructure(ctx context.Context, presentationID string) (*drive.Structure, error) {
	pres, err := retry.Do(ctx, c.retryer, func(ctx context.Context) (*slides.Presentation, int, error) {
		if err := c.pace(ctx); err != nil {
			return nil, 0, err
		}
		p, err := c.slides.GetPresentation(ctx, presentationID)
		return p, statusOf(err), err
	})
	if err != nil {
		return nil, err
	}
	return structureFrom(pres)
}

// ExportPresentation fetches a whole-presentation artifact via the export URL.
func (c *Client) ExportPresentation(ctx context.Context, presentationID string, format options.ExportFormat) ([]byte, error) {
	return c.fetchExport(ctx, c.exportURL(presentationID, format, ""))
}

// ExportSlide fetches a single slide via the export URL.
func (c *Client) ExportSlide(ctx context.Context, presentationID, slideID string, format options.ExportFormat) ([]byte, error) {
	return c.fetchExport(ctx, c.exportURL(presentationID, format, slideID))
}

// exportURL builds the documented presentation export URL, optionally scoped
// to one slide.
func (c *Client) exportURL(presentationID string, format options.ExportFormat, slideID string) string {
	u := fmt.Sprintf("%s/presentation/d/%s/export/%s?id=%s", c.baseURL, presentationID, format.Extension(), presentationID)
	if slideID != "" {
		u += "&pageid=" + slideID
	}
	return u
}

func (c *Client) fetchExport(ctx context.Context, url string) ([]byte, error) {
	return retry.Do(ctx, c.retryer, func(ctx context.Context) ([]byte, int, error) {
		if err := c.pace(ctx); err != nil {
			return nil, 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, 0, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, resp.StatusCode, fmt.Errorf("google: export fetch returned %s", resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, 0, err
		}
		return data, 0, nil
	})
}

// structureFrom adapts the typed API response into the structural form the
// tree consumes, preserving raw JSON per slide.
func structureFrom(p *slides.Presentation) (*drive.Structure, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("google: encoding presentation structure: %w", err)
	}
	st := &drive.Structure{
		Title:  p.Title,
		Raw:    raw,
		Slides: make([]drive.StructureSlide, 0, len(p.Slides)),
	}
	for _, page := range p.Slides {
		pageRaw, err := json.Marshal(page)
		if err != nil {
			return nil, fmt.Errorf("google: encoding slide %s: %w", page.ObjectId, err)
		}
		st.Slides = append(st.Slides, drive.StructureSlide{ObjectID: page.ObjectId, Raw: pageRaw})
	}
	return st, nil
}
