// Package google wires the Drive and Slides APIs behind the listing and
// export contracts the walk depends on. Remote calls are paced by a shared
// quota gate and retried on transient failures.
package google

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/slides/v1"
)

// DriveService abstracts the Drive API for testing.
type DriveService interface {
	ListFiles(ctx context.Context, query string) ([]*drivev3.File, error)
	GetFile(ctx context.Context, fileID string) (*drivev3.File, error)
}

// SlidesService abstracts the Slides API for testing.
type SlidesService interface {
	GetPresentation(ctx context.Context, presentationID string) (*slides.Presentation, error)
}

// DriveServiceFactory creates a Drive service from a token source.
type DriveServiceFactory func(ctx context.Context, tokenSource oauth2.TokenSource) (DriveService, error)

// SlidesServiceFactory creates a Slides service from a token source.
type SlidesServiceFactory func(ctx context.Context, tokenSource oauth2.TokenSource) (SlidesService, error)

// realDriveService wraps the actual Drive API.
type realDriveService struct {
	service *drivev3.Service
}

func (s *realDriveService) ListFiles(ctx context.Context, query string) ([]*drivev3.File, error) {
	var files []*drivev3.File
	pageToken := ""
	for {
		call := s.service.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, parents)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, err
		}
		files = append(files, list.Files...)
		if list.NextPageToken == "" {
			return files, nil
		}
		pageToken = list.NextPageToken
	}
}

func (s *realDriveService) GetFile(ctx context.Context, fileID string) (*drivev3.File, error) {
	return s.service.Files.Get(fileID).
		Fields("id, name, parents").
		Context(ctx).
		Do()
}

// NewRealDriveServiceFactory returns a factory that creates real Drive services.
func NewRealDriveServiceFactory() DriveServiceFactory {
	return func(ctx context.Context, tokenSource oauth2.TokenSource) (DriveService, error) {
		service, err := drivev3.NewService(ctx, option.WithTokenSource(tokenSource))
		if err != nil {
			return nil, err
		}
		return &realDriveService{service: service}, nil
	}
}

// realSlidesService wraps the actual Slides API.
type realSlidesService struct {
	service *slides.Service
}

func (s *realSlidesService) GetPresentation(ctx context.Context, presentationID string) (*slides.Presentation, error) {
	return s.service.Presentations.Get(presentationID).
		Context(ctx).
		Do()
}

// NewRealSlidesServiceFactory returns a factory that creates real Slides services.
func NewRealSlidesServiceFactory() SlidesServiceFactory {
	return func(ctx context.Context, tokenSource oauth2.TokenSource) (SlidesService, error) {
		service, err := slides.NewService(ctx, option.WithTokenSource(tokenSource))
		if err != nil {
			return nil, err
		}
		return &realSlidesService{service: service}, nil
	}
}

// statusOf extracts the HTTP status from an API error, zero when absent.
func statusOf(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
