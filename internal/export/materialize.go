package export

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/gslide2media/gslide2media/internal/drive"
	"github.com/gslide2media/gslide2media/internal/options"
)

// presentationsSegment is the fixed first segment of every output path under
// the download directory.
const presentationsSegment = "presentations"

// materialize produces every requested artifact for one presentation. It runs
// inside its own worker task; any error fails only this presentation.
func (w *Walker) materialize(ctx context.Context, p *drive.PresentationNode) error {
	name, err := p.Name(ctx)
	if err != nil {
		return err
	}
	drivePath, err := w.cfg.Cache.ResolvePathToRoot(ctx, p)
	if err != nil {
		return err
	}
	dir := filepath.Join(w.opts.DownloadDirectory, presentationsSegment, filepath.FromSlash(drivePath), name)

	// Per-slide SVG bytes are shared between the image and video formats
	// within this materialization.
	svgs := make(map[string][]byte)

	for _, format := range w.opts.Formats {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch format.Kind() {
		case options.KindDocument:
			err = w.exportDocument(ctx, p, dir, name, format)
		case options.KindData:
			err = w.exportJSON(ctx, p, dir, name)
		case options.KindImage:
			err = w.exportImages(ctx, p, dir, name, format, svgs)
		case options.KindVideo:
			err = w.exportVideo(ctx, p, dir, name, svgs)
		}
		if err != nil {
			return fmt.Errorf("export: %s of %s: %w", format, p.ID, err)
		}
	}
	return nil
}

// exportDocument fetches a whole-presentation artifact (pptx, pdf, txt, odp).
func (w *Walker) exportDocument(ctx context.Context, p *drive.PresentationNode, dir, name string, format options.ExportFormat) error {
	path := filepath.Join(dir, name+"."+format.Extension())
	if !w.claimPath(path) {
		return nil
	}
	data, err := w.cfg.Exporter.ExportPresentation(ctx, p.ID, format)
	if err != nil {
		return err
	}
	return w.write(path, data)
}

// exportJSON writes the whole structural document plus one file per slide.
func (w *Walker) exportJSON(ctx context.Context, p *drive.PresentationNode, dir, name string) error {
	st, err := p.Structure(ctx)
	if err != nil {
		return err
	}

	wholePath := filepath.Join(dir, name+".json")
	if w.claimPath(wholePath) {
		if err := w.write(wholePath, st.Raw); err != nil {
			return err
		}
	}

	slides, err := p.Slides(ctx)
	if err != nil {
		return err
	}
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, slideFileName(name, s, options.FormatJSON))
		if !w.claimPath(path) {
			continue
		}
		raw, err := s.JSON(ctx)
		if err != nil {
			return err
		}
		if err := w.write(path, raw); err != nil {
			return err
		}
	}
	return nil
}

// exportImages writes one image per slide. SVG is the native export; PNG and
// JPEG are transcoded from it.
func (w *Walker) exportImages(ctx context.Context, p *drive.PresentationNode, dir, name string, format options.ExportFormat, svgs map[string][]byte) error {
	slides, err := p.Slides(ctx)
	if err != nil {
		return err
	}
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, slideFileName(name, s, format))
		if !w.claimPath(path) {
			continue
		}
		data, err := w.slideImage(ctx, s, format, svgs)
		if err != nil {
			return err
		}
		if err := w.write(path, data); err != nil {
			return err
		}
	}
	return nil
}

// exportVideo renders each slide to a PNG frame, repeats it for its display
// duration, and muxes the frames into one MP4.
func (w *Walker) exportVideo(ctx context.Context, p *drive.PresentationNode, dir, name string, svgs map[string][]byte) error {
	path := filepath.Join(dir, name+".mp4")
	if !w.claimPath(path) {
		return nil
	}

	slides, err := p.Slides(ctx)
	if err != nil {
		return err
	}
	if len(slides) == 0 {
		return fmt.Errorf("presentation %s has no slides", p.ID)
	}

	fps := w.opts.FPS
	if fps <= 0 {
		fps = options.DefaultFPS
	}
	perSlide := float64(w.opts.MP4SlideDurationSecs)
	if w.opts.MP4TotalDurationSecs > 0 {
		perSlide = float64(w.opts.MP4TotalDurationSecs) / float64(len(slides))
	}
	if perSlide <= 0 {
		perSlide = float64(options.DefaultSlideDuration)
	}
	repeat := int(math.Round(perSlide * float64(fps)))
	if repeat < 1 {
		repeat = 1
	}

	var frames [][]byte
	for _, s := range slides {
		frame, err := w.slideImage(ctx, s, options.FormatPNG, svgs)
		if err != nil {
			return err
		}
		for i := 0; i < repeat; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			frames = append(frames, frame)
		}
	}

	video, err := w.cfg.Transcoder.FramesToMP4(frames, fps)
	if err != nil {
		return err
	}
	return w.write(path, video)
}

// slideImage returns a slide's bytes in the requested image format. The
// native SVG fetch happens at most once per slide per presentation.
func (w *Walker) slideImage(ctx context.Context, s *drive.SlideNode, format options.ExportFormat, svgs map[string][]byte) ([]byte, error) {
	svg, ok := svgs[s.ID]
	if !ok {
		var err error
		svg, err = w.cfg.Exporter.ExportSlide(ctx, s.PresentationID, s.ID, options.FormatSVG)
		if err != nil {
			return nil, err
		}
		svgs[s.ID] = svg
	}
	if format == options.FormatSVG {
		return svg, nil
	}

	png, err := w.cfg.Transcoder.SVGToPNG(svg, w.opts.DPI)
	if err != nil {
		return nil, err
	}
	if format == options.FormatPNG {
		return png, nil
	}
	return w.cfg.Transcoder.PNGToJPEG(png, w.opts.JPEGQuality)
}

func (w *Walker) write(path string, data []byte) error {
	if err := w.cfg.Sink.Write(path, data); err != nil {
		return err
	}
	w.countWritten()
	return nil
}

// slideFileName builds "<name>_slide_NN_<slideID>.<ext>" with a 1-based,
// zero-padded slide number.
func slideFileName(name string, s *drive.SlideNode, format options.ExportFormat) string {
	return fmt.Sprintf("%s_slide_%02d_%s.%s", name, s.Order+1, s.ID, format.Extension())
}
