package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/linkmeta"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/dmitrijs2005/boardkeeper/internal/thumbnail"
)

// readFile reads path under a shared lock, refusing anything larger than
// limit before a byte of content is loaded.
func (p *Pipeline) readFile(ctx context.Context, path string, limit int64) ([]byte, error) {
	if path == "" {
		return nil, common.Wrapf(common.ErrDataValidation, "empty file path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, openError(err)
	}
	if info.IsDir() {
		if isLivePhotoBundle(path) {
			return nil, common.Wrapf(common.ErrUnsupportedType, "%s is a live photo bundle", filepath.Base(path))
		}
		return nil, common.Wrapf(common.ErrDataValidation, "%s is a directory", filepath.Base(path))
	}
	if info.Size() > limit {
		return nil, common.Wrapf(common.ErrDataValidation, "%s is %d bytes, limit %d", filepath.Base(path), info.Size(), limit)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, openError(err)
	}
	defer f.Close()

	lockCtx, cancel := context.WithTimeout(ctx, p.opts.LockTimeout)
	defer cancel()
	unlock, err := lockShared(lockCtx, f)
	if err != nil {
		return nil, common.Wrap(common.ErrInaccessibleResource, err)
	}
	defer unlock()

	// The file may grow between stat and read.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, common.Wrap(common.ErrDataValidation, err)
	}
	if int64(len(data)) > limit {
		return nil, common.Wrapf(common.ErrDataValidation, "%s exceeds limit %d", filepath.Base(path), limit)
	}
	return data, nil
}

func openError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return common.Wrap(common.ErrInaccessibleResource, err)
	}
	return common.Wrap(common.ErrDataValidation, err)
}

func (p *Pipeline) fileSpec(ctx context.Context, path, name string, limit int64) (models.ItemSpec, error) {
	data, err := p.readFile(ctx, path, limit)
	if err != nil {
		return models.ItemSpec{}, err
	}
	kind := sniff(data)
	if name == "" {
		name = filepath.Base(path)
	}
	return models.ItemSpec{
		Name:        models.Ptr(name),
		DisplayType: kind.display,
		ContentType: kind.typeID,
		Data:        data,
		Thumbnail:   p.thumbnail(ctx, path),
	}, nil
}

func (p *Pipeline) audioSpec(ctx context.Context, in Input) (models.ItemSpec, error) {
	data, err := p.readFile(ctx, in.Path, LargeLimit)
	if err != nil {
		return models.ItemSpec{}, err
	}
	name := in.Name
	if name == "" {
		name = p.autoName("Recording")
	}
	return models.ItemSpec{
		Name:        models.Ptr(name),
		DisplayType: models.DisplayAudio,
		ContentType: sniff(data).typeID,
		Data:        data,
	}, nil
}

var encodePreview = thumbnail.Encode

// imageSpec stores captures as PNG with a scaled JPEG preview.
func (p *Pipeline) imageSpec(ctx context.Context, in Input) (models.ItemSpec, error) {
	if in.Image == nil {
		return models.ItemSpec{}, common.Wrapf(common.ErrDataValidation, "no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, in.Image); err != nil {
		return models.ItemSpec{}, common.Wrap(common.ErrDataValidation, err)
	}
	if limit := in.Origin.Limit(); int64(buf.Len()) > limit {
		return models.ItemSpec{}, common.Wrapf(common.ErrDataValidation, "encoded image is %d bytes, limit %d", buf.Len(), limit)
	}

	thumb, err := encodePreview(in.Image, p.opts.ThumbnailSize, 0)
	if err != nil {
		p.logger.Warn(ctx, "image preview failed", "error", err)
	}
	name := in.Name
	if name == "" {
		name = p.autoName("Photo")
	}
	return models.ItemSpec{
		Name:        models.Ptr(name),
		DisplayType: models.DisplayImage,
		ContentType: TypePNG,
		Data:        buf.Bytes(),
		Thumbnail:   thumb,
	}, nil
}

func (p *Pipeline) noteSpec(text, name string, limit int64) (models.ItemSpec, error) {
	if strings.TrimSpace(text) == "" {
		return models.ItemSpec{}, common.Wrapf(common.ErrDataValidation, "empty note")
	}
	if !utf8.ValidString(text) {
		return models.ItemSpec{}, common.Wrapf(common.ErrDataValidation, "note is not valid UTF-8")
	}
	if int64(len(text)) > limit {
		return models.ItemSpec{}, common.Wrapf(common.ErrDataValidation, "note is %d bytes, limit %d", len(text), limit)
	}
	if name == "" {
		name = p.autoName("Note")
	}
	return models.ItemSpec{
		Name:        models.Ptr(name),
		Note:        models.Ptr(text),
		DisplayType: models.DisplayNote,
		ContentType: TypeUTF8PlainText,
	}, nil
}

func (p *Pipeline) linkSpec(ctx context.Context, rawURL, name string) (models.ItemSpec, error) {
	u, err := linkmeta.Parse(rawURL)
	if err != nil {
		return models.ItemSpec{}, err
	}
	spec := models.ItemSpec{
		DisplayType: models.DisplayLink,
		ContentType: TypeURL,
		Data:        []byte(u.String()),
	}

	meta := linkmeta.Metadata{URL: u.String(), Host: u.Hostname()}
	if fetched, ok := p.metadata(ctx, u.String()); ok {
		meta = fetched
	}
	if name == "" {
		name = meta.DisplayName()
	}
	spec.Name = models.Ptr(name)
	spec.Thumbnail = p.preview(meta.PreviewImage)
	return spec, nil
}

// thumbnail asks the generator for a preview and gives up after the
// configured timeout. Failures leave the item without one.
func (p *Pipeline) thumbnail(ctx context.Context, path string) []byte {
	if p.thumbs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.ThumbnailTimeout)
	defer cancel()

	select {
	case r := <-thumbnail.Request(ctx, p.thumbs, path, p.opts.ThumbnailSize):
		if r.Err != nil {
			if errors.Is(r.Err, common.ErrUnsupportedType) {
				p.logger.Debug(ctx, "no preview for content", "file", filepath.Base(path))
			} else {
				p.logger.Warn(ctx, "thumbnail failed", "file", filepath.Base(path), "error", r.Err)
			}
			return nil
		}
		return r.Data
	case <-ctx.Done():
		p.logger.Warn(ctx, "thumbnail timed out", "file", filepath.Base(path))
		return nil
	}
}

func (p *Pipeline) metadata(ctx context.Context, rawURL string) (linkmeta.Metadata, bool) {
	if p.links == nil {
		return linkmeta.Metadata{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.MetadataTimeout)
	defer cancel()

	type fetched struct {
		meta linkmeta.Metadata
		err  error
	}
	out := make(chan fetched, 1)
	go func() {
		m, err := p.links.Fetch(ctx, rawURL)
		out <- fetched{m, err}
	}()

	select {
	case f := <-out:
		if f.err != nil {
			p.logger.Warn(ctx, "link metadata failed", "url", rawURL, "error", f.err)
			return linkmeta.Metadata{}, false
		}
		return f.meta, true
	case <-ctx.Done():
		p.logger.Warn(ctx, "link metadata timed out", "url", rawURL)
		return linkmeta.Metadata{}, false
	}
}

func (p *Pipeline) preview(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	thumb, err := thumbnail.Encode(img, p.opts.ThumbnailSize, 0)
	if err != nil {
		return nil
	}
	return thumb
}
