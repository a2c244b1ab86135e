package ingest

import (
	"context"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/boardkeeper/internal/common"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
)

const maxURLBytes = 8 << 10

// providerSpec negotiates a representation: a web link, then UTF-8 text,
// then the first non-excluded type materialized as a temporary file.
func (p *Pipeline) providerSpec(ctx context.Context, in Input) (models.ItemSpec, error) {
	prov := in.Provider
	if prov == nil {
		return models.ItemSpec{}, common.Wrapf(common.ErrDataValidation, "no provider")
	}
	types := prov.Types()
	limit := in.Origin.Limit()

	if slices.Contains(types, TypeURL) {
		raw, err := p.load(ctx, prov, TypeURL, maxURLBytes)
		if err != nil {
			return models.ItemSpec{}, err
		}
		u, err := url.Parse(strings.TrimSpace(string(raw)))
		if err == nil {
			switch u.Scheme {
			case "http", "https":
				return p.linkSpec(ctx, u.String(), in.Name)
			case "file":
				return p.fileSpec(ctx, u.Path, in.Name, limit)
			}
		}
	}
	if slices.Contains(types, TypeFileURL) {
		raw, err := p.load(ctx, prov, TypeFileURL, maxURLBytes)
		if err != nil {
			return models.ItemSpec{}, err
		}
		if u, err := url.Parse(strings.TrimSpace(string(raw))); err == nil && u.Scheme == "file" {
			return p.fileSpec(ctx, u.Path, in.Name, limit)
		}
	}

	for _, t := range []string{TypeUTF8PlainText, TypePlainText} {
		if !slices.Contains(types, t) {
			continue
		}
		raw, err := p.load(ctx, prov, t, limit)
		if err != nil {
			return models.ItemSpec{}, err
		}
		if utf8.Valid(raw) {
			return p.noteSpec(string(raw), in.Name, limit)
		}
	}

	for _, t := range types {
		if excludedTypes[t] || t == TypeURL || t == TypeFileURL {
			continue
		}
		name := in.Name
		if name == "" {
			name = prov.SuggestedName()
		}
		return p.materialize(ctx, prov, t, name, limit)
	}
	return models.ItemSpec{}, common.Wrapf(common.ErrUnsupportedType, "no usable type in %v", types)
}

func (p *Pipeline) load(ctx context.Context, prov Provider, typeID string, limit int64) ([]byte, error) {
	rc, err := prov.Open(ctx, typeID)
	if err != nil {
		return nil, common.Wrap(common.ErrInaccessibleResource, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, common.Wrap(common.ErrDataValidation, err)
	}
	if int64(len(data)) > limit {
		return nil, common.Wrapf(common.ErrDataValidation, "%s representation exceeds limit %d", typeID, limit)
	}
	return data, nil
}

// materialize copies the representation to a temporary file and imports it
// through the file path. The temporary file is removed afterwards.
func (p *Pipeline) materialize(ctx context.Context, prov Provider, typeID, name string, limit int64) (models.ItemSpec, error) {
	rc, err := prov.Open(ctx, typeID)
	if err != nil {
		return models.ItemSpec{}, common.Wrap(common.ErrInaccessibleResource, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(p.opts.TempDir, "ingest-*")
	if err != nil {
		return models.ItemSpec{}, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(rc, limit+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return models.ItemSpec{}, common.Wrap(common.ErrDataValidation, err)
	}
	if n > limit {
		return models.ItemSpec{}, common.Wrapf(common.ErrDataValidation, "%s representation exceeds limit %d", typeID, limit)
	}

	if name == "" {
		name = p.autoName("Item")
	}
	return p.fileSpec(ctx, tmp.Name(), name, limit)
}
