package export

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"mailferry/internal/model"

	// Decoders for the image formats remote mailboxes commonly carry.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImagePool recompresses image attachments to JPEG with a bounded number of
// workers. Fetching stays sequential; only this CPU-bound step fans out.
// Completions land in any order and are written back into the slice under a
// single mutex.
type ImagePool struct {
	Workers int
	Quality int
}

// Recompress rewrites decodable image attachments in place. A decode or
// encode failure keeps the original bytes; the pool never fails an item.
func (p *ImagePool) Recompress(ctx context.Context, atts []model.Attachment) {
	if p == nil || len(atts) == 0 {
		return
	}
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	quality := p.Quality
	if quality < 1 || quality > 100 {
		quality = 80
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range atts {
		if !isImageType(atts[i].ContentType) {
			continue
		}
		data := atts[i].Data
		idx := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			out, ok := recompressJPEG(data, quality)
			if !ok {
				return nil
			}
			mu.Lock()
			atts[idx].Data = out
			atts[idx].ContentType = "image/jpeg"
			atts[idx].Name = jpegName(atts[idx].Name)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

func isImageType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/")
}

func recompressJPEG(data []byte, quality int) ([]byte, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, false
	}
	// Keep the original when recompression would grow the attachment.
	if buf.Len() >= len(data) {
		return nil, false
	}
	return buf.Bytes(), true
}

func jpegName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i] + ".jpg"
	}
	return name + ".jpg"
}
