package export

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"mailferry/internal/model"
)

func pngAttachment(t *testing.T, id string) model.Attachment {
	t.Helper()
	// Deterministic noise: PNG stores it poorly, so the JPEG re-encode is
	// reliably smaller.
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return model.Attachment{ID: id, Name: id + ".png", ContentType: "image/png", Data: buf.Bytes()}
}

func TestImagePoolRecompresses(t *testing.T) {
	pool := &ImagePool{Workers: 2, Quality: 60}
	atts := []model.Attachment{
		pngAttachment(t, "a1"),
		{ID: "a2", Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")},
		{ID: "a3", Name: "broken.png", ContentType: "image/png", Data: []byte("not an image")},
	}
	orig := len(atts[0].Data)

	pool.Recompress(context.Background(), atts)

	if atts[0].ContentType != "image/jpeg" {
		t.Errorf("a1 content type = %q, want image/jpeg", atts[0].ContentType)
	}
	if atts[0].Name != "a1.jpg" {
		t.Errorf("a1 name = %q, want a1.jpg", atts[0].Name)
	}
	if len(atts[0].Data) >= orig {
		t.Errorf("a1 not smaller: %d -> %d", orig, len(atts[0].Data))
	}
	if atts[1].ContentType != "text/plain" || string(atts[1].Data) != "hello" {
		t.Error("non-image attachment was touched")
	}
	if atts[2].ContentType != "image/png" || string(atts[2].Data) != "not an image" {
		t.Error("undecodable attachment was not kept verbatim")
	}
}

func TestImagePoolNilReceiver(t *testing.T) {
	var pool *ImagePool
	atts := []model.Attachment{{ID: "a", ContentType: "image/png", Data: []byte("x")}}
	pool.Recompress(context.Background(), atts) // must not panic
	if string(atts[0].Data) != "x" {
		t.Error("nil pool mutated attachments")
	}
}
