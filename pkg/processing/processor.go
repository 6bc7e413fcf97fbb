package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/wallpaper-planner/pkg/types"
)

// Processor handles image decoding, preparation for the model services, and
// preview/overlay output.
type Processor struct{}

// NewProcessor creates a new image processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadInlineImage reads an image file into an InlineImage, sniffing the media
// type from the payload.
func (p *Processor) LoadInlineImage(path string) (types.InlineImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.InlineImage{}, fmt.Errorf("failed to read image file: %w", err)
	}
	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return types.InlineImage{}, fmt.Errorf("%s is not an image (detected %s)", path, mediaType)
	}
	return types.InlineImage{Data: data, MediaType: mediaType}, nil
}

// LoadInlineImageFromURL downloads an image into an InlineImage.
func (p *Processor) LoadInlineImageFromURL(imageURL string) (types.InlineImage, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return types.InlineImage{}, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return types.InlineImage{}, fmt.Errorf("unsupported URL scheme: %s", parsedURL.Scheme)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest("GET", imageURL, nil)
	if err != nil {
		return types.InlineImage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Wallpaper-Planner/1.0 (+https://github.com/menta2k/wallpaper-planner)")

	resp, err := client.Do(req)
	if err != nil {
		return types.InlineImage{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.InlineImage{}, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return types.InlineImage{}, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.InlineImage{}, fmt.Errorf("failed to read image data: %w", err)
	}
	return types.InlineImage{Data: data, MediaType: contentType}, nil
}

// LoadInlineImageSmart loads an image from either a file path or URL.
func (p *Processor) LoadInlineImageSmart(source string) (types.InlineImage, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadInlineImageFromURL(source)
	}
	return p.LoadInlineImage(source)
}

// Decode decodes an InlineImage payload with WebP support.
func (p *Processor) Decode(img types.InlineImage) (image.Image, error) {
	if decoded, _, err := image.Decode(bytes.NewReader(img.Data)); err == nil {
		return decoded, nil
	}
	if decoded, err := webp.Decode(bytes.NewReader(img.Data)); err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format (%s)", img.MediaType)
}

// PrepareForModel downscales an image so its long side does not exceed maxDim
// and re-encodes it as JPEG at the given quality, keeping service payloads
// small. maxDim 0 keeps the original size.
func (p *Processor) PrepareForModel(img types.InlineImage, maxDim, quality int) (types.InlineImage, error) {
	decoded, err := p.Decode(img)
	if err != nil {
		return types.InlineImage{}, err
	}

	if maxDim > 0 {
		b := decoded.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				decoded = imaging.Resize(decoded, maxDim, 0, imaging.Lanczos)
			} else {
				decoded = imaging.Resize(decoded, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: quality}); err != nil {
		return types.InlineImage{}, fmt.Errorf("failed to encode image: %w", err)
	}
	return types.InlineImage{Data: buf.Bytes(), MediaType: "image/jpeg"}, nil
}

// RegionOverlay draws the committed boxes over the room photo for inspection.
func (p *Processor) RegionOverlay(room types.InlineImage, boxes []types.Box) (image.Image, error) {
	decoded, err := p.Decode(room)
	if err != nil {
		return nil, err
	}

	nrgba := imaging.Clone(decoded)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h))))
	for _, b := range boxes {
		drawBox(nrgba, b, w, h, green, stroke)
	}
	return nrgba, nil
}

// SaveImage saves a decoded image with the specified format and quality.
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// SaveInline writes an InlineImage payload to disk as-is.
func (p *Processor) SaveInline(img types.InlineImage, path string) error {
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	return nil
}

// EncodePNG encodes a decoded image back into an InlineImage.
func (p *Processor) EncodePNG(img image.Image) (types.InlineImage, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return types.InlineImage{}, fmt.Errorf("failed to encode png: %w", err)
	}
	return types.InlineImage{Data: buf.Bytes(), MediaType: "image/png"}, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// boxToPixels converts a percent-coordinate box to pixel corners.
func boxToPixels(b types.Box, w, h int) (int, int, int, int) {
	corners := b.Corners()
	x0 := int(clamp(corners[0].X/100, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(corners[0].Y/100, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(corners[2].X/100, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(corners[2].Y/100, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

func drawBox(img *image.NRGBA, b types.Box, w, h int, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := boxToPixels(b, w, h)
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
