package service

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/jjenkins/countries/internal/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	SummaryImageWidth  = 900
	SummaryImageHeight = 500

	topGDPLimit = 5
	textMargin  = 30
	lineSpacing = 26
)

var textColor = color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}

// Summary is the aggregate state drawn on the summary image
type Summary struct {
	TotalCountries  int
	LastRefreshedAt string
	TopByGDP        []model.GDPEntry
}

// SummaryRenderer draws the summary PNG
type SummaryRenderer struct {
	// font faces keep internal buffers and cannot be shared between goroutines
	mu      sync.Mutex
	title   font.Face
	body    font.Face
	heading font.Face
	rows    font.Face
}

// NewSummaryRenderer loads the embedded Go Regular font at the sizes used by the layout
func NewSummaryRenderer() (*SummaryRenderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	newFace := func(size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	}

	r := &SummaryRenderer{}
	for _, fs := range []struct {
		dst  *font.Face
		size float64
	}{
		{&r.title, 28},
		{&r.body, 16},
		{&r.heading, 18},
		{&r.rows, 14},
	} {
		face, err := newFace(fs.size)
		if err != nil {
			return nil, fmt.Errorf("failed to create %.0fpt font face: %w", fs.size, err)
		}
		*fs.dst = face
	}

	return r, nil
}

// Render reads the summary from view and writes it as a PNG to outputPath,
// creating parent directories and replacing any existing file.
func (r *SummaryRenderer) Render(ctx context.Context, view SummaryView, outputPath string) error {
	summary, err := LoadSummary(ctx, view)
	if err != nil {
		return err
	}

	img := r.Draw(summary)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode summary image: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write summary image: %w", err)
	}

	return nil
}

// LoadSummary gathers the country count, top five by estimated GDP and the last refresh time
func LoadSummary(ctx context.Context, view SummaryView) (*Summary, error) {
	total, err := view.CountCountries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count countries: %w", err)
	}

	top, err := view.TopByEstimatedGDP(ctx, topGDPLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load gdp ranking: %w", err)
	}

	lastRefreshed, ok, err := view.GetMetadata(ctx, model.LastRefreshedAtKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load last refresh time: %w", err)
	}
	if !ok {
		lastRefreshed = "N/A"
	}

	return &Summary{
		TotalCountries:  total,
		LastRefreshedAt: lastRefreshed,
		TopByGDP:        top,
	}, nil
}

// Draw lays out the summary on a fixed-size white canvas
func (r *SummaryRenderer) Draw(s *Summary) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, SummaryImageWidth, SummaryImageHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	ink := image.NewUniform(textColor)
	text := func(face font.Face, y int, s string) {
		d := &font.Drawer{Dst: img, Src: ink, Face: face, Dot: fixed.P(textMargin, y)}
		d.DrawString(s)
	}

	y := 50
	text(r.title, y, "Country Summary")
	y += 40
	text(r.body, y, fmt.Sprintf("Total countries: %d", s.TotalCountries))
	y += 30
	text(r.body, y, fmt.Sprintf("Last refresh: %s", s.LastRefreshedAt))
	y += 50
	text(r.heading, y, "Top 5 by Estimated GDP")
	y += 30

	if len(s.TopByGDP) == 0 {
		text(r.rows, y, "No data available")
		return img
	}

	for i, entry := range s.TopByGDP {
		text(r.rows, y+i*lineSpacing, fmt.Sprintf("%d. %s — %s", i+1, entry.Name, FormatGDP(entry.EstimatedGDP)))
	}

	return img
}

// FormatGDP renders v with thousands separators and at most two fraction digits
func FormatGDP(v float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}
