package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image/color"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
	"github.com/yungbote/coursetree-backend/internal/platform/gcp"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

const (
	coverWidth  = 1200
	coverHeight = 630
	coverMargin = 72
)

var coverPalette = []color.NRGBA{
	{R: 0x1F, G: 0x3A, B: 0x5F, A: 0xFF},
	{R: 0x2E, G: 0x5E, B: 0x4E, A: 0xFF},
	{R: 0x6B, G: 0x2D, B: 0x5C, A: 0xFF},
	{R: 0x8C, G: 0x3B, B: 0x1E, A: 0xFF},
	{R: 0x3D, G: 0x40, B: 0x8C, A: 0xFF},
	{R: 0x24, G: 0x57, B: 0x6E, A: 0xFF},
}

type CoverService interface {
	Render(ctx context.Context, b *tree.Book) ([]byte, error)
	// Upload renders the cover and stores it next to the book export. Returns "" when exports are disabled.
	Upload(ctx context.Context, b *tree.Book) (string, error)
}

type coverService struct {
	log    *logger.Logger
	bucket gcp.BucketService
	title  font.Face
	body   font.Face
}

func NewCoverService(log *logger.Logger, bucket gcp.BucketService) (CoverService, error) {
	title, err := loadFontFace(gobold.TTF, 64)
	if err != nil {
		return nil, fmt.Errorf("could not load cover title font: %w", err)
	}
	body, err := loadFontFace(goregular.TTF, 30)
	if err != nil {
		return nil, fmt.Errorf("could not load cover body font: %w", err)
	}
	return &coverService{
		log:    log.With("service", "CoverService"),
		bucket: bucket,
		title:  title,
		body:   body,
	}, nil
}

func (cs *coverService) Render(ctx context.Context, b *tree.Book) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("book required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dc := gg.NewContext(coverWidth, coverHeight)
	dc.SetColor(coverColor(b.ID))
	dc.DrawRectangle(0, 0, coverWidth, coverHeight)
	dc.Fill()

	// Accent band.
	dc.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0x22})
	dc.DrawRectangle(0, coverHeight-120, coverWidth, 120)
	dc.Fill()

	textWidth := float64(coverWidth - 2*coverMargin)
	dc.SetColor(color.White)
	dc.SetFontFace(cs.title)
	dc.DrawStringWrapped(strings.TrimSpace(b.Title), coverMargin, coverMargin, 0, 0, textWidth, 1.25, gg.AlignLeft)

	dc.SetFontFace(cs.body)
	dc.SetColor(color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xDD})
	if desc := truncateRunes(strings.TrimSpace(b.Description), 180); desc != "" {
		dc.DrawStringWrapped(desc, coverMargin, coverHeight/2, 0, 0, textWidth, 1.4, gg.AlignLeft)
	}
	dc.SetColor(color.White)
	dc.DrawStringAnchored(coverFooter(b), coverMargin, coverHeight-60, 0, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func (cs *coverService) Upload(ctx context.Context, b *tree.Book) (string, error) {
	if cs.bucket == nil {
		return "", nil
	}
	png, err := cs.Render(ctx, b)
	if err != nil {
		return "", err
	}
	key := cs.bucket.ObjectKey(gcp.BucketCategoryCover, b.ID)
	url, err := gcp.UploadBytes(ctx, cs.bucket, gcp.BucketCategoryCover, key, png)
	if err != nil {
		return "", fmt.Errorf("failed to upload cover: %w", err)
	}
	return url, nil
}

// coverFooter reads level counts out of the rendered book content, e.g. "Subject · 4 modules · 12 lessons".
func coverFooter(b *tree.Book) string {
	parts := []string{levelLabel(b.EntryLevel)}
	var doc map[string]any
	if len(b.Content) > 0 && json.Unmarshal(b.Content, &doc) == nil {
		counts := map[string]int{}
		countDocument(doc, counts)
		for _, l := range []tree.Level{tree.LevelCurriculum, tree.LevelSubject, tree.LevelModule, tree.LevelLesson, tree.LevelTopic} {
			if n := counts[l.Plural()]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, l.Plural()))
			}
		}
	}
	return strings.Join(parts, " · ")
}

func countDocument(doc map[string]any, counts map[string]int) {
	for k, v := range doc {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		counts[k] += len(list)
		for _, item := range list {
			if child, ok := item.(map[string]any); ok {
				countDocument(child, counts)
			}
		}
	}
}

func levelLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Course"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func coverColor(id string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return coverPalette[int(h.Sum32()%uint32(len(coverPalette)))]
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func loadFontFace(ttf []byte, size float64) (font.Face, error) {
	parsed, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
