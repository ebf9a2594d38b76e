// Command cardsheet renders the card library into a printable PDF of
// QR-coded track cards, optionally decorated with cover art from Discogs.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/kartenwerk/schallpappenspieler/internal/catalog"
	"github.com/kartenwerk/schallpappenspieler/internal/covers"
	"github.com/kartenwerk/schallpappenspieler/internal/sheet"
)

const userAgent = "schallpappenspieler/1.0"

var (
	dbPath       = flag.String("db", "spieler.db", "Path to the catalog database")
	outPath      = flag.String("out", "cards.pdf", "Output PDF path")
	discogsToken = flag.String("discogs-token", "", "Discogs token for cover art lookup (optional)")
	coversDir    = flag.String("covers-dir", "", "Directory caching downloaded cover art (optional)")
	columns      = flag.Int("columns", 0, "Override card columns per page")
	rows         = flag.Int("rows", 0, "Override card rows per page")
	noCutMarks   = flag.Bool("no-cut-marks", false, "Omit the card outline cut marks")
)

func main() {
	flag.Parse()

	cat, err := catalog.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer cat.Close()

	cards, err := cat.ListCards()
	if err != nil {
		log.Fatalf("Failed to list cards: %v", err)
	}
	if len(cards) == 0 {
		log.Fatalf("Catalog %s has no cards; add some via the admin API first", *dbPath)
	}

	var client *covers.Client
	if *discogsToken != "" {
		client = covers.NewClient(*discogsToken, userAgent)
	}

	items := make([]sheet.Item, 0, len(cards))
	for _, card := range cards {
		items = append(items, sheet.Item{
			Code:   card.Code,
			Title:  card.Title,
			Artist: card.Artist,
			Cover:  loadCover(card, client),
		})
	}

	layout := sheet.DefaultLayout()
	if *columns > 0 {
		layout.Columns = *columns
	}
	if *rows > 0 {
		layout.Rows = *rows
	}
	layout.CutMarks = !*noCutMarks

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *outPath, err)
	}
	defer out.Close()

	if err := sheet.Render(items, layout, out); err != nil {
		log.Fatalf("Failed to render sheet: %v", err)
	}
	log.Printf("Wrote %d cards to %s", len(items), *outPath)
}

// loadCover finds cover art for a card: a local file when the catalog has
// one, a Discogs lookup otherwise. Missing art is not an error, the card
// just prints without it.
func loadCover(card catalog.Card, client *covers.Client) image.Image {
	if card.CoverPath != "" {
		data, err := os.ReadFile(card.CoverPath)
		if err != nil {
			log.Printf("Cover file for %q: %v", card.Code, err)
		} else if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
			return img
		} else {
			log.Printf("Cover file for %q does not decode: %v", card.Code, err)
		}
	}

	cachePath := ""
	if *coversDir != "" {
		cachePath = filepath.Join(*coversDir, fmt.Sprintf("%x.img", sha256.Sum256([]byte(card.Code))))
		if data, err := os.ReadFile(cachePath); err == nil {
			if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
				return img
			}
		}
	}

	if client == nil {
		return nil
	}

	ctx := context.Background()
	url, err := client.SearchCover(ctx, card.Title, card.Artist)
	if err != nil {
		if !errors.Is(err, covers.ErrNoResults) {
			log.Printf("Cover search for %q: %v", card.Code, err)
		}
		return nil
	}
	client.WaitIfLimited()

	data, err := client.FetchImage(ctx, url)
	if err != nil {
		log.Printf("Cover download for %q: %v", card.Code, err)
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("Cover for %q does not decode: %v", card.Code, err)
		return nil
	}

	if cachePath != "" {
		if err := os.MkdirAll(*coversDir, 0o755); err == nil {
			if err := os.WriteFile(cachePath, data, 0o644); err != nil {
				log.Printf("Cover cache write for %q: %v", card.Code, err)
			}
		}
	}
	return img
}
