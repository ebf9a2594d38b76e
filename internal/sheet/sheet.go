// Package sheet renders printable card sheets: a grid of QR-coded track
// cards, optionally decorated with cover art, for cutting out and playing.
package sheet

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"codeberg.org/go-pdf/fpdf"
)

// Item is one card on the sheet. Code is the text encoded in the QR symbol;
// Title and Artist are printed below it. Cover is optional.
type Item struct {
	Code   string
	Title  string
	Artist string
	Cover  image.Image
}

// Layout describes the card grid. All measurements are millimetres on an A4
// portrait page.
type Layout struct {
	Columns    int
	Rows       int
	Margin     float64 // page margin
	CardWidth  float64
	CardHeight float64
	QRSize     float64 // edge length of the QR symbol inside a card
	CutMarks   bool
}

// DefaultLayout returns a 3x4 grid of 60x65mm cards.
func DefaultLayout() Layout {
	return Layout{
		Columns:    3,
		Rows:       4,
		Margin:     12,
		CardWidth:  60,
		CardHeight: 65,
		QRSize:     38,
		CutMarks:   true,
	}
}

const qrPixels = 256 // rasterization size; the PDF scales it to QRSize

// Render writes a PDF containing all items laid out on as many pages as
// needed.
func Render(items []Item, layout Layout, w io.Writer) error {
	if layout.Columns <= 0 || layout.Rows <= 0 {
		return fmt.Errorf("layout grid %dx%d is empty", layout.Columns, layout.Rows)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	perPage := layout.Columns * layout.Rows
	for i, item := range items {
		slot := i % perPage
		if slot == 0 {
			pdf.AddPage()
		}

		col := slot % layout.Columns
		row := slot / layout.Columns
		x := layout.Margin + float64(col)*layout.CardWidth
		y := layout.Margin + float64(row)*layout.CardHeight

		if err := drawCard(pdf, item, x, y, layout, i); err != nil {
			return err
		}
		if layout.CutMarks {
			pdf.SetDrawColor(180, 180, 180)
			pdf.Rect(x, y, layout.CardWidth, layout.CardHeight, "D")
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawCard(pdf *fpdf.Fpdf, item Item, x, y float64, layout Layout, index int) error {
	qrImg, err := EncodeQR(item.Code, qrPixels)
	if err != nil {
		return err
	}

	qrX := x + (layout.CardWidth-layout.QRSize)/2
	qrY := y + 4
	if err := placeImage(pdf, fmt.Sprintf("qr-%d", index), qrImg,
		qrX, qrY, layout.QRSize, layout.QRSize); err != nil {
		return err
	}

	textTop := qrY + layout.QRSize + 2
	if item.Cover != nil {
		coverSize := layout.CardHeight - (textTop - y) - 12
		if coverSize > 0 {
			cx, cy, cw, ch := fitBox(item.Cover, x+(layout.CardWidth-coverSize)/2, textTop, coverSize, coverSize)
			if err := placeImage(pdf, fmt.Sprintf("cover-%d", index), item.Cover, cx, cy, cw, ch); err != nil {
				return err
			}
			textTop += coverSize + 1
		}
	}

	maxWidth := layout.CardWidth - 6
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(x+3, textTop)
	pdf.CellFormat(maxWidth, 4.2, truncate(pdf, item.Title, maxWidth), "", 2, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(maxWidth, 3.8, truncate(pdf, item.Artist, maxWidth), "", 2, "C", false, 0, "")
	return nil
}

// placeImage registers img under name and draws it at the given box.
func placeImage(pdf *fpdf.Fpdf, name string, img image.Image, x, y, w, h float64) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, &buf)
	pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if pdf.Err() {
		return fmt.Errorf("draw %s: %w", name, pdf.Error())
	}
	return nil
}

// fitBox scales img to fit inside the box while preserving aspect ratio,
// centring the result.
func fitBox(img image.Image, x, y, w, h float64) (float64, float64, float64, float64) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return x, y, 0, 0
	}
	scale := w / float64(b.Dx())
	if s := h / float64(b.Dy()); s < scale {
		scale = s
	}
	drawW := float64(b.Dx()) * scale
	drawH := float64(b.Dy()) * scale
	return x + (w-drawW)/2, y + (h-drawH)/2, drawW, drawH
}

// truncate shortens text with an ellipsis so it fits maxWidth at the current
// font.
func truncate(pdf *fpdf.Fpdf, text string, maxWidth float64) string {
	if text == "" || pdf.GetStringWidth(text) <= maxWidth {
		return text
	}
	const ellipsis = "..."
	if pdf.GetStringWidth(ellipsis) > maxWidth {
		return ""
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+ellipsis) > maxWidth {
		runes = runes[:len(runes)-1]
	}
	if len(runes) == 0 {
		return ellipsis
	}
	return string(runes) + ellipsis
}
