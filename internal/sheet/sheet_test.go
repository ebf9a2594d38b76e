package sheet

import (
	"bytes"
	"image"
	"strings"
	"testing"

	"github.com/kartenwerk/schallpappenspieler/internal/detect"
)

func TestEncodeQRRoundTrip(t *testing.T) {
	img, err := EncodeQR("New Order Blue Monday", 256)
	if err != nil {
		t.Fatalf("EncodeQR: %v", err)
	}

	obs := detect.NewZXingDetector(true).Detect(img)
	if len(obs) != 1 || obs[0].Text != "New Order Blue Monday" {
		t.Errorf("decoded %+v, want the encoded text back", obs)
	}
}

func TestEncodeQREmptyText(t *testing.T) {
	if _, err := EncodeQR("", 128); err == nil {
		t.Error("expected error for empty text")
	}
}

func testCover() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func TestRenderProducesPDF(t *testing.T) {
	items := []Item{
		{Code: "code-1", Title: "Blue Monday", Artist: "New Order", Cover: testCover()},
		{Code: "code-2", Title: "A Very Long Track Title That Will Not Fit On One Card Line", Artist: "Someone"},
	}

	var buf bytes.Buffer
	if err := Render(items, DefaultLayout(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "%PDF") {
		t.Errorf("output does not start with a PDF header: %q", buf.String()[:8])
	}
	if buf.Len() < 1000 {
		t.Errorf("pdf suspiciously small: %d bytes", buf.Len())
	}
}

func TestRenderPaginates(t *testing.T) {
	layout := DefaultLayout()
	perPage := layout.Columns * layout.Rows

	var items []Item
	for i := 0; i < perPage+1; i++ {
		items = append(items, Item{Code: "c", Title: "t", Artist: "a"})
	}

	var onePage, twoPages bytes.Buffer
	if err := Render(items[:perPage], layout, &onePage); err != nil {
		t.Fatal(err)
	}
	if err := Render(items, layout, &twoPages); err != nil {
		t.Fatal(err)
	}

	// A second page shows up as an extra /Page object.
	if c1, c2 := strings.Count(onePage.String(), "/Type /Page"), strings.Count(twoPages.String(), "/Type /Page"); c2 <= c1 {
		t.Errorf("page objects: %d for one page vs %d for two, want an increase", c1, c2)
	}
}

func TestRenderRejectsEmptyGrid(t *testing.T) {
	if err := Render(nil, Layout{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for empty grid")
	}
}

func TestFitBoxPreservesAspect(t *testing.T) {
	wide := image.NewRGBA(image.Rect(0, 0, 200, 100))
	x, y, w, h := fitBox(wide, 0, 0, 50, 50)
	if w != 50 || h != 25 {
		t.Errorf("fit = %vx%v, want 50x25", w, h)
	}
	if x != 0 || y != 12.5 {
		t.Errorf("origin = (%v, %v), want centred at (0, 12.5)", x, y)
	}

	degenerate := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, _, w, h := fitBox(degenerate, 0, 0, 50, 50); w != 0 || h != 0 {
		t.Errorf("degenerate image fit = %vx%v, want 0x0", w, h)
	}
}
