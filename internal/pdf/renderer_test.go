package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lego3072/rentready-ai/internal/vision"
)

func writeTestPhoto(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(5, 5, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	return path
}

func sampleInput(t *testing.T, photoDir string) Input {
	return Input{
		ReportID:   "rpt-test-1",
		ReportType: vision.ReportMoveIn,
		Date:       time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Property: PropertyInfo{
			Address:      "12 Test Lane",
			Unit:         "2B",
			TenantName:   "T. Tenant",
			LandlordName: "L. Landlord",
		},
		Rooms: []RoomSection{
			{
				Name:       "Kitchen",
				PhotoPaths: []string{writeTestPhoto(t, photoDir, "kitchen.png")},
				Assessment: &vision.Assessment{
					OverallRating: "Good",
					Summary:       "Kitchen is clean and functional.",
					Items: []vision.Item{
						{Name: "Walls", Rating: "Good", Notes: "Fresh paint, no marks"},
						{Name: "Flooring", Rating: "Fair", Notes: "Light wear near the doorway, otherwise fine"},
					},
					Flags: []string{"Dripping faucet needs a washer"},
				},
			},
			{
				Name: "Bedroom",
				Assessment: &vision.Assessment{
					OverallRating: "N/A",
					Summary:       "Analysis could not be completed.",
				},
			},
		},
	}
}

func TestRenderProducesPDF(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(filepath.Join(dir, "reports"))

	path, err := r.Render(sampleInput(t, dir))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if filepath.Base(path) != "rpt-test-1.pdf" {
		t.Fatalf("path=%q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF (starts %q)", data[:8])
	}
	if len(data) < 2000 {
		t.Fatalf("pdf suspiciously small: %d bytes", len(data))
	}
}

func TestRenderSurvivesMissingPhotosAndNilAssessment(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir)

	in := Input{
		ReportID: "rpt-degraded",
		Rooms: []RoomSection{
			{Name: "Hallway", PhotoPaths: []string{filepath.Join(dir, "gone.png")}},
		},
	}
	path, err := r.Render(in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestRenderManyRoomsPaginates(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir)

	in := Input{ReportID: "rpt-long", ReportType: vision.ReportMoveOut}
	for i := 0; i < 12; i++ {
		in.Rooms = append(in.Rooms, RoomSection{
			Name: "Room",
			Assessment: &vision.Assessment{
				OverallRating: "Good",
				Summary:       "Fine.",
				Items: []vision.Item{
					{Name: "Walls", Rating: "Good", Notes: "ok"},
					{Name: "Ceiling", Rating: "Good", Notes: "ok"},
					{Name: "Flooring", Rating: "Good", Notes: "ok"},
				},
			},
		})
	}
	path, err := r.Render(in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	data, _ := os.ReadFile(path)
	if len(data) == 0 {
		t.Fatalf("empty pdf")
	}
}
