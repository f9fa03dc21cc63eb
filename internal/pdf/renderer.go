// Package pdf renders the final condition report document.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/lego3072/rentready-ai/internal/vision"
)

// PropertyInfo is the header block of a report.
type PropertyInfo struct {
	Address      string `json:"address"`
	Unit         string `json:"unit"`
	TenantName   string `json:"tenant_name"`
	LandlordName string `json:"landlord_name"`
}

// RoomSection is one room's slice of the report.
type RoomSection struct {
	Name       string
	PhotoPaths []string
	Assessment *vision.Assessment
}

// Input is everything the renderer needs for one document.
type Input struct {
	ReportID      string
	ReportType    string
	Date          time.Time
	Property      PropertyInfo
	Rooms         []RoomSection
	SignaturePath string
}

// Renderer writes report PDFs into a directory.
type Renderer struct {
	outDir string
}

// NewRenderer creates a renderer writing into outDir.
func NewRenderer(outDir string) *Renderer {
	return &Renderer{outDir: outDir}
}

type rgb struct{ r, g, b int }

var (
	colorDark     = rgb{26, 26, 46}
	colorGray     = rgb{102, 102, 102}
	colorMidGray  = rgb{85, 85, 85}
	colorMeta     = rgb{136, 136, 136}
	colorFlag     = rgb{220, 38, 38}
	colorFlagDark = rgb{153, 27, 27}

	ratingColors = map[string]rgb{
		"Good": {22, 163, 74},
		"Fair": {245, 158, 11},
		"Poor": {220, 38, 38},
		"N/A":  {156, 163, 175},
	}
)

func ratingColor(rating string) rgb {
	if c, ok := ratingColors[rating]; ok {
		return c
	}
	return ratingColors["N/A"]
}

// Render writes the report document and returns its path.
func (r *Renderer) Render(in Input) (string, error) {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}
	if in.ReportType == "" {
		in.ReportType = vision.ReportMoveIn
	}

	doc := fpdf.New("P", "mm", "Letter", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetMargins(19, 19, 19)
	doc.SetAutoPageBreak(true, 19)
	doc.AddPage()

	r.renderHeader(doc, tr, in)
	for _, room := range in.Rooms {
		r.renderRoom(doc, tr, room)
	}
	r.renderSignatures(doc, in)
	r.renderDisclaimer(doc, in)

	path := filepath.Join(r.outDir, in.ReportID+".pdf")
	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}

func setColor(doc *fpdf.Fpdf, c rgb) {
	doc.SetTextColor(c.r, c.g, c.b)
}

func (r *Renderer) renderHeader(doc *fpdf.Fpdf, tr func(string) string, in Input) {
	doc.SetFont("Helvetica", "B", 20)
	setColor(doc, colorDark)
	doc.CellFormat(0, 10, "Property Condition Report", "", 1, "L", false, 0, "")

	doc.SetFont("Helvetica", "", 11)
	setColor(doc, colorGray)
	doc.CellFormat(0, 6, fmt.Sprintf("Generated by condition-report.com - %s Inspection", in.ReportType), "", 1, "L", false, 0, "")
	doc.Ln(6)

	rows := [][2]string{}
	if in.Property.Address != "" {
		rows = append(rows, [2]string{"Property Address:", in.Property.Address})
	}
	if in.Property.Unit != "" {
		rows = append(rows, [2]string{"Unit:", in.Property.Unit})
	}
	if in.Property.TenantName != "" {
		rows = append(rows, [2]string{"Tenant Name:", in.Property.TenantName})
	}
	if in.Property.LandlordName != "" {
		rows = append(rows, [2]string{"Landlord/Manager:", in.Property.LandlordName})
	}
	rows = append(rows,
		[2]string{"Inspection Date:", in.Date.Format("January 2, 2006")},
		[2]string{"Report Type:", in.ReportType + " Inspection"},
	)

	doc.SetFontSize(10)
	for _, row := range rows {
		doc.SetFont("Helvetica", "B", 10)
		setColor(doc, colorMidGray)
		doc.CellFormat(46, 7, row[0], "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		setColor(doc, colorDark)
		doc.CellFormat(0, 7, tr(row[1]), "", 1, "L", false, 0, "")
	}
	doc.SetDrawColor(224, 224, 224)
	doc.Line(doc.GetX(), doc.GetY(), 197, doc.GetY())
	doc.Ln(8)
}

func (r *Renderer) renderRoom(doc *fpdf.Fpdf, tr func(string) string, room RoomSection) {
	a := room.Assessment
	if a == nil {
		a = &vision.Assessment{OverallRating: "N/A"}
	}

	doc.SetFont("Helvetica", "B", 14)
	setColor(doc, colorDark)
	doc.CellFormat(0, 9, tr(fmt.Sprintf("%s  -  Overall: %s", room.Name, a.OverallRating)), "", 1, "L", false, 0, "")
	doc.Ln(1)

	r.renderPhotos(doc, room.PhotoPaths)

	if a.Summary != "" {
		doc.SetFont("Helvetica", "B", 10)
		setColor(doc, colorDark)
		doc.MultiCell(0, 6, tr(a.Summary), "", "L", false)
		doc.Ln(2)
	}

	if len(a.Items) > 0 {
		r.renderItemTable(doc, tr, a.Items)
	}

	if len(a.Flags) > 0 {
		doc.Ln(2)
		doc.SetFont("Helvetica", "B", 9)
		setColor(doc, colorFlagDark)
		doc.CellFormat(0, 5, "Action Items / Issues:", "", 1, "L", false, 0, "")
		setColor(doc, colorFlag)
		for _, flag := range a.Flags {
			if flag == "" {
				continue
			}
			doc.MultiCell(0, 5, tr("- "+flag), "", "L", false)
		}
	}
	doc.Ln(5)
}

// renderPhotos draws up to three photos side by side, larger when fewer.
func (r *Renderer) renderPhotos(doc *fpdf.Fpdf, paths []string) {
	valid := make([]string, 0, 3)
	for _, p := range paths {
		if len(valid) == 3 {
			break
		}
		if _, err := os.Stat(p); err == nil {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return
	}

	var w, h float64
	switch len(valid) {
	case 1:
		w, h = 102, 76
	case 2:
		w, h = 71, 53
	default:
		w, h = 53, 41
	}

	if doc.GetY()+h > 240 {
		doc.AddPage()
	}
	x := doc.GetX()
	y := doc.GetY()
	for _, p := range valid {
		doc.ImageOptions(p, x, y, w, h, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
		x += w + 3
	}
	doc.SetY(y + h + 4)
}

func (r *Renderer) renderItemTable(doc *fpdf.Fpdf, tr func(string) string, items []vision.Item) {
	const (
		nameW   = 30
		ratingW = 18
		notesW  = 130
		lineH   = 5.0
	)

	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(243, 244, 246)
	doc.SetDrawColor(229, 231, 235)
	setColor(doc, rgb{51, 51, 51})
	doc.CellFormat(nameW, 7, "Item", "1", 0, "L", true, 0, "")
	doc.CellFormat(ratingW, 7, "Rating", "1", 0, "L", true, 0, "")
	doc.CellFormat(notesW, 7, "Condition Notes", "1", 1, "L", true, 0, "")

	for _, item := range items {
		doc.SetFont("Helvetica", "", 9)
		notesLines := doc.SplitText(tr(item.Notes), notesW-2)
		rowH := lineH * float64(maxInt(len(notesLines), 1))
		if doc.GetY()+rowH > 250 {
			doc.AddPage()
		}
		x, y := doc.GetX(), doc.GetY()

		doc.SetFont("Helvetica", "B", 9)
		setColor(doc, rgb{51, 51, 51})
		doc.Rect(x, y, nameW, rowH, "D")
		doc.CellFormat(nameW, lineH, tr(item.Name), "", 0, "L", false, 0, "")

		c := ratingColor(item.Rating)
		setColor(doc, c)
		doc.Rect(x+nameW, y, ratingW, rowH, "D")
		doc.SetX(x + nameW)
		doc.CellFormat(ratingW, lineH, item.Rating, "", 0, "L", false, 0, "")

		doc.SetFont("Helvetica", "", 9)
		setColor(doc, colorMidGray)
		doc.Rect(x+nameW+ratingW, y, notesW, rowH, "D")
		doc.SetXY(x+nameW+ratingW, y)
		doc.MultiCell(notesW, lineH, tr(item.Notes), "", "L", false)
		doc.SetXY(x, y+rowH)
	}
}

func (r *Renderer) renderSignatures(doc *fpdf.Fpdf, in Input) {
	if doc.GetY() > 210 {
		doc.AddPage()
	} else {
		doc.Ln(12)
	}
	doc.SetFont("Helvetica", "B", 14)
	setColor(doc, colorDark)
	doc.CellFormat(0, 9, "Signatures", "", 1, "L", false, 0, "")
	doc.Ln(2)

	signed := false
	if in.SignaturePath != "" {
		if _, err := os.Stat(in.SignaturePath); err == nil {
			signed = true
		}
	}

	doc.SetFont("Helvetica", "", 10)
	setColor(doc, rgb{51, 51, 51})
	if signed {
		doc.CellFormat(0, 6, "Inspector/Manager Signature:", "", 1, "L", false, 0, "")
		doc.ImageOptions(in.SignaturePath, doc.GetX(), doc.GetY(), 64, 20, false, fpdf.ImageOptions{ReadDpi: true}, 0, "")
		doc.SetY(doc.GetY() + 22)
		doc.SetFont("Helvetica", "", 9)
		setColor(doc, colorMeta)
		doc.CellFormat(0, 5, "Signed digitally on "+in.Date.Format("January 2, 2006 at 3:04 PM"), "", 1, "L", false, 0, "")
		doc.Ln(6)
		r.signatureLine(doc, "Tenant:")
	} else {
		r.signatureLine(doc, "Landlord/Manager:")
		doc.Ln(6)
		r.signatureLine(doc, "Tenant:")
	}
}

func (r *Renderer) signatureLine(doc *fpdf.Fpdf, label string) {
	doc.SetFont("Helvetica", "", 10)
	setColor(doc, rgb{51, 51, 51})
	doc.CellFormat(38, 8, label, "", 0, "L", false, 0, "")
	doc.CellFormat(81, 8, strings.Repeat("_", 36), "", 0, "L", false, 0, "")
	doc.CellFormat(0, 8, "Date: "+strings.Repeat("_", 15), "", 1, "L", false, 0, "")
}

func (r *Renderer) renderDisclaimer(doc *fpdf.Fpdf, in Input) {
	doc.Ln(8)
	doc.SetFont("Helvetica", "", 8)
	setColor(doc, rgb{153, 153, 153})
	doc.MultiCell(0, 4.5, fmt.Sprintf(
		"DISCLAIMER: This condition report was generated on %s using AI-assisted analysis via "+
			"condition-report.com. Photo analysis is based on visible conditions only and does not "+
			"constitute a professional building inspection. Hidden defects, structural issues, and "+
			"mechanical systems not visible in photographs are not assessed. Both parties should review "+
			"this report together, note any discrepancies, and sign to acknowledge the documented "+
			"condition. This report may be used as evidence in security deposit disputes.",
		in.Date.Format("January 2, 2006 at 3:04 PM")), "", "L", false)
	doc.Ln(3)
	doc.SetFont("Helvetica", "", 9)
	setColor(doc, colorMeta)
	doc.CellFormat(0, 5, fmt.Sprintf("Report ID: %s | condition-report.com", in.ReportID), "", 1, "L", false, 0, "")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
