// Package report orchestrates the full report lifecycle: photo intake, room
// analysis, PDF rendering, persistence, sharing, and email delivery.
package report

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lego3072/rentready-ai/internal/email"
	"github.com/lego3072/rentready-ai/internal/entitlement"
	svcerr "github.com/lego3072/rentready-ai/internal/errors"
	"github.com/lego3072/rentready-ai/internal/metrics"
	"github.com/lego3072/rentready-ai/internal/pdf"
	"github.com/lego3072/rentready-ai/internal/store"
	"github.com/lego3072/rentready-ai/internal/vision"
)

const shareTokenTTL = 7 * 24 * time.Hour

// Service ties the entitlement ledger, the analyzer, and the renderer into
// the report pipeline.
type Service struct {
	store      *store.Store
	ledger     *entitlement.Ledger
	analyzer   vision.RoomAnalyzer
	renderer   *pdf.Renderer
	sender     email.Sender
	emailFrom  string
	uploadsDir string
	reportsDir string
	baseURL    string
}

// New creates the report service.
func New(st *store.Store, ledger *entitlement.Ledger, analyzer vision.RoomAnalyzer, renderer *pdf.Renderer, sender email.Sender, emailFrom, uploadsDir, reportsDir, baseURL string) *Service {
	return &Service{
		store:      st,
		ledger:     ledger,
		analyzer:   analyzer,
		renderer:   renderer,
		sender:     sender,
		emailFrom:  emailFrom,
		uploadsDir: uploadsDir,
		reportsDir: reportsDir,
		baseURL:    baseURL,
	}
}

// UploadPhoto is one photo handed to SaveUploads.
type UploadPhoto struct {
	Filename string
	Data     []byte
}

// UploadRoom groups the photos of one room.
type UploadRoom struct {
	Name   string
	Photos []UploadPhoto
}

// SavedPhoto describes a photo written to the uploads directory.
type SavedPhoto struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
}

// SavedRoom is the upload result for one room.
type SavedRoom struct {
	RoomName string       `json:"room_name"`
	Photos   []SavedPhoto `json:"photos"`
}

// UploadResult is returned by SaveUploads.
type UploadResult struct {
	SessionID   string      `json:"session_id"`
	Rooms       []SavedRoom `json:"rooms"`
	TotalPhotos int         `json:"total_photos"`
}

// SaveUploads writes photos to disk grouped by room. Uploads are gated on
// the same entitlement check as analysis so a maxed-out user cannot fill the
// disk first.
func (s *Service) SaveUploads(ctx context.Context, fingerprint string, rooms []UploadRoom) (*UploadResult, error) {
	const op = "report.SaveUploads"

	decision := entitlement.CheckAccess(s.ledger.GetOrCreate(ctx, fingerprint))
	if !decision.Allowed {
		metrics.AccessDeniedTotal.Inc()
		return nil, svcerr.New(svcerr.KindPaymentRequired, op, fmt.Errorf("report limit reached"))
	}

	total := 0
	for _, room := range rooms {
		total += len(room.Photos)
	}
	if total == 0 {
		return nil, svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("no photos uploaded"))
	}

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}

	sessionID := uuid.NewString()[:8]
	result := &UploadResult{SessionID: sessionID}
	idx := 0
	for _, room := range rooms {
		saved := SavedRoom{RoomName: room.Name, Photos: []SavedPhoto{}}
		for _, photo := range room.Photos {
			ext := filepath.Ext(photo.Filename)
			if ext == "" {
				ext = ".jpg"
			}
			name := fmt.Sprintf("%s_%s_%d%s", sessionID, strings.ReplaceAll(room.Name, " ", "_"), idx, ext)
			path := filepath.Join(s.uploadsDir, name)
			if err := os.WriteFile(path, photo.Data, 0o644); err != nil {
				return nil, svcerr.Unavailable(op, err)
			}
			saved.Photos = append(saved.Photos, SavedPhoto{Filename: name, Path: path, Size: len(photo.Data)})
			idx++
		}
		result.Rooms = append(result.Rooms, saved)
	}
	result.TotalPhotos = idx
	return result, nil
}

// AnalyzeRoomInput names a room and the saved photo paths to assess.
type AnalyzeRoomInput struct {
	RoomName   string   `json:"room_name"`
	PhotoPaths []string `json:"photo_paths"`
}

// AnalyzeRequest is the input to Analyze.
type AnalyzeRequest struct {
	Rooms        []AnalyzeRoomInput
	PropertyInfo pdf.PropertyInfo
	ReportType   string
}

// AnalyzedRoom is one room's outcome as stored and returned.
type AnalyzedRoom struct {
	Name        string   `json:"name"`
	Description string   `json:"description"` // assessment JSON
	PhotoPaths  []string `json:"photo_paths"`
	PhotoCount  int      `json:"photo_count"`
}

// AnalyzeResult is returned by Analyze.
type AnalyzeResult struct {
	ReportID      string         `json:"report_id"`
	RoomsAnalyzed int            `json:"rooms_analyzed"`
	ReportType    string         `json:"report_type"`
	PDFURL        string         `json:"pdf_url"`
	Rooms         []AnalyzedRoom `json:"rooms"`
	IsFreeTrial   bool           `json:"is_free_trial"`
}

// Analyze runs the full pipeline: entitlement check, per-room analysis in
// parallel, PDF render, persistence. Consumption is recorded only after the
// PDF artifact exists, so a failed render never burns a credit.
func (s *Service) Analyze(ctx context.Context, fingerprint string, req AnalyzeRequest) (*AnalyzeResult, error) {
	const op = "report.Analyze"

	decision := entitlement.CheckAccess(s.ledger.GetOrCreate(ctx, fingerprint))
	if !decision.Allowed {
		metrics.AccessDeniedTotal.Inc()
		return nil, svcerr.New(svcerr.KindPaymentRequired, op, fmt.Errorf("report limit reached"))
	}

	if len(req.Rooms) == 0 {
		return nil, svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("no rooms to analyze"))
	}
	if req.ReportType == "" {
		req.ReportType = vision.ReportMoveIn
	}

	rooms := req.Rooms
	if decision.Reason == entitlement.ReasonFreeTrial && len(rooms) > entitlement.FreeTrialMaxRooms {
		rooms = rooms[:entitlement.FreeTrialMaxRooms]
	}

	// Load photos; rooms with no readable photos are skipped.
	type loadedRoom struct {
		name   string
		photos [][]byte
		paths  []string
	}
	loaded := make([]loadedRoom, 0, len(rooms))
	for _, room := range rooms {
		lr := loadedRoom{name: room.RoomName}
		for _, path := range room.PhotoPaths {
			if !s.underUploads(path) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			lr.photos = append(lr.photos, data)
			lr.paths = append(lr.paths, path)
		}
		if len(lr.photos) > 0 {
			loaded = append(loaded, lr)
		}
	}
	if len(loaded) == 0 {
		return nil, svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("no readable photos"))
	}

	// Analyze all rooms in parallel.
	analyzed := make([]AnalyzedRoom, len(loaded))
	sections := make([]pdf.RoomSection, len(loaded))
	var wg sync.WaitGroup
	for i, lr := range loaded {
		wg.Add(1)
		go func(i int, lr loadedRoom) {
			defer wg.Done()
			assessment := s.analyzer.AnalyzeRoom(ctx, lr.name, lr.photos, req.ReportType)
			desc, _ := json.Marshal(assessment)
			analyzed[i] = AnalyzedRoom{
				Name:        lr.name,
				Description: string(desc),
				PhotoPaths:  lr.paths,
				PhotoCount:  len(lr.photos),
			}
			sections[i] = pdf.RoomSection{Name: lr.name, PhotoPaths: lr.paths, Assessment: assessment}
		}(i, lr)
	}
	wg.Wait()

	reportID := uuid.NewString()
	now := time.Now()
	pdfPath, err := s.renderer.Render(pdf.Input{
		ReportID:   reportID,
		ReportType: req.ReportType,
		Date:       now,
		Property:   req.PropertyInfo,
		Rooms:      sections,
	})
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}

	propJSON, _ := json.Marshal(req.PropertyInfo)
	roomsJSON, _ := json.Marshal(analyzed)
	if err := s.store.CreateReport(ctx, &store.Report{
		ID:           reportID,
		Fingerprint:  fingerprint,
		ReportType:   req.ReportType,
		PropertyInfo: string(propJSON),
		Rooms:        string(roomsJSON),
		PDFPath:      pdfPath,
		CreatedAt:    now,
	}); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}

	// Artifact exists and is persisted; the credit burns now.
	if err := s.ledger.RecordConsumption(ctx, fingerprint); err != nil {
		return nil, err
	}
	metrics.ReportsGeneratedTotal.WithLabelValues(string(decision.Reason)).Inc()
	log.Info().
		Str("report_id", reportID).
		Str("fingerprint", fingerprint).
		Int("rooms", len(analyzed)).
		Str("reason", string(decision.Reason)).
		Msg("report generated")

	return &AnalyzeResult{
		ReportID:      reportID,
		RoomsAnalyzed: len(analyzed),
		ReportType:    req.ReportType,
		PDFURL:        "/api/report/" + reportID + "/pdf",
		Rooms:         analyzed,
		IsFreeTrial:   decision.Reason == entitlement.ReasonFreeTrial,
	}, nil
}

// underUploads rejects photo paths outside the uploads directory, so an
// analyze request cannot read arbitrary files.
func (s *Service) underUploads(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	base, err := filepath.Abs(s.uploadsDir)
	if err != nil {
		return false
	}
	return strings.HasPrefix(abs, base+string(filepath.Separator))
}

// getOwned fetches a report and enforces ownership.
func (s *Service) getOwned(ctx context.Context, op, reportID, fingerprint string) (*store.Report, error) {
	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if r == nil {
		return nil, svcerr.NotFound(op)
	}
	if r.Fingerprint != fingerprint {
		return nil, svcerr.Forbidden(op)
	}
	return r, nil
}

// ReportView is the non-PDF representation of a stored report.
type ReportView struct {
	ID           string           `json:"id"`
	Date         string           `json:"date"`
	ReportType   string           `json:"report_type"`
	PropertyInfo pdf.PropertyInfo `json:"property_info"`
	Rooms        []AnalyzedRoom   `json:"rooms"`
	PDFURL       string           `json:"pdf_url"`
}

// Get returns the report data without the PDF.
func (s *Service) Get(ctx context.Context, fingerprint, reportID string) (*ReportView, error) {
	r, err := s.getOwned(ctx, "report.Get", reportID, fingerprint)
	if err != nil {
		return nil, err
	}
	return viewOf(r), nil
}

func viewOf(r *store.Report) *ReportView {
	v := &ReportView{
		ID:         r.ID,
		Date:       r.CreatedAt.Format("January 2, 2006"),
		ReportType: r.ReportType,
		PDFURL:     "/api/report/" + r.ID + "/pdf",
	}
	_ = json.Unmarshal([]byte(r.PropertyInfo), &v.PropertyInfo)
	_ = json.Unmarshal([]byte(r.Rooms), &v.Rooms)
	return v
}

// PDFDownload names the file to stream back for a report.
type PDFDownload struct {
	Path     string
	Filename string
}

// OpenPDF returns the PDF path for an owned report.
func (s *Service) OpenPDF(ctx context.Context, fingerprint, reportID string) (*PDFDownload, error) {
	const op = "report.OpenPDF"
	r, err := s.getOwned(ctx, op, reportID, fingerprint)
	if err != nil {
		return nil, err
	}
	return s.pdfDownload(op, r, true)
}

func (s *Service) pdfDownload(op string, r *store.Report, withDate bool) (*PDFDownload, error) {
	if r.PDFPath == "" {
		return nil, svcerr.NotFound(op)
	}
	if _, err := os.Stat(r.PDFPath); err != nil {
		return nil, svcerr.NotFound(op)
	}

	var prop pdf.PropertyInfo
	_ = json.Unmarshal([]byte(r.PropertyInfo), &prop)
	name := "Condition_Report_" + safeFilePart(prop.Address)
	if withDate {
		name += "_" + strings.ReplaceAll(r.CreatedAt.Format("January 2, 2006"), " ", "_")
	}
	return &PDFDownload{Path: r.PDFPath, Filename: name + ".pdf"}, nil
}

func safeFilePart(address string) string {
	var b strings.Builder
	for _, c := range address {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		case c == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "report"
	}
	return strings.Trim(b.String(), "_")
}

// AddSignature stores a PNG signature for the report and re-renders the PDF
// with it embedded.
func (s *Service) AddSignature(ctx context.Context, fingerprint, reportID, dataURL string) error {
	const op = "report.AddSignature"
	r, err := s.getOwned(ctx, op, reportID, fingerprint)
	if err != nil {
		return err
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		return svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("invalid signature data"))
	}
	sigBytes, err := base64.StdEncoding.DecodeString(dataURL[len(prefix):])
	if err != nil {
		return svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("invalid signature encoding"))
	}

	sigPath := filepath.Join(s.reportsDir, reportID+"_sig.png")
	if err := os.WriteFile(sigPath, sigBytes, 0o644); err != nil {
		return svcerr.Unavailable(op, err)
	}

	view := viewOf(r)
	sections := make([]pdf.RoomSection, 0, len(view.Rooms))
	for _, room := range view.Rooms {
		var assessment vision.Assessment
		_ = json.Unmarshal([]byte(room.Description), &assessment)
		sections = append(sections, pdf.RoomSection{
			Name:       room.Name,
			PhotoPaths: room.PhotoPaths,
			Assessment: &assessment,
		})
	}
	if _, err := s.renderer.Render(pdf.Input{
		ReportID:      reportID,
		ReportType:    r.ReportType,
		Date:          r.CreatedAt,
		Property:      view.PropertyInfo,
		Rooms:         sections,
		SignaturePath: sigPath,
	}); err != nil {
		return svcerr.Unavailable(op, err)
	}
	return nil
}

// ShareLink is returned when a share token is minted.
type ShareLink struct {
	ShareURL  string `json:"share_url"`
	ExpiresIn string `json:"expires_in"`
}

// CreateShareLink mints a 7-day unauthenticated download token for an owned
// report. Re-sharing the same report extends the expiry.
func (s *Service) CreateShareLink(ctx context.Context, fingerprint, reportID string) (*ShareLink, error) {
	const op = "report.CreateShareLink"
	if _, err := s.getOwned(ctx, op, reportID, fingerprint); err != nil {
		return nil, err
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	if err := s.store.SaveShareToken(ctx, &store.ShareToken{
		Token:       token,
		ReportID:    reportID,
		Fingerprint: fingerprint,
		ExpiresAt:   time.Now().Add(shareTokenTTL),
	}); err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	return &ShareLink{ShareURL: s.baseURL + "/share/" + token, ExpiresIn: "7 days"}, nil
}

// ErrShareExpired distinguishes an expired share link from an unknown one.
var ErrShareExpired = fmt.Errorf("share link expired")

// ResolveShare exchanges a share token for the report PDF. Expired tokens
// are deleted on sight.
func (s *Service) ResolveShare(ctx context.Context, token string) (*PDFDownload, error) {
	const op = "report.ResolveShare"
	share, err := s.store.GetShareToken(ctx, token)
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if share == nil {
		return nil, svcerr.NotFound(op)
	}
	if time.Now().After(share.ExpiresAt) {
		if err := s.store.DeleteShareToken(ctx, token); err != nil {
			log.Warn().Err(err).Msg("expired share token delete failed")
		}
		return nil, ErrShareExpired
	}

	r, err := s.store.GetReport(ctx, share.ReportID)
	if err != nil {
		return nil, svcerr.Unavailable(op, err)
	}
	if r == nil {
		return nil, svcerr.NotFound(op)
	}
	return s.pdfDownload(op, r, false)
}

// EmailReport sends an owned report's PDF to the given address.
func (s *Service) EmailReport(ctx context.Context, fingerprint, reportID, to string) error {
	const op = "report.EmailReport"
	to = strings.TrimSpace(to)
	if to == "" || !strings.Contains(to, "@") {
		return svcerr.New(svcerr.KindBadRequest, op, fmt.Errorf("valid email address required"))
	}

	r, err := s.getOwned(ctx, op, reportID, fingerprint)
	if err != nil {
		return err
	}
	dl, err := s.pdfDownload(op, r, false)
	if err != nil {
		return err
	}
	pdfBytes, err := os.ReadFile(dl.Path)
	if err != nil {
		return svcerr.Unavailable(op, err)
	}

	view := viewOf(r)
	msg := email.ReportMessage(s.emailFrom, to, view.PropertyInfo.Address, r.ReportType, view.Date, len(view.Rooms), pdfBytes)
	if err := s.sender.Send(ctx, msg); err != nil {
		return svcerr.Unavailable(op, err)
	}
	log.Info().Str("report_id", reportID).Str("to", to).Msg("report emailed")
	return nil
}

// Status is the aggregate view behind /api/user/status.
type Status struct {
	Fingerprint            string               `json:"fingerprint"`
	Email                  string               `json:"email,omitempty"`
	ReportsUsed            int                  `json:"reports_used"`
	IsPro                  bool                 `json:"is_pro"`
	Plan                   store.Plan           `json:"plan"`
	SingleReportsPurchased int                  `json:"single_reports_purchased"`
	Access                 entitlement.Decision `json:"access"`
	Reports                []*ReportView        `json:"reports"`
}

// GetStatus returns the caller's entitlement state and recent reports.
func (s *Service) GetStatus(ctx context.Context, fingerprint string) *Status {
	user := s.ledger.GetOrCreate(ctx, fingerprint)
	decision := entitlement.CheckAccess(user)

	views := []*ReportView{}
	if rows, err := s.store.ListReports(ctx, fingerprint, 20); err == nil {
		for _, r := range rows {
			views = append(views, viewOf(r))
		}
	}

	return &Status{
		Fingerprint:            fingerprint,
		Email:                  user.Email,
		ReportsUsed:            user.ReportsUsed,
		IsPro:                  user.Plan == store.PlanPro,
		Plan:                   user.Plan,
		SingleReportsPurchased: user.SingleReportsPurchased,
		Access:                 decision,
		Reports:                views,
	}
}
