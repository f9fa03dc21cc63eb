package report

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lego3072/rentready-ai/internal/email"
	"github.com/lego3072/rentready-ai/internal/entitlement"
	svcerr "github.com/lego3072/rentready-ai/internal/errors"
	"github.com/lego3072/rentready-ai/internal/pdf"
	"github.com/lego3072/rentready-ai/internal/store"
	"github.com/lego3072/rentready-ai/internal/vision"
)

type fakeAnalyzer struct {
	calls int
}

func (f *fakeAnalyzer) AnalyzeRoom(_ context.Context, roomName string, photos [][]byte, _ string) *vision.Assessment {
	f.calls++
	return &vision.Assessment{
		OverallRating: "Good",
		Items:         []vision.Item{{Name: "Walls", Rating: "Good", Notes: "Fine in " + roomName}},
		Summary:       roomName + " looks good.",
		Flags:         []string{},
	}
}

type captureSender struct {
	last *email.Message
}

func (c *captureSender) Send(_ context.Context, msg email.Message) error {
	c.last = &msg
	return nil
}

type fixture struct {
	svc      *Service
	store    *store.Store
	ledger   *entitlement.Ledger
	analyzer *fakeAnalyzer
	sender   *captureSender
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ledger := entitlement.NewLedger(st)
	analyzer := &fakeAnalyzer{}
	sender := &captureSender{}
	svc := New(
		st, ledger, analyzer,
		pdf.NewRenderer(filepath.Join(dir, "reports")),
		sender, "Reports <r@example.com>",
		filepath.Join(dir, "uploads"), filepath.Join(dir, "reports"),
		"https://rentready.example",
	)
	return &fixture{svc: svc, store: st, ledger: ledger, analyzer: analyzer, sender: sender, dir: dir}
}

func jpegBytes() []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1)), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (f *fixture) uploadAndAnalyze(t *testing.T, fp string, roomNames ...string) *AnalyzeResult {
	t.Helper()
	ctx := context.Background()

	rooms := make([]UploadRoom, len(roomNames))
	for i, name := range roomNames {
		rooms[i] = UploadRoom{Name: name, Photos: []UploadPhoto{{Filename: "p.jpg", Data: jpegBytes()}}}
	}
	up, err := f.svc.SaveUploads(ctx, fp, rooms)
	if err != nil {
		t.Fatalf("SaveUploads: %v", err)
	}

	req := AnalyzeRequest{ReportType: vision.ReportMoveIn, PropertyInfo: pdf.PropertyInfo{Address: "12 Test Lane"}}
	for _, room := range up.Rooms {
		in := AnalyzeRoomInput{RoomName: room.RoomName}
		for _, p := range room.Photos {
			in.PhotoPaths = append(in.PhotoPaths, p.Path)
		}
		req.Rooms = append(req.Rooms, in)
	}
	res, err := f.svc.Analyze(ctx, fp, req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return res
}

func TestAnalyzeGeneratesReportAndBurnsTrial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.uploadAndAnalyze(t, "fp-gen", "Kitchen", "Bedroom")
	if res.RoomsAnalyzed != 2 || !res.IsFreeTrial {
		t.Fatalf("result=%+v", res)
	}
	if f.analyzer.calls != 2 {
		t.Fatalf("analyzer calls=%d", f.analyzer.calls)
	}

	// PDF on disk.
	r, err := f.store.GetReport(ctx, res.ReportID)
	if err != nil || r == nil {
		t.Fatalf("GetReport: %v %v", r, err)
	}
	if _, err := os.Stat(r.PDFPath); err != nil {
		t.Fatalf("pdf missing: %v", err)
	}

	// Trial consumed.
	user, _ := f.store.GetUser(ctx, "fp-gen")
	if user.ReportsUsed != 1 {
		t.Fatalf("reports_used=%d, want 1", user.ReportsUsed)
	}
}

func TestAnalyzeDeniedAfterTrialConsumed(t *testing.T) {
	f := newFixture(t)
	f.uploadAndAnalyze(t, "fp-denied", "Kitchen")

	_, err := f.svc.Analyze(context.Background(), "fp-denied", AnalyzeRequest{
		Rooms: []AnalyzeRoomInput{{RoomName: "Kitchen"}},
	})
	if !errors.Is(err, svcerr.ErrPaymentRequired) {
		t.Fatalf("err=%v, want payment required", err)
	}

	// Uploads are gated too.
	_, err = f.svc.SaveUploads(context.Background(), "fp-denied", []UploadRoom{
		{Name: "Kitchen", Photos: []UploadPhoto{{Filename: "p.jpg", Data: jpegBytes()}}},
	})
	if !errors.Is(err, svcerr.ErrPaymentRequired) {
		t.Fatalf("upload err=%v, want payment required", err)
	}
}

func TestAnalyzeTruncatesTrialToFourRooms(t *testing.T) {
	f := newFixture(t)
	res := f.uploadAndAnalyze(t, "fp-trunc", "Kitchen", "Bedroom", "Bathroom", "Living Room", "Garage", "Office")
	if res.RoomsAnalyzed != entitlement.FreeTrialMaxRooms {
		t.Fatalf("rooms_analyzed=%d, want %d", res.RoomsAnalyzed, entitlement.FreeTrialMaxRooms)
	}
}

func TestAnalyzeProHasNoRoomCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.store.EnsureUser(ctx, "fp-pro"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := f.store.SetUserPlan(ctx, "fp-pro", store.PlanPro, ""); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}

	res := f.uploadAndAnalyze(t, "fp-pro", "R1", "R2", "R3", "R4", "R5", "R6")
	if res.RoomsAnalyzed != 6 || res.IsFreeTrial {
		t.Fatalf("result=%+v", res)
	}
}

func TestAnalyzeIgnoresPathsOutsideUploads(t *testing.T) {
	f := newFixture(t)
	secret := filepath.Join(f.dir, "secret.txt")
	if err := os.WriteFile(secret, []byte("top secret"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := f.svc.Analyze(context.Background(), "fp-escape", AnalyzeRequest{
		Rooms: []AnalyzeRoomInput{{RoomName: "Kitchen", PhotoPaths: []string{secret}}},
	})
	if !errors.Is(err, svcerr.ErrBadRequest) {
		t.Fatalf("err=%v, want bad request (no readable photos)", err)
	}
}

func TestOwnershipEnforcedOnReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.uploadAndAnalyze(t, "fp-owner", "Kitchen")

	if _, err := f.svc.Get(ctx, "fp-other", res.ReportID); !errors.Is(err, svcerr.ErrForbidden) {
		t.Fatalf("Get err=%v, want forbidden", err)
	}
	if _, err := f.svc.OpenPDF(ctx, "fp-other", res.ReportID); !errors.Is(err, svcerr.ErrForbidden) {
		t.Fatalf("OpenPDF err=%v, want forbidden", err)
	}
	if _, err := f.svc.Get(ctx, "fp-owner", "no-such-report"); !errors.Is(err, svcerr.ErrNotFound) {
		t.Fatalf("missing report err=%v, want not found", err)
	}

	view, err := f.svc.Get(ctx, "fp-owner", res.ReportID)
	if err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if view.PropertyInfo.Address != "12 Test Lane" || len(view.Rooms) != 1 {
		t.Fatalf("view=%+v", view)
	}

	dl, err := f.svc.OpenPDF(ctx, "fp-owner", res.ReportID)
	if err != nil {
		t.Fatalf("owner OpenPDF: %v", err)
	}
	if !strings.Contains(dl.Filename, "12_Test_Lane") {
		t.Fatalf("filename=%q", dl.Filename)
	}
}

func TestShareLinkLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.uploadAndAnalyze(t, "fp-share", "Kitchen")

	if _, err := f.svc.CreateShareLink(ctx, "fp-other", res.ReportID); !errors.Is(err, svcerr.ErrForbidden) {
		t.Fatalf("foreign share err=%v", err)
	}

	link, err := f.svc.CreateShareLink(ctx, "fp-share", res.ReportID)
	if err != nil {
		t.Fatalf("CreateShareLink: %v", err)
	}
	if !strings.HasPrefix(link.ShareURL, "https://rentready.example/share/") {
		t.Fatalf("share_url=%q", link.ShareURL)
	}
	token := strings.TrimPrefix(link.ShareURL, "https://rentready.example/share/")

	dl, err := f.svc.ResolveShare(ctx, token)
	if err != nil {
		t.Fatalf("ResolveShare: %v", err)
	}
	if _, err := os.Stat(dl.Path); err != nil {
		t.Fatalf("shared pdf missing: %v", err)
	}

	if _, err := f.svc.ResolveShare(ctx, "bogus-token"); !errors.Is(err, svcerr.ErrNotFound) {
		t.Fatalf("unknown token err=%v", err)
	}
}

func TestResolveShareExpiredTokenIsDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.uploadAndAnalyze(t, "fp-expired", "Kitchen")

	if err := f.store.SaveShareToken(ctx, &store.ShareToken{
		Token:       "stale-token",
		ReportID:    res.ReportID,
		Fingerprint: "fp-expired",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("SaveShareToken: %v", err)
	}

	if _, err := f.svc.ResolveShare(ctx, "stale-token"); !errors.Is(err, ErrShareExpired) {
		t.Fatalf("err=%v, want expired", err)
	}

	// Second resolve sees it gone.
	if _, err := f.svc.ResolveShare(ctx, "stale-token"); !errors.Is(err, svcerr.ErrNotFound) {
		t.Fatalf("err=%v, want not found after purge", err)
	}
}

func TestEmailReportAttachesPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.uploadAndAnalyze(t, "fp-email", "Kitchen")

	if err := f.svc.EmailReport(ctx, "fp-email", res.ReportID, "not-an-email"); !errors.Is(err, svcerr.ErrBadRequest) {
		t.Fatalf("bad address err=%v", err)
	}
	if err := f.svc.EmailReport(ctx, "fp-other", res.ReportID, "to@example.com"); !errors.Is(err, svcerr.ErrForbidden) {
		t.Fatalf("foreign email err=%v", err)
	}

	if err := f.svc.EmailReport(ctx, "fp-email", res.ReportID, "to@example.com"); err != nil {
		t.Fatalf("EmailReport: %v", err)
	}
	msg := f.sender.last
	if msg == nil || msg.To != "to@example.com" {
		t.Fatalf("msg=%+v", msg)
	}
	if len(msg.Attachments) != 1 || len(msg.Attachments[0].Content) == 0 {
		t.Fatalf("attachments=%+v", msg.Attachments)
	}
}

func TestAddSignatureRegeneratesPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.uploadAndAnalyze(t, "fp-sig", "Kitchen")

	if err := f.svc.AddSignature(ctx, "fp-sig", res.ReportID, "not-a-data-url"); !errors.Is(err, svcerr.ErrBadRequest) {
		t.Fatalf("bad data url err=%v", err)
	}

	// 1x1 transparent PNG.
	const tinyPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="
	if err := f.svc.AddSignature(ctx, "fp-sig", res.ReportID, tinyPNG); err != nil {
		t.Fatalf("AddSignature: %v", err)
	}

	sigPath := filepath.Join(f.dir, "reports", res.ReportID+"_sig.png")
	if _, err := os.Stat(sigPath); err != nil {
		t.Fatalf("signature not saved: %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.uploadAndAnalyze(t, "fp-status", "Kitchen")

	status := f.svc.GetStatus(ctx, "fp-status")
	if status.ReportsUsed != 1 || status.IsPro {
		t.Fatalf("status=%+v", status)
	}
	if status.Access.Allowed {
		t.Fatalf("access=%+v, trial already used", status.Access)
	}
	if len(status.Reports) != 1 || status.Reports[0].ID != res.ReportID {
		t.Fatalf("reports=%+v", status.Reports)
	}
}
