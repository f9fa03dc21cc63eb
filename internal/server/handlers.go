package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lego3072/rentready-ai/internal/account"
	"github.com/lego3072/rentready-ai/internal/billing"
	svcerr "github.com/lego3072/rentready-ai/internal/errors"
	"github.com/lego3072/rentready-ai/internal/identity"
	"github.com/lego3072/rentready-ai/internal/pdf"
	"github.com/lego3072/rentready-ai/internal/report"
)

const maxUploadBytes = 50 << 20

type handlers struct {
	deps *Deps
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   h.deps.Version,
		"timestamp": time.Now().Unix(),
	})
}

func (h *handlers) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)
	writeJSON(w, http.StatusOK, h.deps.Reports.GetStatus(r.Context(), fp))
}

// handleUploadPhotos accepts a multipart form: "photos" file parts plus a
// parallel "room_names" JSON array naming the room each photo belongs to.
func (h *handlers) handleUploadPhotos(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["photos"]
	var roomNames []string
	if raw := r.FormValue("room_names"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &roomNames); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "room_names must be a JSON array"})
			return
		}
	}
	if len(roomNames) != len(files) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("room_names entries (%d) must match photo count (%d)", len(roomNames), len(files)),
		})
		return
	}

	// Group photos by room, preserving upload order.
	var rooms []report.UploadRoom
	index := map[string]int{}
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable photo upload"})
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable photo upload"})
			return
		}

		name := roomNames[i]
		j, ok := index[name]
		if !ok {
			j = len(rooms)
			index[name] = j
			rooms = append(rooms, report.UploadRoom{Name: name})
		}
		rooms[j].Photos = append(rooms[j].Photos, report.UploadPhoto{Filename: fh.Filename, Data: data})
	}

	result, err := h.deps.Reports.SaveUploads(r.Context(), fp, rooms)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type analyzeRequest struct {
	Rooms        []report.AnalyzeRoomInput `json:"rooms"`
	PropertyInfo pdf.PropertyInfo          `json:"property_info"`
	ReportType   string                    `json:"report_type"`
}

func (h *handlers) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)

	var req analyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.deps.Reports.Analyze(r.Context(), fp, report.AnalyzeRequest{
		Rooms:        req.Rooms,
		PropertyInfo: req.PropertyInfo,
		ReportType:   req.ReportType,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleGetReport(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)
	view, err := h.deps.Reports.Get(r.Context(), fp, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleReportPDF streams the PDF. Browsers cannot set headers on a plain
// link, so the identity token may also ride in the fp query parameter.
func (h *handlers) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("fp")
	if fp == "" {
		fp = identity.FromRequest(r)
	}
	dl, err := h.deps.Reports.OpenPDF(r.Context(), fp, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	servePDF(w, r, dl, "attachment")
}

func servePDF(w http.ResponseWriter, r *http.Request, dl *report.PDFDownload, disposition string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, dl.Filename))
	http.ServeFile(w, r, dl.Path)
}

func (h *handlers) handleAddSignature(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)

	var req struct {
		Signature string `json:"signature"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.deps.Reports.AddSignature(r.Context(), fp, r.PathValue("id"), req.Signature); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)
	link, err := h.deps.Reports.CreateShareLink(r.Context(), fp, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// handleResolveShare is the unauthenticated share landing: the token is the
// credential. Expired links get a distinct page from unknown ones.
func (h *handlers) handleResolveShare(w http.ResponseWriter, r *http.Request) {
	dl, err := h.deps.Reports.ResolveShare(r.Context(), r.PathValue("token"))
	switch {
	case errors.Is(err, report.ErrShareExpired):
		sharePage(w, http.StatusGone, "Link expired", "This share link has expired. Ask the sender for a fresh one.")
		return
	case errors.Is(err, svcerr.ErrNotFound):
		sharePage(w, http.StatusNotFound, "Not found", "This share link does not exist.")
		return
	case err != nil:
		writeError(w, err)
		return
	}
	servePDF(w, r, dl, "inline")
}

func sharePage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>", title, title, body)
}

func (h *handlers) handleEmailReport(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)

	var req struct {
		ReportID string `json:"report_id"`
		Email    string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.deps.Reports.EmailReport(r.Context(), fp, req.ReportID, req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sent_to": req.Email})
}

func (h *handlers) billingReady(w http.ResponseWriter) bool {
	if h.deps.Config == nil || !h.deps.Config.BillingConfigured() || h.deps.Checkout == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "billing is not configured"})
		return false
	}
	return true
}

func (h *handlers) handleCheckoutSingle(w http.ResponseWriter, r *http.Request) {
	if !h.billingReady(w) {
		return
	}
	fp := identity.FromRequest(r)
	url, err := h.deps.Checkout.CreateSingleCheckout(fp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

func (h *handlers) handleCheckoutPro(w http.ResponseWriter, r *http.Request) {
	if !h.billingReady(w) {
		return
	}
	fp := identity.FromRequest(r)

	var req struct {
		Billing string `json:"billing"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	url, err := h.deps.Checkout.CreateProCheckout(fp, billing.ProBilling(req.Billing))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

func (h *handlers) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	if h.deps.Verifier == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "billing is not configured"})
		return
	}
	fp := identity.FromRequest(r)

	var req struct {
		SessionID string `json:"session_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.deps.Verifier.Verify(r.Context(), req.SessionID, fp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleSignup(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)

	var req account.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.deps.Accounts.Signup(r.Context(), fp, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.deps.Accounts.Login(r.Context(), fp, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *handlers) handleProfile(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)
	profile, err := h.deps.Accounts.GetProfile(r.Context(), fp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handlers) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	fp := identity.FromRequest(r)

	var req struct {
		Name    string `json:"name"`
		Company string `json:"company"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.deps.Accounts.UpdateProfile(r.Context(), fp, req.Name, req.Company); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
