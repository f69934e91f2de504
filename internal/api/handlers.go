package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"file.share/config"
	"file.share/internal/logging"
	"file.share/internal/service"
	"file.share/web"

	"github.com/go-chi/chi/v5"
)

// formOverhead covers multipart framing and the non-file fields.
const (
	formOverhead = 1 << 20
	maxFieldSize = 4 << 10
)

type Services struct {
	Upload   *service.UploadService
	Download *service.DownloadService
	Password *service.PasswordService
	Files    *service.FileService
}

type Handler struct {
	svc    Services
	config *config.Config
	log    *slog.Logger
}

func NewHandler(svc Services, cfg *config.Config, log *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		config: cfg,
		log:    log,
	}
}

type UploadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DownloadLink string `json:"download_link"`
	Filename     string `json:"filename"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type SetupStatusResponse struct {
	HasPassword bool `json:"has_password"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Upload streams the multipart body part by part. The password field has to
// come before the file part; the file is handed to the service unbuffered, so
// the password is checked before any file bytes are read.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.svc.Upload.MaxFileSize() + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mr, err := r.MultipartReader()
	if err != nil {
		h.error(w, http.StatusBadRequest, "invalid form data")
		return
	}

	var req service.UploadRequest
	// A declared length past the cap is refused once the password is checked.
	if r.ContentLength > limit {
		req.SizeBytes = r.ContentLength
	}

	for req.Body == nil {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.formError(w, r, err)
			return
		}

		switch part.FormName() {
		case "password":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			if err != nil {
				h.formError(w, r, err)
				return
			}
			req.Password = string(value)
		case "file":
			if part.FileName() == "" {
				continue
			}
			defer part.Close()
			req.Filename = part.FileName()
			req.Body = part
		}
	}

	record, err := h.svc.Upload.Upload(r.Context(), req)
	if err != nil {
		if berr := bodyError(err); berr != nil {
			err = berr
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.json(w, http.StatusOK, UploadResponse{
		Success:      true,
		Message:      "file uploaded",
		DownloadLink: service.DownloadURL(h.config.Server.BaseURL, record.Token),
		Filename:     record.OriginalName,
	})
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, err error) {
	if berr := bodyError(err); berr != nil {
		h.handleServiceError(w, r, berr)
		return
	}
	h.error(w, http.StatusBadRequest, "invalid form data")
}

// bodyError maps failures reading the request body onto service errors, or
// returns nil when err did not come from the body.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return service.ErrFileTooLarge
	case errors.Is(err, io.ErrUnexpectedEOF):
		return service.ErrIncompleteUpload
	}
	return nil
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	d, err := h.svc.Download.Download(r.Context(), token)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	defer d.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": d.Record.OriginalName})
	if disposition == "" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d.Body); err != nil {
		h.logger(r).Warn("download interrupted", "token", token, "error", err)
	}
}

func (h *Handler) SetupStatus(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		h.serveFile(w, "setup.html")
		return
	}

	set, err := h.svc.Password.Status(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, SetupStatusResponse{HasPassword: set})
}

func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Password.Setup(r.Context(), r.FormValue("password"), r.FormValue("confirm_password"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, MessageResponse{Success: true, Message: "password set"})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Password.Change(r.Context(),
		r.FormValue("old_password"),
		r.FormValue("new_password"),
		r.FormValue("confirm_password"),
	)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, MessageResponse{Success: true, Message: "password changed"})
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		h.serveFile(w, "files.html")
		return
	}

	views, err := h.svc.Files.List(r.Context(), h.config.Server.BaseURL)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, views)
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	// net/http does not parse DELETE bodies, so the password travels in a header.
	password := r.Header.Get("X-Password")

	if err := h.svc.Files.Delete(r.Context(), password, chi.URLParam(r, "token")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.json(w, http.StatusOK, MessageResponse{Success: true})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) UploadPage(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "upload.html")
}

func (h *Handler) ChangePasswordPage(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "change_password.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func (h *Handler) logger(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context(), h.log)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch service.KindOf(err) {
	case service.KindValidation:
		h.error(w, http.StatusBadRequest, err.Error())
	case service.KindAuth:
		h.error(w, http.StatusUnauthorized, err.Error())
	case service.KindNotFound:
		h.error(w, http.StatusNotFound, err.Error())
	default:
		h.logger(r).Error("request failed", "path", r.URL.Path, "error", err)
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// wantsHTML reports whether the client prefers a page over JSON.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

