package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/face"
	"hik-access-bridge/internal/media"
	"hik-access-bridge/internal/models"

	"go.uber.org/zap"
)

const (
	customerPrefix = "/api/cliente/"
	photoField     = "foto"
	maxPhotoBytes  = 5 << 20
)

// FaceService face enrollment lifecycle.
type FaceService interface {
	Upload(ctx context.Context, employeeNo string, image []byte, ext string) (models.FaceEnrollment, error)
	Verify(ctx context.Context, employeeNo string) (models.FaceEnrollment, error)
	Delete(ctx context.Context, employeeNo string) error
}

// CardService card operations of the terminal.
type CardService interface {
	UpsertCard(ctx context.Context, card models.CardBinding) (device.UpsertResult, error)
	SearchCards(ctx context.Context, employeeNo string) ([]models.CardBinding, error)
	DeleteCard(ctx context.Context, cardNo string) error
}

// CustomerHandler per-customer face and card operations under /api/cliente/{id}/...
type CustomerHandler struct {
	faces  FaceService
	cards  CardService
	logger *zap.Logger
}

func NewCustomerHandler(faces FaceService, cards CardService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		faces:  faces,
		cards:  cards,
		logger: logger.Named("customer_handler"),
	}
}

func (h *CustomerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, customerPrefix), "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]

	switch {
	case parts[1] == "foto" && len(parts) == 2:
		switch r.Method {
		case http.MethodPost:
			h.UploadPhoto(w, r, id)
		case http.MethodGet:
			h.VerifyPhoto(w, r, id)
		case http.MethodDelete:
			h.DeletePhoto(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case parts[1] == "tarjeta" && len(parts) == 2:
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.BindCard(w, r, id)
	case parts[1] == "tarjeta" && len(parts) == 3:
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.DeleteCard(w, r, id, parts[2])
	case parts[1] == "tarjetas" && len(parts) == 2:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListCards(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// UploadPhoto POST /api/cliente/{id}/foto, multipart field "foto".
func (h *CustomerHandler) UploadPhoto(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+(1<<20))
	file, header, err := r.FormFile(photoField)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("photo file is required (field \"foto\")"))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes))
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("failed to read photo: "+err.Error()))
		return
	}

	ext := media.ExtFor(header.Filename, header.Header.Get("Content-Type"))
	enrollment, err := h.faces.Upload(r.Context(), id, image, ext)
	if err != nil {
		h.logger.Warn("Face upload failed", zap.String("employee_no", id), zap.Error(err))
		if errors.Is(err, face.ErrEmptyImage) {
			writeJSON(w, http.StatusOK, Fail("photo file is empty"))
			return
		}
		writeJSON(w, http.StatusOK, Fail(failureMessage("face upload failed", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(enrollment))
}

// VerifyPhoto GET /api/cliente/{id}/foto
func (h *CustomerHandler) VerifyPhoto(w http.ResponseWriter, r *http.Request, id string) {
	enrollment, err := h.faces.Verify(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(failureMessage("face lookup failed", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(enrollment))
}

// DeletePhoto DELETE /api/cliente/{id}/foto; succeeds only when absence is confirmed.
func (h *CustomerHandler) DeletePhoto(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.faces.Delete(r.Context(), id); err != nil {
		h.logger.Warn("Face delete failed", zap.String("employee_no", id), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(failureMessage("face delete failed", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true}))
}

type bindCardRequest struct {
	CardNo string `json:"tarjeta"`
}

// BindCard POST /api/cliente/{id}/tarjeta {"tarjeta": "..."}
func (h *CustomerHandler) BindCard(w http.ResponseWriter, r *http.Request, id string) {
	var req bindCardRequest
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	req.CardNo = strings.TrimSpace(req.CardNo)
	if req.CardNo == "" {
		writeJSON(w, http.StatusOK, Fail("tarjeta is required"))
		return
	}

	res, err := h.cards.UpsertCard(r.Context(), models.CardBinding{
		EmployeeNo: id,
		CardNo:     req.CardNo,
		CardType:   models.CardTypeNormal,
	})
	if err != nil {
		h.logger.Warn("Card bind failed", zap.String("employee_no", id), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(failureMessage("card bind failed", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"employeeNo": id,
		"cardNo":     req.CardNo,
		"result":     res.String(),
	}))
}

// ListCards GET /api/cliente/{id}/tarjetas
func (h *CustomerHandler) ListCards(w http.ResponseWriter, r *http.Request, id string) {
	cards, err := h.cards.SearchCards(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(failureMessage("card search failed", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": cards,
		"total": len(cards),
	}))
}

// DeleteCard DELETE /api/cliente/{id}/tarjeta/{cardNo}
func (h *CustomerHandler) DeleteCard(w http.ResponseWriter, r *http.Request, id, cardNo string) {
	if err := h.cards.DeleteCard(r.Context(), cardNo); err != nil {
		h.logger.Warn("Card delete failed", zap.String("employee_no", id), zap.String("card_no", cardNo), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(failureMessage("card delete failed", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"deleted": true, "cardNo": cardNo}))
}
