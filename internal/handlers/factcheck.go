package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/models"
)

var errTextRequired = errors.New("text parameter is required")

// FactCheck handles POST /fact/check/
func (h *Handler) FactCheck(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	text, err := readText(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, errTextRequired):
			writeJSONError(w, http.StatusBadRequest, errTextRequired.Error())
		default:
			log.Ctx(r.Context()).Debug().Err(err).Msg("Invalid fact-check request body")
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
		}
		return
	}

	result, err := h.factCheck.Check(r.Context(), text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FactCheckResponse{Res: result.Verification.Verdict})
}

// FactCheckUsage handles GET /fact/check/
func (h *Handler) FactCheckUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: usageMessage})
}

// readText returns the "text" field of a JSON, urlencoded or multipart body.
// An absent or null field yields errTextRequired.
func readText(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(32 << 10)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return "", err
		}
		values, ok := r.PostForm["text"]
		if !ok || len(values) == 0 {
			return "", errTextRequired
		}
		return values[0], nil
	default:
		var req models.FactCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return "", errTextRequired
			}
			return "", err
		}
		if req.Text == nil {
			return "", errTextRequired
		}
		return *req.Text, nil
	}
}
