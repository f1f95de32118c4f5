package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/mealplan/internal/notify"
)

// MaxTickLimit caps the batch size a cron caller may request.
const MaxTickLimit = 500

// CronHandler exposes the windowed and cleanup jobs to an external scheduler.
// Authorization is applied by middleware.RequireCron.
type CronHandler struct {
	job          notify.WindowedJob
	cleanup      notify.CleanupJob
	defaultLimit int
	validate     *validator.Validate
	logger       *slog.Logger
}

func NewCronHandler(job notify.WindowedJob, cleanup notify.CleanupJob, defaultLimit int, logger *slog.Logger) *CronHandler {
	return &CronHandler{
		job:          job,
		cleanup:      cleanup,
		defaultLimit: defaultLimit,
		validate:     validator.New(),
		logger:       logger,
	}
}

type tickParams struct {
	Limit int `validate:"min=1,max=500"`
}

// Tick handles GET /tick?limit=N
func (h *CronHandler) Tick(w http.ResponseWriter, r *http.Request) {
	params := tickParams{Limit: h.defaultLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		params.Limit = n
	}
	if err := h.validate.Struct(params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("limit must be between 1 and %d", MaxTickLimit)})
		return
	}

	res, err := h.job.Run(r.Context(), time.Time{}, params.Limit)
	if err != nil {
		if errors.Is(err, notify.ErrInvalidLimit) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("windowed job via cron", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "windowed job failed"})
		return
	}

	h.logger.Info("windowed job via cron",
		"limit", params.Limit,
		"due", res.Due,
		"processed", res.Processed,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	writeJSON(w, http.StatusOK, res)
}

// Cleanup handles GET /cleanup
func (h *CronHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.cleanup.Run(r.Context(), time.Time{})
	if err != nil {
		h.logger.Error("cleanup job via cron", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup job failed"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}
