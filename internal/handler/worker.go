package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/echostudy/api/internal/worker"
	"github.com/echostudy/api/pkg/response"
)

// defaultMaxBatch caps how many jobs one invocation may process; each job is
// a blocking download + provider call, so invocations stay short.
const defaultMaxBatch = 3

// WorkerHandler exposes the worker invocation surface. The pipeline has no
// long-lived scheduler: an external cron (or an operator) POSTs here and the
// worker drains up to ?limit jobs.
type WorkerHandler struct {
	worker   *worker.TranscriptionWorker
	token    string
	maxBatch int
}

// NewWorkerHandler creates the worker endpoint handler. An empty token
// disables the shared-secret check (local development).
func NewWorkerHandler(w *worker.TranscriptionWorker, token string, maxBatch int) *WorkerHandler {
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	return &WorkerHandler{
		worker:   w,
		token:    token,
		maxBatch: maxBatch,
	}
}

// Run handles POST /internal/worker/run?limit=n with n clamped to [1,maxBatch].
func (h *WorkerHandler) Run(c *fiber.Ctx) error {
	if h.token != "" && c.Get("X-Worker-Token") != h.token {
		return response.Unauthorized(c, "Unauthorized")
	}

	limit := h.parseLimit(c.Query("limit"))

	result, err := h.worker.RunBatch(c.Context(), limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

func (h *WorkerHandler) parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	if limit < 1 {
		return 1
	}
	if limit > h.maxBatch {
		return h.maxBatch
	}
	return limit
}
