package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"sync2notion/internal/batch"
	"sync2notion/internal/credentials"
	"sync2notion/internal/report"
	"sync2notion/internal/task"
)

const maxMultipartMemory = 32 << 20

type createBatchResponse struct {
	BatchID string        `json:"batch_id"`
	Status  batch.Verdict `json:"status"`
}

type batchResponse struct {
	ID         string         `json:"id"`
	Status     batch.Verdict  `json:"status"`
	Total      int            `json:"total"`
	Progress   float64        `json:"progress"`
	Summary    report.Summary `json:"summary"`
	Items      []report.Item  `json:"items"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
}

type configResponse struct {
	Found        bool   `json:"found"`
	Token        string `json:"token,omitempty"`
	CollectionID string `json:"db_id,omitempty"`
	Tags         string `json:"tags,omitempty"`
}

type API struct {
	manager *task.Manager
	cache   credentials.Store
	metrics http.Handler
}

// NewAPI wires handlers. metrics may be nil to leave /metrics unregistered.
func NewAPI(manager *task.Manager, cache credentials.Store, metrics http.Handler) *API {
	return &API{manager: manager, cache: cache, metrics: metrics}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/batches", a.CreateBatch)
		api.GET("/batches/:id", a.GetBatch)
		api.GET("/config", a.GetConfig)
	}
	if a.metrics != nil {
		router.GET("/metrics", gin.WrapH(a.metrics))
	}
}

// CreateBatch accepts files or a url plus credentials and starts the batch
func (a *API) CreateBatch(c *gin.Context) {
	if a.manager.IsBusy() {
		log.Warn().Msg("rejecting batch: another batch is running")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": task.ErrBusy.Error()})
		return
	}
	state, err := a.submit(c)
	if err != nil {
		status := statusFor(err)
		log.Warn().Err(err).Int("status", status).Msg("batch submission rejected")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("batch_id", state.ID).Int("jobs", len(state.Jobs)).Msg("batch accepted")
	c.JSON(http.StatusAccepted, createBatchResponse{BatchID: state.ID, Status: batch.VerdictRunning})
}

// GetBatch returns progress, summary and per-item results
func (a *API) GetBatch(c *gin.Context) {
	id := c.Param("id")
	state, ok := a.manager.Get(id)
	if !ok {
		log.Warn().Str("batch_id", id).Msg("batch not found on get")
		c.JSON(http.StatusNotFound, gin.H{"error": task.ErrBatchNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, toBatchResponse(state))
}

// GetConfig returns the cached credentials with the token masked
func (a *API) GetConfig(c *gin.Context) {
	stored, found := a.cache.Load()
	if !found {
		c.JSON(http.StatusOK, configResponse{})
		return
	}
	c.JSON(http.StatusOK, configResponse{
		Found:        true,
		Token:        stored.MaskedToken(),
		CollectionID: stored.CollectionID,
		Tags:         stored.Tags,
	})
}

// submit reads the multipart form and hands it to the manager. Uploaded
// parts are staged by the manager before it returns, so they can be closed here.
func (a *API) submit(c *gin.Context) (batch.State, error) {
	in := task.Input{
		URL: strings.TrimSpace(c.PostForm("url")),
		Credentials: credentials.StoredConfig{
			Token:        strings.TrimSpace(c.PostForm("token")),
			CollectionID: strings.TrimSpace(c.PostForm("db_id")),
			Tags:         strings.TrimSpace(c.PostForm("tags")),
		},
	}

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		headers = form.File["files"]
	}
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return batch.State{}, err //nolint:wrapcheck
		}
		defer func() { _ = f.Close() }()
		in.Files = append(in.Files, task.Upload{Name: header.Filename, Content: f})
	}
	return a.manager.Submit(in) //nolint:wrapcheck
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrBusy):
		return http.StatusServiceUnavailable
	case task.IsInputError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func toBatchResponse(state batch.State) batchResponse {
	resp := batchResponse{
		ID:        state.ID,
		Status:    state.Verdict(),
		Total:     len(state.Jobs),
		Progress:  report.Progress(state),
		Summary:   report.Summarize(state),
		Items:     report.Items(state),
		StartedAt: state.StartedAt.UTC().Format(time.RFC3339),
	}
	if state.Done() {
		resp.FinishedAt = state.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
