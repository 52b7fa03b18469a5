package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"pdf-editor-go/internal/compressor"
	"pdf-editor-go/internal/config"
	"pdf-editor-go/internal/document"
	"pdf-editor-go/internal/logger"
	"pdf-editor-go/internal/metrics"
	"pdf-editor-go/internal/statistics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// maxUploadBytes caps request bodies posted to /api/info.
const maxUploadBytes = 200 << 20

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	opener     document.Opener
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// Current operation state
	operationMutex sync.RWMutex
	isRunning      bool
	currentJob     string
	cancel         context.CancelFunc
	currentStats   *statistics.Statistics
	lastResult     *JobResult
	done           chan struct{}
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CompressRequest starts a single-file compression. An empty TargetMB selects
// preset mode.
type CompressRequest struct {
	Source   string `json:"source"`
	Output   string `json:"output"`
	Preset   string `json:"preset,omitempty"`
	TargetMB string `json:"target_mb,omitempty"`
}

// BatchRequest starts compression of every PDF under a set of paths.
type BatchRequest struct {
	Inputs          []string `json:"inputs"`
	TargetDirectory string   `json:"target_directory"`
	Preset          string   `json:"preset,omitempty"`
	TargetMB        string   `json:"target_mb,omitempty"`
}

// JobResult is the outcome of the last finished job.
type JobResult struct {
	Job          string  `json:"job"`
	Source       string  `json:"source,omitempty"`
	Output       string  `json:"output,omitempty"`
	Mode         string  `json:"mode,omitempty"`
	OriginalSize int64   `json:"original_size"`
	Size         int64   `json:"size"`
	Attempts     int     `json:"attempts"`
	TargetMissed bool    `json:"target_missed"`
	Saved        float64 `json:"saved_percentage"`
	Summary      string  `json:"summary"`
	Error        string  `json:"error,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	return NewServerWithOpener(cfg, log, document.NewPDFCPUOpener())
}

// NewServerWithOpener returns a Server that opens documents with opener.
func NewServerWithOpener(cfg *config.Config, log *logrus.Logger, opener document.Opener) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		opener:    opener,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	metrics.Init()
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/batch", s.handleBatch).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/info", s.handleInfo).Methods("POST")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.cancelJob()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Wait blocks until the running job, if any, has finished.
func (s *Server) Wait() {
	s.operationMutex.RLock()
	done := s.done
	s.operationMutex.RUnlock()
	if done != nil {
		<-done
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	job := s.currentJob
	stats := s.currentStats
	last := s.lastResult
	s.operationMutex.RUnlock()

	var statsData interface{}
	if stats != nil {
		statsData = stats.Snapshot()
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":     running,
			"job":         job,
			"statistics":  statsData,
			"last_result": last,
		},
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Source == "" || req.Output == "" {
		s.writeError(w, "Source and output are required", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(req.Source); os.IsNotExist(err) {
		s.writeError(w, "Source file does not exist", http.StatusBadRequest)
		return
	}
	if err := document.EnsurePDF(req.Source); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	target, err := parseTarget(req.TargetMB)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Preset == "" {
		req.Preset = s.cfg.Compression.DefaultPreset
	}

	ctx, jobID, ok := s.beginJob()
	if !ok {
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}

	go s.runCompressAsync(ctx, jobID, compressor.Request{
		SourcePath:  req.Source,
		OutputPath:  req.Output,
		Preset:      req.Preset,
		TargetBytes: target,
	})

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
		Data:    map[string]string{"job": jobID},
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 || req.TargetDirectory == "" {
		s.writeError(w, "Inputs and target directory are required", http.StatusBadRequest)
		return
	}

	target, err := parseTarget(req.TargetMB)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Preset == "" {
		req.Preset = s.cfg.Compression.DefaultPreset
	}

	ctx, jobID, ok := s.beginJob()
	if !ok {
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}

	go s.runBatchAsync(ctx, jobID, compressor.BatchParams{
		InputPaths:  req.Inputs,
		TargetDir:   req.TargetDirectory,
		Preset:      req.Preset,
		TargetBytes: target,
		Workers:     s.cfg.Batch.Workers,
		Extensions:  s.cfg.Batch.Extensions,
		Threshold:   s.cfg.Batch.Threshold,
	})

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Batch started",
		Data:    map[string]string{"job": jobID},
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.cancelJob() {
		s.writeJSON(w, APIResponse{
			Success: true,
			Message: "No operation running",
		})
		return
	}

	s.broadcastWSMessage("operation_stopped", map[string]interface{}{
		"message": "Operation stopped by user",
	})

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Operation stopped",
	})
}

// handleInfo reports the pages and images of a PDF posted as the raw request body.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		s.writeError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if err := document.EnsurePDFBytes(data); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := s.opener.OpenBytes(data)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, document.ErrNotPDF) {
			status = http.StatusBadRequest
		}
		s.writeError(w, err.Error(), status)
		return
	}
	defer doc.Close()

	presetName := r.URL.Query().Get("preset")
	if presetName == "" {
		presetName = s.cfg.Compression.DefaultPreset
	}
	opts := compressor.OptionsFromConfig(s.cfg.Compression)
	info := compressor.Inspect(doc, opts, opts.Lookup(presetName), s.log)

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    info,
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	if stats == nil {
		s.writeJSON(w, APIResponse{
			Success: true,
			Data:    nil,
		})
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"summary":  stats.GetSummary(),
			"outcomes": stats.GetOutcomeBreakdown(),
			"counters": stats.Snapshot(),
		},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	// Remove client on disconnect
	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// beginJob marks the server busy and returns a cancellable context for the
// new job. It fails when a job is already running.
func (s *Server) beginJob() (context.Context, string, bool) {
	s.operationMutex.Lock()
	defer s.operationMutex.Unlock()
	if s.isRunning {
		return nil, "", false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.isRunning = true
	s.currentJob = uuid.NewString()
	s.cancel = cancel
	s.currentStats = statistics.NewStatistics()
	s.done = make(chan struct{})
	return ctx, s.currentJob, true
}

func (s *Server) finishJob(result *JobResult) {
	s.operationMutex.Lock()
	defer s.operationMutex.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.isRunning = false
	s.lastResult = result
	s.currentStats.Finalize()
	close(s.done)
}

func (s *Server) cancelJob() bool {
	s.operationMutex.Lock()
	defer s.operationMutex.Unlock()
	if !s.isRunning || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *Server) runCompressAsync(ctx context.Context, jobID string, req compressor.Request) {
	log := logger.WithJob(s.log, jobID)
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	s.broadcastWSMessage("compress_started", map[string]interface{}{
		"job":          jobID,
		"source":       req.SourcePath,
		"output":       req.OutputPath,
		"preset":       req.Preset,
		"target_bytes": req.TargetBytes,
	})
	log.WithField("source", req.SourcePath).Info("Compression job started")

	hook := func(r compressor.Request, att compressor.Attempt) {
		preset := "resave"
		if att.Preset != nil {
			preset = att.Preset.String()
		}
		s.broadcastWSMessage("compress_attempt", map[string]interface{}{
			"job":      jobID,
			"attempt":  att.Index,
			"preset":   preset,
			"size":     att.Size,
			"replaced": att.Count(compressor.OutcomeReplaced),
		})
	}
	pipeline := compressor.NewPipelineWithHook(s.opener, compressor.OptionsFromConfig(s.cfg.Compression), s.log, stats, hook)

	res, err := pipeline.Compress(ctx, req)
	if err != nil {
		log.WithError(err).Error("Compression job failed")
		s.finishJob(&JobResult{Job: jobID, Source: req.SourcePath, Error: err.Error()})
		s.broadcastWSMessage("compress_error", map[string]interface{}{
			"job":   jobID,
			"error": err.Error(),
		})
		return
	}

	stats.IncrementFilesFound()
	stats.IncrementFilesProcessed()
	if res.Size < res.OriginalSize {
		stats.IncrementFilesCompressed()
	}

	result := &JobResult{
		Job:          jobID,
		Source:       res.SourcePath,
		Output:       res.OutputPath,
		Mode:         string(res.Mode),
		OriginalSize: res.OriginalSize,
		Size:         res.Size,
		Attempts:     len(res.Attempts),
		TargetMissed: res.TargetMissed,
		Saved:        res.PercentageSaved(),
		Summary:      res.Summary(),
	}
	s.finishJob(result)
	s.broadcastWSMessage("compress_completed", result)
}

func (s *Server) runBatchAsync(ctx context.Context, jobID string, params compressor.BatchParams) {
	log := logger.WithJob(s.log, jobID)
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	s.broadcastWSMessage("batch_started", map[string]interface{}{
		"job":    jobID,
		"inputs": params.InputPaths,
		"target": params.TargetDir,
	})

	pipeline := compressor.NewPipeline(s.opener, compressor.OptionsFromConfig(s.cfg.Compression), s.log, stats)
	results, err := compressor.NewBatch(pipeline, s.log, stats).Run(ctx, params)
	if err != nil {
		log.WithError(err).Error("Batch job failed")
		s.finishJob(&JobResult{Job: jobID, Error: err.Error()})
		s.broadcastWSMessage("batch_error", map[string]interface{}{
			"job":   jobID,
			"error": err.Error(),
		})
		return
	}

	result := &JobResult{Job: jobID}
	for _, r := range results {
		result.OriginalSize += r.OriginalSize
		result.Size += r.CompressedSize
		result.Attempts += r.Attempts
		if r.Action == compressor.ActionTargetMissed {
			result.TargetMissed = true
		}
	}
	if result.OriginalSize > 0 {
		result.Saved = float64(result.OriginalSize-result.Size) * 100 / float64(result.OriginalSize)
	}
	result.Summary = fmt.Sprintf("%d files processed", len(results))
	s.finishJob(result)
	s.broadcastWSMessage("batch_completed", map[string]interface{}{
		"job":        jobID,
		"result":     result,
		"statistics": stats.GetSummary(),
	})
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// Writes to a connection must not run concurrently.
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		err := conn.WriteMessage(websocket.TextMessage, msgBytes)
		if err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func parseTarget(mb string) (int64, error) {
	if mb == "" {
		return 0, nil
	}
	return compressor.ParseTargetMB(mb)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
