package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"photo-compressor-go/internal/compressor"
	"photo-compressor-go/internal/config"
	"photo-compressor-go/internal/pipeline"
	"photo-compressor-go/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	service    *pipeline.Service
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current batch state
	operationMutex sync.RWMutex
	isRunning      bool
	processed      int
	total          int
	lastSummary    *statistics.Summary
}

type APIResponse struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ScanRequest struct {
	Directory string `json:"directory"`
}

// CompressRequest is the body of POST /api/compress. A missing quality or
// output root falls back to the configuration; an explicit quality, even 0,
// is passed through and clamped per item.
type CompressRequest struct {
	Entries      []pipeline.EntryInput `json:"entries"`
	Quality      *int                  `json:"quality,omitempty"`
	OutputRoot   string                `json:"output_root"`
	DateHandling string                `json:"date_handling,omitempty"`
	CustomDate   string                `json:"custom_date,omitempty"`
}

// batchRequest applies the configured defaults to r.
func (r CompressRequest) batchRequest(cfg *config.Config) pipeline.CompressBatchRequest {
	req := pipeline.CompressBatchRequest{
		Entries:      r.Entries,
		Quality:      cfg.Compression.Quality,
		OutputRoot:   r.OutputRoot,
		DateHandling: r.DateHandling,
		CustomDate:   r.CustomDate,
	}
	if r.Quality != nil {
		req.Quality = *r.Quality
	}
	if req.OutputRoot == "" {
		req.OutputRoot = cfg.OutputDirectory
	}
	return req
}

type ExportRequest struct {
	FailedLines string `json:"failed_lines"`
	OutputRoot  string `json:"output_root"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ProgressMessage is the payload of a compress_progress websocket message.
type ProgressMessage struct {
	Count int `json:"count"`
	Total int `json:"total"`
}

func NewServer(cfg *config.Config, log *logrus.Logger, service *pipeline.Service) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		service:   service,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the UI is served from another origin during development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/failures/export", s.handleExportFailures).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	// No WriteTimeout: a compress response is only written once the whole batch is done.
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	data := map[string]interface{}{
		"running":   s.isRunning,
		"processed": s.processed,
		"total":     s.total,
		"summary":   s.lastSummary,
	}
	s.operationMutex.RUnlock()

	s.writeJSON(w, http.StatusOK, APIResponse{OK: true, Data: data})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Directory == "" {
		s.writeError(w, "Directory is required", http.StatusBadRequest)
		return
	}

	res := s.service.ScanDirectory(req.Directory)
	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var body CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req := body.batchRequest(s.cfg)
	if err := pipeline.ValidateRequest(req); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.beginBatch(len(req.Entries)) {
		s.writeError(w, "Batch already in progress", http.StatusConflict)
		return
	}

	s.broadcastWSMessage("compress_started", ProgressMessage{Total: len(req.Entries)})

	res := s.service.CompressBatch(req, s.progressSink(len(req.Entries)))

	s.endBatch(res.Summary)
	s.broadcastWSMessage("compress_completed", res.Summary)

	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExportFailures(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OutputRoot == "" {
		req.OutputRoot = s.cfg.OutputDirectory
	}

	res := s.service.ExportFailureReport(req.FailedLines, req.OutputRoot)
	status := http.StatusOK
	if !res.OK {
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, res)
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

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// beginBatch marks a batch as running; it fails if one already is.
func (s *Server) beginBatch(total int) bool {
	s.operationMutex.Lock()
	defer s.operationMutex.Unlock()
	if s.isRunning {
		return false
	}
	s.isRunning = true
	s.processed = 0
	s.total = total
	return true
}

func (s *Server) endBatch(summary statistics.Summary) {
	s.operationMutex.Lock()
	s.isRunning = false
	s.lastSummary = &summary
	s.operationMutex.Unlock()
}

// progressSink records progress for /api/status and pushes it to websocket clients.
func (s *Server) progressSink(total int) compressor.ProgressSink {
	return compressor.ProgressFunc(func(count int) {
		s.operationMutex.Lock()
		s.processed = count
		s.operationMutex.Unlock()
		s.broadcastWSMessage("compress_progress", ProgressMessage{Count: count, Total: total})
	})
}

func (s *Server) clientCount() int {
	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	msgBytes, err := json.Marshal(WSMessage{Type: messageType, Data: data})
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// Write lock: gorilla connections allow only one concurrent writer.
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, APIResponse{OK: false, Error: message})
}
