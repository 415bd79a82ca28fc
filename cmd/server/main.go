package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/daymade/tiktok-whisper/internal/media"
	"github.com/daymade/tiktok-whisper/internal/speech"
	"github.com/daymade/tiktok-whisper/internal/storage"
	"github.com/daymade/tiktok-whisper/internal/temporal/activities"
	"github.com/daymade/tiktok-whisper/internal/temporal/common"
	"github.com/daymade/tiktok-whisper/internal/temporal/contract"
	"github.com/daymade/tiktok-whisper/internal/temporal/workflows"
)

type server struct {
	temporal  client.Client
	taskQueue string
	uploadDir string
	logger    *zap.Logger
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: .env file not found: %v\n", err)
	}

	logger := common.MustNewLogger(common.GetEnv("ENV", "production") == "development")
	defer logger.Sync()

	cfg := common.DefaultTemporalConfig()
	temporalClient, err := common.NewTemporalClient(cfg)
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	acts, err := buildActivities(logger)
	if err != nil {
		logger.Fatal("Failed to initialize collaborators", zap.Error(err))
	}

	maxConcurrent, err := common.GetEnvInt("MAX_CONCURRENT_ACTIVITIES", 4)
	if err != nil {
		logger.Fatal("Invalid worker configuration", zap.Error(err))
	}
	w := worker.New(temporalClient, cfg.TaskQueue, worker.Options{
		// one task queue, so this bounds every activity of the process;
		// sized for transcription, which dominates the other steps
		MaxConcurrentActivityExecutionSize: maxConcurrent,
	})
	w.RegisterWorkflow(workflows.TranscribePipelineWorkflow)
	w.RegisterWorkflow(workflows.BatchTranscribeWorkflow)
	w.RegisterActivity(acts.Download)
	w.RegisterActivity(acts.Convert)
	w.RegisterActivity(acts.Transcribe)
	w.RegisterActivity(acts.Upload)
	w.RegisterActivity(acts.Cleanup)

	go func() {
		logger.Info("Starting Temporal worker",
			zap.String("temporalHost", cfg.HostPort),
			zap.String("taskQueue", cfg.TaskQueue),
			zap.String("namespace", cfg.Namespace))
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal("Worker stopped", zap.Error(err))
		}
	}()

	uploadDir := common.GetEnv("UPLOAD_DIR", filepath.Join(common.DefaultWorkDir, "uploads"))
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		logger.Fatal("Failed to create upload dir", zap.Error(err))
	}

	s := &server{
		temporal:  temporalClient,
		taskQueue: cfg.TaskQueue,
		uploadDir: uploadDir,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", s.handleTranscribe)
	mux.HandleFunc("/batch", s.handleBatch)
	mux.HandleFunc("/runs/", s.handleRunStatus)

	port := common.GetEnv("HTTP_PORT", "8080")
	logger.Info("HTTP server listening", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
}

// buildActivities wires the collaborators from the environment. The speech
// engine handle is created once here and shared read-only by the worker.
func buildActivities(logger *zap.Logger) (*activities.Activities, error) {
	workDir := common.GetEnv("WORK_DIR", common.DefaultWorkDir)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	var store storage.ObjectStore
	switch backend := common.GetEnv("STORE_BACKEND", "minio"); backend {
	case "memory":
		store = storage.NewMemoryStore()
		logger.Warn("Using in-memory object store; transcripts will not survive a restart")
	case "minio":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		minioStore, err := storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  common.GetEnv("MINIO_ENDPOINT", common.DefaultMinIOEndpoint),
			AccessKey: common.GetEnv("MINIO_ACCESS_KEY", common.DefaultMinIOAccessKey),
			SecretKey: common.GetEnv("MINIO_SECRET_KEY", common.DefaultMinIOSecretKey),
			Bucket:    common.GetEnv("MINIO_BUCKET", common.DefaultMinIOBucket),
			UseSSL:    common.GetEnv("MINIO_USE_SSL", "false") == "true",
		})
		if err != nil {
			return nil, err
		}
		store = minioStore
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}

	engine := speech.NewWhisperServerEngine(speech.WhisperServerConfig{
		BaseURL: common.GetEnv("WHISPER_SERVER_URL", common.DefaultWhisperServerURL),
		Model:   common.GetEnv("WHISPER_MODEL", "whisper-large-v3"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.HealthCheck(ctx); err != nil {
		logger.Warn("Speech engine health check failed at startup", zap.Error(err))
	}

	converter := media.NewFFmpegConverter()
	return activities.New(
		media.NewHTTPFetcher(),
		converter,
		converter,
		engine,
		store,
		vadFromEnv(),
		workDir,
	), nil
}

func vadFromEnv() speech.VADConfig {
	cfg := speech.DefaultVADConfig()
	if v, err := strconv.ParseFloat(os.Getenv("VAD_NO_SPEECH_THRESHOLD"), 64); err == nil {
		cfg.NoSpeechThreshold = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAD_MIN_SPEECH_MS")); err == nil {
		cfg.MinSpeechMs = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAD_MIN_SILENCE_MS")); err == nil {
		cfg.MinSilenceMs = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAD_SPEECH_PAD_MS")); err == nil {
		cfg.SpeechPadMs = v
	}
	return cfg
}

type transcribeRequest struct {
	Source       string `json:"source"`
	Language     string `json:"language"`
	OutputFormat string `json:"output_format"`
}

func (s *server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "use POST /transcribe", http.StatusMethodNotAllowed)
		return
	}

	var req transcribeRequest
	var savedPath string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(500 << 20); err != nil {
			http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file field: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		savedPath, err = s.saveUpload(file, header)
		if err != nil {
			http.Error(w, "failed to save file: "+err.Error(), http.StatusInternalServerError)
			return
		}
		req.Source = "file://" + savedPath
		req.Language = r.FormValue("language")
		req.OutputFormat = r.FormValue("output_format")
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Source == "" {
		http.Error(w, "source is required", http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
	defer cancel()

	we, err := s.temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "pipeline-" + runID,
		TaskQueue: s.taskQueue,
	}, workflows.TranscribePipelineWorkflow, contract.PipelineRequest{
		RunID:        runID,
		Source:       req.Source,
		Language:     req.Language,
		OutputFormat: req.OutputFormat,
	})
	if err != nil {
		http.Error(w, "failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("Pipeline started",
		zap.String("runId", runID),
		zap.String("workflowId", we.GetID()),
		zap.String("source", req.Source))

	if savedPath != "" {
		go s.removeUploadWhenDone(runID, savedPath, we)
	}

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"run_id":      runID,
			"workflow_id": we.GetID(),
		})
		return
	}

	var result contract.PipelineResult
	if err := we.Get(ctx, &result); err != nil {
		http.Error(w, "workflow failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusForResult(result), result)
}

type batchRequest struct {
	Sources      []string `json:"sources"`
	Language     string   `json:"language"`
	OutputFormat string   `json:"output_format"`
	MaxParallel  int      `json:"max_parallel"`
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "use POST /batch", http.StatusMethodNotAllowed)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	sources := lo.Filter(req.Sources, func(src string, _ int) bool { return src != "" })
	if len(sources) == 0 {
		http.Error(w, "sources is required", http.StatusBadRequest)
		return
	}

	batchID := uuid.New().String()
	we, err := s.temporal.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
		ID:        "batch-" + batchID,
		TaskQueue: s.taskQueue,
	}, workflows.BatchTranscribeWorkflow, workflows.BatchRequest{
		BatchID:      batchID,
		Sources:      sources,
		Language:     req.Language,
		OutputFormat: req.OutputFormat,
		MaxParallel:  req.MaxParallel,
	})
	if err != nil {
		http.Error(w, "failed to start batch: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"batch_id":    batchID,
		"workflow_id": we.GetID(),
		"total":       len(sources),
	})
}

func (s *server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "use GET /runs/{id}", http.StatusMethodNotAllowed)
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/runs/")
	if runID == "" {
		http.Error(w, "run id is required", http.StatusBadRequest)
		return
	}

	resp, err := s.temporal.QueryWorkflow(r.Context(), "pipeline-"+runID, "", workflows.QueryStatus)
	if err != nil {
		http.Error(w, "failed to query run: "+err.Error(), http.StatusNotFound)
		return
	}
	var status contract.RunStatus
	if err := resp.Get(&status); err != nil {
		http.Error(w, "failed to decode status: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *server) saveUpload(file multipart.File, hdr *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(hdr.Filename)
	if ext == "" {
		ext = ".m4a"
	}
	destPath := filepath.Join(s.uploadDir, uuid.New().String()+ext)

	out, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		return "", err
	}
	return destPath, nil
}

// removeUploadWhenDone deletes a saved upload once its run has finished.
// The Download step copies the file into the run's scratch directory, so
// the original under uploadDir is dead weight after that; waiting for the
// whole run keeps the window simple.
func (s *server) removeUploadWhenDone(runID, path string, we client.WorkflowRun) {
	if err := we.Get(context.Background(), nil); err != nil {
		s.logger.Warn("Pipeline ended with error; removing upload anyway",
			zap.String("runId", runID), zap.Error(err))
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove uploaded file",
			zap.String("runId", runID), zap.String("path", path), zap.Error(err))
	}
}

func statusForResult(result contract.PipelineResult) int {
	if result.Status == contract.StatusCompleted {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
