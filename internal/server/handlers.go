package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/narau/narau/internal/models"
	"github.com/narau/narau/internal/search"
	"github.com/narau/narau/internal/social"
)

// maxUploadBytes caps file uploads at 32 MiB.
const maxUploadBytes = 32 << 20

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain sentinel errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrConflict):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrGeneration):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.store.Courses(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if courses == nil {
		courses = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"courses": courses})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	ctx := r.Context()
	exists, err := s.store.HasCourse(ctx, course)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !exists {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("course %q not found", course))
		return
	}
	files, err := s.store.Files(ctx, course)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"course": course, "files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	fileName, err := url.PathUnescape(chi.URLParam(r, "fileName"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	ctx := r.Context()
	exists, err := s.store.HasFile(ctx, course, fileName)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !exists {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("file %q not found in course %q", fileName, course))
		return
	}
	chunks, err := s.store.ChunksByFile(ctx, course, fileName)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"course": course,
		"file":   fileName,
		"chunks": chunks,
	})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(content) > maxUploadBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds the %d byte upload limit", maxUploadBytes))
		return
	}

	text, err := s.extractor.ExtractBytes(content, header.Filename)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	chunks, err := s.pipeline.Ingest(r.Context(), course, header.Filename, text, "")
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"course": course,
		"file":   header.Filename,
		"chunks": chunks,
	})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	fileName, err := url.PathUnescape(chi.URLParam(r, "fileName"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if err := s.pipeline.Delete(r.Context(), course, fileName); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "file": fileName})
}

type linkRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleIngestLink(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	fileName := fileNameFromURL(req.URL)
	if fileName == "" {
		s.respondError(w, http.StatusBadRequest, "cannot derive file name from url")
		return
	}

	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid url")
		return
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, fmt.Sprintf("download failed: %v", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.respondError(w, http.StatusBadGateway, fmt.Sprintf("download failed: %s", resp.Status))
		return
	}
	// an HTML page is a landing page, not course material
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/html") {
		s.respondError(w, http.StatusBadRequest, "url serves an HTML page, not a document")
		return
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxUploadBytes))
	if err != nil {
		s.respondError(w, http.StatusBadGateway, "failed to read download")
		return
	}

	text, err := s.extractor.ExtractBytes(content, fileName)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	chunks, err := s.pipeline.Ingest(r.Context(), course, fileName, text, "")
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"course": course,
		"file":   fileName,
		"chunks": chunks,
	})
}

// fileNameFromURL takes the last path segment, dropping any query string.
func fileNameFromURL(raw string) string {
	trimmed := strings.SplitN(raw, "?", 2)[0]
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}

type textRequest struct {
	Topic string `json:"topic"`
	Text  string `json:"text"`
}

// handleIngestText adds free-form text under the topic name, so a topic can
// later be removed like any other file.
func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		s.respondError(w, http.StatusBadRequest, "topic is required")
		return
	}
	chunks, err := s.pipeline.Ingest(r.Context(), course, req.Topic, req.Text, req.Topic)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"course": course,
		"file":   req.Topic,
		"chunks": chunks,
	})
}

func (s *Server) handleFacebookSync(w http.ResponseWriter, r *http.Request) {
	if s.social == nil {
		s.respondError(w, http.StatusServiceUnavailable, "facebook page is not configured")
		return
	}
	course := chi.URLParam(r, "course")
	if !models.ValidCourseName(course) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid course name %q", course))
		return
	}
	ctx := r.Context()
	posts, err := s.social.PagePosts(ctx)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, fmt.Sprintf("fetch page posts: %v", err))
		return
	}

	ingested, skipped := 0, 0
	for _, post := range posts {
		if post.Message == "" {
			skipped++
			continue
		}
		fileID := post.FileID()
		exists, err := s.store.HasFile(ctx, course, fileID)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		if exists {
			skipped++
			continue
		}
		if _, err := s.pipeline.Ingest(ctx, course, fileID, post.Message, "facebook"); err != nil {
			s.respondServiceError(w, err)
			return
		}
		ingested++
	}
	s.respondJSON(w, http.StatusOK, map[string]int{
		"ingested": ingested,
		"skipped":  skipped,
	})
}

func (s *Server) handleListFacebookPosts(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	ctx := r.Context()
	exists, err := s.store.HasCourse(ctx, course)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !exists {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("course %q not found", course))
		return
	}
	files, err := s.store.Files(ctx, course)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	posts := []string{}
	for _, f := range files {
		if strings.HasPrefix(f, social.FilePrefix) {
			posts = append(posts, strings.TrimPrefix(f, social.FilePrefix))
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"course": course, "posts": posts})
}

type retrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// snippetMaxLen bounds the preview text on retrieve results.
const snippetMaxLen = 200

type retrievedChunk struct {
	ID       string  `json:"id"`
	FileName string  `json:"file_name"`
	Topic    string  `json:"topic,omitempty"`
	Content  string  `json:"content"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	exists, err := s.store.HasCourse(r.Context(), course)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !exists {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("course %q not found", course))
		return
	}
	results, err := s.engine.Retrieve(r.Context(), course, req.Query, req.TopK)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	out := make([]*retrievedChunk, len(results))
	for i, res := range results {
		out[i] = &retrievedChunk{
			ID:       res.Chunk.ID,
			FileName: res.Chunk.FileName,
			Topic:    res.Chunk.Topic,
			Content:  res.Chunk.Content,
			Snippet:  search.Snippet(res.Chunk.Content, snippetMaxLen),
			Score:    res.Score,
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": out})
}

type answerRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := s.orchestrator.Answer(r.Context(), course, req.UserID, req.Query)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, msg)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	msgs, err := s.memory.Messages(r.Context(), course, userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"course": course, "messages": msgs})
}

type reactionRequest struct {
	Reaction int `json:"reaction"`
}

func (s *Server) handleSetReaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.memory.SetReaction(r.Context(), id, req.Reaction); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type feedbackRequest struct {
	UserID string `json:"user_id"`
	Course string `json:"course"`
}

func (s *Server) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Course == "" {
		s.respondError(w, http.StatusBadRequest, "user_id and course are required")
		return
	}
	fb := &models.Feedback{UserID: req.UserID, Course: req.Course}
	if err := s.store.AddFeedback(r.Context(), fb); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.StatusNew
	}
	feedback, err := s.store.FeedbackByCourse(r.Context(), course, status)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if feedback == nil {
		feedback = []*models.Feedback{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"course": course, "feedback": feedback})
}

type feedbackStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	course := chi.URLParam(r, "course")
	userID := chi.URLParam(r, "userID")
	var req feedbackStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		s.respondError(w, http.StatusBadRequest, "status is required")
		return
	}
	exists, err := s.store.HasFeedback(r.Context(), course, userID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if !exists {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("no feedback from user %q in course %q", userID, course))
		return
	}
	fb, err := s.store.UpdateFeedbackStatus(r.Context(), course, userID, req.Status)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, fb)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courses, err := s.store.Courses(ctx)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	files := 0
	var chunks int64
	for _, course := range courses {
		names, err := s.store.Files(ctx, course)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		files += len(names)
		n, err := s.store.CountChunks(ctx, course)
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		chunks += n
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"courses": len(courses),
		"files":   files,
		"chunks":  chunks,
		"config": map[string]interface{}{
			"chunk_size":           s.config.Search.ChunkSize,
			"chunk_overlap":        s.config.Search.ChunkOverlap,
			"top_k":                s.config.Search.TopK,
			"history_window":       s.config.Search.HistoryWindow,
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"facebook_sync":        s.social != nil,
		},
	})
}
