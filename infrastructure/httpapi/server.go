// Package httpapi exposes the REST surface of the relay and mounts the
// websocket endpoint and uploaded files.
package httpapi

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/services"
	"chat-relay/storage"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Server struct {
	log          *slog.Logger
	authService  services.IAuthService
	chatService  services.IChatService
	orchestrator contract.IOrchestrator
	uploads      *storage.UploadStore
	tokens       auth.Tokens
	websocket    http.Handler
	maxUpload    int64
	mux          *http.ServeMux
}

func NewServer(
	log *slog.Logger,
	authService services.IAuthService,
	chatService services.IChatService,
	orchestrator contract.IOrchestrator,
	uploads *storage.UploadStore,
	tokens auth.Tokens,
	websocket http.Handler,
	maxUpload int64,
) *Server {
	s := &Server{
		log:          log,
		authService:  authService,
		chatService:  chatService,
		orchestrator: orchestrator,
		uploads:      uploads,
		tokens:       tokens,
		websocket:    websocket,
		maxUpload:    maxUpload,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.health)
	s.mux.HandleFunc("POST /api/auth/login", s.login)
	s.mux.HandleFunc("POST /api/auth/register", s.register)
	s.mux.Handle("POST /api/chat/messages", s.authenticated(s.sendMessage))
	s.mux.Handle("GET /api/chat/conversations/{id}/messages", s.authenticated(s.getConversation))
	s.mux.Handle("PATCH /api/chat/conversations/{id}/read", s.authenticated(s.markConversationRead))
	s.mux.Handle("GET /api/chat/unread-count", s.authenticated(s.unreadCount))
	s.mux.Handle("GET /api/admin/users", s.adminOnly(s.listUsers))
	s.mux.Handle("POST /api/admin/users", s.adminOnly(s.createUser))
	s.mux.Handle("PATCH /api/admin/users/{id}", s.adminOnly(s.updateUser))
	s.mux.Handle("GET /api/presence", s.authenticated(s.presence))
	s.mux.Handle("GET /ws", s.websocket)
	s.mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploads.Dir()))))
}

func (s *Server) authenticated(handler http.HandlerFunc) http.Handler {
	return auth.Middleware(s.tokens, handler)
}

func (s *Server) adminOnly(handler http.HandlerFunc) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := auth.IdentityFrom(r.Context())
		if identity.Kind != domain.KindAdmin {
			s.writeError(w, errors.ErrAdminRequired)
			return
		}
		handler(w, r)
	})
}

// HTTPServer wraps the router with the timeouts used in production.
// WriteTimeout stays unset: it would also cut hijacked websocket connections.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if _, err := s.orchestrator.Presence(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginResponse struct {
	Token string `json:"token"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.ErrInvalidRequest)
		return
	}
	token, err := s.authService.Login(body.Email, body.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loginResponse{Token: token.String()})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.ErrInvalidRequest)
		return
	}
	token, err := s.authService.Register(body.Name, body.Email, body.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, loginResponse{Token: token.String()})
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

// sendMessage accepts a JSON text message or a multipart form carrying
// receiverId, message, an optional voiceDuration and a file part.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sender, _ := auth.IdentityFrom(r.Context())
	cmd := domain.SendMessageCommand{Sender: sender}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+1<<20)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			var maxErr *http.MaxBytesError
			if stderrors.As(err, &maxErr) {
				s.writeError(w, errors.ErrUploadTooLarge)
				return
			}
			s.writeError(w, errors.ErrInvalidRequest)
			return
		}
		cmd.ReceiverID = r.FormValue("receiverId")
		cmd.Text = r.FormValue("message")
		if duration := r.FormValue("voiceDuration"); duration != "" {
			seconds, err := strconv.Atoi(duration)
			if err != nil {
				s.writeError(w, errors.ErrInvalidRequest)
				return
			}
			cmd.VoiceDuration = seconds
		}
		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			upload, err := s.uploads.Save(header.Filename, file)
			if err != nil {
				s.writeError(w, err)
				return
			}
			cmd.Upload = &upload
		case err != http.ErrMissingFile:
			s.writeError(w, errors.ErrInvalidRequest)
			return
		}
	} else {
		var body sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, errors.ErrInvalidRequest)
			return
		}
		cmd.ReceiverID = body.ReceiverID
		cmd.Text = body.Message
	}

	record, err := s.chatService.SendMessage(r.Context(), cmd)
	if err != nil {
		if cmd.Upload != nil {
			if err := s.uploads.Remove(*cmd.Upload); err != nil {
				s.log.Warn("Unable to remove rejected upload", "url", cmd.Upload.URL, "error", err)
			}
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, record)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.IdentityFrom(r.Context())
	cmd := domain.GetConversationCommand{
		Requester:      requester,
		ConversationID: domain.ConversationID(r.PathValue("id")),
	}
	query := r.URL.Query()
	if cursor := query.Get("cursor"); cursor != "" {
		cmd.Cursor = &cursor
	}
	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			s.writeError(w, errors.ErrInvalidRequest)
			return
		}
		cmd.Limit = n
	}
	page, err := s.chatService.GetConversation(r.Context(), cmd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) markConversationRead(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.IdentityFrom(r.Context())
	updated, err := s.chatService.MarkConversationRead(r.Context(), requester, domain.ConversationID(r.PathValue("id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"modifiedCount": updated})
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.IdentityFrom(r.Context())
	count, err := s.chatService.UnreadCount(r.Context(), requester)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"unreadCount": count})
}

// accountView is an account as shown to admins, without its password hash.
type accountView struct {
	ID        string      `json:"id"`
	Kind      domain.Kind `json:"kind"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Suspended bool        `json:"suspended"`
	CreatedAt time.Time   `json:"createdAt"`
}

func newAccountView(account repositories.Account) accountView {
	return accountView{
		ID:        account.ID,
		Kind:      account.Kind,
		Name:      account.Name,
		Email:     account.Email,
		Suspended: account.Suspended,
		CreatedAt: account.CreatedAt,
	}
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	accounts, err := s.authService.ListUsers()
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, newAccountView(account))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errors.ErrInvalidRequest)
		return
	}
	account, err := s.authService.CreateUser(body.Name, body.Email, body.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newAccountView(account))
}

type updateUserRequest struct {
	Suspended *bool `json:"suspended"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var body updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Suspended == nil {
		s.writeError(w, errors.ErrInvalidRequest)
		return
	}
	account, err := s.authService.SetSuspended(r.PathValue("id"), *body.Suspended)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newAccountView(account))
}

func (s *Server) presence(w http.ResponseWriter, r *http.Request) {
	online, err := s.orchestrator.Presence(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if online == nil {
		online = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"online": online})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
		message = "internal error"
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debug("Unable to write response", "error", err)
	}
}
