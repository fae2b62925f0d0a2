package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/khrabrovart/telebot/internal/domain"
	"github.com/khrabrovart/telebot/internal/domain/model"
	"github.com/khrabrovart/telebot/internal/infra/logging"
	"github.com/khrabrovart/telebot/internal/usecase"
)

// Server implements the management API.
type Server struct {
	admin usecase.AdminUseCase
	polls usecase.PollEventUseCase
	log   *zerolog.Logger
}

func NewServer(admin usecase.AdminUseCase, polls usecase.PollEventUseCase, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{admin: admin, polls: polls, log: logger}
}

// RegisterAPIV1 mounts the handlers under /api/v1 on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rules", s.listRules)
		r.Post("/rules", s.createRule)
		r.Get("/rules/{id}", s.getRule)
		r.Put("/rules/{id}", s.putRule)
		r.Delete("/rules/{id}", s.deleteRule)

		r.Put("/bots/{id}", s.putBot)
		r.Delete("/bots/{id}", s.deleteBot)

		r.Post("/polls/{pollID}/log", s.openPollLog)
	})
}

type rulesResponse struct {
	Items []*model.PostingRule `json:"items"`
}

type openLogRequest struct {
	RuleID       string `json:"rule_id"`
	MessageID    int    `json:"message_id"`
	LogMessageID int    `json:"log_message_id"`
}

// PollLog is the rendered display state returned after opening a log.
type PollLog struct {
	PollID    string `json:"poll_id"`
	ChatID    int64  `json:"chat_id"`
	TopicID   *int   `json:"topic_id,omitempty"`
	MessageID int    `json:"message_id"`
	Text      string `json:"text"`
	Version   int64  `json:"version"`
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.admin.ListRules(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rules == nil {
		rules = []*model.PostingRule{}
	}
	writeJSON(w, http.StatusOK, rulesResponse{Items: rules})
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.admin.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var rule model.PostingRule
	if !decode(w, r, &rule) {
		return
	}
	rule.ID = ""
	saved, err := s.admin.SaveRule(r.Context(), &rule)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) putRule(w http.ResponseWriter, r *http.Request) {
	var rule model.PostingRule
	if !decode(w, r, &rule) {
		return
	}
	rule.ID = chi.URLParam(r, "id")
	saved, err := s.admin.SaveRule(r.Context(), &rule)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putBot(w http.ResponseWriter, r *http.Request) {
	var bot model.Bot
	if !decode(w, r, &bot) {
		return
	}
	bot.ID = chi.URLParam(r, "id")
	if err := s.admin.SaveBot(r.Context(), &bot); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteBot(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteBot(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) openPollLog(w http.ResponseWriter, r *http.Request) {
	var req openLogRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RuleID == "" {
		writeError(w, http.StatusBadRequest, "rule_id is required")
		return
	}
	out, err := s.polls.OpenLog(r.Context(), req.RuleID, chi.URLParam(r, "pollID"), req.MessageID, req.LogMessageID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PollLog{
		PollID:    out.PollID,
		ChatID:    out.ChatID,
		TopicID:   out.TopicID,
		MessageID: out.MessageID,
		Text:      out.Text,
		Version:   out.Version,
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		writeError(w, http.StatusBadRequest, "missing body")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("management request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
