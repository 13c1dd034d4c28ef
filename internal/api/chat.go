package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmorgan81/chatbot/internal/llm"
	"github.com/samber/lo"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Content string `json:"content"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	model := lo.Ternary(req.Model != "", req.Model, s.defaultModel)
	resp, err := s.completer.Complete(r.Context(), llm.ChatRequest{Model: model, Messages: req.Messages})
	if err != nil {
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, "model returned status "+http.StatusText(apiErr.StatusCode))
			return
		}
		writeError(w, http.StatusBadGateway, "model request failed")
		return
	}
	if len(resp.Choices) == 0 {
		writeError(w, http.StatusBadGateway, llm.ErrNoChoices.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Model: resp.Model, Content: resp.Choices[0].Message.Content})
}
