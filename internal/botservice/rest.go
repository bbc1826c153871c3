package botservice

import (
	"io"
	"net/http"

	"connectrpc.com/connect"
	"github.com/bytedance/sonic"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/botapi"
)

const maxActivityBytes = 1 << 20

// ErrorResponse is the body of REST error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// PostMessage handles POST /api/v1/messages. The body is one activity; the
// reply carries the activities the turn produced.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActivityBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxActivityBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "activity too large")
		return
	}

	var in activity.Activity
	if err := sonic.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity: "+err.Error())
		return
	}

	out, status, err := h.process(r.Context(), in)
	if err != nil {
		writeError(w, httpStatus(connect.CodeOf(toConnectError(err))), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, botapi.ProcessActivityResponse{Activities: out, Status: status})
}
