package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"screenbridge/internal/capture"
	"screenbridge/internal/input"
	"screenbridge/internal/liveness"
	"screenbridge/internal/protocol"
)

// opContext detaches backend work from the client connection. A dispatched
// operation runs to completion; each tool call is bounded by the runner timeout.
func opContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeSuccess(w http.ResponseWriter, ok bool) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

type statusResponse struct {
	Capabilities
	Service string                 `json:"service"`
	Control protocol.StatusPayload `json:"control"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	caps := s.caps
	caps.Degraded = !caps.DisplayConnected
	writeJSON(w, http.StatusOK, statusResponse{
		Capabilities: caps,
		Service:      ServiceName,
		Control:      statusPayload(s.currentStatus()),
	})
}

func (s *Server) currentStatus() liveness.Status {
	if s.liveness == nil {
		return liveness.Status{}
	}
	return s.liveness.Status()
}

func statusPayload(st liveness.Status) protocol.StatusPayload {
	return protocol.StatusPayload{
		Connected: st.Connected(),
		State:     st.State.String(),
		Reason:    st.Reason,
		Label:     st.Label(),
		CheckedAt: st.CheckedAt,
	}
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if s.capturer == nil {
		writeError(w, http.StatusInternalServerError, errNoCapturer)
		return
	}

	q := r.URL.Query()
	format, err := capture.ParseFormat(lo.CoalesceOrEmpty(q.Get("format"), string(capture.FormatJPEG)))
	if err != nil {
		s.logger.Error("screenshot rejected", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	quality := capture.DefaultQuality
	if raw := q.Get("quality"); raw != "" {
		quality, err = strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			err = fmt.Errorf("invalid quality %q: %w", raw, err)
			s.logger.Error("screenshot rejected", "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	res, err := s.capturer.Capture(opContext(r), format, quality)
	if err != nil {
		s.logger.Error("screenshot failed", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if strings.EqualFold(q.Get("return_base64"), "true") {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"format":  res.Format,
			"data":    base64.StdEncoding.EncodeToString(res.Data),
		})
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

func (s *Server) handleMousePosition(w http.ResponseWriter, r *http.Request) {
	x, y, err := s.input.Position(opContext(r))
	if err != nil {
		s.logger.Error("mouse position failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "x": 0, "y": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "x": x, "y": y})
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"windows": s.windows.List(opContext(r)),
	})
}

// decode reads the request body and answers 500 itself on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(w, r, s.maxBody, dst); err != nil {
		s.logger.Error("request rejected", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return false
	}
	return true
}

// reply logs a failed operation and reports the outcome as {success}
func (s *Server) reply(w http.ResponseWriter, op string, err error) {
	if err != nil {
		s.logger.Error("operation failed", "op", op, "error", err)
	}
	writeSuccess(w, err == nil)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !s.decode(w, r, &req) {
		return
	}
	button := input.Button(lo.FromPtrOr(req.Button, flexString(input.ButtonLeft)))
	s.reply(w, "click", s.input.Click(opContext(r), int(req.X), int(req.Y), button))
}

func (s *Server) handleDoubleClick(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w, "double_click", s.input.DoubleClick(opContext(r), int(req.X), int(req.Y)))
}

func (s *Server) handleMouseMove(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w, "mouse_move", s.input.MoveMouse(opContext(r), int(req.X), int(req.Y)))
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	var req scrollRequest
	if !s.decode(w, r, &req) {
		return
	}
	direction := input.ScrollDirection(lo.FromPtrOr(req.Direction, flexString(input.ScrollDown)))
	amount := int(lo.FromPtrOr(req.Amount, flexInt(input.DefaultScrollAmount)))
	s.reply(w, "scroll", s.input.Scroll(opContext(r), direction, amount))
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w, "drag", s.input.Drag(opContext(r), int(req.StartX), int(req.StartY), int(req.EndX), int(req.EndY)))
}

func (s *Server) handleTypeText(w http.ResponseWriter, r *http.Request) {
	var req typeRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w, "type_text", s.input.TypeText(opContext(r), string(req.Text)))
}

func (s *Server) handlePressKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w, "press_key", s.input.PressKey(opContext(r), string(req.Key)))
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.reply(w, "focus_window", s.windows.Focus(opContext(r), string(req.WindowID)))
}
