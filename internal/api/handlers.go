package api

import (
	"encoding/json"
	"errors"
	"net/http"

	errs "github.com/matzehuels/lanecap/pkg/errors"
	"github.com/matzehuels/lanecap/pkg/observability"
	"github.com/matzehuels/lanecap/pkg/optimizer"
	"github.com/matzehuels/lanecap/pkg/pipeline"
	"github.com/matzehuels/lanecap/pkg/render"
)

// PlanRequest is the body of POST /v1/plans and POST /v1/captures.
type PlanRequest struct {
	Graph     json.RawMessage `json:"graph,omitempty"`
	GraphTOML string          `json:"graph_toml,omitempty"`
	Strategy  string          `json:"strategy,omitempty"`
	Lanes     int             `json:"lanes,omitempty"`
	Formats   []string        `json:"formats,omitempty"`
	Detailed  bool            `json:"detailed,omitempty"`
	Refresh   bool            `json:"refresh,omitempty"`
}

// PlanResponse is returned by POST /v1/plans.
type PlanResponse struct {
	GraphHash string            `json:"graph_hash"`
	Plan      *optimizer.Plan   `json:"plan"`
	Stats     optimizer.Stats   `json:"stats"`
	Cached    bool              `json:"cached"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// CaptureResponse is returned by POST /v1/captures.
type CaptureResponse struct {
	PlanResponse
	Replay  []string       `json:"replay"`
	Capture CaptureSummary `json:"capture"`
	DOT     string         `json:"dot"`
}

// CaptureSummary counts what the replay recorded.
type CaptureSummary struct {
	Ops    int `json:"ops"`
	Lanes  int `json:"lanes"`
	Fences int `json:"fences"`
	Waits  int `json:"waits"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Code      string `json:"code"`
	Op        string `json:"op,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	opts, err := decode(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(res))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	opts, err := decode(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts.Capture = true

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sg := res.Capture
	writeJSON(w, http.StatusOK, CaptureResponse{
		PlanResponse: planResponse(res),
		Replay:       sg.Order(),
		Capture: CaptureSummary{
			Ops:    len(sg.Ops()),
			Lanes:  sg.LaneCount(),
			Fences: sg.FenceCount(),
			Waits:  sg.WaitCount(),
		},
		DOT: render.ToDOT(sg),
	})
}

// decode reads a PlanRequest into pipeline options.
func decode(w http.ResponseWriter, r *http.Request) (pipeline.Options, error) {
	var req PlanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pipeline.Options{}, errs.New(errs.ErrCodeInvalidInput, "request body exceeds %d bytes", MaxBodyBytes)
		}
		return pipeline.Options{}, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode request")
	}

	opts := pipeline.Options{
		Strategy: req.Strategy,
		Lanes:    req.Lanes,
		Formats:  req.Formats,
		Detailed: req.Detailed,
		Refresh:  req.Refresh,
	}
	switch {
	case len(req.Graph) > 0 && req.GraphTOML != "":
		return opts, errs.New(errs.ErrCodeInvalidInput, "send either graph or graph_toml, not both")
	case len(req.Graph) > 0:
		opts.Graph, opts.GraphFormat = req.Graph, pipeline.GraphJSON
	case req.GraphTOML != "":
		opts.Graph, opts.GraphFormat = []byte(req.GraphTOML), pipeline.GraphTOML
	default:
		return opts, errs.New(errs.ErrCodeInvalidInput, "graph or graph_toml is required")
	}
	return opts, nil
}

func planResponse(res *pipeline.Result) PlanResponse {
	out := PlanResponse{
		GraphHash: res.GraphHash,
		Plan:      res.Plan,
		Stats:     res.Plan.Stats(),
		Cached:    res.CacheInfo.PlanHit,
	}
	for format, data := range res.Artifacts {
		if format == pipeline.FormatJSON {
			continue
		}
		if out.Artifacts == nil {
			out.Artifacts = make(map[string]string)
		}
		out.Artifacts[format] = string(data)
	}
	return out
}

// statusFor maps an error code to an HTTP status.
func statusFor(code errs.Code) int {
	switch code {
	case errs.ErrCodeConfiguration, errs.ErrCodeInvalidInput, errs.ErrCodeInvalidGraph,
		errs.ErrCodeInvalidFormat, errs.ErrCodeInvalidPath, errs.ErrCodeUnsupported:
		return http.StatusBadRequest
	case errs.ErrCodeNotFound, errs.ErrCodeFileNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	id := RequestIDFromContext(r.Context())
	observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, id, err)

	code := errs.GetCode(err)
	if code == "" {
		code = errs.ErrCodeInternal
	}
	status := statusFor(code)
	msg := errs.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "id", id, "err", err)
	} else {
		msg = err.Error()
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:      string(code),
		Op:        string(errs.GetOp(err)),
		Message:   msg,
		RequestID: id,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
