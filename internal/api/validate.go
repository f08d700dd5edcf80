package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"carpnav/internal/instance"
	"carpnav/internal/model"
)

// errBadRequest marks request decoding failures, as opposed to invalid
// instance content.
var errBadRequest = errors.New("bad request")

// decodeSolveRequest accepts either a JSON SolveRequest or the raw instance
// text (Content-Type text/plain, name and report taken from the query).
func (s *Server) decodeSolveRequest(r *http.Request) (model.SolveRequest, error) {
	var req model.SolveRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "text/plain":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return req, fmt.Errorf("read body: %w: %w", err, errBadRequest)
		}
		req.Instance = string(body)
		req.Name = r.URL.Query().Get("name")
	case "", "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON: %w: %w", err, errBadRequest)
		}
	default:
		return req, fmt.Errorf("unsupported content type %q: %w", ct, errBadRequest)
	}
	if v := r.URL.Query().Get("report"); v == "true" || v == "1" {
		req.Report = true
	}
	if err := s.validate.Struct(req); err != nil {
		return req, fmt.Errorf("%s: %w", describeValidation(err), errBadRequest)
	}
	return req, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required_without":
			msgs = append(msgs, "one of instance or graph is required")
		case "excluded_with":
			msgs = append(msgs, "instance and graph are mutually exclusive")
		default:
			msgs = append(msgs, fmt.Sprintf("%s fails %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// graphFor materializes and validates the instance of req.
func (s *Server) graphFor(req model.SolveRequest) (*instance.Graph, error) {
	var g *instance.Graph
	if req.Graph != nil {
		g = req.Graph
		if err := g.Validate(); err != nil {
			return nil, err
		}
	} else {
		parsed, _, err := instance.Parse(strings.NewReader(req.Instance))
		if err != nil {
			return nil, err
		}
		g = parsed
	}
	if req.Name != "" {
		g.Name = req.Name
	}
	if g.Name == "" {
		g.Name = "unnamed"
	}
	return g, nil
}
