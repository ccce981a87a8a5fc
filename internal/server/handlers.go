package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"diagnosis-service/internal/common"
	"diagnosis-service/internal/features"
	"diagnosis-service/internal/ml"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// PredictResponse is the structured success body.
type PredictResponse struct {
	Predictions []ml.Prediction `json:"predictions"`
	Disclaimer  string          `json:"disclaimer"`
}

// ErrorResponse is the structured failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports liveness and model state.
type HealthResponse struct {
	Status        string    `json:"status"`
	ModelVersion  string    `json:"model_version"`
	Classes       int       `json:"classes"`
	FailureRate   float64   `json:"failure_rate"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", newIndexPage())
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	structured := isJSON(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	fields, err := readFields(r, structured, s.cfg.MaxBodyBytes)
	if err != nil {
		logger.Debug().Err(err).Bool("structured", structured).Msg("unreadable request body")
		s.fail(w, r, structured, http.StatusBadRequest, "invalid request body")
		return
	}

	vec, err := features.Normalize(fields, features.Options{StrictSex: s.cfg.StrictSex})
	if err != nil {
		var verr *features.ValidationError
		if errors.As(err, &verr) {
			s.mw.ValidationErrorInc(verr.Field, verr.Reason.String())
			logger.Debug().
				Str("field", verr.Field).
				Str("reason", verr.Reason.String()).
				Str("source", fields.Source.String()).
				Msg("rejected field set")
			s.fail(w, r, structured, http.StatusBadRequest, verr.Error())
			return
		}
		s.fail(w, r, structured, http.StatusBadRequest, err.Error())
		return
	}

	preds, err := s.predictor.Predict(r.Context(), vec)
	if err != nil {
		logger.Error().Err(err).Interface("features", vec.Map()).Msg("prediction failed")
		s.fail(w, r, structured, http.StatusInternalServerError, common.ErrPredictionFailed.Error())
		return
	}

	ranked := ml.Rank(preds)

	if structured {
		writeJSON(w, http.StatusOK, PredictResponse{
			Predictions: lo.Map(ranked, func(p ml.Prediction, _ int) ml.Prediction {
				return ml.Prediction{
					Diagnosis:   p.Diagnosis,
					Probability: ml.Round(p.Probability, common.ProbabilityDigits),
				}
			}),
			Disclaimer: common.Disclaimer,
		})
		return
	}

	s.render(w, r, http.StatusOK, "result.html", resultPage{
		Results:    ranked,
		Disclaimer: common.Disclaimer,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := s.predictor.Info()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		ModelVersion:  info.Version,
		Classes:       len(info.Classes),
		FailureRate:   s.mw.FailureRate(),
		UptimeSeconds: time.Since(s.started).Seconds(),
		Timestamp:     time.Now().UTC(),
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.predictor.Info())
}

// readFields is the single place where the two input modes diverge.
func readFields(r *http.Request, structured bool, maxBytes int64) (features.Fields, error) {
	if structured {
		return features.FromJSON(r.Body)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return features.Fields{}, err
		}
	} else if err := r.ParseForm(); err != nil {
		return features.Fields{}, err
	}
	return features.FromForm(r.PostForm), nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// fail writes an error in the caller's mode.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, structured bool, status int, msg string) {
	if structured {
		writeJSON(w, status, ErrorResponse{Error: msg})
		return
	}
	s.render(w, r, status, "error.html", errorPage{Status: status, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// render executes into a buffer first so a template error never produces a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("template render failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
