package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/liamcoop/premium/internal/logger"
	"github.com/liamcoop/premium/internal/metrics"
	"github.com/liamcoop/premium/predictions"
	"github.com/liamcoop/premium/premium"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Prediction handlers

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := decodeRecord(r.Body)
	if err != nil {
		respondDecodeError(w, err)
		return
	}

	rec, err := s.pipeline.Validator().ValidateAll(raw)
	if err != nil {
		s.respondRejected(ctx, w, err)
		return
	}

	if r.URL.Query().Get("explain") == "true" {
		s.explain(ctx, w, raw, rec)
		return
	}

	res, cached, err := s.predict(ctx, rec)
	if err != nil {
		s.respondInternal(ctx, w, err)
		return
	}
	s.audit(ctx, rec, res, cached)

	respondJSON(w, http.StatusOK, PredictResponse{PredictedPremium: res.Premium})
}

func (s *Server) explain(ctx context.Context, w http.ResponseWriter, raw premium.RawRecord, rec *premium.ValidatedRecord) {
	exp, err := s.pipeline.Explain(raw)
	if err != nil {
		s.respondInternal(ctx, w, err)
		return
	}
	res := exp.Result
	audit := s.audit(ctx, rec, res, false)

	clamped := res.Clamped
	resp := PredictResponse{
		PredictedPremium: res.Premium,
		Segment:          res.Segment,
		ModelVersion:     res.ModelVersion,
		Clamped:          &clamped,
		RequestID:        logger.RequestID(ctx),
		Features:         exp.Features,
	}
	if audit != nil {
		resp.PredictionID = audit.ID
	}
	respondJSON(w, http.StatusOK, resp)
}

// predict consults the cache before running the model
func (s *Server) predict(ctx context.Context, rec *premium.ValidatedRecord) (*premium.PremiumResult, bool, error) {
	if s.cache == nil {
		res, err := s.pipeline.PredictRecord(rec)
		return res, false, err
	}

	key, err := predictions.Key(s.pipeline.CacheScope(), rec)
	if err != nil {
		return nil, false, err
	}

	res, hit, err := s.cache.Get(ctx, key)
	metrics.ObserveCache(hit, err)
	if err != nil {
		logger.L(ctx).Warn("cache lookup failed", "error", err)
	}
	if hit {
		logger.Trace("cache hit", "key", key)
		return res, true, nil
	}

	res, err = s.pipeline.PredictRecord(rec)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, key, res); err != nil {
		logger.L(ctx).Warn("cache write failed", "error", err)
	}
	return res, false, nil
}

// audit records a served prediction. A failed write is logged and does not
// fail the request.
func (s *Server) audit(ctx context.Context, rec *premium.ValidatedRecord, res *premium.PremiumResult, cached bool) *predictions.Record {
	metrics.ObservePrediction(res.Segment, res.ModelVersion, res.Premium, res.Clamped)

	entry := predictions.NewRecord(logger.RequestID(ctx), rec, res, cached)
	if err := s.store.Record(ctx, entry); err != nil {
		logger.L(ctx).Error("failed to record prediction", "error", err, "prediction_id", entry.ID)
		return nil
	}
	return entry
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if len(req.Records) == 0 {
		respondError(w, http.StatusBadRequest, "records must not be empty")
		return
	}
	if len(req.Records) > s.cfg.MaxBatchSize {
		respondError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d exceeds limit of %d records", len(req.Records), s.cfg.MaxBatchSize))
		return
	}
	metrics.BatchSize.Observe(float64(len(req.Records)))

	items := make([]BatchItem, len(req.Records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, raw := range req.Records {
		g.Go(func() error {
			item, err := s.batchItem(gctx, i, raw)
			items[i] = item
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.respondInternal(ctx, w, err)
		return
	}

	resp := BatchResponse{Results: items}
	for _, item := range items {
		if item.PredictedPremium != nil {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// batchItem scores one record. Validation failures stay local to the item;
// internal failures abort the whole batch.
func (s *Server) batchItem(ctx context.Context, index int, raw premium.RawRecord) (BatchItem, error) {
	item := BatchItem{Index: index}
	if raw == nil {
		item.Error = "record must be a JSON object"
		return item, nil
	}

	rec, err := s.pipeline.Validator().ValidateAll(raw)
	if err != nil {
		var violations premium.Violations
		if !errors.As(err, &violations) {
			return item, err
		}
		observeViolations(violations)
		item.Error = "validation failed"
		item.Violations = violationsOf(violations)
		return item, nil
	}

	res, cached, err := s.predict(ctx, rec)
	if err != nil {
		return item, fmt.Errorf("record %d: %w", index, err)
	}
	s.audit(ctx, rec, res, cached)

	p := res.Premium
	item.PredictedPremium = &p
	return item, nil
}

// Audit handlers

func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		s.respondInternal(r.Context(), w, err)
		return
	}
	if records == nil {
		records = []*predictions.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"predictions": records,
		"count":       len(records),
	})
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, predictions.ErrNotFound) {
			respondError(w, http.StatusNotFound, "prediction not found")
			return
		}
		s.respondInternal(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Helper functions

var errNotObject = errors.New("request body must be a JSON object")

// decodeRecord keeps numbers as json.Number so integer fields are checked
// against the literal the client sent
func decodeRecord(body io.Reader) (premium.RawRecord, error) {
	var raw premium.RawRecord
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errNotObject
	}
	return raw, nil
}

func observeViolations(violations premium.Violations) {
	logger.WarnValidation()
	for _, v := range violations {
		metrics.ObserveValidationFailure(v.FieldName(), v.Reason())
	}
}

func (s *Server) respondRejected(ctx context.Context, w http.ResponseWriter, err error) {
	var violations premium.Violations
	if !errors.As(err, &violations) {
		s.respondInternal(ctx, w, err)
		return
	}
	observeViolations(violations)
	respondJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Error:      "validation failed",
		Violations: violationsOf(violations),
	})
}

// respondInternal logs the detail and returns a generic message
func (s *Server) respondInternal(ctx context.Context, w http.ResponseWriter, err error) {
	metrics.InternalErrorsTotal.Inc()
	logger.L(ctx).Error("prediction failed", "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

func respondDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if errors.Is(err, errNotObject) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
