package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leafsii/kvhelper/pkg/kv"
	"github.com/leafsii/kvhelper/pkg/kv/lock"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	store  kv.Store
	logger *zap.SugaredLogger
}

func NewHandler(store kv.Store, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Health endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// String endpoints
func (h *Handler) GetString(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, err := h.store.Get(r.Context(), key)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ValueDTO{Key: key, Value: value})
}

func (h *Handler) PutString(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req SetRequest
	if !h.decode(w, r, &req) {
		return
	}

	ttl, err := kv.Seconds(req.TTLSeconds)
	if err == nil {
		switch {
		case ttl > 0:
			err = h.store.SetEx(r.Context(), key, req.Value, ttl)
		case ttl < 0:
			err = kv.ErrInvalidExpire
		default:
			err = h.store.Set(r.Context(), key, req.Value)
		}
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetNX claims key only when it does not exist. A positive ttl_seconds goes
// out as a single SET NX EX command.
func (h *Handler) SetNX(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req SetRequest
	if !h.decode(w, r, &req) {
		return
	}

	ttl, err := kv.Seconds(req.TTLSeconds)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	var acquired bool
	if ttl != 0 {
		acquired, err = h.store.SetNXEx(r.Context(), key, req.Value, ttl)
	} else {
		acquired, err = h.store.SetNX(r.Context(), key, req.Value)
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SetNXResponse{Acquired: acquired})
}

func (h *Handler) MGet(w http.ResponseWriter, r *http.Request) {
	var req MGetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Keys) == 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "keys must not be empty")
		return
	}

	values, err := h.store.MGet(r.Context(), req.Keys...)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	resp := MGetResponse{Values: make([]MGetEntry, len(values))}
	for i, v := range values {
		resp.Values[i] = MGetEntry{Key: req.Keys[i]}
		if v.Valid {
			str := v.Str
			resp.Values[i].Value = &str
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) MSet(w http.ResponseWriter, r *http.Request) {
	var req MSetRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.store.MSet(r.Context(), req.Values); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Key endpoints
func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.Del(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: deleted})
}

func (h *Handler) KeyExists(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Exists(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	var req ExpireRequest
	if !h.decode(w, r, &req) {
		return
	}

	ttl, err := kv.Seconds(req.TTLSeconds)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	applied, err := h.store.Expire(r.Context(), chi.URLParam(r, "key"), ttl)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ExpireResponse{Applied: applied})
}

func (h *Handler) TTL(w http.ResponseWriter, r *http.Request) {
	ttl, err := h.store.TTL(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	resp := TTLResponse{TTLSeconds: -1}
	if ttl != kv.NoExpiry {
		resp.TTLSeconds = int64(ttl.Round(time.Second) / time.Second)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Counter endpoints
func (h *Handler) Incr(w http.ResponseWriter, r *http.Request) {
	h.adjustCounter(w, r, 1)
}

func (h *Handler) Decr(w http.ResponseWriter, r *http.Request) {
	h.adjustCounter(w, r, -1)
}

func (h *Handler) adjustCounter(w http.ResponseWriter, r *http.Request, sign int64) {
	key := chi.URLParam(r, "key")

	var req IncrRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	var (
		value int64
		err   error
	)
	switch {
	case req.By == nil && sign > 0:
		value, err = h.store.Incr(r.Context(), key)
	case req.By == nil:
		value, err = h.store.Decr(r.Context(), key)
	case sign > 0:
		value, err = h.store.IncrBy(r.Context(), key, *req.By)
	default:
		value, err = h.store.DecrBy(r.Context(), key, *req.By)
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CounterDTO{Value: value})
}

// Lock endpoints
func (h *Handler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if !h.decode(w, r, &req) {
		return
	}

	ttl, err := kv.Seconds(req.TTLSeconds)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	m := lock.New(h.store, chi.URLParam(r, "key"), ttl)
	acquired, err := m.TryLock(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LockResponse{Acquired: acquired, Token: m.Token()})
}

func (h *Handler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "token is required")
		return
	}

	released, err := lock.Resume(h.store, chi.URLParam(r, "key"), req.Token).Unlock(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, UnlockResponse{Released: released})
}

// Utility methods
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeStoreError maps kv sentinels to HTTP statuses
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kv.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, kv.ErrInvalidExpire):
		h.writeError(w, http.StatusBadRequest, "INVALID_EXPIRE", err.Error())
	case errors.Is(err, kv.ErrInvalidBound):
		h.writeError(w, http.StatusBadRequest, "INVALID_BOUND", err.Error())
	case errors.Is(err, lock.ErrNotHeld):
		h.writeError(w, http.StatusConflict, "LOCK_NOT_HELD", err.Error())
	case errors.Is(err, kv.ErrBackendUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", "code", code, "message", message, "status", status)
	} else {
		h.logger.Debugw("API client error", "code", code, "message", message, "status", status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
