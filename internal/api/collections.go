package api

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leafsii/kvhelper/pkg/kv"
)

// List endpoints
func (h *Handler) LRange(w http.ResponseWriter, r *http.Request) {
	start, err := queryInt(r, "start", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	stop, err := queryInt(r, "stop", -1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	values, err := h.store.LRange(r.Context(), chi.URLParam(r, "key"), start, stop)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ValuesResponse{Values: values})
}

func (h *Handler) LLen(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.LLen(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LengthResponse{Length: n})
}

func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req PushRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Values) == 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "values must not be empty")
		return
	}

	var (
		n   int64
		err error
	)
	switch req.Side {
	case "left":
		n, err = h.store.LPush(r.Context(), key, req.Values...)
	case "", "right":
		n, err = h.store.RPush(r.Context(), key, req.Values...)
	default:
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", "side must be left or right")
		return
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, LengthResponse{Length: n})
}

func (h *Handler) Pop(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var (
		value string
		err   error
	)
	switch side := r.URL.Query().Get("side"); side {
	case "", "left":
		value, err = h.store.LPop(r.Context(), key)
	case "right":
		value, err = h.store.RPop(r.Context(), key)
	default:
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", "side must be left or right")
		return
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ValueDTO{Key: key, Value: value})
}

// Hash endpoints
func (h *Handler) HGetAll(w http.ResponseWriter, r *http.Request) {
	fields, err := h.store.HGetAll(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, HashDTO{Fields: fields})
}

func (h *Handler) HMSet(w http.ResponseWriter, r *http.Request) {
	var req HashDTO
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "fields must not be empty")
		return
	}

	if err := h.store.HMSet(r.Context(), chi.URLParam(r, "key"), req.Fields); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HGet(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")

	value, err := h.store.HGet(r.Context(), chi.URLParam(r, "key"), field)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ValueDTO{Key: field, Value: value})
}

func (h *Handler) HSet(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.store.HSet(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "field"), req.Value)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HDel(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.HDel(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "field"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: deleted})
}

// Set endpoints
func (h *Handler) SMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.SMembers(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MembersResponse{Members: members})
}

func (h *Handler) SAdd(w http.ResponseWriter, r *http.Request) {
	h.changeMembers(w, r, h.store.SAdd)
}

func (h *Handler) SRem(w http.ResponseWriter, r *http.Request) {
	h.changeMembers(w, r, h.store.SRem)
}

func (h *Handler) changeMembers(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, key string, members ...string) (int64, error)) {
	var req MembersRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Members) == 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "members must not be empty")
		return
	}

	n, err := op(r.Context(), chi.URLParam(r, "key"), req.Members...)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) SIsMember(w http.ResponseWriter, r *http.Request) {
	isMember, err := h.store.SIsMember(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "member"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, IsMemberResponse{Member: isMember})
}

func (h *Handler) SPop(w http.ResponseWriter, r *http.Request) {
	count, err := queryInt(r, "count", 1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	members, err := h.store.SPopN(r.Context(), chi.URLParam(r, "key"), count)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MembersResponse{Members: members})
}

// Sorted set endpoints
func (h *Handler) ZAdd(w http.ResponseWriter, r *http.Request) {
	var req ZAddRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Members) == 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "members must not be empty")
		return
	}

	members := make([]kv.Z, len(req.Members))
	for i, m := range req.Members {
		members[i] = kv.Z{Member: m.Member, Score: m.Score}
	}

	added, err := h.store.ZAddMany(r.Context(), chi.URLParam(r, "key"), members...)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: added})
}

func (h *Handler) ZRange(w http.ResponseWriter, r *http.Request) {
	start, err := queryInt(r, "start", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	stop, err := queryInt(r, "stop", -1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	members, err := h.store.ZRange(r.Context(), chi.URLParam(r, "key"), start, stop)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MembersResponse{Members: members})
}

func (h *Handler) ZRangeByScore(w http.ResponseWriter, r *http.Request) {
	min, max, ok := h.scoreBounds(w, r)
	if !ok {
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	count, err := queryInt(r, "count", -1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	key := chi.URLParam(r, "key")
	var members []string
	if offset == 0 && count < 0 {
		members, err = h.store.ZRangeByScore(r.Context(), key, min, max)
	} else {
		members, err = h.store.ZRangeByScoreLimit(r.Context(), key, min, max, offset, count)
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MembersResponse{Members: members})
}

// ZCount takes min and max in the store's range syntax, so "(5" excludes 5
func (h *Handler) ZCount(w http.ResponseWriter, r *http.Request) {
	min, max := r.URL.Query().Get("min"), r.URL.Query().Get("max")
	if min == "" {
		min = "-inf"
	}
	if max == "" {
		max = "+inf"
	}

	n, err := h.store.ZCountBounds(r.Context(), chi.URLParam(r, "key"), min, max)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) ZRank(w http.ResponseWriter, r *http.Request) {
	rank, err := h.store.ZRank(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "member"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, RankResponse{Rank: rank})
}

func (h *Handler) ZScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.store.ZScore(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "member"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ScoreResponse{Score: score})
}

func (h *Handler) ZRem(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.ZRem(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "member"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: removed})
}

func (h *Handler) ZIncrBy(w http.ResponseWriter, r *http.Request) {
	var req ZIncrRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Member == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "member is required")
		return
	}

	score, err := h.store.ZIncrBy(r.Context(), chi.URLParam(r, "key"), req.By, req.Member)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ScoreResponse{Score: score})
}

// scoreBounds reads min and max, defaulting to the whole score range
func (h *Handler) scoreBounds(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	min, max := math.Inf(-1), math.Inf(1)

	for name, dst := range map[string]*float64{"min": &min, "max": &max} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid "+name+" score "+strconv.Quote(raw))
			return 0, 0, false
		}
		*dst = v
	}
	return min, max, true
}
