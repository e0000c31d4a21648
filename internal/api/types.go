package api

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Strings and keys

type SetRequest struct {
	Value      string `json:"value"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type ValueDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type SetNXResponse struct {
	Acquired bool `json:"acquired"`
}

type ExpireRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

type ExpireResponse struct {
	Applied bool `json:"applied"`
}

// TTLResponse reports -1 for a key without expiry
type TTLResponse struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type MGetRequest struct {
	Keys []string `json:"keys"`
}

type MGetEntry struct {
	Key   string  `json:"key"`
	Value *string `json:"value"` // null when missing
}

type MGetResponse struct {
	Values []MGetEntry `json:"values"`
}

type MSetRequest struct {
	Values map[string]string `json:"values"`
}

// Counters

type IncrRequest struct {
	By *int64 `json:"by,omitempty"`
}

type CounterDTO struct {
	Value int64 `json:"value"`
}

// Lists

type PushRequest struct {
	Values []string `json:"values"`
	Side   string   `json:"side,omitempty"` // "left" or "right" (default)
}

type LengthResponse struct {
	Length int64 `json:"length"`
}

type ValuesResponse struct {
	Values []string `json:"values"`
}

// Hashes

type HashDTO struct {
	Fields map[string]string `json:"fields"`
}

// Sets

type MembersRequest struct {
	Members []string `json:"members"`
}

type MembersResponse struct {
	Members []string `json:"members"`
}

type IsMemberResponse struct {
	Member bool `json:"member"`
}

// Sorted sets

type ScoredMemberDTO struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

type ZAddRequest struct {
	Members []ScoredMemberDTO `json:"members"`
}

type ZIncrRequest struct {
	Member string  `json:"member"`
	By     float64 `json:"by"`
}

type ScoreResponse struct {
	Score float64 `json:"score"`
}

type RankResponse struct {
	Rank int64 `json:"rank"`
}

// Locks

type LockRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

type LockResponse struct {
	Acquired bool   `json:"acquired"`
	Token    string `json:"token,omitempty"`
}

type UnlockRequest struct {
	Token string `json:"token"`
}

type UnlockResponse struct {
	Released bool `json:"released"`
}
