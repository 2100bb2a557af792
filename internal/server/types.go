package server

import "github.com/dluc/usearch"

type AddVectorRequest struct {
	Key    usearch.Key `json:"key"`
	Vector []float32   `json:"vector" binding:"required"`
}

type AddBatchRequest struct {
	Keys    []usearch.Key `json:"keys" binding:"required"`
	Vectors [][]float32   `json:"vectors" binding:"required"`
}

type AddBatchResponse struct {
	Added  int      `json:"added"`
	Errors []string `json:"errors,omitempty"`
}

type GetVectorResponse struct {
	Key     usearch.Key `json:"key"`
	Vectors [][]float32 `json:"vectors"`
}

type SearchRequest struct {
	Vector    []float32 `json:"vector" binding:"required"`
	Count     int       `json:"count"`
	Radius    float32   `json:"radius"`
	Expansion int       `json:"expansion"`
	Exact     bool      `json:"exact"`
}

type SearchResponse struct {
	Keys              []usearch.Key `json:"keys"`
	Distances         []float32     `json:"distances"`
	VisitedMembers    int           `json:"visited_members"`
	ComputedDistances int           `json:"computed_distances"`
}

type SaveRequest struct {
	Path string `json:"path"`
}
