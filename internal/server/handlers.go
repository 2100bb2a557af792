package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dluc/usearch"
	"github.com/dluc/usearch/scalar"
)

// statusOf maps index errors onto HTTP status codes.
func statusOf(err error) int {
	var dim *usearch.ErrDimensionMismatch
	switch {
	case errors.As(err, &dim),
		errors.Is(err, usearch.ErrInvalidCount),
		errors.Is(err, usearch.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, usearch.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, usearch.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, usearch.ErrCapacityExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, usearch.ErrConcurrencyViolation):
		return http.StatusMethodNotAllowed
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func keyParam(c *gin.Context) (usearch.Key, bool) {
	key, err := strconv.ParseUint(c.Param("key"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key: " + c.Param("key")})
		return 0, false
	}
	return key, true
}

func (s *Server) handleHealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleSpecs() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.index.Specs())
	}
}

func (s *Server) handleStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.index.Stats())
	}
}

func (s *Server) handleAddVector() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddVectorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := s.index.Add(req.Key, req.Vector); err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"key": req.Key})
	}
}

func (s *Server) handleAddBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(req.Keys) != len(req.Vectors) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "keys and vectors differ in length"})
			return
		}

		vectors := make([]scalar.Buffer, len(req.Vectors))
		for i, v := range req.Vectors {
			vectors[i] = scalar.F32s(v)
		}
		res, err := s.index.AddBatch(c.Request.Context(), req.Keys, vectors, usearch.AddOptions{})
		if err != nil {
			abort(c, err)
			return
		}

		resp := AddBatchResponse{Added: res.Added}
		for _, e := range res.Errors {
			if e != nil {
				resp.Errors = append(resp.Errors, e.Error())
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) handleGetVector() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := keyParam(c)
		if !ok {
			return
		}
		vectors, err := s.index.Get(key)
		if err != nil {
			abort(c, err)
			return
		}
		if len(vectors) == 0 {
			abort(c, usearch.ErrKeyNotFound)
			return
		}
		c.JSON(http.StatusOK, GetVectorResponse{Key: key, Vectors: vectors})
	}
}

func (s *Server) handleDeleteVector() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := keyParam(c)
		if !ok {
			return
		}
		n, err := s.index.Remove(key)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": n})
	}
}

func (s *Server) handleSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Count == 0 {
			req.Count = 10
		}

		m, err := s.index.SearchBuffer(scalar.F32s(req.Vector), usearch.SearchOptions{
			Count:     req.Count,
			Radius:    req.Radius,
			Expansion: req.Expansion,
			Exact:     req.Exact,
		})
		if err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, SearchResponse{
			Keys:              m.Keys,
			Distances:         m.Distances,
			VisitedMembers:    m.VisitedMembers,
			ComputedDistances: m.ComputedDistances,
		})
	}
}

func (s *Server) handleCompact() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.index.Compact(c.Request.Context()); err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"size": s.index.Len()})
	}
}

func (s *Server) handleSave() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SaveRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if err := s.index.Save(req.Path); err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bytes": s.index.SerializedLength()})
	}
}
