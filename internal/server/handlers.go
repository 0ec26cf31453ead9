package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sarsift/sarsift/internal/cluster"
	"github.com/sarsift/sarsift/internal/message"
	"github.com/sarsift/sarsift/internal/search"
)

// StartIndexRequest carries the messages to index, either inline or as a
// path to a JSONL archive on the server's filesystem.
type StartIndexRequest struct {
	Messages []message.RawMessage `json:"messages,omitempty"`
	Path     string               `json:"path,omitempty"`
}

// StartIndexResponse returns the id of the launched job.
type StartIndexResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleStart(c *gin.Context) {
	var req StartIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Messages) == 0 && req.Path == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "messages or path required"})
		return
	}

	var src message.Source
	if req.Path != "" {
		opened, err := message.OpenJSONLFile(req.Path)
		if err != nil {
			s.writeError(c, err)
			return
		}
		src = opened
	} else {
		msgs := make([]*message.RawMessage, len(req.Messages))
		for i := range req.Messages {
			msgs[i] = &req.Messages[i]
		}
		src = message.NewSliceSource(msgs)
	}

	id := s.svc.StartIndex(c.Request.Context(), src)
	c.JSON(http.StatusOK, StartIndexResponse{JobID: id})
}

func (s *Server) handleStatus(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "job_id required"})
		return
	}

	snap, err := s.svc.JobStatus(jobID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleResult(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "job_id required"})
		return
	}

	clusters, err := s.svc.Clusters(jobID, c.Query("members") != "false")
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "clusters": clusters})
}

func (s *Server) handleIdentifiers(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "job_id required"})
		return
	}

	listing, err := s.svc.Identifiers(jobID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) handleCluster(c *gin.Context) {
	jobID := c.Query("job_id")
	clusterID := c.Query("cluster_id")
	if jobID == "" || clusterID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "job_id and cluster_id required"})
		return
	}

	parts, err := s.svc.ClusterParts(jobID, clusterID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cluster_id": clusterID, "parts": parts})
}

// UpdateClustersRequest is one edit batch against a job's clusters.
type UpdateClustersRequest struct {
	JobID string `json:"job_id"`
	cluster.EditBatch
}

func (s *Server) handleUpdateClusters(c *gin.Context) {
	var req UpdateClustersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.JobID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "job_id required"})
		return
	}

	outcome, err := s.svc.ApplyEdit(c.Request.Context(), req.JobID, req.EditBatch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// SearchRequest evaluates tri-state rules against one job.
type SearchRequest struct {
	JobID string        `json:"job_id"`
	Rules []search.Rule `json:"rules"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.JobID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "job_id required"})
		return
	}

	parts, err := s.svc.Search(req.JobID, req.Rules)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(parts), "parts": parts})
}

func (s *Server) handleHealth(c *gin.Context) {
	h := s.svc.CheckHealth(c.Request.Context())
	status := http.StatusOK
	if !h.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}
