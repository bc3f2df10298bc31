package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"campaign-compliance/internal/markup"
	"campaign-compliance/internal/pipeline"
	"campaign-compliance/internal/store"
)

func (s *Server) handleDraft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if firstNonEmpty(req.Topic, req.PrimaryKeyword) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("topic or primary_keyword is required"))
		return
	}

	ctx := c.Request.Context()
	refs, err := s.collectReferences(ctx, req.RequestSpec, !req.SkipSearch)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	preq := req.pipelineRequest(refs, s.guidelines(req.Owner))

	result, err := s.pipeline.Run(ctx, preq, s.notifier.Observer())
	if err != nil {
		s.notifier.Broadcast(StageMessage{Type: "failed", RunID: result.RunID, Message: err.Error()})
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrGenerationFailed) {
			status = http.StatusUnprocessableEntity
		}
		s.renderError(c, status, err)
		return
	}
	s.notifier.Broadcast(StageMessage{
		Type:  "completed",
		RunID: result.RunID,
		Stage: pipeline.StageCompleted,
		Score: result.Score,
	})
	c.JSON(http.StatusOK, newDraftResponse(result, preq.Stage, len(refs)))
}

func (s *Server) handleValidate(c *gin.Context) {
	local, err := strconv.ParseBool(c.DefaultQuery("local", "false"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid local flag: %w", err))
		return
	}
	req, ok := s.bindCheck(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	refs, err := s.collectReferences(ctx, req.RequestSpec, false)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	preq := req.pipelineRequest(refs, "")
	draft := req.draft()

	summary := s.pipeline.Validate(ctx, draft, preq, local)
	c.JSON(http.StatusOK, CheckResponse{
		Title:   draft.Title,
		Body:    draft.Body,
		Stage:   preq.Stage,
		Passed:  summary.Overall.Passed,
		Summary: summary,
	})
}

func (s *Server) handleEdit(c *gin.Context) {
	req, ok := s.bindCheck(c)
	if !ok {
		return
	}
	refs, err := s.collectReferences(c.Request.Context(), req.RequestSpec, false)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	preq := req.pipelineRequest(refs, "")

	edited, summary := s.pipeline.Edit(req.draft(), preq)
	c.JSON(http.StatusOK, CheckResponse{
		Title:   edited.Title,
		Body:    edited.Body,
		Stage:   preq.Stage,
		Passed:  summary.Overall.Passed,
		Summary: summary,
	})
}

// bindCheck decodes a caller draft and normalises its body to <h2>/<p>
// markup.
func (s *Server) bindCheck(c *gin.Context) (CheckRequest, bool) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return req, false
	}
	body, err := markup.Normalize(req.Body)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("parse body: %w", err))
		return req, false
	}
	if body == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("body is required"))
		return req, false
	}
	req.Body = body
	return req, true
}

// collectReferences merges inline references, stored references for the
// owner and topic, and, when search is set, remote search results. A failed
// remote search is logged and skipped.
func (s *Server) collectReferences(ctx context.Context, spec RequestSpec, search bool) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(texts []string) {
		for _, text := range texts {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			out = append(out, text)
		}
	}

	add(spec.References)
	stored, err := s.db.ReferenceTexts(spec.Owner, spec.Topic, s.referenceLimit)
	if err != nil {
		return nil, fmt.Errorf("load references: %w", err)
	}
	add(stored)

	if search && s.refClient != nil {
		query := firstNonEmpty(spec.Topic, spec.PrimaryKeyword)
		result, err := s.refClient.Search(ctx, query)
		if err != nil {
			logrus.WithError(err).WithField("query", query).Warn("reference search failed")
		} else {
			add(result.Texts())
		}
	}
	return out, nil
}

func (s *Server) guidelines(owner string) string {
	if strings.TrimSpace(owner) == "" {
		return ""
	}
	guideline, err := s.db.GetGuideline(owner)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logrus.WithError(err).WithField("owner", owner).Warn("load guideline")
		}
		return ""
	}
	return guideline.Summary
}
