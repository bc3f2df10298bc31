package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/editor"
	"campaign-compliance/internal/factguard"
	"campaign-compliance/internal/markup"
	"campaign-compliance/internal/pipeline"
	"campaign-compliance/internal/refsource"
	"campaign-compliance/internal/scoring"
	"campaign-compliance/internal/speechlaw"
	"campaign-compliance/internal/store"
)

// Config defines server dependencies.
type Config struct {
	DBPath            string
	SpeechRulesPath   string
	VagueTermsPath    string
	AllowedOrigins    []string
	SilentDB          bool
	AIConfig          ai.Config
	FallbackModel     string
	DisableAI         bool
	ClassifierTimeout time.Duration
	RefSourceConfig   refsource.Config
	Pipeline          pipeline.Config
	Editor            editor.Config
	ReferenceLimit    int
	// Completer replaces the OpenAI client when set.
	Completer ai.Completer
}

// Server wires HTTP handlers with persistence and the draft pipeline.
type Server struct {
	db             *store.Database
	pipeline       *pipeline.Orchestrator
	editor         *editor.Editor
	refClient      *refsource.Client
	notifier       *StageNotifier
	allowedOrigins []string
	rulesPath      string
	vaguePath      string
	referenceLimit int
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}

	table, err := speechlaw.LoadRules(cfg.SpeechRulesPath)
	if err != nil {
		return nil, fmt.Errorf("speech rules: %w", err)
	}
	vague := scoring.DefaultVagueTerms()
	if path := strings.TrimSpace(cfg.VagueTermsPath); path != "" {
		if vague, err = scoring.NewVagueTerms(path); err != nil {
			return nil, fmt.Errorf("vague terms: %w", err)
		}
	}

	completer, err := buildCompleter(cfg)
	if err != nil {
		return nil, err
	}
	var semantic speechlaw.SemanticClassifier
	if llm := speechlaw.NewLLMClassifier(completer, cfg.ClassifierTimeout); llm != nil {
		semantic = llm
	} else {
		logrus.Info("semantic classifier disabled - ambiguous sentences are reported unjudged")
	}

	var refClient *refsource.Client
	if strings.TrimSpace(cfg.RefSourceConfig.APIKey) == "" {
		logrus.Info("reference search disabled - no API key configured")
	} else {
		client, err := refsource.NewClient(cfg.RefSourceConfig)
		if err != nil {
			return nil, fmt.Errorf("refsource client: %w", err)
		}
		refClient = client
		logrus.WithFields(logrus.Fields{
			"rows":    cfg.RefSourceConfig.Rows,
			"ttl":     cfg.RefSourceConfig.CacheTTL,
			"timeout": cfg.RefSourceConfig.Timeout,
		}).Info("reference search enabled")
	}

	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	ed := editor.New(cfg.Editor).WithRules(table)
	orchestrator := pipeline.New(cfg.Pipeline, pipeline.Deps{
		Completer: completer,
		SpeechLaw: speechlaw.NewClassifier(table, semantic),
		Titles:    scoring.NewTitleValidator(ed.Config().Title, vague, factguard.MissingFrom),
		Keywords:  scoring.NewKeywordValidator(ed.Config().Keywords),
		Editor:    ed,
	})

	server := &Server{
		db:             db,
		pipeline:       orchestrator,
		editor:         ed,
		refClient:      refClient,
		notifier:       NewStageNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		rulesPath:      cfg.SpeechRulesPath,
		vaguePath:      cfg.VagueTermsPath,
		referenceLimit: cfg.ReferenceLimit,
	}
	if server.referenceLimit <= 0 {
		server.referenceLimit = 20
	}
	return server, nil
}

// buildCompleter returns nil when no model is available; the pipeline then
// completes through the fallback draft.
func buildCompleter(cfg Config) (ai.Completer, error) {
	if cfg.Completer != nil {
		return cfg.Completer, nil
	}
	if cfg.DisableAI {
		logrus.Info("text model disabled via configuration")
		return nil, nil
	}
	primary, err := ai.NewClient(cfg.AIConfig)
	if errors.Is(err, ai.ErrDisabled) {
		logrus.Warn("no OpenAI credentials configured - drafts use the fallback builder")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ai client: %w", err)
	}
	logrus.WithField("model", primary.Model()).Info("text model enabled")

	model := strings.TrimSpace(cfg.FallbackModel)
	if model == "" || model == primary.Model() {
		return primary, nil
	}
	fallbackCfg := cfg.AIConfig
	fallbackCfg.Model = model
	secondary, err := ai.NewClient(fallbackCfg)
	if err != nil {
		return nil, fmt.Errorf("fallback ai client: %w", err)
	}
	logrus.WithField("model", model).Info("fallback text model enabled")
	return ai.WithFallback(primary, secondary), nil
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/drafts", s.handleDraft)
		api.GET("/drafts/stream", s.handleDraftStream)
		api.POST("/validate", s.handleValidate)
		api.POST("/edit", s.handleEdit)
		api.GET("/references", s.handleListReferences)
		api.POST("/references", s.handleCreateReference)
		api.DELETE("/references/:id", s.handleDeleteReference)
		api.GET("/guidelines/:owner", s.handleGetGuideline)
		api.PUT("/guidelines/:owner", s.handlePutGuideline)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	count, err := s.db.CountReferences()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ai_enabled":        s.pipeline.AIEnabled(),
		"reference_search":  s.refClient != nil,
		"stages":            speechlaw.Stages(),
		"pipeline":          s.pipeline.Config(),
		"editor":            s.editor.Config(),
		"speech_rules_path": s.rulesPath,
		"vague_terms_path":  s.vaguePath,
		"references":        count,
	})
}

func (s *Server) handleDraftStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("draft websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("draft websocket closed")
			} else {
				logrus.WithError(err).Warn("draft websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) handleListReferences(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, total, err := s.db.ListReferences(store.ReferenceQuery{
		Owner:  c.Query("owner"),
		Topic:  c.Query("topic"),
		Query:  c.Query("q"),
		Offset: max(offset, 0),
		Limit:  limit,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	withContent := strings.EqualFold(c.Query("content"), "true")
	items := make([]ReferenceDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, toReferenceDTO(row, withContent))
	}
	c.JSON(http.StatusOK, ReferenceListResponse{Items: items, Total: total})
}

func (s *Server) handleCreateReference(c *gin.Context) {
	var req ReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	content, err := markup.PlainText(req.Content, req.Format)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("convert content: %w", err))
		return
	}
	if content == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("content is required"))
		return
	}

	doc := store.ReferenceDoc{
		Owner:   req.Owner,
		Topic:   req.Topic,
		Title:   req.Title,
		Source:  req.Source,
		Content: content,
	}
	if err := s.db.SaveReference(&doc); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.WithFields(logrus.Fields{"id": doc.ID, "owner": doc.Owner, "chars": doc.Chars}).Info("reference stored")
	c.JSON(http.StatusCreated, toReferenceDTO(doc, true))
}

func (s *Server) handleDeleteReference(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.db.DeleteReference(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, err)
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetGuideline(c *gin.Context) {
	guideline, err := s.db.GetGuideline(c.Param("owner"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, err)
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, guideline)
}

func (s *Server) handlePutGuideline(c *gin.Context) {
	owner := strings.TrimSpace(c.Param("owner"))
	var req GuidelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if owner == "" || strings.TrimSpace(req.Summary) == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("owner and summary are required"))
		return
	}
	guideline, err := s.db.SaveGuideline(owner, req.Summary)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, guideline)
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseUintParam(value string) (uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("identifier is required")
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier: %w", err)
	}
	if parsed == 0 {
		return 0, errors.New("identifier must be greater than zero")
	}
	return uint(parsed), nil
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
