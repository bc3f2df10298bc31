package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"campaign-compliance/internal/ai"
	"campaign-compliance/internal/api"
	"campaign-compliance/internal/pipeline"
	"campaign-compliance/internal/refsource"
)

func main() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logrus.SetLevel(parsed)
		}
	}

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	aiCfg := ai.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
	if temp := os.Getenv("OPENAI_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			aiCfg.Temperature = v
		}
	}
	aiCfg.MaxTokens = envInt("OPENAI_MAX_TOKENS", 0)
	aiCfg.Timeout = envDuration("OPENAI_TIMEOUT", 0)

	refCfg := refsource.Config{
		APIKey:   os.Getenv("REFSOURCE_API_KEY"),
		BaseURL:  os.Getenv("REFSOURCE_URL"),
		Timeout:  envDuration("REFSOURCE_TIMEOUT", 0),
		CacheTTL: envDuration("REFSOURCE_CACHE_TTL", 0),
		Rows:     envInt("REFSOURCE_ROWS", 0),
	}

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.GenerateAttempts = envInt("PIPELINE_GENERATE_ATTEMPTS", pipelineCfg.GenerateAttempts)
	pipelineCfg.BasicCheckRetries = envInt("PIPELINE_BASIC_CHECK_RETRIES", pipelineCfg.BasicCheckRetries)
	pipelineCfg.CriticRounds = envInt("PIPELINE_CRITIC_ROUNDS", pipelineCfg.CriticRounds)
	pipelineCfg.FanOut = envInt("PIPELINE_FAN_OUT", pipelineCfg.FanOut)
	pipelineCfg.GenerateTimeout = envDuration("PIPELINE_GENERATE_TIMEOUT", pipelineCfg.GenerateTimeout)

	vaguePath := filepath.Join(baseDir, "internal", "scoring", "vague_terms.json")
	if override := strings.TrimSpace(os.Getenv("VAGUE_TERMS_PATH")); override != "" {
		vaguePath = override
	} else if _, err := os.Stat(vaguePath); err != nil {
		vaguePath = ""
	}

	disableAI := strings.EqualFold(strings.TrimSpace(os.Getenv("DISABLE_AI")), "true")

	cfg := api.Config{
		DBPath:          filepath.Join(dataDir, "campaign-compliance.db"),
		SpeechRulesPath: strings.TrimSpace(os.Getenv("SPEECH_RULES_PATH")),
		VagueTermsPath:  vaguePath,
		AllowedOrigins: []string{
			"http://localhost:1000",
			"http://127.0.0.1:1000",
		},
		AIConfig:          aiCfg,
		FallbackModel:     os.Getenv("OPENAI_FALLBACK_MODEL"),
		DisableAI:         disableAI,
		ClassifierTimeout: envDuration("CLASSIFIER_TIMEOUT", 0),
		RefSourceConfig:   refCfg,
		Pipeline:          pipelineCfg,
		ReferenceLimit:    envInt("REFERENCE_LIMIT", 20),
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if override := strings.TrimSpace(os.Getenv("CAMPAIGN_DB_PATH")); override != "" {
		cfg.DBPath = override
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "2000"
	}

	logrus.Infof("starting campaign-compliance backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func envInt(name string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
		logrus.WithField("env", name).Warn("ignoring non-integer value")
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		logrus.WithField("env", name).Warn("ignoring invalid duration")
	}
	return fallback
}
