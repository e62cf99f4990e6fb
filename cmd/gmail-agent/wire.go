package main

import (
	"fmt"
	"log"
	"time"

	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/config"
	"github.com/hal9000y/gmail-agent/internal/draft"
	"github.com/hal9000y/gmail-agent/internal/format"
	"github.com/hal9000y/gmail-agent/internal/gservice"
	"github.com/hal9000y/gmail-agent/internal/llm"
	"github.com/hal9000y/gmail-agent/internal/message"
	"github.com/hal9000y/gmail-agent/internal/rag"
	"github.com/hal9000y/gmail-agent/internal/retrieval"
	"github.com/hal9000y/gmail-agent/internal/variant"
)

// agent holds the services both commands run on.
type agent struct {
	tok    *auth.Token
	gmail  *gservice.GMail
	dec    *message.Decoder
	drafts *draft.Service
	engine *retrieval.Engine
}

func newAgent(cfg *config.Config, redirectURL string) (*agent, error) {
	tok, err := auth.NewToken(auth.NewConfig(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, redirectURL), cfg.OAuth.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("auth.NewToken failed: %w", err)
	}

	gmailSvc := gservice.NewGmail(tok, gservice.Options{
		RequestTimeout: cfg.Gmail.RequestTimeout,
		QuotaPerSecond: cfg.Gmail.QuotaPerSecond,
		BreakerTimeout: cfg.Gmail.BreakerTimeout,
	})

	model, err := llm.NewClient(cfg.LLM.Host, cfg.LLM.ChatModel, cfg.LLM.EmbedModel, cfg.LLM.Timeout)
	if err != nil {
		return nil, fmt.Errorf("llm.NewClient failed: %w", err)
	}

	gen, err := variant.NewGenerator(model, time.Now)
	if err != nil {
		return nil, fmt.Errorf("variant.NewGenerator failed: %w", err)
	}

	dec := message.NewDecoder(format.Converter{KeepLinks: cfg.Decoder.KeepLinks}, cfg.Decoder.PreferPlainText)

	engine := retrieval.NewEngine(gen, gmailSvc, dec,
		rag.NewIndexer(model, model, cfg.Retrieval.ChunkSize, cfg.Retrieval.TopK),
		retrieval.Config{
			MaxResults:   cfg.Retrieval.MaxResults,
			PageSize:     cfg.Retrieval.PageSize,
			Concurrency:  cfg.Retrieval.Concurrency,
			QueryTimeout: cfg.Retrieval.QueryTimeout,
		})

	return &agent{
		tok:    tok,
		gmail:  gmailSvc,
		dec:    dec,
		drafts: draft.NewService(gmailSvc),
		engine: engine,
	}, nil
}

func (a *agent) persistToken() {
	log.Println("Persisting token if exists")
	if err := a.tok.Persist(); err != nil {
		log.Println(fmt.Errorf("tok.Persist failed: %w", err))
	}
}
