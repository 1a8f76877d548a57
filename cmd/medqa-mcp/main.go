// Command medqa-mcp serves the medical tool set over the Model Context
// Protocol on stdin/stdout, so external agent hosts can call the tools
// directly. Knowledge base search is wired in when pgvector is configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	openaisdk "github.com/openai/openai-go/v3"

	openaiembedder "github.com/MrWwei/rag-agent/contrib/embedder/openai"
	"github.com/MrWwei/rag-agent/contrib/vector/pg"
	"github.com/MrWwei/rag-agent/mcp"
	"github.com/MrWwei/rag-agent/pkg/logging"
	"github.com/MrWwei/rag-agent/rag/chunking"
	"github.com/MrWwei/rag-agent/rag/retriever"
	"github.com/MrWwei/rag-agent/tool"
	"github.com/MrWwei/rag-agent/tool/medical"
)

const dashscopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

func main() {
	var (
		name  = flag.String("name", "medqa", "server name advertised to MCP clients")
		usePG = flag.Bool("pg", false, "wire medical_knowledge_search to pgvector (MEDQA_PG_* env)")
	)
	flag.Parse()

	logger := logging.WithComponent("medqa-mcp")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var searcher medical.Searcher
	if *usePG {
		s, err := buildSearcher()
		if err != nil {
			fmt.Fprintf(os.Stderr, "knowledge base unavailable: %v\n", err)
			os.Exit(1)
		}
		searcher = s
	}

	registry := tool.NewRegistry()
	if err := medical.Register(registry, searcher); err != nil {
		fmt.Fprintf(os.Stderr, "register tools: %v\n", err)
		os.Exit(1)
	}

	server := mcp.NewServer(mcp.ServerInfo{
		Name:  *name,
		Title: "medical question answering tools",
	}, registry)

	logger.Info("serving medical tools over stdio", "tools", registry.Len())
	if err := mcp.ServeStdio(ctx, server); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func buildSearcher() (medical.Searcher, error) {
	cfg := pg.DefaultPGVectorConfig()
	if host := os.Getenv("MEDQA_PG_HOST"); host != "" {
		cfg.Host = host
	}
	if user := os.Getenv("MEDQA_PG_USER"); user != "" {
		cfg.User = user
	}
	if pass := os.Getenv("MEDQA_PG_PASSWORD"); pass != "" {
		cfg.Password = pass
	}
	if db := os.Getenv("MEDQA_PG_DB"); db != "" {
		cfg.DBName = db
	}
	store, err := pg.NewPGVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	baseURL := ""
	if apiKey == "" {
		apiKey = os.Getenv("DASHSCOPE_API_KEY")
		baseURL = dashscopeBaseURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY or DASHSCOPE_API_KEY must be set")
	}
	embedder := openaiembedder.New(apiKey, baseURL, openaisdk.EmbeddingModelTextEmbedding3Small, cfg.Dimension)
	return retriever.New(store, embedder, chunking.NewSimpleChunker()), nil
}
