// Command kbindex builds the medical knowledge base: it walks a directory of
// source documents, cleans and chunks them, embeds the chunks, and writes the
// vectors into the configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"

	openaiembedder "github.com/MrWwei/rag-agent/contrib/embedder/openai"
	"github.com/MrWwei/rag-agent/contrib/vector/inmemory"
	"github.com/MrWwei/rag-agent/contrib/vector/pg"
	"github.com/MrWwei/rag-agent/pkg/logging"
	"github.com/MrWwei/rag-agent/rag/chunking"
	"github.com/MrWwei/rag-agent/rag/document"
	"github.com/MrWwei/rag-agent/rag/preprocess"
	"github.com/MrWwei/rag-agent/rag/retriever"
	"github.com/MrWwei/rag-agent/vector"
)

const dashscopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

var indexableExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

func main() {
	var (
		dir        = flag.String("dir", "./knowledge_base", "directory of source documents (.txt, .md, .html)")
		usePG      = flag.Bool("pg", true, "write into pgvector (MEDQA_PG_* env); otherwise index in memory as a dry run")
		chunkSize  = flag.Int("chunk-size", 500, "chunk size in characters")
		overlap    = flag.Int("overlap", 50, "chunk overlap in characters")
		dimension  = flag.Int("dimension", 1536, "embedding dimension")
		clearFirst = flag.Bool("clear", false, "clear the store before indexing")
	)
	flag.Parse()

	logger := logging.WithComponent("kbindex")
	ctx := context.Background()

	docs, err := loadDocuments(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 读取知识库目录失败: %v\n", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		fmt.Fprintf(os.Stderr, "❌ 目录 %s 中没有可索引的文档\n", *dir)
		os.Exit(1)
	}
	fmt.Printf("📚 读取了 %d 个文档\n", len(docs))

	store, err := buildStore(*usePG, *dimension)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 初始化向量存储失败: %v\n", err)
		os.Exit(1)
	}

	embedder, err := buildEmbedder(*dimension)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 初始化向量化模型失败: %v\n", err)
		os.Exit(1)
	}

	chunker := chunking.NewSimpleChunker(
		chunking.WithChunkSize(*chunkSize),
		chunking.WithOverlap(*overlap),
	)
	r := retriever.New(store, embedder, chunker)

	if *clearFirst {
		if err := r.Clear(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "❌ 清空向量存储失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("🧹 已清空向量存储")
	}

	if err := r.IndexDocuments(ctx, docs...); err != nil {
		logger.Error("indexing failed", "error", err)
		fmt.Fprintf(os.Stderr, "❌ 构建知识库失败: %v\n", err)
		os.Exit(1)
	}

	count, err := r.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  无法统计向量数量: %v\n", err)
		return
	}
	fmt.Printf("✅ 知识库构建完成，共 %d 个向量\n", count)
}

func loadDocuments(dir string) ([]document.Document, error) {
	var docs []document.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		content, err := cleanContent(path, string(raw))
		if err != nil {
			return fmt.Errorf("clean %s: %w", path, err)
		}
		if strings.TrimSpace(content) == "" {
			return nil
		}

		docs = append(docs, document.Document{
			Title:   strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Source:  path,
			Content: content,
		})
		return nil
	})
	return docs, err
}

func cleanContent(path, raw string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		text, err := preprocess.HTMLToText(raw)
		if err != nil {
			return "", err
		}
		return preprocess.Preprocess(text), nil
	}
	return preprocess.Preprocess(raw), nil
}

func buildStore(usePG bool, dimension int) (vector.VectorStore, error) {
	if !usePG {
		fmt.Println("🔄 干跑模式: 向量只写入内存，不会持久化")
		return inmemory.NewInMemoryVectorStore(), nil
	}

	cfg := pg.DefaultPGVectorConfig()
	cfg.Dimension = dimension
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
	return pg.NewPGVectorStore(cfg)
}

func buildEmbedder(dimension int) (vector.Embedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	baseURL := ""
	if apiKey == "" {
		apiKey = os.Getenv("DASHSCOPE_API_KEY")
		baseURL = dashscopeBaseURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("未设置 OPENAI_API_KEY 或 DASHSCOPE_API_KEY 环境变量")
	}
	return openaiembedder.New(apiKey, baseURL, openaisdk.EmbeddingModelTextEmbedding3Small, dimension), nil
}
