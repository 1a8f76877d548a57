// Command medqa is the interactive medical question-answering frontend. It
// wires a retrieval backend, an LLM provider, and an optional session store,
// then runs a terminal chat loop with mode switching.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	openaisdk "github.com/openai/openai-go/v3"

	"github.com/MrWwei/rag-agent/agent"
	openaiembedder "github.com/MrWwei/rag-agent/contrib/embedder/openai"
	"github.com/MrWwei/rag-agent/contrib/provider/claude"
	"github.com/MrWwei/rag-agent/contrib/provider/gemini"
	openaiprovider "github.com/MrWwei/rag-agent/contrib/provider/openai"
	"github.com/MrWwei/rag-agent/contrib/tokenizer/tiktoken"
	"github.com/MrWwei/rag-agent/contrib/vector/pg"
	"github.com/MrWwei/rag-agent/pkg/logging"
	"github.com/MrWwei/rag-agent/pkg/telemetry"
	"github.com/MrWwei/rag-agent/qa"
	"github.com/MrWwei/rag-agent/rag/chunking"
	"github.com/MrWwei/rag-agent/rag/retriever"
	"github.com/MrWwei/rag-agent/session/store"
	"github.com/MrWwei/rag-agent/tool/medical"
)

const dashscopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

func main() {
	var (
		mode         = flag.String("mode", "rag", "answering mode: llm, rag, agent")
		enableRAG    = flag.Bool("rag", true, "enable knowledge base retrieval (rag and agent modes)")
		topK         = flag.Int("k", 3, "passages retrieved per question")
		providerName = flag.String("provider", "openai", "LLM backend: openai, claude, gemini")
		model        = flag.String("model", "", "override the backend's default model")
		pgDSN        = flag.Bool("pg", false, "use the pgvector knowledge base (MEDQA_PG_* env)")
		sessionKind  = flag.String("session", "memory", "turn persistence: memory, redis, mongo")
		sessionID    = flag.String("session-id", "default", "session identifier for turn persistence")
	)
	flag.Parse()

	logger := logging.WithComponent("medqa")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "medqa"})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())

	provider, err := buildProvider(ctx, *providerName, *model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 初始化大模型失败: %v\n", err)
		os.Exit(1)
	}

	opts := []qa.Option{
		qa.WithMode(*mode),
		qa.WithRAG(*enableRAG),
		qa.WithTopK(*topK),
		qa.WithProvider(provider),
	}

	if *providerName == "openai" {
		if tok, err := tiktoken.NewTiktokenTokenizer("cl100k_base"); err == nil {
			opts = append(opts, qa.WithTokenizer(tok))
		} else {
			logger.Warn("tiktoken unavailable, using approximate token counts", "error", err)
		}
	}

	if *enableRAG && *pgDSN {
		searcher, err := buildPGRetriever()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ 初始化知识库失败: %v\n", err)
			fmt.Fprintln(os.Stderr, "请先运行 kbindex 构建知识库，或使用 -rag=false 切换到纯大模型模式")
			os.Exit(1)
		}
		opts = append(opts, qa.WithRetriever(searcher))
	} else if *enableRAG {
		fmt.Println("🔄 未配置向量存储，检索结果将为空。使用 -pg 连接 pgvector 知识库。")
	}

	system, err := qa.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 初始化问答系统失败: %v\n", err)
		os.Exit(1)
	}

	turns, err := buildTurnStore(*sessionKind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 初始化会话存储失败: %v\n", err)
		os.Exit(1)
	}
	defer turns.Close(context.Background())

	runInteractive(ctx, system, turns, *sessionID, *topK)
}

func buildProvider(ctx context.Context, name, model string) (agent.LLMClient, error) {
	switch strings.ToLower(name) {
	case "openai":
		cfg := openaiprovider.DefaultConfig()
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.APIKey == "" {
			if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
				cfg.APIKey = key
				cfg.BaseURL = dashscopeBaseURL
				cfg.Model = "qwen-plus"
			}
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("未设置 OPENAI_API_KEY 或 DASHSCOPE_API_KEY 环境变量")
		}
		if model != "" {
			cfg.Model = model
		}
		return openaiprovider.New(cfg), nil
	case "claude":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("未设置 ANTHROPIC_API_KEY 环境变量")
		}
		cfg := claude.DefaultConfig(key, "")
		if model != "" {
			cfg.Model = model
		}
		return claude.New(cfg), nil
	case "gemini":
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("未设置 GEMINI_API_KEY 环境变量")
		}
		cfg := gemini.DefaultConfig(key)
		if model != "" {
			cfg.Model = model
		}
		return gemini.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("不支持的提供商: %s", name)
	}
}

func buildPGRetriever() (medical.Searcher, error) {
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
	vectorStore, err := pg.NewPGVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	baseURL := ""
	if apiKey == "" {
		apiKey = os.Getenv("DASHSCOPE_API_KEY")
		baseURL = dashscopeBaseURL
	}
	embedder := openaiembedder.New(apiKey, baseURL, openaisdk.EmbeddingModelTextEmbedding3Small, cfg.Dimension)

	return retriever.New(vectorStore, embedder, chunking.NewSimpleChunker()), nil
}

func buildTurnStore(kind string) (store.Store, error) {
	switch strings.ToLower(kind) {
	case "memory":
		return store.NewInMemoryStore(), nil
	case "redis":
		cfg := &store.RedisConfig{Addr: os.Getenv("MEDQA_REDIS_ADDR")}
		if cfg.Addr == "" {
			cfg.Addr = "localhost:6379"
		}
		cfg.Password = os.Getenv("MEDQA_REDIS_PASSWORD")
		return store.NewRedisStore(cfg), nil
	case "mongo":
		cfg := store.DefaultMongoConfig()
		if uri := os.Getenv("MEDQA_MONGO_URI"); uri != "" {
			cfg.URI = uri
		}
		return store.NewMongoStore(cfg)
	default:
		return nil, fmt.Errorf("不支持的会话存储: %s", kind)
	}
}

func runInteractive(ctx context.Context, system *qa.System, turns store.Store, sessionID string, k int) {
	fmt.Printf("=== 医疗问答系统 (%s) ===\n", system.ModeLabel())
	fmt.Println("欢迎使用医疗知识问答系统！")
	fmt.Println("您可以询问关于疾病、症状、治疗、药物等医疗相关问题。")
	fmt.Println("输入 'quit' 或 'exit' 退出系统。")
	fmt.Println("命令: /mode <llm|rag|agent>  /rag <on|off>  /clear  /history")
	fmt.Println(strings.Repeat("=", 50))

	logger := logging.WithComponent("medqa")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n请输入您的医疗问题: ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			fmt.Println("请输入有效的问题。")
			continue
		case input == "quit" || input == "exit" || input == "退出":
			fmt.Println("感谢使用医疗问答系统，再见！")
			return
		case strings.HasPrefix(input, "/"):
			handleCommand(ctx, system, turns, sessionID, input)
			continue
		}

		env := system.Answer(ctx, input, k)
		printEnvelope(system, env)

		turn := &store.Turn{
			SessionID:  sessionID,
			Question:   env.Question,
			Answer:     env.Answer,
			Mode:       env.Mode,
			Iterations: env.Iterations,
		}
		if err := turns.AppendTurn(ctx, turn); err != nil {
			logger.Warn("failed to persist turn", "error", err)
		}
		fmt.Println("\n" + strings.Repeat("-", 50))
	}
}

func handleCommand(ctx context.Context, system *qa.System, turns store.Store, sessionID, input string) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/mode":
		if len(fields) < 2 {
			fmt.Println("用法: /mode <llm|rag|agent>")
			return
		}
		if err := system.SwitchMode(fields[1], system.RAGEnabled() || fields[1] != "llm"); err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}
		fmt.Printf("✅ 已切换到%s\n", system.ModeLabel())
	case "/rag":
		if len(fields) < 2 {
			fmt.Println("用法: /rag <on|off>")
			return
		}
		if err := system.ToggleRAG(fields[1] == "on"); err != nil {
			fmt.Printf("❌ %v\n", err)
			return
		}
		if system.RAGEnabled() {
			fmt.Println("✅ RAG模式已开启 - 将使用专业医疗知识库")
		} else {
			fmt.Println("🔄 RAG模式已关闭 - 将使用纯大模型模式")
		}
	case "/clear":
		system.ClearHistory()
		if err := turns.Clear(ctx, sessionID); err != nil {
			fmt.Printf("❌ 清除会话记录失败: %v\n", err)
			return
		}
		fmt.Println("✅ 会话记录已清除")
	case "/history":
		history, err := turns.Turns(ctx, sessionID, 10)
		if err != nil {
			fmt.Printf("❌ 读取会话记录失败: %v\n", err)
			return
		}
		if len(history) == 0 {
			fmt.Println("暂无会话记录。")
			return
		}
		for i, turn := range history {
			fmt.Printf("%d. [%s] %s\n", i+1, turn.Mode, turn.Question)
		}
	default:
		fmt.Printf("未知命令: %s\n", fields[0])
	}
}

func printEnvelope(system *qa.System, env *qa.Envelope) {
	if strings.HasPrefix(env.Mode, "Agent") {
		fmt.Println("\n【智能体回答】")
	} else {
		fmt.Println("\n【回答】")
	}
	fmt.Println(env.Answer)

	if len(env.ToolCalls) > 0 {
		fmt.Println("\n【工具使用】")
		fmt.Printf("使用了 %d 个工具:\n", len(env.ToolCalls))
		for i, tc := range env.ToolCalls {
			fmt.Printf("  %d. %s\n", i+1, tc.Name)
		}
	}
	if env.Iterations > 0 {
		fmt.Printf("\n【执行统计】推理迭代: %d次\n", env.Iterations)
	}

	if env.RAGEnabled && len(env.Sources) > 0 {
		fmt.Println("\n【信息来源】")
		seen := map[string]bool{}
		i := 0
		for _, source := range env.Sources {
			if seen[source] {
				continue
			}
			seen[source] = true
			i++
			fmt.Printf("%d. %s\n", i, source)
		}

		fmt.Println("\n【检索信息】")
		fmt.Printf("找到 %d 个相关文档\n", len(env.Passages))
		for i, p := range env.Passages {
			fmt.Printf("%d. %s (相似度: %.3f)\n", i+1, p.Source, p.Score)
		}

		quality := system.EvaluateAnswer(env)
		fmt.Println("\n【质量评估】")
		fmt.Printf("- 答案长度: %d 字符\n", quality.AnswerLength)
		fmt.Printf("- 包含安全提醒: %s\n", yesNo(quality.HasSafetyDisclaimer))
		fmt.Printf("- 覆盖度分数: %.3f\n", quality.CoverageScore)
	} else if !env.RAGEnabled && !strings.HasPrefix(env.Mode, "Agent") {
		fmt.Println("\n【信息来源】大模型内置知识")
	}
}

func yesNo(v bool) string {
	if v {
		return "是"
	}
	return "否"
}
