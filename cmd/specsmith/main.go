// Command specsmith runs the requirements interview and documentation
// workflow as an interactive terminal session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"specsmith/pkg/agent"
	"specsmith/pkg/artifact"
	"specsmith/pkg/chat"
	"specsmith/pkg/config"
	"specsmith/pkg/document"
	"specsmith/pkg/identity"
	"specsmith/pkg/interview"
	"specsmith/pkg/kvstore"
	"specsmith/pkg/logx"
	"specsmith/pkg/metrics"
	"specsmith/pkg/prompts"
	"specsmith/pkg/session"
	"specsmith/pkg/stage"
	"specsmith/pkg/workflow"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to JSON config file (optional)")
		username    = flag.String("user", "user", "Username the session runs under")
		sessionID   = flag.String("session", "", "Session ID to resume (default: new session)")
		metricsAddr = flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (optional)")
		promURL     = flag.String("prometheus-url", "", "Prometheus base URL backing the \"metrics\" command (optional)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("specsmith %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	os.Exit(run(*configPath, *username, *sessionID, *metricsAddr, *promURL))
}

// run contains the main application logic and returns an exit code so
// defers execute before the process exits.
func run(configPath, username, sessionID, metricsAddr, promURL string) int {
	logger := logx.NewLogger("main")

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inner, err := kvstore.OpenSQLite(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		return 1
	}
	store := kvstore.NewRetryingStore(inner, kvstore.DefaultRetryConfig)
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("state database close failed: %v", closeErr)
		}
	}()

	directory, err := identity.OpenDirectory(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open identity directory: %v\n", err)
		return 1
	}
	defer func() {
		if closeErr := directory.Close(); closeErr != nil {
			logger.Warn("directory close failed: %v", closeErr)
		}
	}()

	handle, err := agent.NewHandleFromConfig(agent.ProviderConfig{
		Provider: agent.Provider(cfg.Model.Provider),
		Model:    cfg.Model.Model,
		APIKey:   cfg.Model.APIKey,
		Host:     cfg.Model.Host,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure text generation: %v\n", err)
		return 1
	}

	promptCatalog, err := prompts.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load prompt catalog: %v\n", err)
		return 1
	}
	sections, err := loadQuestions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load question catalog: %v\n", err)
		return 1
	}
	catalog, err := interview.NewCatalog(sections)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid question catalog: %v\n", err)
		return 1
	}

	recorder := metrics.NewPrometheusRecorder()
	handle.SetRecorder(recorder)
	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	var queries *metrics.QueryService
	if promURL != "" {
		queries, err = metrics.NewQueryService(promURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid Prometheus URL: %v\n", err)
			return 1
		}
	}

	sessions := session.NewManager(store, cfg.SessionTTL())
	writer := artifact.NewWriter(cfg.DataRoot)
	engine := interview.NewEngine(catalog, sessions, handle, promptCatalog)

	stages := []stage.Stage{
		stage.NewDiagramStage(handle, writer, promptCatalog, recorder),
		stage.NewRequirementsStage(handle, writer, promptCatalog, recorder),
	}
	orchestrator := workflow.NewOrchestrator(
		sessions,
		directory,
		interview.NewTranscriptWriter(writer),
		stages,
		document.NewAssembler(handle, writer, promptCatalog),
		document.NewReviewer(handle, writer, promptCatalog),
		workflow.Flags{
			DisableDiagram:      cfg.Stages.DisableDiagram,
			DisableRequirements: cfg.Stages.DisableRequirements,
			DisableReview:       cfg.Stages.DisableReview,
		},
		recorder,
	)

	service := chat.NewService(engine, orchestrator, sessions, store, recorder)
	docChat := chat.NewDocumentChat(handle, store, promptCatalog, cfg.SessionTTL())

	if sessionID == "" {
		sessionID = chat.NewSessionID()
	}
	logger.Info("Session %s starting for user %s (provider %s)", sessionID, username, cfg.Model.Provider)

	return repl(ctx, service, docChat, queries, sessionID, username)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	return config.DefaultConfig()
}

func loadQuestions(cfg *config.Config) ([]prompts.QuestionSection, error) {
	if cfg.InterviewQuestionsPath != "" {
		return prompts.LoadQuestionsFile(cfg.InterviewQuestionsPath)
	}
	return prompts.LoadQuestions()
}

func serveMetrics(addr string, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("Serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed: %v", err)
	}
}

// repl drives the terminal conversation: interview turns, then the
// documentation workflow on completion, then document chat over the result.
func repl(ctx context.Context, service *chat.Service, docChat *chat.DocumentChat, queries *metrics.QueryService, sessionID, username string) int {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("Type your answers, \"next\" to advance, \"progress\" for status,")
		fmt.Println("\"metrics\" for session counters, \"restart\" to start over,")
		fmt.Println("or \"exit\" to quit.")
		fmt.Println()
	}

	var documentRef *artifact.Ref
	workflowDone := false

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		switch strings.ToLower(text) {
		case "exit", "quit":
			fmt.Println("Goodbye.")
			return 0
		case "progress":
			fmt.Printf("Interview progress: %.0f%%\n\n", service.Progress(ctx, sessionID))
			continue
		case "metrics":
			printSessionMetrics(ctx, queries, sessionID)
			continue
		case "restart":
			workflowDone = false
			documentRef = nil
		}

		// Once a document exists, plain input discusses it instead of
		// continuing the finished interview.
		if documentRef != nil && !strings.EqualFold(text, "restart") {
			reply, err := docChat.Discuss(ctx, sessionID, *documentRef, text)
			if err != nil {
				fmt.Printf("Document chat failed: %v\n\n", err)
				continue
			}
			fmt.Printf("%s\n\n", reply.Response)
			for _, s := range reply.Suggestions {
				fmt.Printf("Proposed change to %s: %s\n", s.Section, s.Proposed)
				if s.Rationale != "" {
					fmt.Printf("  Rationale: %s\n", s.Rationale)
				}
			}
			if len(reply.Suggestions) > 0 {
				fmt.Println()
			}
			continue
		}

		reply, err := service.StartOrContinueInterview(ctx, sessionID, username, text)
		if err != nil {
			fmt.Printf("Something went wrong: %v\n\n", err)
			continue
		}
		fmt.Printf("%s\n\n", reply)

		if service.IsComplete(ctx, sessionID) && !workflowDone {
			documentRef = runWorkflow(ctx, service, sessionID)
			workflowDone = true
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Input error: %v\n", err)
		return 1
	}
	return 0
}

// printSessionMetrics reads the session's counters back out of Prometheus.
func printSessionMetrics(ctx context.Context, queries *metrics.QueryService, sessionID string) {
	if queries == nil {
		fmt.Println("Session metrics need a Prometheus server; start with -prometheus-url.")
		fmt.Println()
		return
	}
	m, err := queries.GetSessionMetrics(ctx, sessionID)
	if err != nil {
		fmt.Printf("Metrics query failed: %v\n\n", err)
		return
	}
	fmt.Printf("Session %s:\n", m.SessionID)
	fmt.Printf("  Interview turns:    %d\n", m.InterviewTurns)
	fmt.Printf("  LLM requests:       %d (%d errors)\n", m.LLMRequests, m.LLMErrors)
	fmt.Printf("  Stage errors:       %d\n", m.StageErrors)
	fmt.Printf("  Workflow runs:      %d\n", m.WorkflowRuns)
	fmt.Printf("  Avg stage duration: %.2fs\n", m.AvgStageTime)
	fmt.Println()
}

func runWorkflow(ctx context.Context, service *chat.Service, sessionID string) *artifact.Ref {
	result, err := service.RunDocumentationWorkflow(ctx, sessionID)
	if err != nil {
		fmt.Printf("Workflow could not run: %v\n\n", err)
		return nil
	}

	fmt.Printf("%s\n", result.Message)
	if result.FinalError != "" {
		fmt.Printf("Some steps reported errors: %s\n", result.FinalError)
	}
	if result.InterviewArtifact.Path != "" {
		fmt.Printf("Interview transcript: %s\n", result.InterviewArtifact.Path)
	}
	for step, res := range result.StageResults {
		if !res.Failed() && res.Artifact != nil {
			fmt.Printf("%s artifact: %s\n", strings.ToUpper(step[:1])+step[1:], res.Artifact.Path)
		}
	}
	if result.DocumentArtifact != nil {
		fmt.Printf("Final document: %s\n", result.DocumentArtifact.Path)
		fmt.Println("You can now ask questions about the document or propose changes.")
	}
	fmt.Println()
	return result.DocumentArtifact
}
