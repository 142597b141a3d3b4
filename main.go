package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nupoint/nupoint/internal/auth"
	"github.com/nupoint/nupoint/internal/baseurl"
	"github.com/nupoint/nupoint/internal/config"
	"github.com/nupoint/nupoint/internal/index"
	"github.com/nupoint/nupoint/internal/logging"
	"github.com/nupoint/nupoint/internal/publish"
	"github.com/nupoint/nupoint/internal/server"
	"github.com/nupoint/nupoint/internal/store"
	"github.com/nupoint/nupoint/internal/streamgate"
	"github.com/nupoint/nupoint/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["packages_root"] = cfg.Global.PackagesRoot
		fields["auth"] = cfg.Global.AuthMode()
		fields["fixed_base_url"] = cfg.Global.HasFixedBaseURL()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	files, err := store.NewStore(cfg.Global.PackagesRoot)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化包存储目录失败: %v\n", err)
		return 1
	}

	// 启动顺序固定为“配置 → 全量扫描建立索引 → Fiber server”，
	// 索引就绪之前不接受任何请求。
	idx := index.New()
	indexed, err := idx.Rebuild(files.Root(), logger)
	if err != nil {
		fmt.Fprintf(stdErr, "扫描包目录失败: %v\n", err)
		return 1
	}

	gate := streamgate.New()
	resolver := baseurl.NewResolver(cfg.Global.BaseURL, cfg.Global.TrustedProxies)
	guard := auth.NewGuard(cfg.Global.ApiKey, cfg.Global.RequireAuthForRead)
	publisher := publish.NewPublisher(files, idx, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["packages_root"] = cfg.Global.PackagesRoot
	fields["indexed_versions"] = indexed
	fields["listen_port"] = cfg.Global.ListenPort
	fields["auth"] = cfg.Global.AuthMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, server.AppOptions{
		Logger:    logger,
		Index:     idx,
		Files:     files,
		Gate:      gate,
		Resolver:  resolver,
		Guard:     guard,
		Publisher: publisher,
	}); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("nupoint", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 NUPOINT_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("NUPOINT_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// startHTTPServer 启动 Fiber 并阻塞到收到终止信号。
// 优雅退出顺序：先等活跃下载流排空（或超时），再关 HTTP server，最后清空索引。
func startHTTPServer(cfg *config.Config, opts server.AppOptions) error {
	app, err := server.NewApp(opts)
	if err != nil {
		return err
	}

	logger := opts.Logger
	port := cfg.Global.ListenPort

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", port))
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	timeout := time.Duration(cfg.Global.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"action":         "shutdown",
		"active_streams": opts.Gate.Active(),
		"timeout":        timeout.String(),
	}).Info("收到终止信号，等待活跃流排空")

	if err := opts.Gate.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{
			"action":         "shutdown",
			"active_streams": opts.Gate.Active(),
		}).Warn("等待超时，强制关闭剩余下载流")
	}

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}

	opts.Index.Clear()
	logger.WithFields(logrus.Fields{"action": "shutdown"}).Info("服务已退出")
	return nil
}
