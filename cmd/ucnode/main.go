// Package main 提供 ucnode 命令行入口
//
// 启动节点、打印对外地址，把标准输入的每一行发布到聊天主题，
// 并把收到的消息打印到标准输出。
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-ucnode"
	"github.com/dep2p/go-ucnode/config"
	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
	"github.com/dep2p/go-ucnode/pkg/lib/log"
	"github.com/dep2p/go-ucnode/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数 > 环境变量（UCNODE_*）> 配置文件 > 默认值
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile   = flag.String("config", "", "配置文件路径（.json / .yaml）")
	listenAddrs  = flag.String("listen", "", "监听地址，逗号分隔")
	bootstrap    = flag.String("bootstrap", "", "引导节点地址，逗号分隔；传 none 禁用")
	identityFile = flag.String("identity", "", "身份密钥文件路径")
	logLevel     = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	topic        = flag.String("topic", "", "聊天主题")
	relayHop     = flag.Bool("relay-hop", false, "作为中继为其他节点转发")
	enableMDNS   = flag.Bool("mdns", false, "启用局域网 mDNS 发现")
	metricsAddr  = flag.String("metrics", "", "Prometheus 指标监听地址，如 127.0.0.1:9090")
	showVersion  = flag.Bool("version", false, "显示版本信息")
)

var logger = log.Logger("cmd/ucnode")

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(ucnode.VersionInfo())
		return
	}

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 配置错误: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// run 启动节点并运行到 ctx 结束
//
// 输入结束只停止发布，节点继续接收消息直到收到退出信号。
func run(ctx context.Context, cfg *config.Config, in io.Reader, out, errOut io.Writer) error {
	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	node, err := ucnode.New(startCtx, ucnode.WithConfig(cfg))
	startCancel()
	if err != nil {
		return err
	}
	defer func() { _ = node.Close() }()

	printNodeInfo(out, node)

	if *metricsAddr != "" {
		srv := serveMetrics(node, *metricsAddr)
		defer func() { _ = srv.Close() }()
	}

	go receiveLoop(ctx, node.Subscription(), node.ID(), out)
	go func() {
		publishLoop(ctx, node, in, errOut)
		if ctx.Err() == nil {
			logger.Info("input closed, publishing stopped")
		}
	}()

	<-ctx.Done()
	fmt.Fprintln(out, "\n正在关闭...")
	return nil
}

// buildConfig 按优先级合并配置
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		logger.Info("config loaded", "path", *configFile)
	}

	applyEnvOverrides(cfg)

	if *listenAddrs != "" {
		cfg.Transport.ListenAddrs = splitList(*listenAddrs)
	}
	switch *bootstrap {
	case "":
	case "none":
		cfg.Discovery.BootstrapPeers = nil
	default:
		cfg.Discovery.BootstrapPeers = splitList(*bootstrap)
	}
	if *identityFile != "" {
		cfg.Identity = cfg.Identity.WithKeyFile(*identityFile)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *topic != "" {
		cfg.Topic = *topic
	}
	if *relayHop {
		cfg.Relay.EnableHop = true
	}
	if *enableMDNS {
		cfg.Discovery.MDNS.Enable = true
	}
	return cfg, nil
}

func printNodeInfo(w io.Writer, node *ucnode.Node) {
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                    ucnode                            ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════╝")
	fmt.Fprintf(w, "节点 ID: %s\n", node.ID())
	fmt.Fprintf(w, "主题:    %s\n", node.Topic())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "监听地址:")
	for _, addr := range node.Addrs() {
		fmt.Fprintf(w, "  %s/p2p/%s\n", addr, node.ID())
	}
	if webrtc := node.WebRTCAddrs(); len(webrtc) > 0 {
		fmt.Fprintln(w, "WebRTC 地址:")
		for _, addr := range webrtc {
			fmt.Fprintf(w, "  %s\n", addr)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "输入消息后回车发送，Ctrl+C 退出")
}

// receiveLoop 打印收到的消息，跳过自己发布的
func receiveLoop(ctx context.Context, sub pkgif.TopicSubscription, self types.PeerID, w io.Writer) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.From == self {
			continue
		}
		fmt.Fprintf(w, "[%s] %s\n", msg.From.ShortString(), strings.TrimRight(string(msg.Data), "\n"))
	}
}

// publisher 发布到节点订阅的主题
type publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// publishLoop 把输入逐行发布，直到输入结束或节点关闭
func publishLoop(ctx context.Context, p publisher, r io.Reader, errOut io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := p.Publish(ctx, []byte(line)); err != nil {
			if errors.Is(err, ucnode.ErrNodeClosed) {
				return
			}
			fmt.Fprintf(errOut, "发布失败: %v\n", err)
		}
	}
}

func serveMetrics(node *ucnode.Node, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(node.Metrics().Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
