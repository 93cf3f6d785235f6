package cmd

import (
	adhoc "FrameAnnotator/Adhoc"
	backend "FrameAnnotator/gRPC"
	"FrameAnnotator/logger"
	"FrameAnnotator/monitor"
	"FrameAnnotator/node"
	"FrameAnnotator/web"
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node with its HTTP and gRPC endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildSinks() []node.Emitter {
	var sinks []node.Emitter
	if cfg.Output.Dir != "" {
		sinks = append(sinks, &node.FileSink{Dir: cfg.Output.Dir})
	}
	if cfg.Output.WebhookURL != "" {
		sinks = append(sinks, node.NewWebhookSink(cfg.Output.WebhookURL, cfg.Output.Timeout))
	}
	return sinks
}

func runServe(ctx context.Context) error {
	log := logger.Log()
	log.Info("Starting node",
		zap.String("version", Version),
		zap.Int("cpus", runtime.NumCPU()),
		zap.String("backend", cfg.Node.Backend))

	annot, vision, err := buildAnnotator(cfg)
	if err != nil {
		return err
	}
	defer vision.Close()

	mon := monitor.New()
	n := node.New(node.Config{
		Name:    cfg.Node.Name,
		Topic:   cfg.Node.Topic,
		Display: cfg.Node.Display,
	}, annot, node.WithSinks(buildSinks()...), node.WithMonitor(mon))

	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Start(bgCtx, cfg.Metrics.Interval)
	}()

	api := web.New(n, web.WithMonitor(mon))
	httpSrv := api.Start(cfg.Server.HTTPPort)

	rpc := backend.NewServer(n, mon)
	grpcSrv, err := backend.StartGRPCServer(cfg.Server.RPCPort, rpc)
	if err != nil {
		_ = httpSrv.Close()
		return err
	}

	if cfg.Registry.Enabled {
		ip, err := adhoc.GetOutboundIP()
		if err != nil {
			log.Warn("Failed to get outbound IP, registering loopback", zap.Error(err))
			ip = "127.0.0.1"
		}
		wg.Add(1)
		go adhoc.SendAliveMessage(bgCtx, &wg,
			adhoc.RegServerConfig{Addr: cfg.Registry.Host, Port: cfg.Registry.Port, Interval: cfg.Registry.Interval},
			adhoc.Registration{ID: n.ID(), Type: node.Type, Name: cfg.Node.Name, IP: ip, Port: cfg.Server.RPCPort})
	} else {
		log.Info("Registry disabled, skipping registration")
	}

	select {
	case <-ctx.Done():
		log.Info("Signal received, shutting down")
	case <-rpc.CloseChannel:
	case <-api.ShutdownRequested():
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()
	msg, closeErr := n.Close(closeCtx)
	if closeErr != nil {
		log.Error("Node closed with errors", zap.Error(closeErr))
	} else {
		log.Info("Final frame emitted", zap.String("msgid", msg.ID))
	}

	cancel()
	if err := httpSrv.Shutdown(closeCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	wg.Wait()
	log.Info("Safely exited")
	if closeErr != nil {
		return fmt.Errorf("close node: %w", closeErr)
	}
	return nil
}
