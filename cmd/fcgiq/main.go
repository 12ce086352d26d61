// Command fcgiq is the dispatcher: it polls a queue for items, derives a CGI
// environment for each from configured field mappings, dispatches the item
// to a FastCGI responder, and acknowledges on a 2xx response.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/glennschmidt/fcgiq/internal/config"
	"github.com/glennschmidt/fcgiq/internal/fastcgi"
	"github.com/glennschmidt/fcgiq/internal/logging"
	"github.com/glennschmidt/fcgiq/internal/queueadapter"
	"github.com/glennschmidt/fcgiq/internal/runner"
	"github.com/glennschmidt/fcgiq/pkg/localqueueclient"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "fcgiq.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "set up logging: %v\n", err)
		os.Exit(1)
	}

	logger.Info(fmt.Sprintf("fcgiq v%s is starting", version), "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, err := buildQueueAdapter(ctx, cfg)
	if err != nil {
		logger.Error("failed to build queue adapter", "error", err)
		os.Exit(1)
	}

	pool := fastcgi.NewPool(
		"tcp",
		fmt.Sprintf("%s:%d", cfg.FastCGI.Address, cfg.FastCGI.Port),
		cfg.FastCGI.ScriptPath,
		cfg.FastCGI.CGIEnvironment,
	)

	r := runner.Start(runner.Config{
		MaxTasks: int(cfg.FastCGI.MaxParallelRequests),
		Pool:     pool,
		Queue:    adapter,
		Mappings: cfg.FieldMappings,
		Logger:   logger,
	})

	<-ctx.Done()
	logger.Info("shutdown signal received")
	r.Stop()
	logger.Info("fcgiq stopped")
}

// buildQueueAdapter selects between the real AWS SQS adapter and the local
// reference queue service's own adapter, based on whether
// Config.Queue.Sqs.APIEndpointURL is set. The local queue service speaks its
// own REST API, not the SQS wire protocol, so it is never reached through
// the AWS SDK's endpoint override — it gets its own Adapter implementation.
func buildQueueAdapter(ctx context.Context, cfg *config.Config) (queueadapter.Adapter, error) {
	if cfg.Queue.Sqs.APIEndpointURL != "" {
		queueName := lastPathSegment(cfg.Queue.Sqs.QueueURL)
		client := localqueueclient.NewClient(cfg.Queue.Sqs.APIEndpointURL)
		visibility := time.Duration(cfg.Queue.Sqs.VisibilityTimeout) * time.Second
		return queueadapter.NewLocalQueueAdapter(client, queueName, visibility), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg)
	return queueadapter.NewSQSAdapter(client, cfg.Queue.Sqs.QueueURL, cfg.Queue.Sqs.VisibilityTimeout), nil
}

func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	if len(parts) == 0 {
		return rawURL
	}
	return parts[len(parts)-1]
}
