package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awspinpoint "github.com/aws/aws-sdk-go-v2/service/pinpoint"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"feedback-notifier/handler"
	"feedback-notifier/internal/integrations/paramstore"
	"feedback-notifier/internal/integrations/pinpoint"
	"feedback-notifier/internal/repository"
	"feedback-notifier/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tables := repository.Tables{
		Subjects:     mustEnv("SUBJECTS_TABLE"),
		Correlations: mustEnv("CORRELATIONS_TABLE"),
		Responses:    mustEnv("RESPONSES_TABLE"),
	}
	appID := mustEnv("PINPOINT_APPLICATION_ID")
	ucConfig := usecase.Config{
		ParamPrefix:   mustEnv("PARAM_PREFIX"),
		Stages:        envInt("STAGE_COUNT", 4),
		Locales:       envList("LOCALES"),
		DefaultLocale: os.Getenv("DEFAULT_LOCALE"),
	}

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), tables)
	if err != nil {
		slog.Error("failed to create repository client", "err", err)
		os.Exit(1)
	}
	sender, err := pinpoint.New(awspinpoint.NewFromConfig(cfg), appID)
	if err != nil {
		slog.Error("failed to create pinpoint client", "err", err)
		os.Exit(1)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	catalog, err := usecase.NewCatalog(params, ucConfig)
	if err != nil {
		slog.Error("failed to create message catalog", "err", err)
		os.Exit(1)
	}
	advanceService, err := usecase.NewAdvanceService(store, sender, catalog, ucConfig)
	if err != nil {
		slog.Error("failed to create advance service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewReplyHandler(advanceService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
