package inject

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/chatbot/internal/api"
	"github.com/dmorgan81/chatbot/internal/config"
	"github.com/dmorgan81/chatbot/internal/handler"
	"github.com/dmorgan81/chatbot/internal/llm"
	"github.com/dmorgan81/chatbot/internal/log"
	"github.com/dmorgan81/chatbot/internal/param"
	"github.com/dmorgan81/chatbot/internal/proxy"
	"github.com/dmorgan81/chatbot/internal/store"
	"github.com/dmorgan81/chatbot/internal/upload"
	"github.com/samber/do"
)

func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*config.Config](injector, cfg)

	// AWS config and SSM are only built when a *_PARAM variable needs resolving.
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	lazyParams := func(i *do.Injector) param.Fetcher {
		return param.FetcherFunc(func(ctx context.Context, path string) (string, error) {
			return do.MustInvoke[param.Fetcher](i).Fetch(ctx, path)
		})
	}

	do.Provide[store.Store](injector, func(i *do.Injector) (store.Store, error) {
		sc := cfg.Store
		log.Info("configuring object store", "driver", sc.Driver, "bucket", sc.Bucket)
		if sc.Driver == config.DriverFile {
			return store.NewFileStore(sc.Dir)
		}

		secret, err := param.Resolve(ctx, lazyParams(i), sc.SecretKey, sc.SecretKeyParam)
		if err != nil {
			return nil, err
		}
		sc.SecretKey = secret

		if sc.Driver == config.DriverS3 {
			return store.NewS3Store(ctx, sc)
		}
		return store.NewMinioStore(sc)
	})
	do.Provide[*upload.Uploader](injector, func(i *do.Injector) (*upload.Uploader, error) {
		return upload.NewUploader(do.MustInvoke[store.Store](i), cfg.Upload), nil
	})

	do.Provide[*proxy.Fetcher](injector, func(i *do.Injector) (*proxy.Fetcher, error) {
		log.Info("applying proxy", "https", redact(cfg.Proxy.HTTPSProxy), "http", redact(cfg.Proxy.HTTPProxy), "no-proxy", cfg.Proxy.NoProxy)
		return proxy.New(cfg.Proxy), nil
	})
	do.Provide[*llm.Client](injector, func(i *do.Injector) (*llm.Client, error) {
		key, err := param.Resolve(ctx, lazyParams(i), cfg.Model.APIKey, cfg.Model.APIKeyParam)
		if err != nil {
			return nil, err
		}
		return &llm.Client{
			HTTP:    do.MustInvoke[*proxy.Fetcher](i).Client(),
			BaseURL: cfg.Model.BaseURL,
			Key:     key,
		}, nil
	})

	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*api.Server](injector, api.NewServer)

	return injector
}

func redact(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
