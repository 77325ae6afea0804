package builder

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-game-metrics/internal/analysis"
	"github.com/park285/chess-game-metrics/internal/config"
	"github.com/park285/chess-game-metrics/internal/pgnsource"
	"github.com/park285/chess-game-metrics/internal/sink"
)

type Deps struct {
	Source   *pgnsource.Source
	Analyzer *analysis.Analyzer
	Sink     sink.Sink
	// SinkNames lists the configured destinations, for logging.
	SinkNames []string
}

// New wires the source, analyzer and sinks described by cfg. When no sink is
// configured, records go to stdout as JSONL.
func New(cfg *config.AppConfig, stdout io.Writer, logger *zap.Logger) (*Deps, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps, err := NewCore(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Sink, deps.SinkNames, err = NewSink(cfg, stdout, logger)
	if err != nil {
		return nil, err
	}
	return deps, nil
}

// NewCore wires only the source and analyzer, leaving Sink nil.
func NewCore(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	src, err := NewSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	an, err := NewAnalyzer(cfg, src.Format, logger)
	if err != nil {
		return nil, err
	}
	return &Deps{Source: src, Analyzer: an}, nil
}

func NewSource(cfg *config.AppConfig, logger *zap.Logger) (*pgnsource.Source, error) {
	f, err := pgnsource.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return &pgnsource.Source{Format: f, Logger: logger}, nil
}

func NewAnalyzer(cfg *config.AppConfig, f pgnsource.Format, logger *zap.Logger) (*analysis.Analyzer, error) {
	model, err := analysis.ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	opts := analysis.DefaultOptions()
	opts.Perspective = f.Perspective()
	if strings.TrimSpace(cfg.Perspective) != "" {
		if opts.Perspective, err = analysis.ParsePerspective(cfg.Perspective); err != nil {
			return nil, err
		}
	}
	opts.Model = model
	opts.Ply = cfg.Ply
	opts.Precision = cfg.Precision
	return analysis.NewAnalyzer(opts, logger), nil
}

// NewSink opens every configured destination. On failure, the ones already
// opened are closed again.
func NewSink(cfg *config.AppConfig, stdout io.Writer, logger *zap.Logger) (sink.Sink, []string, error) {
	s := cfg.Sinks
	var (
		sinks sink.Multi
		names []string
	)
	fail := func(err error) (sink.Sink, []string, error) {
		_ = sinks.Close()
		return nil, nil, err
	}

	if strings.TrimSpace(s.JSONLPath) != "" {
		if s.JSONLPath == "-" {
			sinks = append(sinks, sink.NewJSONL(stdout))
		} else {
			j, err := sink.OpenJSONL(s.JSONLPath)
			if err != nil {
				return fail(fmt.Errorf("open jsonl: %w", err))
			}
			sinks = append(sinks, j)
		}
		names = append(names, "jsonl")
	}
	if strings.TrimSpace(s.RedisURL) != "" {
		opts, err := parseRedisURL(s.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("parse redis url: %w", err))
		}
		ttl := time.Duration(s.RedisTTLSec) * time.Second
		sinks = append(sinks, sink.NewRedis(redis.NewClient(opts), ttl))
		names = append(names, "redis")
	}
	if strings.TrimSpace(s.DatabaseURL) != "" {
		pg, err := sink.NewPostgres(s.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("init postgres: %w", err))
		}
		sinks = append(sinks, pg)
		names = append(names, "postgres")
	}
	if strings.TrimSpace(s.BadgerDir) != "" {
		b, err := sink.OpenBadger(s.BadgerDir)
		if err != nil {
			return fail(fmt.Errorf("open badger: %w", err))
		}
		sinks = append(sinks, b)
		names = append(names, "badger")
	}
	if strings.TrimSpace(s.WebhookURL) != "" {
		var opts []sink.WebhookOption
		if token := strings.TrimSpace(s.WebhookToken); token != "" {
			opts = append(opts, sink.WithHeaderProvider(func() map[string]string {
				return map[string]string{"Authorization": "Bearer " + token}
			}))
		}
		sinks = append(sinks, sink.NewWebhook(s.WebhookURL, opts...))
		names = append(names, "webhook")
	}

	switch len(sinks) {
	case 0:
		logger.Debug("no sink configured, writing jsonl to stdout")
		return sink.NewJSONL(stdout), []string{"stdout"}, nil
	case 1:
		return sinks[0], names, nil
	default:
		return sinks, names, nil
	}
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return nil, err
	}
	db := 0
	if u.Path != "" {
		p := strings.TrimPrefix(u.Path, "/")
		if p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				db = n
			}
		}
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{
		Addr:     net.JoinHostPort(host, portStr),
		Username: u.User.Username(),
		Password: pass,
		DB:       db,
	}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
