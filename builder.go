package goVerify

import (
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goVerify/internal"
	internalaudit "github.com/MrEthical07/goVerify/internal/audit"
	"github.com/MrEthical07/goVerify/internal/codes"
	"github.com/MrEthical07/goVerify/internal/limiters"
	"github.com/MrEthical07/goVerify/internal/rate"
	"github.com/MrEthical07/goVerify/internal/stores"
	"github.com/MrEthical07/goVerify/jwt"
	"github.com/MrEthical07/goVerify/password"
	"github.com/MrEthical07/goVerify/record"
	"github.com/MrEthical07/goVerify/token"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. It is single use.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	postgres *pgxpool.Pool
	store    record.Store

	credentials CredentialProvider
	sender      Sender
	auditSink   AuditSink
	logger      *zap.Logger

	now    func() time.Time
	random io.Reader

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSecret sets the HMAC and pepper secret.
func (b *Builder) WithSecret(secret string) *Builder {
	b.config.Secret = secret
	return b
}

// WithRedis backs the record store (unless another store is set), the send
// gate and the IP throttle with client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres stores verification records in Postgres. Redis, if also set,
// still carries the send gate and IP throttle.
func (b *Builder) WithPostgres(pool *pgxpool.Pool) *Builder {
	b.postgres = pool
	return b
}

// WithRecordStore overrides the record store. It takes precedence over
// WithPostgres and WithRedis.
func (b *Builder) WithRecordStore(store record.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithCredentialProvider(p CredentialProvider) *Builder {
	b.credentials = p
	return b
}

func (b *Builder) WithSender(s Sender) *Builder {
	b.sender = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source of every component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithRandom overrides the code random source. Tests only.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. A missing
// secret is logged but does not fail Build.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.credentials == nil {
		return nil, errors.New("credential provider required")
	}
	if b.sender == nil {
		return nil, errors.New("sender required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- RECORD STORE --------
	store := b.store
	switch {
	case store != nil:
	case b.postgres != nil:
		store = stores.NewPostgresRecordStore(b.postgres)
	case b.redis != nil:
		store = stores.NewRedisRecordStore(b.redis, cfg.Store.RedisPrefix, cfg.Store.Retention)
	default:
		return nil, errors.New("record store required: use WithRecordStore, WithPostgres or WithRedis")
	}

	// -------- GATES --------
	var gate limiters.SendGate
	if b.redis != nil {
		gate = limiters.NewRedisSendGate(b.redis, cfg.Store.RedisPrefix, cfg.RateGate.MinInterval)
	} else {
		gate = limiters.NewMemorySendGate(cfg.RateGate.MinInterval, now)
	}

	var ipLimiter *limiters.VerificationLimiter
	if cfg.RateGate.EnableIPThrottle {
		if b.redis == nil {
			return nil, errors.New("RateGate EnableIPThrottle requires redis client")
		}
		ipLimiter = limiters.NewVerificationLimiter(rate.New(b.redis, cfg.Store.RedisPrefix+":ip", rate.Config{
			MaxHits: cfg.RateGate.IPMaxRequests,
			Window:  cfg.RateGate.IPWindow,
		}))
	}

	// -------- TOKENS & CODES --------
	codec := token.NewCodec(cfg.Secret, token.WithClock(now))

	issuerOpts := []codes.Option{codes.WithClock(now)}
	if b.random != nil {
		issuerOpts = append(issuerOpts, codes.WithRandom(b.random))
	}
	issuer := codes.New(store, codes.Config{
		Digits:      cfg.Codes.Digits,
		TTL:         cfg.Codes.TTL,
		MaxAttempts: cfg.Codes.MaxAttempts,
		HashCost:    cfg.Codes.HashCost,
	}, issuerOpts...)

	ph, err := password.NewArgon2(cfg.Password.toPassword())
	if err != nil {
		return nil, err
	}

	var signIn *jwt.Manager
	if len(cfg.SignIn.PrivateKey) > 0 {
		jm, err := jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.SignIn.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.SignIn.SigningMethod),
			PrivateKey:    cloneBytes(cfg.SignIn.PrivateKey),
			PublicKey:     cloneBytes(cfg.SignIn.PublicKey),
			Issuer:        cfg.SignIn.Issuer,
			Audience:      cfg.SignIn.Audience,
		})
		if err != nil {
			return nil, err
		}
		signIn = jm.WithClock(now)
	}

	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = internalaudit.NewZapSink(logger)
	}

	engine := &Engine{
		config:        cfg,
		logger:        logger.Named("goverify"),
		now:           now,
		codec:         codec,
		resetTokens:   token.NewResetTokens(codec, cfg.ResetLink.TTL),
		sessionTokens: token.NewSessionTokens(codec, cfg.ResetSession.TTL),
		store:         store,
		issuer:        issuer,
		gate:          gate,
		ipLimiter:     ipLimiter,
		credentials:   b.credentials,
		sender:        b.sender,
		passwordHash:  ph,
		signIn:        signIn,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		metrics: NewMetrics(cfg.Metrics),
	}
	if cfg.EnumerationDelay {
		engine.enumerationDelay = internal.SleepEnumerationDelay
	}

	if !codec.Configured() {
		engine.logger.Error("engine built without a secret; every verification call will fail as misconfigured")
	}

	b.built = true
	return engine, nil
}
