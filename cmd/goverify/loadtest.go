package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/internal/accounts"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

type loadtestOptions struct {
	recipients  int
	concurrency int
	ops         int
	hashCost    int
}

func newLoadtestCmd(a *app) *cobra.Command {
	opts := loadtestOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure request and submit latency against the configured redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.recipients <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return fmt.Errorf("recipients, concurrency and ops must be > 0")
			}
			ctx := cmd.Context()

			rdb, closeRedis, err := openRedis(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer closeRedis()

			ec, err := a.cfg.Engine()
			if err != nil {
				return err
			}
			if ec.Secret == "" {
				ec.Secret = "loadtest-secret"
			}
			ec.Codes.HashCost = opts.hashCost
			ec.RateGate.MinInterval = 0
			ec.RateGate.EnableIPThrottle = false
			ec.EnumerationDelay = false
			ec.Store.RedisPrefix = a.cfg.Redis.Prefix + ":loadtest"

			accs := make([]goVerify.Account, opts.recipients)
			for i := range accs {
				accs[i] = goVerify.Account{UserID: fmt.Sprintf("u-%d", i), Recipient: fmt.Sprintf("user-%d@load.test", i)}
			}
			creds, err := accounts.NewMemory(accs...)
			if err != nil {
				return err
			}
			inbox := &codeInbox{}

			engine, err := goVerify.New().
				WithConfig(ec).
				WithRedis(rdb).
				WithCredentialProvider(creds).
				WithSender(inbox).
				Build()
			if err != nil {
				return err
			}
			defer engine.Close()

			out := cmd.OutOrStdout()
			requestStats := runPhase(opts, func(r *rand.Rand) error {
				return engine.RequestCode(ctx, accs[r.Intn(len(accs))].Recipient, goVerify.PurposePasswordReset)
			})
			submitStats := runPhase(opts, func(r *rand.Rand) error {
				recipient := accs[r.Intn(len(accs))].Recipient
				_, err := engine.SubmitCode(ctx, recipient, goVerify.PurposePasswordReset, inbox.code(recipient))
				return err
			})

			fmt.Fprintln(out, "---- results ----")
			printStats(out, "request", requestStats)
			printStats(out, "submit", submitStats)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.recipients, "recipients", 1000, "number of seeded recipients")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 10000, "operations per phase")
	cmd.Flags().IntVar(&opts.hashCost, "hash-cost", bcrypt.MinCost, "bcrypt cost of stored codes")
	return cmd
}

// codeInbox keeps the last code sent to each recipient.
type codeInbox struct {
	codes sync.Map
}

func (b *codeInbox) Send(_ context.Context, msg goVerify.Message) error {
	b.codes.Store(msg.Recipient, msg.Code)
	return nil
}

func (b *codeInbox) code(recipient string) string {
	v, _ := b.codes.Load(recipient)
	s, _ := v.(string)
	return s
}

func runPhase(opts loadtestOptions, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, opts.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
