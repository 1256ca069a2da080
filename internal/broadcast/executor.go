// Package broadcast sends one randomly chosen message group to every subscriber.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"dailysender/internal/content"
	"dailysender/internal/richtext"
	"dailysender/internal/shared"
)

// DefaultTemplate is sent when the pool is empty or a group has no text.
// {time} is replaced with the current HH:MM in the configured zone.
const DefaultTemplate = "🌞 每日提醒：现在是 {time}"

// Payload is one rendered message, ready for a transport.
type Payload struct {
	Text        string
	Annotations []richtext.Annotation
	Buttons     []content.Button
}

// Transport delivers a payload to one chat.
type Transport interface {
	SendText(ctx context.Context, chatID int64, p Payload) error
	SendImage(ctx context.Context, chatID int64, path string, p Payload) error
}

// GroupSource picks the group for a run.
type GroupSource interface {
	SelectRandom() (content.Group, bool)
}

// RecipientSource lists the chats to deliver to.
type RecipientSource interface {
	ListAll(ctx context.Context) ([]int64, error)
}

// Config tunes an Executor. Zero values fall back to the defaults.
type Config struct {
	MediaDir string
	Template string
	Location *time.Location
	// Workers bounds concurrent sends; 1 sends sequentially.
	Workers int
	// Rate is the send budget in messages per second; <= 0 disables pacing.
	Rate  float64
	Burst int
}

// DefaultConfig returns the fan-out settings used in production.
func DefaultConfig() Config {
	return Config{
		Template: DefaultTemplate,
		Location: time.Local,
		Workers:  4,
		Rate:     25,
		Burst:    1,
	}
}

// Report summarizes one run.
type Report struct {
	RunID     string
	Total     int
	Delivered int
	Failed    int
	// Faults counts sends that panicked; they are also counted in Failed.
	Faults int
}

// Executor performs broadcasts. It is safe for concurrent use.
type Executor struct {
	groups     GroupSource
	recipients RecipientSource
	transport  Transport
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewExecutor wires an Executor.
func NewExecutor(groups GroupSource, recipients RecipientSource, transport Transport, cfg Config, logger *slog.Logger) *Executor {
	def := DefaultConfig()
	if cfg.Template == "" {
		cfg.Template = def.Template
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		groups:     groups,
		recipients: recipients,
		transport:  transport,
		cfg:        cfg,
		logger:     logger.With("component", "broadcast"),
		now:        time.Now,
	}
}

// Compose builds the payload and image path for the next run without sending.
// The image path is empty when the group has none or the file is missing.
func (e *Executor) Compose() (Payload, string) {
	group, ok := e.groups.SelectRandom()

	text := strings.TrimSpace(group.Text)
	if !ok || text == "" {
		text = e.fallbackText()
	}

	display, annotations := richtext.Render(text)
	p := Payload{Text: display, Annotations: annotations}
	if ok {
		p.Buttons = group.Buttons
	}
	return p, e.imagePath(group.ImageRef)
}

// Run delivers one message to every subscriber. Each delivery is isolated:
// a failed or panicking send is logged and counted, never returned.
func (e *Executor) Run(ctx context.Context) Report {
	report := Report{RunID: uuid.NewString()}
	log := e.logger.With("run_id", report.RunID)

	ids, err := e.recipients.ListAll(ctx)
	if err != nil {
		log.Error("list recipients", "error", err)
		return report
	}
	report.Total = len(ids)

	payload, image := e.Compose()
	if len(ids) == 0 {
		log.Info("broadcast skipped, no recipients")
		return report
	}
	log.Info("broadcast started",
		"recipients", len(ids),
		"with_image", image != "",
		"annotations", len(payload.Annotations),
		"buttons", len(payload.Buttons))

	var limiter *rate.Limiter
	if e.cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.cfg.Rate), e.cfg.Burst)
	}

	var delivered, failed, faults atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)

	for _, id := range ids {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				log.Warn("broadcast interrupted", "error", err)
				break
			}
		} else if ctx.Err() != nil {
			log.Warn("broadcast interrupted", "error", ctx.Err())
			break
		}

		g.Go(func() error {
			switch err := e.deliver(ctx, id, payload, image); {
			case err == nil:
				delivered.Add(1)
			case isFault(err):
				faults.Add(1)
				failed.Add(1)
				log.Error("send panicked", "chat_id", id, "error", err, "stack", string(err.(*faultError).stack))
			default:
				failed.Add(1)
				log.Warn("send failed", "chat_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Delivered = int(delivered.Load())
	report.Failed = int(failed.Load())
	report.Faults = int(faults.Load())
	log.Info("broadcast finished",
		"total", report.Total,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"skipped", report.Total-report.Delivered-report.Failed)
	return report
}

// faultError marks a recovered panic.
type faultError struct {
	value any
	stack []byte
}

func (f *faultError) Error() string { return fmt.Sprintf("panic: %v", f.value) }

func isFault(err error) bool {
	_, ok := err.(*faultError)
	return ok
}

func (e *Executor) deliver(ctx context.Context, chatID int64, p Payload, image string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &faultError{value: r, stack: debug.Stack()}
		}
	}()

	if image != "" {
		err = e.transport.SendImage(ctx, chatID, image, p)
	} else {
		err = e.transport.SendText(ctx, chatID, p)
	}
	if err != nil {
		return shared.MarkKind(fmt.Errorf("chat %d: %w", chatID, err), shared.KindDelivery)
	}
	return nil
}

func (e *Executor) fallbackText() string {
	return strings.ReplaceAll(e.cfg.Template, "{time}", e.now().In(e.cfg.Location).Format("15:04"))
}

// imagePath resolves ref inside the media directory and checks that a
// regular file is there now.
func (e *Executor) imagePath(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || e.cfg.MediaDir == "" {
		return ""
	}
	path := filepath.Join(e.cfg.MediaDir, filepath.Base(ref))
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		e.logger.Warn("group image missing, sending text only", "image", ref)
		return ""
	}
	return path
}
