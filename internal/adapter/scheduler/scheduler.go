package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc представляет функцию задачи планировщика.
type JobFunc func(ctx context.Context) error

// EntryID представляет идентификатор cron-задачи.
type EntryID = cron.EntryID

// Schedule - разобранное расписание; добавление такого расписания не может завершиться ошибкой.
type Schedule = cron.Schedule

// JobOptions содержит опции для настройки задач.
type JobOptions struct {
	// Name - имя задачи для логов и Entries.
	Name string
	// Timeout - максимальное время выполнения задачи (необязательно).
	Timeout time.Duration
	// SkipIfRunning пропускает запуск, если предыдущий еще не завершился.
	SkipIfRunning bool
}

// Entry описывает зарегистрированную задачу.
type Entry struct {
	ID   EntryID
	Name string
	Next time.Time
	Prev time.Time
}

// Config содержит конфигурацию планировщика.
type Config struct {
	Logger *slog.Logger
	// Location - часовой пояс расписаний; по умолчанию time.Local.
	Location *time.Location
}

// parser разбирает выражения из шести полей (секунды первыми) и дескрипторы вроде @daily.
var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse разбирает cron-выражение. Расписание без явного CRON_TZ
// вычисляется в часовом поясе планировщика, которому оно передано.
func Parse(spec string) (Schedule, error) {
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return sched, nil
}

// cronLogger адаптер для интеграции cron logger с slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

// Scheduler запускает задачи по cron-расписанию в заданном часовом поясе.
// После Stop экземпляр не перезапускается: создайте новый.
type Scheduler struct {
	cron     *cron.Cron
	log      cron.Logger
	logger   *slog.Logger
	location *time.Location
	ctx      context.Context
	cancel   context.CancelFunc

	mu    sync.Mutex
	names map[EntryID]string

	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

// New создает новый экземпляр планировщика.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	log := cronLogger{logger: logger.With("component", "cron")}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(log),
		),
		log:      log,
		logger:   logger,
		location: loc,
		ctx:      ctx,
		cancel:   cancel,
		names:    make(map[EntryID]string),
	}
}

// AddSchedule добавляет задачу с уже разобранным расписанием.
func (s *Scheduler) AddSchedule(sched Schedule, job JobFunc, opts JobOptions) EntryID {
	chain := cron.NewChain()
	if opts.SkipIfRunning {
		chain = cron.NewChain(cron.SkipIfStillRunning(s.log))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.cron.Schedule(sched, chain.Then(cron.FuncJob(func() {
		s.runJob(job, opts)
	})))
	s.names[id] = opts.Name

	s.logger.Debug("cron job added", "name", opts.Name, "skip_if_running", opts.SkipIfRunning, "id", id)
	return id
}

// Remove удаляет задачу. Уже запущенное выполнение не прерывается.
func (s *Scheduler) Remove(id EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron.Remove(id)
	delete(s.names, id)
	s.logger.Debug("cron job removed", "id", id)
}

// Entries возвращает зарегистрированные задачи в порядке следующего запуска.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := s.cron.Entries()
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		out = append(out, Entry{ID: e.ID, Name: s.names[e.ID], Next: e.Next, Prev: e.Prev})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Next.IsZero() != out[j].Next.IsZero() {
			return !out[i].Next.IsZero()
		}
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

// Start запускает планировщик. Повторные вызовы ничего не делают.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting scheduler", "location", s.location.String())
		s.cron.Start()
	})
}

// Stop прекращает новые запуски и ждет выполняющиеся задачи до дедлайна ctx.
// По истечении дедлайна контекст задач отменяется, и Stop дожидается их выхода.
// Повторные вызовы возвращают результат первого.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping scheduler")
		done := s.cron.Stop().Done()

		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn("scheduler stop deadline exceeded, cancelling running jobs")
			s.stopErr = ctx.Err()
		}
		s.cancel()
		<-done
		s.logger.Info("scheduler stopped")
	})
	return s.stopErr
}

// runJob выполняет задачу с таймаутом и перехватом паники.
func (s *Scheduler) runJob(job JobFunc, opts JobOptions) {
	name := opts.Name
	if name == "" {
		name = "unnamed"
	}

	ctx := s.ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.logger.Error("job panicked", "name", name, "panic", r)
			}
		}()
		err = job(ctx)
	}()
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("job failed", "name", name, "error", err, "duration", duration)
		return
	}
	s.logger.Debug("job completed", "name", name, "duration", duration)
}
