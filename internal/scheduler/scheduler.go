package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/panics"

	"github.com/riskibarqy/meme-party/internal/domain/game"
	"github.com/riskibarqy/meme-party/internal/domain/phasetask"
	"github.com/riskibarqy/meme-party/internal/platform/logging"
)

// Handler is invoked once for every task that comes due.
type Handler func(ctx context.Context, task phasetask.Task) error

type Config struct {
	// Workers bounds concurrent dispatch. Zero dispatches inline on the timer
	// goroutine.
	Workers int
	// StopTimeout is how long Stop waits for in-flight dispatches.
	StopTimeout time.Duration
}

// Scheduler keeps delayed phase tasks in memory and fires them on a single
// timer armed for the earliest task.
type Scheduler struct {
	handler Handler
	cfg     Config
	logger  *logging.Logger
	now     func() time.Time

	mu      sync.Mutex
	queue   *taskQueue
	seq     uint64
	timer   *time.Timer
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	pool    *ants.Pool
}

func New(handler Handler, cfg Config, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	return &Scheduler{
		handler: handler,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		queue:   newTaskQueue(),
		ctx:     context.Background(),
	}
}

// SetHandler replaces the dispatch target. It exists for wiring where the
// handler is built after the scheduler.
func (s *Scheduler) SetHandler(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Start arms the timer. Tasks scheduled before Start are kept and fire once it
// runs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New("scheduler already stopped")
	}
	if s.started {
		return nil
	}
	if s.cfg.Workers > 0 {
		pool, err := ants.NewPool(s.cfg.Workers)
		if err != nil {
			return errors.Wrap(err, "create dispatch pool")
		}
		s.pool = pool
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.armLocked()

	s.logger.Info("phase scheduler started", "workers", s.cfg.Workers, "pending", s.queue.Len())
	return nil
}

// Stop disarms the timer and waits for in-flight dispatches. Pending tasks are
// dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	dropped := s.queue.Len()
	s.queue = newTaskQueue()
	pool := s.pool
	cancel := s.cancel
	s.mu.Unlock()

	if pool != nil {
		if err := pool.ReleaseTimeout(s.cfg.StopTimeout); err != nil {
			s.logger.Warn("phase scheduler dispatch did not drain", "error", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	s.logger.Info("phase scheduler stopped", "dropped_tasks", dropped)
}

func (s *Scheduler) ScheduleCreativePhaseEnded(code string, round, delaySeconds int) phasetask.Task {
	return s.schedule(phasetask.Task{
		Type:        phasetask.TypeCreativePhaseEnded,
		GameCode:    code,
		RoundNumber: round,
	}, delaySeconds)
}

func (s *Scheduler) ScheduleScorePhaseEnded(code string, round int, submissionID string, delaySeconds int) phasetask.Task {
	return s.schedule(phasetask.Task{
		Type:         phasetask.TypeScorePhaseEnded,
		GameCode:     code,
		RoundNumber:  round,
		SubmissionID: submissionID,
	}, delaySeconds)
}

func (s *Scheduler) ScheduleRoundEnded(code string, round, delaySeconds int) phasetask.Task {
	return s.schedule(phasetask.Task{
		Type:        phasetask.TypeRoundEnded,
		GameCode:    code,
		RoundNumber: round,
	}, delaySeconds)
}

func (s *Scheduler) ScheduleStartNewRound(code string, round, delaySeconds int) phasetask.Task {
	return s.schedule(phasetask.Task{
		Type:        phasetask.TypeStartNewRound,
		GameCode:    code,
		RoundNumber: round,
	}, delaySeconds)
}

func (s *Scheduler) schedule(task phasetask.Task, delaySeconds int) phasetask.Task {
	delay := phasetask.ClampDelay(time.Duration(delaySeconds) * time.Second)
	task.GameCode = game.NormalizeCode(task.GameCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	now := s.now()
	task.ID = fmt.Sprintf("task-%08d", s.seq)
	task.CreatedAt = now
	task.FireAt = now.Add(delay)
	if s.stopped {
		s.logger.Warn("phase task scheduled after stop, dropping", "task_id", task.ID, "type", task.Type, "game_code", task.GameCode)
		return task
	}

	s.queue.add(task, s.seq)
	if head, _ := s.queue.peek(); head.ID == task.ID {
		s.armLocked()
	}
	return task
}

// CancelTask removes a pending task. It reports false when the task already
// fired or never existed.
func (s *Scheduler) CancelTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, _ := s.queue.peek()
	if _, ok := s.queue.remove(id); !ok {
		return false
	}
	if head.ID == id {
		s.armLocked()
	}
	return true
}

// CancelAllTasksForGame drops every pending task of a game and returns how many
// were removed.
func (s *Scheduler) CancelAllTasksForGame(code string) int {
	code = game.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.queue.idsForGame(code)
	for _, id := range ids {
		s.queue.remove(id)
	}
	if len(ids) > 0 {
		s.armLocked()
	}
	return len(ids)
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

func (s *Scheduler) PendingForGame(code string) int {
	code = game.NormalizeCode(code)

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue.idsForGame(code))
}

// armLocked points the timer at the current head of the queue, or disarms it
// when the queue is empty. Callers hold s.mu.
func (s *Scheduler) armLocked() {
	if !s.started || s.stopped {
		return
	}
	head, ok := s.queue.peek()
	if !ok {
		if s.timer != nil {
			s.timer.Stop()
		}
		return
	}

	wait := max(head.FireAt.Sub(s.now()), 0)
	if s.timer == nil {
		s.timer = time.AfterFunc(wait, s.fireDue)
		return
	}
	s.timer.Stop()
	s.timer.Reset(wait)
}

// fireDue pops everything that is due as one batch, re-arms the timer and then
// dispatches outside the lock.
func (s *Scheduler) fireDue() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	now := s.now()
	var batch []phasetask.Task
	for {
		head, ok := s.queue.peek()
		if !ok || head.FireAt.After(now) {
			break
		}
		batch = append(batch, s.queue.popMin())
	}
	s.armLocked()
	ctx := s.ctx
	pool := s.pool
	handler := s.handler
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	s.dispatch(ctx, pool, handler, batch)
}

// dispatch keeps per-game order: tasks of the same game run sequentially in
// the order they were popped, while different games run on separate workers.
func (s *Scheduler) dispatch(ctx context.Context, pool *ants.Pool, handler Handler, batch []phasetask.Task) {
	var order []string
	byGame := make(map[string][]phasetask.Task)
	for _, task := range batch {
		if _, seen := byGame[task.GameCode]; !seen {
			order = append(order, task.GameCode)
		}
		byGame[task.GameCode] = append(byGame[task.GameCode], task)
	}

	for _, code := range order {
		tasks := byGame[code]
		run := func() {
			for _, task := range tasks {
				s.runTask(ctx, handler, task)
			}
		}
		if pool == nil {
			run()
			continue
		}
		if err := pool.Submit(run); err != nil {
			s.logger.Warn("dispatch pool rejected phase tasks, running inline", "game_code", code, "error", err)
			run()
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, handler Handler, task phasetask.Task) {
	if handler == nil {
		s.logger.Warn("phase task fired without handler", "task_id", task.ID, "type", task.Type)
		return
	}

	var err error
	var catcher panics.Catcher
	catcher.Try(func() {
		err = handler(ctx, task)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		s.logger.ErrorContext(ctx, "phase task handler panicked",
			"task_id", task.ID,
			"type", task.Type,
			"game_code", task.GameCode,
			"round", task.RoundNumber,
			"error", recovered.AsError(),
		)
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "phase task handler failed",
			"task_id", task.ID,
			"type", task.Type,
			"game_code", task.GameCode,
			"round", task.RoundNumber,
			"error", err,
		)
	}
}
