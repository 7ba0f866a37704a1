package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

const maxTimerDelay = 60 * time.Second

// actionRunner is the slice of chat.Pipeline the scheduler needs.
type actionRunner interface {
	RunAction(ctx context.Context, action chat.Action) chat.Result
}

// Options configures a Scheduler. Deliver receives the finished digest as
// markdown; when nil the report is only logged.
type Options struct {
	Jobs     []Job
	Location *time.Location
	Runner   actionRunner
	Driver   chat.Driver
	Deliver  func(ctx context.Context, job Job, report string) error
	Logf     func(format string, args ...any)

	// now overrides the clock in tests.
	now func() time.Time
}

// Scheduler fires digest jobs on their cron schedules. Each run summarizes
// the job's chats through the shared pipeline, one chat at a time.
type Scheduler struct {
	opts Options

	wakeCh chan struct{}
	doneCh chan struct{}
	wakeMu sync.Mutex

	mu      sync.Mutex
	nextRun []time.Time
}

// Start validates the jobs and begins the timer loop. A nil return with a
// nil error means there was nothing to schedule.
func Start(ctx context.Context, opts Options) (*Scheduler, error) {
	if opts.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if len(opts.Jobs) == 0 {
		return nil, nil
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	s := &Scheduler{
		opts:    opts,
		wakeCh:  make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
		nextRun: make([]time.Time, len(opts.Jobs)),
	}
	now := opts.now()
	for i, job := range opts.Jobs {
		next, err := job.NextRun(now, opts.Location)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
		s.nextRun[i] = next
	}
	go s.loop(ctx)
	return s, nil
}

func (s *Scheduler) Done() <-chan struct{} {
	if s == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.doneCh
}

// Wake forces an immediate tick, coalescing concurrent callers.
func (s *Scheduler) Wake() {
	if s == nil {
		return
	}
	s.wakeMu.Lock()
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
	s.wakeMu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	for {
		if ctx.Err() != nil {
			return
		}
		delay := s.untilNext()
		if delay <= 0 {
			delay = 250 * time.Millisecond
		}
		if delay > maxTimerDelay {
			delay = maxTimerDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wakeCh:
			timer.Stop()
		case <-timer.C:
		}

		s.tick(ctx, s.opts.now())
	}
}

func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.now()
	earliest := time.Duration(-1)
	for _, next := range s.nextRun {
		if next.IsZero() {
			continue
		}
		d := next.Sub(now)
		if earliest < 0 || d < earliest {
			earliest = d
		}
	}
	if earliest < 0 {
		return maxTimerDelay
	}
	return earliest
}

// tick runs every job whose schedule has come due and reschedules it.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for i := range s.opts.Jobs {
		s.mu.Lock()
		due := !s.nextRun[i].IsZero() && !s.nextRun[i].After(now)
		s.mu.Unlock()
		if !due {
			continue
		}

		job := s.opts.Jobs[i]
		s.runJob(ctx, job)

		next, err := job.NextRun(s.opts.now(), s.opts.Location)
		s.mu.Lock()
		if err != nil {
			s.nextRun[i] = time.Time{}
		} else {
			s.nextRun[i] = next
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	s.logf("digest: running job %q", job.Name)

	chats := job.Chats
	if len(chats) == 0 {
		chats = s.activeChats(ctx)
	}
	if len(chats) == 0 {
		s.logf("digest: job %q has no chats to summarize", job.Name)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", job.Name)
	for _, name := range chats {
		result := s.opts.Runner.RunAction(ctx, chat.Action{
			Kind:    chat.KindSummary,
			Contact: name,
			Count:   job.Messages,
		})
		fmt.Fprintf(&b, "\n## %s\n\n", name)
		if result.OK {
			b.WriteString(result.Text)
		} else {
			fmt.Fprintf(&b, "_Summary failed: %s_", result.Text)
		}
		b.WriteString("\n")
	}

	report := b.String()
	if s.opts.Deliver == nil {
		s.logf("digest: job %q finished (%d chats, no delivery configured)", job.Name, len(chats))
		return
	}
	if err := s.opts.Deliver(ctx, job, report); err != nil {
		s.logf("digest: deliver job %q failed: %v", job.Name, err)
	}
}

// activeChats resolves the "all chats" case against the driver, keeping only
// chats that show a last message.
func (s *Scheduler) activeChats(ctx context.Context) []string {
	if s.opts.Driver == nil {
		return nil
	}
	summaries, err := s.opts.Driver.ListChats(ctx)
	if err != nil {
		s.logf("digest: list chats failed: %v", err)
		return nil
	}
	out := make([]string, 0, len(summaries))
	for _, cs := range summaries {
		if strings.TrimSpace(cs.Name) == "" || strings.TrimSpace(cs.LastMessage) == "" {
			continue
		}
		out = append(out, cs.Name)
	}
	return out
}

func (s *Scheduler) logf(format string, args ...any) {
	if s == nil || s.opts.Logf == nil {
		return
	}
	s.opts.Logf(format, args...)
}
