package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type task struct {
	job     Job
	spec    string
	entry   cron.EntryID
	running atomic.Bool
}

// CronScheduler runs named jobs on five-field cron specs or descriptors such
// as "@every 1m". A run is skipped while the previous one of the same job is
// still in flight.
type CronScheduler struct {
	cron *cron.Cron

	mu    sync.Mutex
	tasks map[string]*task
	ctx   context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:  cron.New(cron.WithParser(parser)),
		tasks: make(map[string]*task),
		ctx:   context.Background(),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tasks[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	t := &task{job: job, spec: spec}
	entry, err := c.cron.AddFunc(spec, func() { c.execute(t) })
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	t.entry = entry
	c.tasks[name] = t
	logutil.GetLogger(context.Background()).Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunNow executes a registered job synchronously, outside its schedule.
func (c *CronScheduler) RunNow(name string) error {
	c.mu.Lock()
	t, ok := c.tasks[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return c.execute(t)
}

// Next reports the next scheduled run of a job; zero before Start.
func (c *CronScheduler) Next(name string) time.Time {
	c.mu.Lock()
	t, ok := c.tasks[name]
	c.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return c.cron.Entry(t.entry).Next
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) execute(t *task) (err error) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	logger := logutil.GetLogger(ctx).With(zap.String("job", t.job.Name()), zap.String("spec", t.spec))

	if !t.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return nil
	}
	defer t.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", t.job.Name(), r)
			logger.Error("job panicked", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	err = t.job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("duration", elapsed))
		return err
	}
	logger.Debug("job finished", zap.Duration("duration", elapsed))
	return nil
}
