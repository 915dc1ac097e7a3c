package cron

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saiset-co/b2b-portal/types"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

var jobDurationBuckets = []float64{0.01, 0.1, 1.0, 10.0, 60.0}

// Manager schedules named jobs on a seconds-resolution cron. Jobs that panic
// are logged and counted; the scheduler keeps running.
type Manager struct {
	logger   types.Logger
	metrics  types.MetricsManager
	cron     *cron.Cron
	timezone *time.Location
	jobs     map[string]*types.JobEntry
	state    atomic.Int32
	mu       sync.RWMutex
}

func NewManager(config *types.CronConfig, logger types.Logger, metrics types.MetricsManager) (*Manager, error) {
	timezone := time.UTC
	if config != nil && config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, types.WrapError(err, "failed to load cron timezone")
		}
		timezone = loc
	}

	cronL := cronLogger{logger: logger}

	return &Manager{
		logger:   logger,
		metrics:  metrics,
		timezone: timezone,
		jobs:     make(map[string]*types.JobEntry),
		cron: cron.New(
			cron.WithLocation(timezone),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronL), cron.SkipIfStillRunning(cronL)),
		),
	}, nil
}

func (m *Manager) Add(jobName, spec string, job func()) error {
	if jobName == "" {
		return types.ErrCronJobNameIsEmpty
	}

	if job == nil {
		return types.ErrCronJobIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobName]; exists {
		return types.Errorf(types.ErrCronJobExists, "name: %s", jobName)
	}

	entryID, err := m.cron.AddFunc(spec, m.wrapJob(jobName, job))
	if err != nil {
		return types.Errorf(types.ErrCronExpressionInvalid, "job %s, spec %q: %v", jobName, spec, err)
	}

	entry := &types.JobEntry{
		ID:      entryID,
		Name:    jobName,
		Spec:    spec,
		AddedAt: time.Now(),
		NextRun: m.cron.Entry(entryID).Next,
	}
	m.jobs[jobName] = entry

	m.logger.Info("Cron job added",
		zap.String("job_name", jobName),
		zap.String("spec", spec))

	return nil
}

func (m *Manager) Remove(jobName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.jobs[jobName]
	if !exists {
		return types.Errorf(types.ErrCronJobNotFound, "name: %s", jobName)
	}

	m.cron.Remove(entry.ID)
	delete(m.jobs, jobName)

	m.logger.Info("Cron job removed", zap.String("job_name", jobName))
	return nil
}

// Jobs returns a snapshot of every job, sorted by name.
func (m *Manager) Jobs() []types.JobEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]types.JobEntry, 0, len(m.jobs))
	for _, entry := range m.jobs {
		job := *entry
		if cronEntry := m.cron.Entry(entry.ID); cronEntry.ID != 0 {
			job.NextRun = cronEntry.Next
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

func (m *Manager) Start() error {
	if !m.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return types.ErrCronIsRunning
	}

	m.cron.Start()
	m.setSchedulerStatus(1)

	m.logger.Info("Cron manager started",
		zap.String("timezone", m.timezone.String()),
		zap.Int("jobs", len(m.Jobs())))
	return nil
}

// Stop halts scheduling and waits for running jobs to return.
func (m *Manager) Stop() error {
	if !m.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		return types.ErrServerNotRunning
	}

	<-m.cron.Stop().Done()
	m.setSchedulerStatus(0)

	m.logger.Info("Cron scheduler stopped gracefully")
	return nil
}

func (m *Manager) IsRunning() bool {
	return State(m.state.Load()) == StateRunning
}

func (m *Manager) wrapJob(jobName string, job func()) func() {
	return func() {
		start := time.Now()
		err := runJob(job)
		duration := time.Since(start)

		m.recordRun(jobName, start, duration, err)

		result := "success"
		if err != nil {
			result = "error"
			m.logger.Error("Cron job failed",
				zap.String("job_name", jobName),
				zap.Duration("duration", duration),
				zap.Error(err))
		} else {
			m.logger.Debug("Cron job completed",
				zap.String("job_name", jobName),
				zap.Duration("duration", duration))
		}

		if m.metrics != nil {
			m.metrics.Counter("cron_job_executions_total", map[string]string{
				"job_name": jobName,
				"result":   result,
			}).Inc()
			m.metrics.Histogram("cron_job_duration_seconds", jobDurationBuckets, map[string]string{
				"job_name": jobName,
			}).Observe(duration.Seconds())
		}
	}
}

func runJob(job func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewErrorf("job panic: %v", r)
		}
	}()

	job()
	return nil
}

func (m *Manager) recordRun(jobName string, start time.Time, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.jobs[jobName]
	if !exists {
		return
	}

	entry.LastRun = start
	entry.LastDuration = duration
	entry.RunCount++

	if err != nil {
		entry.ErrorCount++
		entry.LastError = err.Error()
	} else {
		entry.LastError = ""
	}
}

func (m *Manager) setSchedulerStatus(value float64) {
	if m.metrics == nil {
		return
	}
	m.metrics.Gauge("cron_scheduler_running", nil).Set(value)
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keyValueFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(keyValueFields(keysAndValues), zap.Error(err))
	l.logger.Error("cron: "+msg, fields...)
}

func keyValueFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
