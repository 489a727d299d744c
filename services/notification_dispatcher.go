package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DispatchJob is a unit of background work: a push fan-out, a deferred
// streak recheck, a sweep.
type DispatchJob struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs jobs on a fixed worker pool and feeds it from cron
// schedules.
type Dispatcher struct {
	workers    int
	jobTimeout time.Duration
	jobQueue   chan *DispatchJob
	stopChan   chan struct{}
	wg         sync.WaitGroup
	cron       *cron.Cron

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 5
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Dispatcher{
		workers:    workers,
		jobTimeout: 30 * time.Second,
		jobQueue:   make(chan *DispatchJob, queueSize),
		stopChan:   make(chan struct{}),
		cron:       cron.New(),
	}
}

// Start launches the workers and the cron scheduler.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
		d.cron.Start()
		log.Printf("Dispatcher: started %d workers", d.workers)
	})
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *Dispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	dispatchDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		dispatchJobs.WithLabelValues(job.Name, "failed").Inc()
		log.Printf("Dispatcher: job %s failed: %v", job.Name, err)
		return
	}
	dispatchJobs.WithLabelValues(job.Name, "ok").Inc()
}

// Dispatch queues the job, giving up after five seconds when the queue is
// full. It reports whether the job was accepted.
func (d *Dispatcher) Dispatch(job *DispatchJob) bool {
	select {
	case <-d.stopChan:
		log.Printf("Dispatcher: rejecting job %s, dispatcher stopped", job.Name)
		return false
	default:
	}

	select {
	case d.jobQueue <- job:
		return true
	case <-d.stopChan:
		return false
	case <-time.After(5 * time.Second):
		dispatchJobs.WithLabelValues(job.Name, "dropped").Inc()
		log.Printf("Dispatcher: failed to queue job %s: queue full", job.Name)
		return false
	}
}

// Schedule dispatches run on the given cron spec (standard five fields or
// descriptors such as "@every 5m").
func (d *Dispatcher) Schedule(spec, name string, run func(ctx context.Context) error) error {
	_, err := d.cron.AddFunc(spec, func() {
		d.Dispatch(&DispatchJob{Name: name, Run: run})
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	log.Printf("Dispatcher: scheduled %s at %q", name, spec)
	return nil
}

// Stop halts the scheduler, waits for running cron callbacks and stops the
// workers. Jobs still queued are dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping dispatcher...")
		<-d.cron.Stop().Done()
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Dispatcher stopped")
	})
}
