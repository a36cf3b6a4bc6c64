package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Task is one named unit of background work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Refresher runs each task once on start and then on every tick until ctx is cancelled.
// Failures are logged and the loop carries on.
type Refresher struct {
	tracer   trace.Tracer
	interval time.Duration
	tasks    []Task
}

func NewRefresher(tracer trace.Tracer, interval time.Duration, tasks ...Task) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Refresher{tracer: tracer, interval: interval, tasks: tasks}
}

// Start blocks until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	log.Printf("Refresher starting with %d tasks every %s", len(r.tasks), r.interval)

	for _, task := range r.tasks {
		go r.loop(ctx, task)
	}

	<-ctx.Done()
	log.Println("Refresher stopped")
}

func (r *Refresher) loop(ctx context.Context, task Task) {
	r.runOnce(ctx, task)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, task)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context, task Task) {
	ctx, span := r.tracer.Start(ctx, "job."+task.Name)
	defer span.End()

	if err := task.Run(ctx); err != nil {
		span.RecordError(err)
		log.Printf("refresher %s error: %v", task.Name, err)
	}
}
