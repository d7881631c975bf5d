package api

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestProgressBrokerLateSubscriberSeesHistory(t *testing.T) {
	b := newProgressBroker()
	b.publish("job-1", "searching")
	b.publish("job-1", "synthesizing")

	history, updates := b.subscribe("job-1")
	if !reflect.DeepEqual(history, []string{"searching", "synthesizing"}) {
		t.Fatalf("history = %v", history)
	}
	if updates == nil {
		t.Fatal("job not done, channel should be live")
	}

	b.publish("job-1", "complete")
	got := make([]string, 0, 2)
	for stage := range updates {
		got = append(got, stage)
	}
	if !reflect.DeepEqual(got, []string{"complete"}) {
		t.Fatalf("streamed stages = %v", got)
	}
}

func TestProgressBrokerFinishedJob(t *testing.T) {
	b := newProgressBroker()
	b.publish("job-2", "searching")
	b.publish("job-2", "failed")

	history, updates := b.subscribe("job-2")
	if !reflect.DeepEqual(history, []string{"searching", "failed"}) {
		t.Fatalf("history = %v", history)
	}
	if updates != nil {
		t.Fatal("finished job should have no live channel")
	}
}

func TestProgressBrokerUnknownJob(t *testing.T) {
	b := newProgressBroker()

	history, updates := b.subscribe("never-started")
	if history != nil || updates != nil {
		t.Fatalf("unknown job: history = %v, updates = %v", history, updates)
	}
	if len(b.jobs) != 0 {
		t.Fatalf("subscribe created %d job entries", len(b.jobs))
	}
}

func TestProgressBrokerOpenBeforeFirstStage(t *testing.T) {
	b := newProgressBroker()
	b.open("job-3")

	history, updates := b.subscribe("job-3")
	if len(history) != 0 {
		t.Fatalf("history = %v", history)
	}
	if updates == nil {
		t.Fatal("opened job should accept subscribers")
	}

	b.publish("job-3", "searching")
	if got := <-updates; got != "searching" {
		t.Fatalf("streamed stage = %q", got)
	}
}

func TestProgressBrokerForget(t *testing.T) {
	b := newProgressBroker()
	b.publish("job-4", "complete")
	b.forget("job-4")

	if history, updates := b.subscribe("job-4"); history != nil || updates != nil {
		t.Fatalf("forgotten job still present: history = %v", history)
	}

	// Unfinished jobs are kept.
	b.publish("job-5", "searching")
	b.forget("job-5")
	history, _ := b.subscribe("job-5")
	if !reflect.DeepEqual(history, []string{"searching"}) {
		t.Fatalf("history = %v", history)
	}
}

func TestProgressBrokerReapsFinishedJobs(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	b := newProgressBroker()
	b.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("job-%d", i)
		b.publish(id, "researching")
		b.publish(id, "complete")
	}

	now = now.Add(jobTTL + time.Minute)
	b.publish("job-fresh", "searching")

	if len(b.jobs) != 1 {
		t.Fatalf("jobs retained after TTL sweep: %d, want 1", len(b.jobs))
	}
	if _, ok := b.jobs["job-fresh"]; !ok {
		t.Fatal("live job was reaped")
	}
}
