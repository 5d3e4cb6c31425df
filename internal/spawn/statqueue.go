package spawn

import (
	"log/slog"

	"github.com/hordenight/siege/internal/queue"
	"github.com/hordenight/siege/pkg/core"
	"github.com/hordenight/siege/pkg/host"
)

// StatJob is one deferred stat swap for a special spawn.
type StatJob struct {
	Entity  host.Entity
	Variant core.Variant
	Outfit  string
}

// StatQueue serializes the global stat swap needed to give one entity a
// special profile. The host's stats are shared by every entity, so while a
// job runs all entities briefly see the swapped values. Draining exactly one
// job per tick bounds that window to a single re-initialization; it does not
// remove it.
type StatQueue struct {
	jobs   *queue.Queue[StatJob]
	logger *slog.Logger
}

func NewStatQueue(logger *slog.Logger) *StatQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatQueue{jobs: queue.New[StatJob](), logger: logger}
}

// Enqueue defers a swap for job.Entity.
func (q *StatQueue) Enqueue(job StatJob) {
	q.jobs.Push(job)
}

// Len returns the number of pending jobs.
func (q *StatQueue) Len() int {
	return q.jobs.Len()
}

// Clear drops every pending job.
func (q *StatQueue) Clear() {
	q.jobs.Clear()
}

// ProcessOne runs at most one pending job: swap the global stats, force the
// entity to re-read them, restore the originals and reapply the outfit the
// re-initialization reset. Jobs for entities that are gone are skipped.
func (q *StatQueue) ProcessOne(ch host.StatChannel) bool {
	job, ok := q.jobs.TryPop()
	if !ok {
		return false
	}
	if job.Entity == nil || !job.Entity.Valid() {
		q.logger.Debug("Skipping stat swap for stale entity", "variant", job.Variant)
		return false
	}

	original := ch.Stats()
	ch.SetStats(original.Merge(core.ProfileFor(job.Variant)))
	ch.Reinitialize(job.Entity)
	ch.SetStats(original)
	ch.ApplyAppearance(job.Entity, job.Outfit)
	return true
}
