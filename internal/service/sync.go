package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/geocoding"
	"github.com/UnknownOlympus/nightspot/internal/metrics"
	"github.com/UnknownOlympus/nightspot/internal/models"
)

// MaxAttempts is how many failed lookups an authored place gets before the
// service stops asking for its address.
const MaxAttempts = 3

// Store is the part of the place store the service works on.
type Store interface {
	Load(ctx context.Context) error
	AuthoredWithoutAddress() []models.AddressTask
	Get(id string) (models.Place, bool)
	Upsert(ctx context.Context, place models.Place) (models.Place, error)
}

// SyncService keeps the working set fresh: it reloads the catalog on a timer
// and fills in the address of authored places that were saved without one.
type SyncService struct {
	log          *slog.Logger       // Logger for service activities
	store        Store              // Working set to refresh
	provider     geocoding.Provider // Reverse geocoder used to backfill addresses, may be nil
	providerName string             // Name of the provider for metrics labeling
	metrics      *metrics.Metrics   // Metrics for tracking service performance
	numWorkers   int                // Number of concurrent address workers
	pollInterval time.Duration      // Interval between reloads

	mu       sync.Mutex
	attempts map[string]int // failed lookups per place id
}

// NewSyncService creates a new instance of SyncService.
func NewSyncService(
	log *slog.Logger,
	store Store,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	numWorkers int,
	pollInterval time.Duration,
) *SyncService {
	if numWorkers < 1 {
		numWorkers = 1
	}

	return &SyncService{
		log:          log,
		store:        store,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		attempts:     make(map[string]int),
	}
}

// Run reloads the working set every poll interval until the context is cancelled.
func (ss *SyncService) Run(ctx context.Context) {
	ticker := time.NewTicker(ss.pollInterval)
	defer ticker.Stop()

	ss.log.InfoContext(ctx, "Sync service started...", "interval", ss.pollInterval)

	for {
		select {
		case <-ctx.Done():
			ss.log.InfoContext(ctx, "Sync service stopped.")
			return
		case <-ticker.C:
			ss.sync(ctx)
		}
	}
}

// sync runs one reload followed by one address backfill batch. A failed
// reload keeps the previous working set; the backfill still runs on it.
func (ss *SyncService) sync(ctx context.Context) {
	ss.log.DebugContext(ctx, "Reloading places...")
	if err := ss.store.Load(ctx); err != nil {
		ss.log.ErrorContext(ctx, "Failed to reload places", "error", err)
	}

	ss.processTasks(ctx)
}

// processTasks hands the authored places without an address to a worker pool
// and waits for the batch to finish.
func (ss *SyncService) processTasks(ctx context.Context) {
	if ss.provider == nil {
		return
	}

	tasks := ss.pending()
	if len(tasks) == 0 {
		ss.log.DebugContext(ctx, "No addresses to resolve.")
		return
	}

	ss.log.InfoContext(ctx, "Found places without address. Starting worker pool.",
		"jobs", len(tasks), "num_workers", ss.numWorkers)

	jobs := make(chan models.AddressTask, len(tasks))
	var wgr sync.WaitGroup

	for i := 1; i <= ss.numWorkers; i++ {
		wgr.Add(1)
		go ss.worker(ctx, i, &wgr, jobs)
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)

	wgr.Wait()
	ss.log.InfoContext(ctx, "Address batch finished")
}

func (ss *SyncService) pending() []models.AddressTask {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	var tasks []models.AddressTask
	for _, task := range ss.store.AuthoredWithoutAddress() {
		if ss.attempts[task.PlaceID] < MaxAttempts {
			tasks = append(tasks, task)
		}
	}

	return tasks
}

func (ss *SyncService) failed(id string) int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.attempts[id]++
	return ss.attempts[id]
}

// worker resolves the address of each task and saves it on the place.
func (ss *SyncService) worker(ctx context.Context, idx int, wg *sync.WaitGroup, jobs <-chan models.AddressTask) {
	defer wg.Done()
	for task := range jobs {
		ss.metrics.ActiveWorkers.Inc()
		ss.resolve(ctx, idx, task)
		ss.metrics.ActiveWorkers.Dec()
	}
}

func (ss *SyncService) resolve(ctx context.Context, idx int, task models.AddressTask) {
	ss.log.DebugContext(ctx, "Processing task", "worker", idx, "place", task.PlaceID)

	startTime := time.Now()
	address, err := ss.provider.ReverseGeocode(ctx, task.Position)
	ss.metrics.RequestSeconds.WithLabelValues(ss.providerName).Observe(time.Since(startTime).Seconds())

	if err == nil && (address == nil || address.Display() == "") {
		err = geocoding.ErrNoAddress
	}
	if err != nil {
		attempts := ss.failed(task.PlaceID)
		ss.metrics.AddressTasks.WithLabelValues("failure").Inc()
		if !errors.Is(err, geocoding.ErrNoAddress) {
			ss.metrics.ProviderErrors.WithLabelValues(ss.providerName).Inc()
		}
		ss.log.ErrorContext(ctx, "Failed to resolve address",
			"worker", idx, "place", task.PlaceID, "attempts", attempts, "error", err)
		return
	}

	place, ok := ss.store.Get(task.PlaceID)
	if !ok || place.Address != "" {
		ss.log.DebugContext(ctx, "Place changed while resolving, skipping", "worker", idx, "place", task.PlaceID)
		return
	}

	place.Address = address.Display()
	if _, err = ss.store.Upsert(ctx, place); err != nil {
		ss.metrics.AddressTasks.WithLabelValues("failure").Inc()
		ss.log.ErrorContext(ctx, "Failed to save address for place",
			"worker", idx, "place", task.PlaceID, "error", err)
		return
	}

	ss.metrics.AddressTasks.WithLabelValues("success").Inc()
	ss.log.DebugContext(ctx, "Worker successfully resolved the address", "worker", idx, "place", task.PlaceID)
}
