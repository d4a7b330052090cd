package tuner

// Worker configuration limits.
const (
	// maxWorkers is the maximum number of workers for any pool.
	maxWorkers = 64

	// minWalkWorkers is the minimum number of traversal workers.
	// Directory reads benefit from parallelism even on small systems.
	minWalkWorkers = 4

	// minQueueSize is the minimum queue size.
	minQueueSize = 64

	// maxQueueSize is the maximum queue size.
	maxQueueSize = 16384
)

// Memory-based queue sizing constants.
const (
	// bytesPerQueueEntry estimates memory per queued path.
	bytesPerQueueEntry = 512

	// queueMemoryFraction is the fraction of available RAM to use for queues.
	queueMemoryFraction = 0.01
)

// Config is the tuned pool configuration for one scan.
type Config struct {
	// HashWorkers is the number of digest workers.
	HashWorkers int

	// WalkWorkers is the number of traversal goroutines used by the walker.
	WalkWorkers int

	// QueueSize is the capacity of the walker output and job queues.
	QueueSize int
}

// Calculate returns a configuration for the given resources.
//
//   - HashWorkers: NumCPU. Hashing streams from disk and is CPU bound once
//     the page cache is warm, so more workers than cores only adds contention.
//   - WalkWorkers: max(NumCPU, 4), traversal is metadata heavy.
//   - Both are capped at 64.
//   - QueueSize scales with available RAM.
func Calculate(resources SystemResources) Config {
	hashWorkers := max(resources.CPUCores, 1)
	hashWorkers = min(hashWorkers, maxWorkers)

	walkWorkers := max(resources.CPUCores, minWalkWorkers)
	walkWorkers = min(walkWorkers, maxWorkers)

	return Config{
		HashWorkers: hashWorkers,
		WalkWorkers: walkWorkers,
		QueueSize:   calculateQueueSize(resources.AvailableRAM),
	}
}

// CalculateWithOverrides applies user overrides to the calculated config.
// A workers value greater than 0 replaces HashWorkers (still capped at 64);
// a queueSize greater than 0 replaces QueueSize.
func CalculateWithOverrides(resources SystemResources, workers, queueSize int) Config {
	cfg := Calculate(resources)

	if workers > 0 {
		cfg.HashWorkers = min(workers, maxWorkers)
	}
	if queueSize > 0 {
		cfg.QueueSize = queueSize
	}

	return cfg
}

// Auto detects resources and applies overrides. Detection failures fall
// back to the partially detected values.
func Auto(workers, queueSize int) Config {
	resources, _ := Detect()
	if resources.AvailableRAM <= 0 {
		resources.AvailableRAM = defaultTotalRAM / 2
	}
	return CalculateWithOverrides(resources, workers, queueSize)
}

// calculateQueueSize determines queue size based on available memory.
func calculateQueueSize(availableRAM int64) int {
	queueMemory := float64(availableRAM) * queueMemoryFraction

	// Two queues: walker output and scanner jobs.
	entriesPerQueue := int(queueMemory/bytesPerQueueEntry) / 2

	entriesPerQueue = max(entriesPerQueue, minQueueSize)
	entriesPerQueue = min(entriesPerQueue, maxQueueSize)

	return entriesPerQueue
}
