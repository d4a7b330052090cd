package tuner

// defaultTotalRAM is the fallback total RAM when detection fails.
const defaultTotalRAM = 8 * 1024 * 1024 * 1024
