package utils

import (
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
)

// GetOptimalWorkerCount determines the number of workers based on config and system resources.
func GetOptimalWorkerCount(configValue string) int {
	if manualWorkers, err := strconv.Atoi(configValue); err == nil && manualWorkers > 0 {
		log.Info().Int("workers", manualWorkers).Msg("Using configured number of workers")
		return manualWorkers
	}

	if configValue != "auto" {
		log.Warn().Str("value", configValue).Msg("Invalid workers value, defaulting to auto")
	}

	// Logical cores: page checks mostly wait on the network.
	cpuCores, err := cpu.Counts(true)
	if err != nil {
		log.Warn().Err(err).Int("workers", 2).Msg("Could not detect CPU cores, using fallback")
		return 2
	}

	// Half the cores, each worker drives a whole browser.
	optimalCount := cpuCores / 2
	if optimalCount < 1 {
		optimalCount = 1
	}
	if optimalCount > 16 {
		optimalCount = 16
	}

	log.Info().Int("cores", cpuCores).Int("workers", optimalCount).Msg("Automatically selected number of workers")
	return optimalCount
}
