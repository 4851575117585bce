package colortracker

import (
	"fmt"
	"strconv"
	"strings"
)

// CPUCoreMask calculates the core mask by passing in the CPU core numbers as a
// slice, eg: []int{4,5,6,7}
func CPUCoreMask(cores []int) uintptr {

	var mask uintptr

	for _, core := range cores {
		mask |= 1 << core
	}

	return mask
}

// ParseCPUCores parses a comma delimited list of core numbers, eg: "4,5,6,7",
// into a core mask.  An empty string returns a zero mask.
func ParseCPUCores(list string) (uintptr, error) {

	var cores []int

	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)

		if field == "" {
			continue
		}

		core, err := strconv.Atoi(field)

		if err != nil || core < 0 || core >= strconv.IntSize {
			return 0, fmt.Errorf("invalid CPU core %q", field)
		}

		cores = append(cores, core)
	}

	return CPUCoreMask(cores), nil
}
