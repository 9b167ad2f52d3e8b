package statistics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type statisticsData struct {
	dataMap map[string]int

	mutex sync.Mutex
}

var (
	stats = &statisticsData{
		dataMap: make(map[string]int),
	}

	gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "reconf",
		Name:      "statistics",
		Help:      "Solver counters keyed by name.",
	}, []string{"key"})
	registerOnce sync.Once
)

// Init resets every counter and registers the prometheus mirror once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(gauge)
	})

	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	stats.dataMap = make(map[string]int)
	gauge.Reset()
}

func Set(key string, value int) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	stats.dataMap[key] = value
	gauge.WithLabelValues(key).Set(float64(value))
}

func Change(key string, value int) {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	stats.dataMap[key] += value
	gauge.WithLabelValues(key).Set(float64(stats.dataMap[key]))
}

func Get(key string) int {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	return stats.dataMap[key]
}

// Snapshot copies the current counters.
func Snapshot() map[string]int {
	stats.mutex.Lock()
	defer stats.mutex.Unlock()

	result := make(map[string]int, len(stats.dataMap))
	for key, value := range stats.dataMap {
		result[key] = value
	}
	return result
}

func Display() string {
	data := Snapshot()
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := "Statistics results are:\n"
	for _, key := range keys {
		result += fmt.Sprintf("Number of %s is %d\n", key, data[key])
	}

	return result
}
