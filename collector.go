package ringbuf

import "github.com/prometheus/client_golang/prometheus"

const namespace = "ringbuf"

var (
	capacityDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "capacity_bytes"),
		"Size of the ring arena in bytes.",
		[]string{"ring"}, nil,
	)
	outstandingDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "outstanding_bytes"),
		"Bytes acquired and not yet released.",
		[]string{"ring"}, nil,
	)
	acquiresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "acquires_total"),
		"Acquire calls by result.",
		[]string{"ring", "result"}, nil,
	)
	acquiredBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "acquired_bytes_total"),
		"Bytes handed out by successful acquire calls.",
		[]string{"ring"}, nil,
	)
	wrapsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "wraps_total"),
		"Acquisitions that continued from the start of the arena.",
		[]string{"ring", "kind"}, nil,
	)
	releasesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "releases_total"),
		"Slices released back to the ring.",
		[]string{"ring"}, nil,
	)
	releasedBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "released_bytes_total"),
		"Bytes released back to the ring.",
		[]string{"ring"}, nil,
	)
)

// Collector exposes a ring's Metrics to Prometheus. Values are read at
// scrape time, so registering a collector adds no cost to Acquire or
// Release.
type Collector struct {
	name string
	ring *Ring
}

// NewCollector returns a collector labelling every series with ring=name.
func NewCollector(name string, r *Ring) *Collector {
	return &Collector{name: name, ring: r}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- capacityDesc
	descs <- outstandingDesc
	descs <- acquiresDesc
	descs <- acquiredBytesDesc
	descs <- wrapsDesc
	descs <- releasesDesc
	descs <- releasedBytesDesc
}

func (c *Collector) Collect(m chan<- prometheus.Metric) {
	s := c.ring.Metrics()

	m <- prometheus.MustNewConstMetric(capacityDesc, prometheus.GaugeValue, float64(s.Capacity), c.name)
	m <- prometheus.MustNewConstMetric(outstandingDesc, prometheus.GaugeValue, float64(s.Outstanding), c.name)
	m <- prometheus.MustNewConstMetric(acquiresDesc, prometheus.CounterValue, float64(s.Acquires), c.name, "success")
	m <- prometheus.MustNewConstMetric(acquiresDesc, prometheus.CounterValue, float64(s.AcquireFailures), c.name, "no_space")
	m <- prometheus.MustNewConstMetric(acquiresDesc, prometheus.CounterValue, float64(s.InvalidRequests), c.name, "invalid")
	m <- prometheus.MustNewConstMetric(acquiredBytesDesc, prometheus.CounterValue, float64(s.AcquiredBytes), c.name)
	m <- prometheus.MustNewConstMetric(wrapsDesc, prometheus.CounterValue, float64(s.Wraps), c.name, "wrap")
	m <- prometheus.MustNewConstMetric(wrapsDesc, prometheus.CounterValue, float64(s.Rewinds), c.name, "rewind")
	m <- prometheus.MustNewConstMetric(releasesDesc, prometheus.CounterValue, float64(s.Releases), c.name)
	m <- prometheus.MustNewConstMetric(releasedBytesDesc, prometheus.CounterValue, float64(s.ReleasedBytes), c.name)
}
