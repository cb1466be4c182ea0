package receipt

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Metrics", func() {
	var (
		reg      *prometheus.Registry
		inFlight bool
		metrics  *Metrics
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		inFlight = false
		metrics = NewMetrics(reg, func() bool { return inFlight })
	})

	It("counts finished items by outcome", func() {
		metrics.BatchDone("batch-1", []State{
			{ID: "001", Outcome: OutcomeSuccess},
			{ID: "002", Outcome: OutcomeFailed},
			{ID: "003", Outcome: OutcomeSuccess},
		})

		Expect(testutil.ToFloat64(metrics.items.WithLabelValues("success"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(metrics.items.WithLabelValues("failed"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(metrics.batches)).To(Equal(1.0))
	})

	It("ignores intermediate state changes", func() {
		metrics.StateChanged("batch-1", []State{{ID: "001", Stage: StageExtracting}})
		Expect(testutil.CollectAndCount(metrics.items)).To(BeZero())
	})

	It("reports whether a batch is in flight", func() {
		expected := `
# HELP receipt_pipeline_batch_in_flight 1 while a batch is being processed.
# TYPE receipt_pipeline_batch_in_flight gauge
receipt_pipeline_batch_in_flight 1
`
		inFlight = true
		Expect(testutil.GatherAndCompare(reg, strings.NewReader(expected), "receipt_pipeline_batch_in_flight")).To(Succeed())
	})
})
