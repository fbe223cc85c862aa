package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

const (
	MetricsNamespace = "rpreporter"
)

var (
	Debug                bool = false
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	itemsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "items_started_total",
		Help:      "Count of items started on the remote tree",
	}, []string{
		"type",
	})

	itemsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "items_finished_total",
		Help:      "Count of items finished on the remote tree",
	}, []string{
		"type",
		"status",
	})

	remoteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "remote_errors_total",
		Help:      "Count of failed remote reporting calls",
	}, []string{
		"context",
	})

	budgetUnderflowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "budget_underflows_total",
		Help:      "Count of suites whose invocation budget dropped below zero",
	})

	forcedSuiteFinishesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "forced_suite_finishes_total",
		Help:      "Count of suites closed by the shutdown reconciler",
	})

	replayedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "replayed_events_total",
		Help:      "Count of runner events replayed from an event log",
	}, []string{
		"kind",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordItemStarted(itemType types.ItemType) {
	itemsStartedTotal.WithLabelValues(string(itemType)).Inc()
}

func RecordItemFinished(itemType types.ItemType, status types.ItemStatus) {
	if status == "" {
		status = "NONE"
	}
	itemsFinishedTotal.WithLabelValues(string(itemType), string(status)).Inc()
}

// RecordRemoteError counts a failed remote call under the caller supplied context
func RecordRemoteError(context string) {
	if Debug {
		log.Debug("metric inc",
			"m", "remote_errors_total",
			"context", context,
		)
	}
	remoteErrorsTotal.WithLabelValues(context).Inc()
}

func RecordBudgetUnderflow() {
	budgetUnderflowsTotal.Inc()
}

func RecordForcedSuiteFinish() {
	forcedSuiteFinishesTotal.Inc()
}

func RecordReplayedEvent(kind string) {
	replayedEventsTotal.WithLabelValues(kind).Inc()
}
