package qa

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuestionsTotal counts questions answered.
	// Labels: result (answered, empty, degraded, error)
	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "threadwise",
			Subsystem: "qa",
			Name:      "questions_total",
			Help:      "Total number of questions processed by outcome",
		},
		[]string{"result"},
	)

	// QuestionDuration tracks end to end answer latency.
	QuestionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "threadwise",
			Subsystem: "qa",
			Name:      "question_duration_seconds",
			Help:      "Duration of question answering in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// GenerationFailures counts LLM generation failures that degraded
	// an answer.
	GenerationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "threadwise",
			Subsystem: "qa",
			Name:      "generation_failures_total",
			Help:      "Total number of answer generation failures",
		},
	)

	// AnswerConfidence observes reported confidence scores.
	AnswerConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "threadwise",
			Subsystem: "qa",
			Name:      "answer_confidence",
			Help:      "Distribution of answer confidence scores (0-100)",
			Buckets:   []float64{0, 10, 25, 50, 65, 80, 90, 100},
		},
	)
)
