package infrastructure

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects on the CORE stream. Signals are published for every asset
// whether or not trading is allowed; stats follow each aggregation run.
const (
	SubjectSignals = "core.signals.*"
	SubjectStats   = "core.stats.*.*"
)

func InitNATS(url string, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, nil, err
	}

	cfg := &nats.StreamConfig{
		Name:     "CORE",
		Subjects: []string{SubjectSignals, SubjectStats},
	}
	if _, err = js.AddStream(cfg); err != nil {
		if _, err = js.UpdateStream(cfg); err != nil {
			logger.Warn("failed to create or update stream", zap.Error(err))
		}
	}

	return nc, js, nil
}
