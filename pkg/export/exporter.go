package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ava-labs/chain-monitor/pkg/broadcast"
	"github.com/ava-labs/chain-monitor/pkg/chainstate"
	"github.com/ava-labs/chain-monitor/pkg/metrics"
	"github.com/ava-labs/chain-monitor/pkg/registry"
)

const (
	headerEventID = "event-id"
	headerSource  = "source"
	headerKind    = "kind"

	kindSnapshot = "snapshot"
	kindUpdate   = "update"
)

// ErrPublisherClosed is returned by Run when the publisher shuts down under it.
var ErrPublisherClosed = errors.New("publisher closed")

// Subscriber is the part of the store the exporter reads.
type Subscriber interface {
	Subscribe() (*broadcast.Subscription[chainstate.Event], []chainstate.Event)
}

// StateChange is the JSON value of each export record. Records are keyed by
// chain id so all reports for one chain land on one partition in order.
type StateChange struct {
	EventID     string            `json:"eventId"`
	Instance    string            `json:"instance,omitempty"`
	Source      registry.SourceID `json:"source"`
	Chain       registry.ChainID  `json:"chain"`
	Ticker      string            `json:"ticker"`
	NetworkType string            `json:"networkType"`
	Hash        string            `json:"hash"`
	Height      uint64            `json:"height"`
	FirstSeen   uint64            `json:"firstSeenTs"`
	LastChecked uint64            `json:"lastCheckedTs"`
}

// Exporter forwards every state change from the store to a Publisher.
type Exporter struct {
	log      *zap.SugaredLogger
	store    Subscriber
	pub      Publisher
	cfg      Config
	instance string
	metrics  *metrics.Metrics
	newID    func() string
}

func NewExporter(
	log *zap.SugaredLogger,
	store Subscriber,
	pub Publisher,
	cfg Config,
	instance string,
	m *metrics.Metrics,
) (*Exporter, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if store == nil {
		return nil, errors.New("invalid store: must not be nil")
	}
	if pub == nil {
		return nil, errors.New("invalid publisher: must not be nil")
	}
	if cfg.Topic == "" {
		return nil, errors.New("export topic cannot be empty")
	}
	return &Exporter{
		log:      log,
		store:    store,
		pub:      pub,
		cfg:      cfg.WithDefaults(),
		instance: instance,
		metrics:  m,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// Run publishes until ctx is cancelled or the publisher reports a fatal
// error. Individual publish failures are logged and counted; the record is
// not retried.
func (e *Exporter) Run(ctx context.Context) error {
	sub, snapshot := e.store.Subscribe()
	defer sub.Close()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go e.watchPublisher(runCtx, cancel)

	if e.cfg.IncludeSnapshot {
		e.log.Infow("exporting snapshot", "records", len(snapshot))
		for _, ev := range snapshot {
			if runCtx.Err() != nil {
				break
			}
			e.export(runCtx, ev, kindSnapshot)
		}
	}

	for {
		ev, err := sub.Next(runCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if cause := context.Cause(runCtx); cause != nil {
				return fmt.Errorf("export publisher failed: %w", cause)
			}
			return fmt.Errorf("export subscription: %w", err)
		}
		if dropped := sub.Dropped(); dropped > 0 {
			e.log.Debugw("exporter fell behind", "dropped", dropped)
		}
		e.export(runCtx, ev, kindUpdate)
	}
}

func (e *Exporter) watchPublisher(ctx context.Context, cancel context.CancelCauseFunc) {
	select {
	case <-ctx.Done():
	case err, ok := <-e.pub.Errors():
		if !ok || err == nil {
			err = ErrPublisherClosed
		}
		cancel(err)
	}
}

func (e *Exporter) export(ctx context.Context, ev chainstate.Event, kind string) {
	change := e.stateChange(ev)
	value, err := json.Marshal(change)
	if err != nil {
		e.log.Errorw("failed to encode export record", "source", ev.Source, "chain", ev.Chain, "error", err)
		e.metrics.IncError(metrics.ErrTypeEncode)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, e.cfg.PublishTimeout)
	defer cancel()

	start := time.Now()
	err = e.pub.Publish(pubCtx, Msg{
		Topic: e.cfg.Topic,
		Key:   []byte(ev.Chain),
		Value: value,
		Headers: map[string]string{
			headerEventID: change.EventID,
			headerSource:  string(ev.Source),
			headerKind:    kind,
		},
	})
	e.metrics.RecordExport(err)
	if err != nil {
		if ctx.Err() == nil {
			e.log.Warnw("failed to export state change",
				"source", ev.Source,
				"chain", ev.Chain,
				"height", ev.State.Height,
				"error", err,
			)
		}
		return
	}
	e.log.Debugw("exported state change",
		"source", ev.Source,
		"chain", ev.Chain,
		"height", ev.State.Height,
		"took", time.Since(start),
	)
}

func (e *Exporter) stateChange(ev chainstate.Event) StateChange {
	return StateChange{
		EventID:     e.newID(),
		Instance:    e.instance,
		Source:      ev.Source,
		Chain:       ev.Chain,
		Ticker:      ev.Chain.Ticker(),
		NetworkType: string(ev.Chain.NetworkType()),
		Hash:        ev.State.Hash,
		Height:      ev.State.Height,
		FirstSeen:   ev.State.FirstSeen,
		LastChecked: ev.State.LastChecked,
	}
}
