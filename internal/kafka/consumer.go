package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/paddock-market/internal/config"
	"github.com/paddock-market/internal/domain"
	"github.com/paddock-market/internal/metrics"
)

var errImportFailed = errors.New("points import failed after retries")

// PointsImporter stores rider points for a race
type PointsImporter interface {
	ImportPoints(ctx context.Context, actor domain.Actor, imp domain.PointsImport) (int, error)
}

// Consumer consumes points imports from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	importer      PointsImporter
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, importer PointsImporter, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return newConsumer(cfg, importer, consumerGroup, logger), nil
}

func newConsumer(cfg *config.KafkaConfig, importer PointsImporter, group sarama.ConsumerGroup, logger *slog.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:        cfg,
		importer:      importer,
		logger:        logger,
		consumerGroup: group,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	<-c.ready
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// DecodeImport parses and validates a message body
func DecodeImport(data []byte) (domain.PointsImport, error) {
	var imp domain.PointsImport
	if err := json.Unmarshal(data, &imp); err != nil {
		return domain.PointsImport{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	sport, err := domain.ParseSport(string(imp.Sport))
	if err != nil {
		return domain.PointsImport{}, err
	}
	imp.Sport = sport
	if err := imp.Validate(); err != nil {
		return domain.PointsImport{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return imp, nil
}

// MergeImports folds imports for the same race into one, keeping first-seen
// order. Later rows for a rider replace earlier ones.
func MergeImports(imports []domain.PointsImport) []domain.PointsImport {
	index := make(map[raceKey]int, len(imports))
	var out []domain.PointsImport
	for _, imp := range imports {
		k := keyOf(imp)
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, domain.PointsImport{
				Sport:  imp.Sport,
				RaceID: imp.RaceID,
				Points: append([]domain.PointsInput(nil), imp.Points...),
			})
			continue
		}
		out[i].Points = append(out[i].Points, imp.Points...)
	}
	return out
}

type raceKey struct {
	sport  domain.Sport
	raceID int64
}

func keyOf(imp domain.PointsImport) raceKey {
	return raceKey{imp.Sport, imp.RaceID}
}

// process imports a batch, retrying transient failures. Rejected imports are
// logged and dropped. It returns the races whose import still failed after
// the last attempt.
func (c *Consumer) process(ctx context.Context, imports []domain.PointsImport) map[raceKey]bool {
	failed := make(map[raceKey]bool)
	for _, imp := range MergeImports(imports) {
		logger := c.logger.With("sport", imp.Sport, "race_id", imp.RaceID)

		attempts := max(c.config.RetryAttempts, 1)
		var err error
	retry:
		for attempt := 1; attempt <= attempts; attempt++ {
			var n int
			n, err = c.importer.ImportPoints(ctx, domain.SystemActor, imp)
			if err == nil {
				logger.Debug("points import applied", "rows", n)
				metrics.PointsImportMessages.WithLabelValues("imported").Inc()
				break
			}
			if permanent(err) || attempt == attempts {
				break
			}
			logger.Warn("points import failed, retrying", "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break retry
			case <-time.After(c.config.RetryDelay):
			}
		}

		switch {
		case err == nil:
		case permanent(err):
			logger.Warn("points import rejected", "error", err)
			metrics.PointsImportMessages.WithLabelValues("rejected").Inc()
		default:
			logger.Error("points import failed", "error", err, "rider_ids", riderIDs(imp))
			metrics.PointsImportMessages.WithLabelValues("failed").Inc()
			failed[keyOf(imp)] = true
		}
	}
	return failed
}

func riderIDs(imp domain.PointsImport) []int64 {
	ids := make([]int64, len(imp.Points))
	for i, p := range imp.Points {
		ids[i] = p.RiderID
	}
	return ids
}

func permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrUnknownSport) ||
		errors.Is(err, domain.ErrForbidden) ||
		domain.IsNotFoundError(err)
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

type pendingMessage struct {
	message *sarama.ConsumerMessage
	race    raceKey
	decoded bool
}

// ConsumeClaim processes messages from a topic partition. Offsets are marked
// once the batch holding the message has been processed. Marking stops at the
// first message whose import failed, and the claim ends so the session
// restarts from the last marked offset.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]domain.PointsImport, 0, cfg.BatchSize)
	var pending []pendingMessage
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() error {
		var failed map[raceKey]bool
		if len(batch) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			failed = h.consumer.process(ctx, batch)
			cancel()
		}
		defer func() {
			batch = batch[:0]
			pending = pending[:0]
		}()
		for i, p := range pending {
			if p.decoded && failed[p.race] {
				h.consumer.logger.Error("points import failed, leaving offsets unmarked",
					"sport", p.race.sport,
					"race_id", p.race.raceID,
					"offset", p.message.Offset,
					"partition", p.message.Partition,
					"unmarked", len(pending)-i,
				)
				return fmt.Errorf("importing %s race %d at offset %d: %w",
					p.race.sport, p.race.raceID, p.message.Offset, errImportFailed)
			}
			session.MarkMessage(p.message, "")
		}
		return nil
	}

	for {
		select {
		case <-session.Context().Done():
			return processBatch()

		case <-batchTimer.C:
			if err := processBatch(); err != nil {
				return err
			}
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				return processBatch()
			}

			imp, err := DecodeImport(message.Value)
			if err != nil {
				h.consumer.logger.Warn("invalid points import message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				metrics.PointsImportMessages.WithLabelValues("invalid").Inc()
				pending = append(pending, pendingMessage{message: message})
				continue
			}

			pending = append(pending, pendingMessage{message: message, race: keyOf(imp), decoded: true})
			batch = append(batch, imp)
			if len(batch) >= cfg.BatchSize {
				if err := processBatch(); err != nil {
					return err
				}
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
