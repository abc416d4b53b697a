package dataset

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/logger"
	"github.com/skillsenselab/dreamflow/security"
)

// KafkaConfig configures a Kafka-backed log.
type KafkaConfig struct {
	// Brokers is the bootstrap broker list.
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	// Topic is the backing topic. Single-partition topics preserve the
	// per-dataset total order the runtime relies on.
	Topic string `yaml:"topic" mapstructure:"topic"`
	// BatchTimeout bounds producer batching latency.
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
	// TLS configures broker transport security. Nil means plaintext.
	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults applies default values.
func (c *KafkaConfig) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
}

// Validate validates the config.
func (c *KafkaConfig) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	return nil
}

type produceResult struct {
	offset int64
	err    error
}

// KafkaLog is a Log backend over a single-partition Kafka topic via
// kafka-go. Unreachable brokers surface as BACKEND_UNAVAILABLE so the
// Dataset append path retries with backoff.
type KafkaLog struct {
	cfg    KafkaConfig
	writer *kafkago.Writer
	dialer *kafkago.Dialer
	lg     *logger.Logger

	mu sync.Mutex
	// readers pools positioned partition readers keyed by the next offset
	// they will deliver, so sequential cursor reads reuse a connection.
	readers map[uint64][]*kafkago.Reader
}

// NewKafkaLog creates a Kafka-backed log for one topic.
func NewKafkaLog(cfg KafkaConfig, lg *logger.Logger) (*KafkaLog, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka log config: %w", err)
	}

	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("kafka log tls: %w", err)
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: cfg.BatchTimeout,
	}
	var dialer *kafkago.Dialer
	if tlsCfg != nil {
		writer.Transport = &kafkago.Transport{TLS: tlsCfg}
		dialer = &kafkago.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
			TLS:       tlsCfg,
		}
	}
	writer.Completion = func(messages []kafkago.Message, err error) {
		for _, m := range messages {
			if ch, ok := m.WriterData.(chan produceResult); ok {
				ch <- produceResult{offset: m.Offset, err: err}
			}
		}
	}

	return &KafkaLog{
		cfg:     cfg,
		writer:  writer,
		dialer:  dialer,
		lg:      lg.WithComponent("kafka." + cfg.Topic),
		readers: make(map[uint64][]*kafkago.Reader),
	}, nil
}

// Append produces one record and returns its assigned offset.
func (k *KafkaLog) Append(ctx context.Context, key string, payload []byte) (uint64, error) {
	done := make(chan produceResult, 1)
	msg := kafkago.Message{
		Key:        []byte(key),
		Value:      payload,
		WriterData: done,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return 0, errors.BackendUnavailable(k.cfg.Topic, err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			return 0, errors.BackendUnavailable(k.cfg.Topic, res.err)
		}
		return uint64(res.offset), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Read returns the record at offset, blocking until it exists or ctx is done.
func (k *KafkaLog) Read(ctx context.Context, offset uint64) (Record, error) {
	reader := k.takeReader(offset)

	msg, err := reader.ReadMessage(ctx)
	if err != nil {
		// Reader is still positioned at the requested offset; pool it.
		k.putReader(offset, reader)
		if ctx.Err() != nil {
			return Record{}, ctx.Err()
		}
		return Record{}, errors.BackendUnavailable(k.cfg.Topic, err)
	}

	k.putReader(uint64(msg.Offset)+1, reader)

	return Record{
		Offset:    uint64(msg.Offset),
		Key:       string(msg.Key),
		Payload:   msg.Value,
		Timestamp: msg.Time,
	}, nil
}

// End returns the next offset that will be assigned.
func (k *KafkaLog) End(ctx context.Context) (uint64, error) {
	conn, err := k.dialLeader(ctx)
	if err != nil {
		return 0, errors.BackendUnavailable(k.cfg.Topic, err)
	}
	defer conn.Close()

	last, err := conn.ReadLastOffset()
	if err != nil {
		return 0, errors.BackendUnavailable(k.cfg.Topic, err)
	}
	return uint64(last), nil
}

// Close releases the writer and all pooled readers.
func (k *KafkaLog) Close() error {
	k.mu.Lock()
	for _, pool := range k.readers {
		for _, r := range pool {
			_ = r.Close()
		}
	}
	k.readers = make(map[uint64][]*kafkago.Reader)
	k.mu.Unlock()

	return k.writer.Close()
}

func (k *KafkaLog) takeReader(offset uint64) *kafkago.Reader {
	k.mu.Lock()
	if pool := k.readers[offset]; len(pool) > 0 {
		reader := pool[len(pool)-1]
		k.readers[offset] = pool[:len(pool)-1]
		k.mu.Unlock()
		return reader
	}
	k.mu.Unlock()

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   k.cfg.Brokers,
		Topic:     k.cfg.Topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
		Dialer:    k.dialer,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			k.lg.Error("reader: "+fmt.Sprintf(msg, args...), nil)
		}),
	})
	_ = reader.SetOffset(int64(offset))
	return reader
}

func (k *KafkaLog) putReader(offset uint64, reader *kafkago.Reader) {
	k.mu.Lock()
	k.readers[offset] = append(k.readers[offset], reader)
	k.mu.Unlock()
}

func (k *KafkaLog) dialLeader(ctx context.Context) (*kafkago.Conn, error) {
	var lastErr error
	for _, broker := range k.cfg.Brokers {
		var conn *kafkago.Conn
		var err error
		if k.dialer != nil {
			conn, err = k.dialer.DialLeader(ctx, "tcp", broker, k.cfg.Topic, 0)
		} else {
			conn, err = kafkago.DialLeader(ctx, "tcp", broker, k.cfg.Topic, 0)
		}
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &net.OpError{Op: "dial", Err: fmt.Errorf("no brokers configured")}
	}
	return nil, lastErr
}
