package observability

import (
	"context"
	"time"

	"chatgate/internal/models"
	"chatgate/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage with a span, a latency
// histogram sample and an error counter per call.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// NewInstrumentedStorage creates the wrapper using the global otel providers.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	meter := otel.Meter(scopeStorage)

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   otel.Tracer(scopeStorage),
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	s.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// traced runs fn inside a span for operation.
func traced[T any](ctx context.Context, s *InstrumentedStorage, operation string, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, span := s.startSpan(ctx, operation, attrs...)
	start := time.Now()
	result, err := fn(ctx)
	s.record(ctx, span, operation, start, err)
	return result, err
}

func (s *InstrumentedStorage) exec(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	_, err := traced(ctx, s, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, attrs...)
	return err
}

func (s *InstrumentedStorage) CreateUser(ctx context.Context, user *models.User) error {
	return s.exec(ctx, "CreateUser", func(ctx context.Context) error {
		return s.inner.CreateUser(ctx, user)
	}, attribute.String("user_id", user.ID))
}

func (s *InstrumentedStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return traced(ctx, s, "GetUser", func(ctx context.Context) (*models.User, error) {
		return s.inner.GetUser(ctx, id)
	}, attribute.String("user_id", id))
}

func (s *InstrumentedStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return traced(ctx, s, "GetUserByUsername", func(ctx context.Context) (*models.User, error) {
		return s.inner.GetUserByUsername(ctx, username)
	})
}

// GetUserByTokenHash never puts the hash on the span.
func (s *InstrumentedStorage) GetUserByTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return traced(ctx, s, "GetUserByTokenHash", func(ctx context.Context) (*models.User, error) {
		return s.inner.GetUserByTokenHash(ctx, hash)
	})
}

func (s *InstrumentedStorage) Users(ctx context.Context) ([]*models.User, error) {
	return traced(ctx, s, "Users", s.inner.Users)
}

func (s *InstrumentedStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return s.exec(ctx, "CreateConversation", func(ctx context.Context) error {
		return s.inner.CreateConversation(ctx, conv)
	},
		attribute.String("conversation_id", conv.ID),
		attribute.Int("participants", len(conv.Participants)),
	)
}

func (s *InstrumentedStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return traced(ctx, s, "GetConversation", func(ctx context.Context) (*models.Conversation, error) {
		return s.inner.GetConversation(ctx, id)
	}, attribute.String("conversation_id", id))
}

func (s *InstrumentedStorage) ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	return traced(ctx, s, "ConversationsForUser", func(ctx context.Context) ([]*models.Conversation, error) {
		return s.inner.ConversationsForUser(ctx, userID)
	}, attribute.String("user_id", userID))
}

func (s *InstrumentedStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.exec(ctx, "CreateMessage", func(ctx context.Context) error {
		return s.inner.CreateMessage(ctx, msg)
	},
		attribute.String("message_id", msg.ID),
		attribute.String("conversation_id", msg.ConversationID),
	)
}

func (s *InstrumentedStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return traced(ctx, s, "GetMessage", func(ctx context.Context) (*models.Message, error) {
		return s.inner.GetMessage(ctx, id)
	}, attribute.String("message_id", id))
}

func (s *InstrumentedStorage) UpdateMessage(ctx context.Context, msg *models.Message) error {
	return s.exec(ctx, "UpdateMessage", func(ctx context.Context) error {
		return s.inner.UpdateMessage(ctx, msg)
	}, attribute.String("message_id", msg.ID))
}

func (s *InstrumentedStorage) DeleteMessage(ctx context.Context, id string) error {
	return s.exec(ctx, "DeleteMessage", func(ctx context.Context) error {
		return s.inner.DeleteMessage(ctx, id)
	}, attribute.String("message_id", id))
}

func (s *InstrumentedStorage) MessagesForUser(ctx context.Context, userID string, filter models.MessageFilter) ([]*models.Message, error) {
	return traced(ctx, s, "MessagesForUser", func(ctx context.Context) ([]*models.Message, error) {
		return s.inner.MessagesForUser(ctx, userID, filter)
	}, attribute.String("user_id", userID))
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	return s.exec(ctx, "Ping", s.inner.Ping)
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
