// Package worker provides a NATS worker that serves phonemization requests.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/phonemizer-service/internal/core"
	"github.com/book-expert/phonemizer-service/internal/phonemizer"
	"github.com/book-expert/phonemizer-service/internal/text"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	defaultHandleTimeout = 30 * time.Second
	phonemeKeySuffix     = ".phonemes"
)

var (
	// ErrTextMissing indicates a request with neither text nor text key.
	ErrTextMissing = errors.New("request must carry text or text_key")
	// ErrStoreNotConfigured indicates a store operation without an object store.
	ErrStoreNotConfigured = errors.New("object store not configured")
)

// Manager is the phonemization backend the worker delegates to.
type Manager interface {
	core.Phonemizer
	Stats() phonemizer.Stats
}

// Options configures the subjects and request defaults of a NatsWorker.
type Options struct {
	PhonemizeSubject string
	StatsSubject     string
	QueueGroup       string
	DefaultLanguage  string
	Timeout          time.Duration
}

// NatsWorker answers phonemize requests on a NATS subject.
type NatsWorker struct {
	natsConnection *nats.Conn
	opts           Options
	store          core.ObjectStore
	manager        Manager
	normalizer     *text.Normalizer
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. The store may be nil
// when requests never reference stored text.
func NewNatsWorker(
	natsConnection *nats.Conn,
	opts Options,
	store core.ObjectStore,
	manager Manager,
	log *logger.Logger,
) *NatsWorker {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHandleTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		opts:           opts,
		store:          store,
		manager:        manager,
		normalizer:     text.NewNormalizer(),
		log:            log,
	}
}

// Run subscribes and blocks until ctx is done, then drains the subscriptions.
func (w *NatsWorker) Run(ctx context.Context) error {
	phonemizeSub, err := w.natsConnection.QueueSubscribe(w.opts.PhonemizeSubject, w.opts.QueueGroup, w.handlePhonemize)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.opts.PhonemizeSubject, err)
	}

	subs := []*nats.Subscription{phonemizeSub}

	if w.opts.StatsSubject != "" {
		statsSub, statsErr := w.natsConnection.Subscribe(w.opts.StatsSubject, w.handleStats)
		if statsErr != nil {
			_ = phonemizeSub.Drain()

			return fmt.Errorf("failed to subscribe to subject %s: %w", w.opts.StatsSubject, statsErr)
		}

		subs = append(subs, statsSub)
	}

	w.log.Info("Listening for phonemize requests on subject: %s", w.opts.PhonemizeSubject)

	<-ctx.Done()

	var drainErr error

	for _, sub := range subs {
		err = sub.Drain()
		if err != nil {
			drainErr = errors.Join(drainErr, fmt.Errorf("failed to drain subscription %s: %w", sub.Subject, err))
		}
	}

	return drainErr
}

func (w *NatsWorker) handlePhonemize(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.Timeout)
	defer cancel()

	var request PhonemizeRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		w.log.Error("Failed to unmarshal phonemize request: %v", err)
		w.respond(msg, &PhonemizeReply{
			Error:     fmt.Sprintf("failed to unmarshal request: %v", err),
			ErrorCode: CodeInvalidRequest,
		})

		return
	}

	reply := w.process(ctx, &request)
	if reply.ErrorCode != "" {
		w.log.Error("Phonemize request %s failed (%s): %s",
			request.Header.WorkflowID, reply.ErrorCode, reply.Error)
	}

	w.respond(msg, reply)
}

// process resolves the input text, phonemizes it and optionally stores the result.
func (w *NatsWorker) process(ctx context.Context, request *PhonemizeRequest) *PhonemizeReply {
	language := request.Language
	if language == "" {
		language = w.opts.DefaultLanguage
	}

	reply := &PhonemizeReply{Header: request.Header, Language: language}

	input, err := w.resolveText(ctx, request)
	if err != nil {
		return withError(reply, err, inputErrorCode(err))
	}

	if !request.SkipNormalize {
		input = w.normalizer.Normalize(input)
	}

	phonemes, err := w.manager.Phonemize(ctx, input, language)
	if err != nil {
		return withError(reply, err, phonemizeErrorCode(err))
	}

	reply.Phonemes = phonemes

	if request.StoreResult {
		key, storeErr := w.storeResult(ctx, phonemes)
		if storeErr != nil {
			return withError(reply, storeErr, CodeStoreFailed)
		}

		reply.PhonemeKey = key
	}

	return reply
}

func (w *NatsWorker) resolveText(ctx context.Context, request *PhonemizeRequest) (string, error) {
	if request.Text != "" {
		return request.Text, nil
	}

	if request.TextKey == "" {
		return "", ErrTextMissing
	}

	if w.store == nil {
		return "", ErrStoreNotConfigured
	}

	data, err := w.store.Download(ctx, request.TextKey)
	if err != nil {
		return "", fmt.Errorf("failed to download text data for key '%s': %w", request.TextKey, err)
	}

	return string(data), nil
}

func (w *NatsWorker) storeResult(ctx context.Context, phonemes string) (string, error) {
	if w.store == nil {
		return "", ErrStoreNotConfigured
	}

	key := uuid.NewString() + phonemeKeySuffix

	err := w.store.Upload(ctx, key, []byte(phonemes))
	if err != nil {
		return "", fmt.Errorf("failed to upload phonemes for key '%s': %w", key, err)
	}

	return key, nil
}

func (w *NatsWorker) handleStats(msg *nats.Msg) {
	data, err := json.Marshal(w.manager.Stats())
	if err != nil {
		w.log.Error("Failed to marshal phonemizer stats: %v", err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		w.log.Error("Failed to respond with phonemizer stats: %v", err)
	}
}

// respond marshals and sends the reply. Requests without a reply subject are dropped.
func (w *NatsWorker) respond(msg *nats.Msg, reply *PhonemizeReply) {
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal phonemize reply: %v", err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		w.log.Error("Failed to publish phonemize reply for workflow %s: %v", reply.Header.WorkflowID, err)
	}
}

func withError(reply *PhonemizeReply, err error, code string) *PhonemizeReply {
	reply.Error = err.Error()
	reply.ErrorCode = code

	return reply
}

func inputErrorCode(err error) string {
	if errors.Is(err, ErrTextMissing) {
		return CodeInvalidRequest
	}

	return CodeStoreFailed
}

func phonemizeErrorCode(err error) string {
	var phonemizationErr *phonemizer.PhonemizationError

	switch {
	case errors.Is(err, phonemizer.ErrEmptyText):
		return CodeInvalidRequest
	case errors.Is(err, phonemizer.ErrUnsupportedLanguage):
		return CodeUnsupportedLanguage
	case errors.Is(err, phonemizer.ErrEngineUnavailable):
		return CodeEngineUnavailable
	case errors.Is(err, phonemizer.ErrShutdownInProgress):
		return CodeShuttingDown
	case errors.As(err, &phonemizationErr):
		return CodePhonemizationFailed
	default:
		return CodeInternal
	}
}
