// Command phonemize-client sends one phonemize request to the service and
// prints the phonemes.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/phonemizer-service/internal/config"
	"github.com/book-expert/phonemizer-service/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Flag names.
const (
	flagText          = "text"
	flagKey           = "key"
	flagLanguage      = "language"
	flagSkipNormalize = "skip-normalize"
	flagStore         = "store"
	flagURL           = "nats-url"
	flagSubject       = "subject"
	flagTimeout       = "timeout"
	flagStats         = "stats"
)

// Flag descriptions.
const (
	flagTextDesc          = "Text to phonemize"
	flagKeyDesc           = "Object store key of the text to phonemize"
	flagLanguageDesc      = "Language code ('a' American English, 'b' British English)"
	flagSkipNormalizeDesc = "Send the text to espeak without normalization"
	flagStoreDesc         = "Store the phonemes in the object store"
	flagURLDesc           = "NATS server URL"
	flagSubjectDesc       = "Phonemize request subject"
	flagTimeoutDesc       = "Request timeout"
	flagStatsDesc         = "Print the phonemizer stats and exit"
)

const defaultTimeout = 30 * time.Second

var (
	errEitherTextOrKey    = errors.New("either --text or --key must be provided")
	errCannotSpecifyBoth  = errors.New("cannot specify both --text and --key")
	errNonPositiveTimeout = errors.New("--timeout must be positive")
	errServiceReply       = errors.New("service returned an error")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	text          string
	key           string
	language      string
	url           string
	subject       string
	timeout       time.Duration
	skipNormalize bool
	store         bool
	stats         bool
}

func main() {
	flags, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	err = run(flags, os.Stdout)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// parseFlags defines and parses the command-line flags on fs.
func parseFlags(fs *flag.FlagSet, args []string) (appFlags, error) {
	var flags appFlags

	fs.StringVar(&flags.text, flagText, "", flagTextDesc)
	fs.StringVar(&flags.key, flagKey, "", flagKeyDesc)
	fs.StringVar(&flags.language, flagLanguage, config.DefaultLanguage, flagLanguageDesc)
	fs.BoolVar(&flags.skipNormalize, flagSkipNormalize, false, flagSkipNormalizeDesc)
	fs.BoolVar(&flags.store, flagStore, false, flagStoreDesc)
	fs.StringVar(&flags.url, flagURL, config.DefaultNATSURL, flagURLDesc)
	fs.StringVar(&flags.subject, flagSubject, config.DefaultPhonemizeSubject, flagSubjectDesc)
	fs.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)
	fs.BoolVar(&flags.stats, flagStats, false, flagStatsDesc)

	err := fs.Parse(args)
	if err != nil {
		return flags, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// validate checks required and conflicting arguments.
func (f appFlags) validate() error {
	if f.timeout <= 0 {
		return errNonPositiveTimeout
	}

	if f.stats {
		return nil
	}

	if f.text == "" && f.key == "" {
		return errEitherTextOrKey
	}

	if f.text != "" && f.key != "" {
		return errCannotSpecifyBoth
	}

	return nil
}

func run(flags appFlags, out io.Writer) error {
	err := flags.validate()
	if err != nil {
		return err
	}

	natsConnection, err := nats.Connect(flags.url)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", flags.url, err)
	}
	defer natsConnection.Close()

	if flags.stats {
		return printStats(natsConnection, flags, out)
	}

	reply, err := sendRequest(natsConnection, flags)
	if err != nil {
		return err
	}

	if reply.ErrorCode != "" {
		return fmt.Errorf("%w: %s: %s", errServiceReply, reply.ErrorCode, reply.Error)
	}

	_, err = fmt.Fprintln(out, reply.Phonemes)
	if err != nil {
		return fmt.Errorf("failed to write phonemes: %w", err)
	}

	if reply.PhonemeKey != "" {
		_, err = fmt.Fprintf(out, "stored as %s\n", reply.PhonemeKey)
		if err != nil {
			return fmt.Errorf("failed to write phoneme key: %w", err)
		}
	}

	return nil
}

func buildRequest(flags appFlags) worker.PhonemizeRequest {
	return worker.PhonemizeRequest{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
		},
		Text:          flags.text,
		TextKey:       flags.key,
		Language:      flags.language,
		SkipNormalize: flags.skipNormalize,
		StoreResult:   flags.store,
	}
}

func sendRequest(natsConnection *nats.Conn, flags appFlags) (*worker.PhonemizeReply, error) {
	data, err := json.Marshal(buildRequest(flags))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	msg, err := natsConnection.Request(flags.subject, data, flags.timeout)
	if err != nil {
		return nil, fmt.Errorf("request on %s failed: %w", flags.subject, err)
	}

	var reply worker.PhonemizeReply

	err = json.Unmarshal(msg.Data, &reply)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	return &reply, nil
}

func printStats(natsConnection *nats.Conn, flags appFlags, out io.Writer) error {
	msg, err := natsConnection.Request(flags.subject+".stats", nil, flags.timeout)
	if err != nil {
		return fmt.Errorf("stats request failed: %w", err)
	}

	_, err = fmt.Fprintln(out, string(msg.Data))
	if err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}

	return nil
}
