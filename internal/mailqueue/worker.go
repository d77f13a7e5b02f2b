package mailqueue

import (
	"context"
	"fmt"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Sender delivers one mail. link is the frontend URL carrying the action token.
type Sender interface {
	Deliver(ctx context.Context, mail goIdentity.Mail, link string) error
}

// Worker runs the asynq server for TypeSendMail. Call Run to start.
type Worker struct {
	srv       *asynq.Server
	mux       *asynq.ServeMux
	sender    Sender
	clientURL string
	log       zerolog.Logger
}

func NewWorker(redisOpt asynq.RedisConnOpt, sender Sender, clientURL string, log zerolog.Logger) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		LogLevel:    asynq.InfoLevel,
	})
	w := &Worker{
		srv:       srv,
		mux:       asynq.NewServeMux(),
		sender:    sender,
		clientURL: strings.TrimRight(clientURL, "/"),
		log:       log,
	}
	w.mux.HandleFunc(TypeSendMail, w.handleSendMail)
	return w
}

func (w *Worker) handleSendMail(ctx context.Context, t *asynq.Task) error {
	mail, err := decodeTask(t)
	if err != nil {
		w.log.Error().Err(err).Msg("mail task payload invalid")
		// A malformed payload never becomes valid; do not retry it.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	link, err := Link(w.clientURL, mail)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return w.sender.Deliver(ctx, mail, link)
}

// Run blocks until shutdown.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}

// Link builds the frontend URL the recipient follows for mail.
func Link(clientURL string, mail goIdentity.Mail) (string, error) {
	var path string
	switch mail.Template {
	case goIdentity.MailTemplateEmailVerification:
		path = "/verify-email/"
	case goIdentity.MailTemplatePasswordReset:
		path = "/reset-password/"
	case goIdentity.MailTemplateEmailChange:
		path = "/change-email/"
	default:
		return "", fmt.Errorf("%w: unknown template %q", ErrInvalidMail, mail.Template)
	}
	return strings.TrimRight(clientURL, "/") + path + mail.ActionTokenID, nil
}

// LogSender writes the link to the log. Recipient addresses are not logged.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Deliver(_ context.Context, mail goIdentity.Mail, link string) error {
	s.Log.Info().
		Str("template", mail.Template).
		Str("link", link).
		Msg("mail (log only)")
	return nil
}

// Inline is a goIdentity.Mailer that delivers on the calling goroutine. identityd uses it
// when the queue is disabled.
type Inline struct {
	Sender    Sender
	ClientURL string
}

func (m Inline) Send(ctx context.Context, mail goIdentity.Mail) error {
	link, err := Link(m.ClientURL, mail)
	if err != nil {
		return err
	}
	return m.Sender.Deliver(ctx, mail, link)
}

var _ goIdentity.Mailer = Inline{}
