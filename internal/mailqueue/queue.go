package mailqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const TypeSendMail = "mail:send"

const (
	defaultMaxRetry = 5
	defaultTimeout  = 30 * time.Second
)

var ErrInvalidMail = errors.New("invalid mail")

// NewTask encodes mail as a TypeSendMail task.
func NewTask(mail goIdentity.Mail) (*asynq.Task, error) {
	if mail.To == "" || mail.Template == "" || mail.ActionTokenID == "" {
		return nil, ErrInvalidMail
	}
	payload, err := json.Marshal(mail)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMail, err)
	}
	return asynq.NewTask(TypeSendMail, payload, asynq.MaxRetry(defaultMaxRetry), asynq.Timeout(defaultTimeout)), nil
}

func decodeTask(t *asynq.Task) (goIdentity.Mail, error) {
	var mail goIdentity.Mail
	if err := json.Unmarshal(t.Payload(), &mail); err != nil {
		return mail, fmt.Errorf("%w: %v", ErrInvalidMail, err)
	}
	if mail.To == "" || mail.Template == "" || mail.ActionTokenID == "" {
		return mail, ErrInvalidMail
	}
	return mail, nil
}

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Enqueuer is a goIdentity.Mailer backed by an asynq client.
type Enqueuer struct {
	client taskClient
	log    zerolog.Logger
}

func NewEnqueuer(redisOpt asynq.RedisConnOpt, log zerolog.Logger) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(redisOpt), log: log}
}

func (q *Enqueuer) Close() error {
	return q.client.Close()
}

func (q *Enqueuer) Send(ctx context.Context, mail goIdentity.Mail) error {
	task, err := NewTask(mail)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		q.log.Warn().Err(err).Str("template", mail.Template).Msg("enqueue mail failed")
		return err
	}
	q.log.Debug().Str("task_id", info.ID).Str("template", mail.Template).Msg("mail enqueued")
	return nil
}

var _ goIdentity.Mailer = (*Enqueuer)(nil)
