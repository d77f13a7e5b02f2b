// Package mailqueue moves engine mail onto an asynq queue and delivers it from a worker.
//
// [Enqueuer] implements goIdentity.Mailer on the request path. [Worker] consumes
// TypeSendMail tasks and hands each one to a [Sender]. [LogSender] is the development
// sender that writes the link to the log instead of sending mail.
package mailqueue
