package smtp_client

import (
	"errors"
	"log/slog"
	"net/textproto"
	"sync/atomic"

	"github.com/knadh/smtppool"
)

func (sc *SmtpClients) SendMail(
	to []string,
	subject string,
	htmlContent string,
	overrides *HeaderOverrides,
) error {
	count := atomic.AddUint64(&sc.counter, 1)

	sc.poolMutex.Lock()
	if len(sc.connectionPool) < 1 {
		sc.connectionPool = initConnectionPool(sc.servers)
		if len(sc.connectionPool) < 1 {
			sc.poolMutex.Unlock()
			return errors.New("no servers defined")
		}
	}
	index := int(count % uint64(len(sc.connectionPool)))
	selected := sc.connectionPool[index]
	sc.poolMutex.Unlock()

	From := sc.servers.From
	Sender := sc.servers.Sender
	ReplyTo := sc.servers.ReplyTo

	if overrides != nil {
		if overrides.From != "" {
			From = overrides.From
		}
		if overrides.Sender != "" {
			Sender = overrides.Sender
		}

		if overrides.NoReplyTo {
			ReplyTo = []string{}
		} else if len(overrides.ReplyTo) > 0 {
			ReplyTo = overrides.ReplyTo
		}
	}

	e := smtppool.Email{
		To:      to,
		From:    From,
		Sender:  Sender,
		ReplyTo: ReplyTo,
		Subject: subject,
		HTML:    []byte(htmlContent),
		Headers: textproto.MIMEHeader{},
	}
	err := selected.pool.Send(e)

	if err != nil {
		// close and try to reconnect
		slog.Error("error when trying to send email", slog.String("error", err.Error()))

		pool, errReconnect := connectToPool(selected.server)
		if errReconnect != nil {
			slog.Error("cannot reconnect pool", slog.String("error", errReconnect.Error()), slog.String("server", selected.server.Host))
		} else {
			slog.Info("reconnected to pool", slog.String("server", selected.server.Host))
			sc.poolMutex.Lock()
			sc.connectionPool[index].pool = pool
			sc.poolMutex.Unlock()
		}
	}
	return err
}
