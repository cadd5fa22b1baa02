// Package mail implements the Mail command taxonomy (§4.3, §3 supplement)
// for the smtp service kind, added because neither Database, Cache, nor
// Object store fits "send an email".
package mail

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/nativegate/gateway/internal/domain"
	"github.com/nativegate/gateway/internal/services"
)

func init() {
	services.Register(domain.ServiceKindSMTP, newTask)
}

// Config is the opaque JSON shape for a Mail service.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Handle is the clonable per-request reference to a mail task. Every send
// runs on the task's owning actor goroutine, serialized in arrival order
// against every other command the task receives (§4.3) — concurrent Send
// calls queue rather than racing the dialer.
type Handle struct {
	dialer *gomail.Dialer
	from   string
	actor  *services.Actor
}

func newTask(raw json.RawMessage) (services.Task, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("%w: host and from are required", domain.ErrInvalidConfig)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Handle{dialer: dialer, from: cfg.From, actor: services.NewActor()}, nil
}

func (h *Handle) Kind() domain.ServiceKind { return domain.ServiceKindSMTP }

// Send dials and delivers one message, returning a locally-generated
// message id (SMTP itself has no synchronous delivery receipt to surface).
func (h *Handle) Send(ctx context.Context, to []string, subject, body string, html *string) (string, error) {
	var id string
	var opErr error
	if err := h.actor.Do(ctx, func() {
		msg := gomail.NewMessage()
		msg.SetHeader("From", h.from)
		msg.SetHeader("To", to...)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/plain", body)
		if html != nil {
			msg.AddAlternative("text/html", *html)
		}

		if e := h.dialer.DialAndSend(msg); e != nil {
			opErr = fmt.Errorf("%w: %v", domain.ErrQueryFailed, e)
			return
		}
		id = newMessageID()
	}); err != nil {
		return "", err
	}
	return id, opErr
}

func newMessageID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (h *Handle) Health(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var healthy bool
	err := h.actor.Do(ctx, func() {
		closer, e := h.dialer.Dial()
		if e != nil {
			return
		}
		_ = closer.Close()
		healthy = true
	})
	return err == nil && healthy
}

func (h *Handle) Shutdown() error {
	h.actor.Stop()
	return nil
}
